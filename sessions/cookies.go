package sessions

// Cookie names the backend uses for session material.
const (
	CookieSessionID = "PHPSESSID"
	CookieMemberID  = "member_id"
	CookieStoreID   = "store__id"
	CookieStoreName = "store_name"
	CookieUsername  = "username"
	CookieFirstName = "first_name"
	CookieLastName  = "last_name"
	CookieEmail     = "email"
	CookieCardNum   = "card_number"
)
