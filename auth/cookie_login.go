package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/sessions"
)

// ParseCookies splits a Cookie header style string into name/value pairs.
// Segments without a name or an "=" are skipped. Values are URI-decoded when
// possible and kept raw when not.
func ParseCookies(raw string) map[string]string {
	values := map[string]string{}
	for _, segment := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(segment), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		values[name] = decodeComponent(strings.TrimSpace(value))
	}
	return values
}

func decodeComponent(value string) string {
	decoded, err := url.PathUnescape(value)
	if err != nil || !utf8.ValidString(decoded) {
		return value
	}
	return decoded
}

// HandleCookieLogin ingests session material captured by an external login
// flow as a raw cookie string.
func (s *Service) HandleCookieLogin(ctx context.Context, raw string) (*Outcome, error) {
	return s.HandleCookieMap(ctx, ParseCookies(raw))
}

// HandleCookieMap ingests already-parsed cookies. Token, member id and store id
// are required; the store name falls back to the store id.
func (s *Service) HandleCookieMap(ctx context.Context, cookies map[string]string) (*Outcome, error) {
	record := &sessions.Record{
		SessionID: strings.TrimSpace(cookies[sessions.CookieSessionID]),
		MemberID:  strings.TrimSpace(cookies[sessions.CookieMemberID]),
		StoreID:   strings.TrimSpace(cookies[sessions.CookieStoreID]),
		StoreName: cookies[sessions.CookieStoreName],
		Username:  cookies[sessions.CookieUsername],
		FirstName: cookies[sessions.CookieFirstName],
		LastName:  cookies[sessions.CookieLastName],
		Email:     cookies[sessions.CookieEmail],
		CardNum:   cookies[sessions.CookieCardNum],
	}

	var missing []string
	for _, field := range []struct{ name, value string }{
		{sessions.CookieSessionID, record.SessionID},
		{sessions.CookieMemberID, record.MemberID},
		{sessions.CookieStoreID, record.StoreID},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return nil, apierror.Validation(msgMissingCookies+": "+strings.Join(missing, ", "), http.StatusUnauthorized)
	}
	if strings.TrimSpace(record.StoreName) == "" {
		record.StoreName = record.StoreID
	}

	if err := s.establish(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info().Str("mode", "cookie").Str("member_id", record.MemberID).Str("store_id", record.StoreID).Msg("logged in")
	return &Outcome{Session: record, Message: "logged in"}, nil
}
