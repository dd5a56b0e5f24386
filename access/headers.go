package access

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"

	"github.com/jrsteele09/taproom-client/sessions"
)

// CookieHeader renders the session as a Cookie header value. Identifiers are
// sent as-is; free-text identity fields are URI-encoded, and empty optional
// fields are left out rather than sent as "name=".
func CookieHeader(record *sessions.Record) string {
	if record == nil {
		return ""
	}
	pairs := []string{
		sessions.CookieStoreID + "=" + record.StoreID,
		sessions.CookieSessionID + "=" + record.SessionID,
		sessions.CookieMemberID + "=" + record.MemberID,
	}
	optional := []struct {
		name  string
		value string
	}{
		{sessions.CookieStoreName, record.StoreName},
		{sessions.CookieUsername, record.Username},
		{sessions.CookieFirstName, record.FirstName},
		{sessions.CookieLastName, record.LastName},
		{sessions.CookieEmail, record.Email},
		{sessions.CookieCardNum, record.CardNum},
	}
	for _, field := range optional {
		if field.value == "" {
			continue
		}
		pairs = append(pairs, field.name+"="+EncodeComponent(field.value))
	}
	return strings.Join(pairs, "; ")
}

// componentReplacer restores the characters URI component encoding leaves alone.
var componentReplacer = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// EncodeComponent percent-encodes a cookie value the way browsers encode a URI
// component: spaces become %20 and only the unreserved marks stay literal.
func EncodeComponent(s string) string {
	return componentReplacer.Replace(url.QueryEscape(s))
}

// UserAgent identifies the app build and the device it runs on.
func UserAgent(appName, version, deviceID string) string {
	name := strings.ReplaceAll(strings.TrimSpace(appName), " ", "")
	if name == "" {
		name = "Taproom"
	}
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("%sClient/%s (%s/%s; device %s)", name, version, runtime.GOOS, runtime.GOARCH, deviceID)
}
