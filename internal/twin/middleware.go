package twin

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jrsteele09/taproom-client/sessions"
)

type contextKey string

const (
	memberCtxKey contextKey = "member_id"
	tokenCtxKey  contextKey = "session_token"
)

func (t *Twin) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				t.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (t *Twin) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		t.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(started)).
			Msg("twin request")
	})
}

// sessionMiddleware accepts a request when its PHPSESSID is a live session
// token issued to the member named by member_id at this store.
func (t *Twin) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := cookieValue(r, sessions.CookieSessionID)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		memberID, err := t.tokens.verify(token, kindSession)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		if cookieValue(r, sessions.CookieMemberID) != memberID || cookieValue(r, sessions.CookieStoreID) != t.state.storeID {
			writeError(w, http.StatusUnauthorized, "session does not match member")
			return
		}
		ctx := context.WithValue(r.Context(), memberCtxKey, memberID)
		ctx = context.WithValue(ctx, tokenCtxKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func memberID(r *http.Request) string {
	id, _ := r.Context().Value(memberCtxKey).(string)
	return id
}

func sessionToken(r *http.Request) string {
	token, _ := r.Context().Value(tokenCtxKey).(string)
	return token
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
