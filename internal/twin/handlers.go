package twin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	rememberCookie = "remember_me"
	sessionTTL     = time.Hour
	rememberTTL    = 30 * 24 * time.Hour
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// handleLogin serves both credential login and auto-login. An empty form means
// auto-login from the remember-me cookie.
func (t *Twin) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")

	var member Member
	switch {
	case username == "" && password == "":
		memberID, err := t.tokens.verify(cookieValue(r, rememberCookie), kindRemember)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "please log in again")
			return
		}
		m, ok := t.state.member(memberID)
		if !ok {
			writeError(w, http.StatusUnauthorized, "please log in again")
			return
		}
		member = m
	case username == "" || password == "":
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	default:
		m, ok := t.state.memberByUsername(username)
		if !ok || !m.CheckPassword(password) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		member = m
	}

	session, err := t.tokens.issue(member.ID, kindSession, sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	remember, err := t.tokens.issue(member.ID, kindRemember, rememberTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.state.touchLogin(member.ID, t.now())

	http.SetCookie(w, &http.Cookie{
		Name:     rememberCookie,
		Value:    remember,
		Path:     "/",
		MaxAge:   int(rememberTTL.Seconds()),
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Welcome back, " + displayName(member),
		"member":  member.session(t.state.storeID, t.state.storeName, session),
	})
}

func (t *Twin) handleLogout(w http.ResponseWriter, r *http.Request) {
	t.tokens.revoke(sessionToken(r))
	if remember := cookieValue(r, rememberCookie); remember != "" {
		t.tokens.revoke(remember)
	}
	http.SetCookie(w, &http.Cookie{Name: rememberCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (t *Twin) handleBeers(w http.ResponseWriter, r *http.Request) {
	onTap := r.URL.Query().Get("on_tap") == "1"
	writeJSON(w, http.StatusOK, map[string]any{
		"beers": t.state.listBeers(r.URL.Query().Get("style"), onTap),
	})
}

func (t *Twin) handleBeer(w http.ResponseWriter, r *http.Request) {
	beer, ok := t.state.beer(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "beer not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beer": beer})
}

func (t *Twin) handleListCheckIns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"checkins": t.state.listCheckIns(memberID(r))})
}

func (t *Twin) handleCreateCheckIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	beer, ok := t.state.beer(r.PostForm.Get("beer_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "beer not found")
		return
	}
	rating, err := strconv.Atoi(r.PostForm.Get("rating"))
	if err != nil || rating < 1 || rating > 5 {
		writeError(w, http.StatusUnprocessableEntity, "rating must be between 1 and 5")
		return
	}
	checkIn := t.state.addCheckIn(memberID(r), beer, rating, r.PostForm.Get("note"), t.now())
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "checkin": checkIn})
}

func (t *Twin) handleRewards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, t.state.rewardsFor(memberID(r)))
}

func (t *Twin) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	rewardID := r.PostForm.Get("reward_id")
	balance, found, enough := t.state.redeem(memberID(r), rewardID)
	switch {
	case !found:
		writeError(w, http.StatusNotFound, "reward not found")
	case !enough:
		writeError(w, http.StatusUnprocessableEntity, "insufficient points")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"reward_id": rewardID,
			"balance":   balance,
			"message":   "Enjoy!",
		})
	}
}

func displayName(m Member) string {
	if m.FirstName != "" {
		return m.FirstName
	}
	return m.Username
}
