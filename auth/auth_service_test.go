package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/taproom-client/access"
	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/auth"
	"github.com/jrsteele09/taproom-client/internal/config"
	"github.com/jrsteele09/taproom-client/sessions"
	fakesessionrepo "github.com/jrsteele09/taproom-client/sessions/repofakes"
)

const (
	testUsername = "hoplover"
	testPassword = "s3cret"
)

var testMember = map[string]any{
	"member_id":  "42",
	"store_id":   "7",
	"store_name": "Main Street Taproom",
	"session_id": "sess-abc",
	"username":   testUsername,
	"email":      "hop@example.com",
}

// recordingObserver keeps every session change it is told about.
type recordingObserver struct {
	mu      sync.Mutex
	changes []*sessions.Record
}

func (o *recordingObserver) SessionChanged(record *sessions.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, record)
}

func (o *recordingObserver) Changes() []*sessions.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*sessions.Record(nil), o.changes...)
}

type testFixture struct {
	server   *httptest.Server
	hits     *atomic.Int32
	repo     *fakesessionrepo.FakeSessionRepo
	observer *recordingObserver
	service  *auth.Service
}

func newFixture(t *testing.T, handler http.HandlerFunc, options ...auth.ServiceOption) *testFixture {
	t.Helper()
	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.BaseURL = server.URL
	cfg.Retries = 1
	cfg.RetryDelay = time.Millisecond
	cfg.Timeout = time.Second

	repo := fakesessionrepo.NewFakeSessionRepo()
	observer := &recordingObserver{}
	options = append([]auth.ServiceOption{auth.WithObserver(observer)}, options...)
	service, err := auth.NewService(access.NewRequester(cfg), repo, cfg, options...)
	require.NoError(t, err)

	return &testFixture{server: server, hits: hits, repo: repo, observer: observer, service: service}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requireAPIError(t *testing.T, err error) *apierror.Error {
	t.Helper()
	apiErr, ok := apierror.As(err)
	require.True(t, ok, "expected *apierror.Error, got %T", err)
	return apiErr
}

func TestNewService_RequiresDependencies(t *testing.T) {
	cfg := config.Default()
	requester := access.NewRequester(cfg)
	repo := fakesessionrepo.NewFakeSessionRepo()

	_, err := auth.NewService(nil, repo, cfg)
	require.ErrorIs(t, err, auth.ErrTransportRequired)
	_, err = auth.NewService(requester, nil, cfg)
	require.ErrorIs(t, err, auth.ErrRepoRequired)
	_, err = auth.NewService(requester, repo, nil)
	require.ErrorIs(t, err, auth.ErrEndpointsRequired)
}

func TestLogin_EmptyArgumentsMakeNoCall(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "member": testMember})
	})

	for _, creds := range [][2]string{{"", "p"}, {"u", ""}, {"  ", "p"}} {
		outcome, err := f.service.Login(context.Background(), creds[0], creds[1])
		require.Nil(t, outcome)
		apiErr := requireAPIError(t, err)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		require.Equal(t, apierror.KindValidation, apiErr.Kind())
	}
	require.Equal(t, int32(0), f.hits.Load())
	require.Equal(t, 0, f.repo.Saves())
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/login", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, testUsername, r.PostForm.Get("username"))
		require.Equal(t, testPassword, r.PostForm.Get("password"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Welcome back", "member": testMember})
	})

	outcome, err := f.service.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, "Welcome back", outcome.Message)
	require.Equal(t, "sess-abc", outcome.Session.SessionID)
	require.Equal(t, "hop@example.com", outcome.Session.Email)

	require.Equal(t, outcome.Session, f.repo.Stored())
	changes := f.observer.Changes()
	require.Len(t, changes, 1)
	require.Equal(t, "42", changes[0].MemberID)
}

func TestLogin_ServerRejection(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid username or password"})
	})

	_, err := f.service.Login(context.Background(), testUsername, "wrong")
	apiErr := requireAPIError(t, err)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid username or password", apiErr.Message)
	require.False(t, apiErr.Retryable())
	require.Equal(t, 0, f.repo.Saves())
	require.Empty(t, f.observer.Changes())
}

func TestLogin_UnsuccessfulBodyOn200(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Account suspended"})
	})

	_, err := f.service.Login(context.Background(), testUsername, testPassword)
	apiErr := requireAPIError(t, err)
	require.Equal(t, apierror.KindUnauthenticated, apiErr.Kind())
	require.Equal(t, "Account suspended", apiErr.Message)
}

func TestLogin_IncompleteMember(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "member": map[string]any{"member_id": "42"}})
	})

	_, err := f.service.Login(context.Background(), testUsername, testPassword)
	apiErr := requireAPIError(t, err)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, 0, f.repo.Saves())
}

func TestLogin_TypedTransportErrorPassesThrough(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := f.service.Login(context.Background(), testUsername, testPassword)
	apiErr := requireAPIError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.True(t, apiErr.Retryable())
}

func TestLogin_SaveFailureIsInternal(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "member": testMember})
	})
	f.repo.FailSave(errors.New("disk full"))

	_, err := f.service.Login(context.Background(), testUsername, testPassword)
	apiErr := requireAPIError(t, err)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "disk full")
	require.Empty(t, f.observer.Changes())
}

func TestAutoLogin_UsesRememberMeCookie(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "" {
			http.SetCookie(w, &http.Cookie{Name: "remember_me", Value: "rm-1", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "member": testMember})
			return
		}
		require.Empty(t, r.PostForm)
		if c, err := r.Cookie("remember_me"); err != nil || c.Value != "rm-1" {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "not remembered"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "member": testMember})
	})

	_, err := f.service.AutoLogin(context.Background())
	require.Equal(t, apierror.KindUnauthenticated, requireAPIError(t, err).Kind())

	_, err = f.service.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)

	record, err := f.service.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sess-abc", record.SessionID)
	require.Equal(t, 2, f.repo.Saves())
}

func TestLogout_ClearsAfterServerCall(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logout", r.URL.Path)
		c, err := r.Cookie(sessions.CookieSessionID)
		require.NoError(t, err)
		require.Equal(t, "sess-abc", c.Value)
		w.WriteHeader(http.StatusNoContent)
	})
	f.repo.Seed(&sessions.Record{MemberID: "42", StoreID: "7", StoreName: "Main", SessionID: "sess-abc"})

	require.NoError(t, f.service.Logout(context.Background()))
	require.Nil(t, f.repo.Stored())
	require.Equal(t, int32(1), f.hits.Load())
	changes := f.observer.Changes()
	require.Len(t, changes, 1)
	require.Nil(t, changes[0])
}

func TestLogout_StrictKeepsSessionOnFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	f.repo.Seed(&sessions.Record{MemberID: "42", StoreID: "7", StoreName: "Main", SessionID: "sess-abc"})

	err := f.service.Logout(context.Background())
	require.Equal(t, http.StatusBadGateway, requireAPIError(t, err).StatusCode)
	require.NotNil(t, f.repo.Stored())
	require.Equal(t, 0, f.repo.Clears())
	require.Empty(t, f.observer.Changes())
}

func TestLogout_BestEffortClearsOnFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, auth.WithLogoutPolicy(auth.LogoutBestEffort))
	f.repo.Seed(&sessions.Record{MemberID: "42", StoreID: "7", StoreName: "Main", SessionID: "sess-abc"})

	require.NoError(t, f.service.Logout(context.Background()))
	require.Nil(t, f.repo.Stored())
	require.Equal(t, 1, f.repo.Clears())
}

func TestLogout_ServerAlreadyForgotSession(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.repo.Seed(&sessions.Record{MemberID: "42", StoreID: "7", StoreName: "Main", SessionID: "sess-abc"})

	require.NoError(t, f.service.Logout(context.Background()))
	require.Nil(t, f.repo.Stored())
}

func TestLogout_WithoutSessionStillCallsServer(t *testing.T) {
	var sawSession atomic.Bool
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logout", r.URL.Path)
		if _, err := r.Cookie(sessions.CookieSessionID); err == nil {
			sawSession.Store(true)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.service.Logout(context.Background()))
	require.Equal(t, int32(1), f.hits.Load())
	require.False(t, sawSession.Load())
	require.Equal(t, 1, f.repo.Clears())
	changes := f.observer.Changes()
	require.Len(t, changes, 1)
	require.Nil(t, changes[0])
}

func TestLogout_WithoutSessionIgnoresServerFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.NoError(t, f.service.Logout(context.Background()))
	require.Equal(t, int32(1), f.hits.Load())
	require.Equal(t, 1, f.repo.Clears())
}

func TestLogout_ClearFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.repo.FailClear(errors.New("keychain unavailable"))

	err := f.service.Logout(context.Background())
	require.Equal(t, http.StatusInternalServerError, requireAPIError(t, err).StatusCode)
}
