// Package twin is an in-memory stand-in for the brewery backend. It speaks the
// same cookie-session protocol and is used by tests and the CLI's twin command.
package twin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Twin struct {
	router chi.Router
	state  *state
	tokens *tokenIssuer
	faults *faults
	logger zerolog.Logger
	now    func() time.Time
	secret []byte
}

type Option func(*Twin)

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Twin) {
		t.logger = logger
	}
}

// WithSecret fixes the token signing secret so tokens survive a restart.
func WithSecret(secret []byte) Option {
	return func(t *Twin) {
		t.secret = secret
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Twin) {
		t.now = now
	}
}

// New creates a twin seeded with the demo store, beers, rewards and member.
func New(options ...Option) (*Twin, error) {
	t := &Twin{
		state:  newState(),
		faults: newFaults(),
		logger: log.Logger,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	if len(t.secret) == 0 {
		t.secret = []byte(uuid.NewString())
	}
	t.tokens = newTokenIssuer(t.secret, t.now)

	if err := t.AddMember(Member{
		ID:        DemoMemberID,
		Username:  DemoUsername,
		FirstName: "Hop",
		LastName:  "Lover",
		Email:     "hop@example.com",
		CardNum:   "00042",
		Points:    120,
	}, DemoPassword); err != nil {
		return nil, errors.Wrap(err, "[twin.New] seed member")
	}

	t.router = t.routes()
	return t, nil
}

func (t *Twin) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(t.recoverMiddleware)
	r.Use(t.loggingMiddleware)
	r.Use(t.faultMiddleware)

	r.Get("/", t.handleRoot)
	r.Head("/", t.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", t.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(t.sessionMiddleware)
			r.Post("/logout", t.handleLogout)
			r.Get("/beers", t.handleBeers)
			r.Get("/beers/{id}", t.handleBeer)
			r.Get("/checkins", t.handleListCheckIns)
			r.Post("/checkins", t.handleCreateCheckIn)
			r.Get("/rewards", t.handleRewards)
			r.Post("/rewards/redeem", t.handleRedeem)
		})
	})
	return r
}

func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.router.ServeHTTP(w, r)
}

func (t *Twin) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// AddMember registers a member with a plain-text password.
func (t *Twin) AddMember(m Member, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[Twin.AddMember] hash password")
	}
	m.PasswordHash = hash
	t.state.addMember(&m)
	return nil
}

// RevokeSession makes a previously issued session token invalid, as if it expired server-side.
func (t *Twin) RevokeSession(token string) {
	t.tokens.revoke(token)
}

// Points returns a member's current balance.
func (t *Twin) Points(memberID string) int {
	m, _ := t.state.member(memberID)
	return m.Points
}
