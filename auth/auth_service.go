package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/taproom-client/access"
	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/internal/config"
	"github.com/jrsteele09/taproom-client/sessions"
)

// Transport sends one unauthenticated logical request. *access.Requester implements it.
type Transport interface {
	Do(ctx context.Context, req access.Request) (*access.Response, error)
}

// Observer is told whenever the current session changes; record is nil after logout.
type Observer interface {
	SessionChanged(record *sessions.Record)
}

// LogoutPolicy decides what happens locally when the server logout call fails.
type LogoutPolicy int

const (
	// LogoutStrict keeps the local session when the server call fails.
	LogoutStrict LogoutPolicy = iota
	// LogoutBestEffort clears the local session regardless and logs the failure.
	LogoutBestEffort
)

// Outcome is the success branch of a login.
type Outcome struct {
	Session *sessions.Record
	Message string
}

// loginResponse is the backend's answer to a login or auto-login.
type loginResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Error   string           `json:"error"`
	Member  *sessions.Record `json:"member"`
}

// Service creates and destroys sessions. It is the only writer of the session store.
type Service struct {
	transport    Transport
	repo         sessions.Repo
	endpoints    config.EndpointConfig
	observers    []Observer
	logoutPolicy LogoutPolicy
	logger       zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithObserver registers o to follow session changes.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

func WithLogoutPolicy(p LogoutPolicy) ServiceOption {
	return func(s *Service) {
		s.logoutPolicy = p
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a Service with required dependencies.
func NewService(transport Transport, repo sessions.Repo, endpoints config.EndpointConfig, options ...ServiceOption) (*Service, error) {
	if transport == nil {
		return nil, errors.Wrap(ErrTransportRequired, "[NewService]")
	}
	if repo == nil {
		return nil, errors.Wrap(ErrRepoRequired, "[NewService]")
	}
	if endpoints == nil {
		return nil, errors.Wrap(ErrEndpointsRequired, "[NewService]")
	}

	s := &Service{
		transport:    transport,
		repo:         repo,
		endpoints:    endpoints,
		logoutPolicy: LogoutStrict,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login submits credentials. Empty arguments are rejected with a 400 before
// anything is sent.
func (s *Service) Login(ctx context.Context, username, password string) (*Outcome, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, apierror.Validation(msgCredentialsRequired, http.StatusBadRequest)
	}
	form := access.FormOf(map[string]string{
		"username": username,
		"password": password,
	})
	return s.login(ctx, form, "login")
}

// AutoLogin asks the backend for a session without credentials. The backend
// recognises the device from the remember-me cookie set on an earlier login.
func (s *Service) AutoLogin(ctx context.Context) (*Outcome, error) {
	return s.login(ctx, access.Form{}, "autologin")
}

// Refresh adapts AutoLogin for the access client's session acquisition.
func (s *Service) Refresh(ctx context.Context) (*sessions.Record, error) {
	outcome, err := s.AutoLogin(ctx)
	if err != nil {
		return nil, err
	}
	return outcome.Session, nil
}

func (s *Service) login(ctx context.Context, form access.Form, mode string) (*Outcome, error) {
	resp, err := s.transport.Do(ctx, access.Request{
		Method: http.MethodPost,
		Path:   s.endpoints.GetEndpoint(config.EndpointLogin),
		Form:   form,
	})
	if err != nil {
		s.logger.Info().Str("mode", mode).Err(err).Msg("login failed")
		return nil, apierror.Wrap(err)
	}

	var body loginResponse
	if err := resp.Decode(&body); err != nil {
		return nil, apierror.Wrap(err)
	}
	if !body.Success {
		message := body.Error
		if message == "" {
			message = body.Message
		}
		if message == "" {
			message = msgLoginRejected
		}
		s.logger.Info().Str("mode", mode).Msg("login rejected by server")
		return nil, apierror.Unauthenticated(message)
	}
	record := sessions.Validate(body.Member)
	if record == nil {
		return nil, apierror.FromStatus(http.StatusBadGateway, msgIncompleteSession)
	}

	if err := s.establish(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info().Str("mode", mode).Str("member_id", record.MemberID).Str("store_id", record.StoreID).Msg("logged in")
	return &Outcome{Session: record, Message: body.Message}, nil
}

// establish persists record and tells observers about it.
func (s *Service) establish(ctx context.Context, record *sessions.Record) error {
	if err := s.repo.Save(ctx, record); err != nil {
		return apierror.Internal(errors.Wrap(err, "[Service.establish] save session"))
	}
	s.notify(record)
	return nil
}

// Logout ends the session on the server and then clears it locally. The server
// call is always attempted so the backend can drop its remember-me state even
// when no local session survives. Under LogoutStrict a failed server call
// returns the error and a local session stays; a 401 means the server already
// forgot it, so the local copy goes too.
func (s *Service) Logout(ctx context.Context) error {
	record, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not read session before logout")
	}
	record = sessions.Validate(record)

	_, err = s.transport.Do(ctx, access.Request{
		Method: http.MethodPost,
		Path:   s.endpoints.GetEndpoint(config.EndpointLogout),
		Cookie: access.CookieHeader(record),
	})
	if err != nil {
		apiErr := apierror.Wrap(err)
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			// already gone on the server
		case record != nil && s.logoutPolicy == LogoutStrict:
			return apiErr
		default:
			s.logger.Warn().Err(apiErr).Bool("local_session", record != nil).Msg("server logout failed, clearing local session anyway")
		}
	}

	if err := s.repo.Clear(ctx); err != nil {
		return apierror.Internal(errors.Wrap(err, "[Service.Logout] clear session"))
	}
	s.notify(nil)
	s.logger.Info().Msg("logged out")
	return nil
}

func (s *Service) notify(record *sessions.Record) {
	for _, o := range s.observers {
		o.SessionChanged(record)
	}
}
