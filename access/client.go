package access

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/sessions"
)

// Client issues authenticated requests. It resolves a session once and shares
// it (and any in-flight acquisition) between concurrent callers.
type Client struct {
	requester *Requester
	sessions  *acquirer
	logger    zerolog.Logger
}

type ClientOption func(*Client)

func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
		c.sessions.logger = logger
	}
}

// WithAcquireTimeout bounds a whole session acquisition, including auto-login retries.
func WithAcquireTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.sessions.timeout = d
		}
	}
}

// NewClient builds a client over requester. refresher may be nil, in which case
// a missing session fails with a 401 instead of attempting auto-login.
func NewClient(requester *Requester, source SessionSource, refresher Refresher, options ...ClientOption) *Client {
	cfg := requester.cfg
	attempts := time.Duration(cfg.GetRetries())
	c := &Client{
		requester: requester,
		logger:    log.Logger,
		sessions: &acquirer{
			source:    source,
			refresher: refresher,
			timeout:   attempts*cfg.GetTimeout() + attempts*cfg.GetRetryDelay(),
			metrics:   requester.metrics,
			logger:    log.Logger,
		},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get sends an authenticated GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.send(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends an authenticated form POST. Nil form values are omitted.
func (c *Client) Post(ctx context.Context, path string, form Form) (*Response, error) {
	return c.send(ctx, Request{Method: http.MethodPost, Path: path, Form: form})
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	record, apiErr := c.sessions.acquire(ctx)
	if apiErr != nil {
		c.requester.metrics.RequestsTotal.WithLabelValues(req.Method, "failure").Inc()
		return nil, apiErr
	}
	req.Cookie = CookieHeader(record)

	resp, err := c.requester.Do(ctx, req)
	if err != nil {
		if typed, ok := apierror.As(err); ok && typed.StatusCode == http.StatusUnauthorized {
			c.sessions.invalidate(record)
		}
		return nil, err
	}
	return resp, nil
}

// Session returns the session requests are sent with, acquiring one if needed.
func (c *Client) Session(ctx context.Context) (*sessions.Record, error) {
	record, apiErr := c.sessions.acquire(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return record, nil
}

// SessionChanged is called after login (with the new record) and logout (with nil).
func (c *Client) SessionChanged(record *sessions.Record) {
	c.sessions.set(record)
}

// Probe reports whether the backend answers at all. It does not need a session.
func (c *Client) Probe(ctx context.Context) Connectivity {
	result := c.requester.Probe(ctx)
	c.logger.Debug().Bool("reachable", result.Reachable).Int("status", result.Status).
		Dur("latency", result.Latency).Msg("probe")
	return result
}
