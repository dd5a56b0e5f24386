package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/internal/config"
)

const maxBodyBytes = 4 << 20

// Config is the slice of configuration the transport needs.
type Config interface {
	config.EnvConfig
	config.BackendConfig
	config.RetryConfig
}

// Request describes one logical request. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   Form
	Cookie string
}

// Requester sends requests to the backend with a per-attempt timeout and a
// fixed-delay retry. It holds no session state of its own; identity
// continuity between logins lives in its cookie jar.
type Requester struct {
	cfg       Config
	http      *http.Client
	userAgent string
	metrics   *Metrics
	logger    zerolog.Logger
}

type RequesterOption func(*Requester)

// WithHTTPClient replaces the underlying client. A jar is added when it has none.
func WithHTTPClient(c *http.Client) RequesterOption {
	return func(r *Requester) {
		clone := *c
		r.http = &clone
	}
}

func WithRequesterLogger(logger zerolog.Logger) RequesterOption {
	return func(r *Requester) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) RequesterOption {
	return func(r *Requester) {
		r.metrics = m
	}
}

func NewRequester(cfg Config, options ...RequesterOption) *Requester {
	r := &Requester{
		cfg:    cfg,
		http:   &http.Client{},
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.http.Jar == nil {
		jar, _ := cookiejar.New(nil) // only fails with a non-nil options value
		r.http.Jar = jar
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	deviceID := cfg.GetDeviceID()
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	r.userAgent = UserAgent(cfg.GetAppName(), cfg.GetVersion(), deviceID)
	return r
}

// UserAgentString is the User-Agent sent on every request.
func (r *Requester) UserAgentString() string {
	return r.userAgent
}

// Do sends req, retrying retryable failures up to the configured number of
// attempts. Exactly one of the results is non-nil, and the error is always an
// *apierror.Error.
func (r *Requester) Do(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	resp, apiErr := r.do(ctx, req)
	r.metrics.RequestDuration.WithLabelValues(req.Method).Observe(time.Since(started).Seconds())
	if apiErr != nil {
		r.metrics.RequestsTotal.WithLabelValues(req.Method, "failure").Inc()
		return nil, apiErr
	}
	r.metrics.RequestsTotal.WithLabelValues(req.Method, "success").Inc()
	return resp, nil
}

func (r *Requester) do(ctx context.Context, req Request) (*Response, *apierror.Error) {
	attempts := r.cfg.GetRetries()
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		r.metrics.AttemptsTotal.WithLabelValues(req.Method).Inc()
		resp, apiErr := r.attempt(ctx, req)
		if apiErr == nil {
			return resp, nil
		}
		if !apiErr.Retryable() || attempt >= attempts || ctx.Err() != nil {
			r.logger.Debug().Str("method", req.Method).Str("path", req.Path).Int("attempt", attempt).
				Str("kind", string(apiErr.Kind())).Msg("request failed")
			return nil, apiErr
		}
		r.logger.Warn().Str("method", req.Method).Str("path", req.Path).Int("attempt", attempt).
			Int("status", apiErr.StatusCode).Str("kind", string(apiErr.Kind())).Msg("retrying request")
		if err := sleepWithContext(ctx, r.cfg.GetRetryDelay()); err != nil {
			return nil, apiErr
		}
		r.metrics.RetriesTotal.WithLabelValues(req.Method).Inc()
	}
}

func (r *Requester) attempt(ctx context.Context, req Request) (*Response, *apierror.Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.GetTimeout())
	defer cancel()

	httpReq, err := r.newHTTPRequest(attemptCtx, req)
	if err != nil {
		return nil, apierror.Validation(err.Error(), http.StatusBadRequest)
	}
	httpResp, err := r.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ctx, attemptCtx, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, classifyTransport(ctx, attemptCtx, err)
	}
	if len(body) > maxBodyBytes {
		return nil, apierror.New(fmt.Sprintf("response body exceeds %d bytes", maxBodyBytes), httpResp.StatusCode, false, false)
	}
	return decodeResponse(httpResp.StatusCode, body)
}

func (r *Requester) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target := r.URL(req.Path)
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(req.Form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", r.userAgent)
	httpReq.Header.Set("Referer", r.cfg.GetReferer(req.Path))
	if method == http.MethodPost {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.Cookie != "" {
		httpReq.Header.Set("Cookie", req.Cookie)
	}
	return httpReq, nil
}

// URL joins path onto the configured base URL.
func (r *Requester) URL(path string) string {
	if path == "" {
		return r.cfg.GetBaseURL() + "/"
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return r.cfg.GetBaseURL() + "/" + strings.TrimLeft(path, "/")
}

// Connectivity is the result of a reachability probe.
type Connectivity struct {
	Reachable bool
	Status    int
	Latency   time.Duration
	Err       *apierror.Error
}

// Probe sends a single HEAD to the base URL root, without retry. The backend
// counts as reachable when it answers with anything below 500.
func (r *Requester) Probe(ctx context.Context) Connectivity {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.GetTimeout())
	defer cancel()

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodHead, r.URL(""), nil)
	if err != nil {
		return Connectivity{Err: apierror.Validation(err.Error(), http.StatusBadRequest)}
	}
	httpReq.Header.Set("User-Agent", r.userAgent)

	httpResp, err := r.http.Do(httpReq)
	latency := time.Since(started)
	if err != nil {
		return Connectivity{Latency: latency, Err: classifyTransport(ctx, attemptCtx, err)}
	}
	_ = httpResp.Body.Close()

	result := Connectivity{Status: httpResp.StatusCode, Latency: latency}
	if httpResp.StatusCode >= 500 {
		result.Err = apierror.FromStatus(httpResp.StatusCode, "")
		return result
	}
	result.Reachable = true
	return result
}

// classifyTransport separates the per-attempt deadline firing (a timeout) from
// every other failure to get a response (a network error).
func classifyTransport(parent, attemptCtx context.Context, err error) *apierror.Error {
	if parent.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return apierror.Timeout("")
	}
	if errors.Is(parent.Err(), context.DeadlineExceeded) {
		return apierror.Timeout("")
	}
	return apierror.Network(err)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
