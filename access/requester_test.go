package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/internal/config"
)

func testConfig(baseURL string) *config.Settings {
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.DeviceID = "test-device"
	cfg.Retries = 3
	cfg.RetryDelay = 5 * time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func newTestRequester(t *testing.T, cfg *config.Settings) (*Requester, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewRequester(cfg, WithMetrics(metrics)), metrics
}

func TestRequester_GetDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.Equal(t, "page=2", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	requester, metrics := newTestRequester(t, testConfig(server.URL))
	resp, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/beers", Query: map[string][]string{"page": {"2"}}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, map[string]any{"ok": true}, resp.Payload)

	var decoded struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, resp.Decode(&decoded))
	require.True(t, decoded.OK)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "success")))
}

func TestRequester_EmptyBodyIsEmptyObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	requester, _ := newTestRequester(t, testConfig(server.URL))
	resp, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, resp.Payload)
	require.NotNil(t, resp.Object())
}

func TestRequester_ParseFailure(t *testing.T) {
	page := "<html>" + strings.Repeat("x", 500) + "</html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	requester, metrics := newTestRequester(t, testConfig(server.URL))
	resp, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	require.Nil(t, resp)

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Equal(t, apierror.KindParse, apiErr.Kind())
	require.Equal(t, http.StatusOK, apiErr.StatusCode)
	require.False(t, apiErr.Retryable())
	require.Contains(t, apiErr.Message, page[:200])
	require.NotContains(t, apiErr.Message, page[:201])
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("GET")))
}

func TestRequester_OversizedBody(t *testing.T) {
	var size atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"` + strings.Repeat("a", int(size.Load())-2) + `"`))
	}))
	defer server.Close()
	requester, metrics := newTestRequester(t, testConfig(server.URL))

	size.Store(maxBodyBytes)
	resp, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Len(t, resp.Payload, maxBodyBytes-2)

	size.Store(maxBodyBytes + 1)
	resp, err = requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	require.Nil(t, resp)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Contains(t, apiErr.Message, "response body exceeds")
	require.Equal(t, apierror.KindParse, apiErr.Kind())
	require.False(t, apiErr.Retryable())
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("GET")))
}

func TestRequester_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance"}`))
	}))
	defer server.Close()

	requester, metrics := newTestRequester(t, testConfig(server.URL))
	_, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/beers"})

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.Equal(t, "maintenance", apiErr.Message)
	require.True(t, apiErr.Retryable())
	require.Equal(t, int32(3), hits.Load())
	require.Equal(t, float64(3), testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("GET")))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.RetriesTotal.WithLabelValues("GET")))
}

func TestRequester_RecoversOnRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	requester, _ := newTestRequester(t, testConfig(server.URL))
	resp, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"ok": true}, resp.Payload)
	require.Equal(t, int32(2), hits.Load())
}

func TestRequester_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	requester, _ := newTestRequester(t, testConfig(server.URL))
	_, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/missing"})

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.False(t, apiErr.Retryable())
	require.Equal(t, int32(1), hits.Load())
}

func TestRequester_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retries = 2
	cfg.Timeout = 50 * time.Millisecond
	requester, metrics := newTestRequester(t, cfg)

	_, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.True(t, apiErr.Timeout)
	require.Equal(t, http.StatusRequestTimeout, apiErr.StatusCode)
	require.Equal(t, apierror.KindTimeout, apiErr.Kind())
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("GET")))
}

func TestRequester_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cfg := testConfig(url)
	cfg.Retries = 2
	requester, metrics := newTestRequester(t, cfg)

	_, err := requester.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.True(t, apiErr.Network)
	require.Equal(t, 0, apiErr.StatusCode)
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("GET")))
}

func TestRequester_CancelledContextStopsRetrying(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryDelay = time.Second
	requester, _ := newTestRequester(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := requester.Do(ctx, Request{Method: http.MethodGet, Path: "/"})
	require.Error(t, err)
	require.Less(t, time.Since(started), time.Second)
	require.Equal(t, int32(1), hits.Load())
}

func TestRequester_PostFormAndHeaders(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "TaproomClient/"))
		require.Contains(t, r.Header.Get("User-Agent"), "device test-device")
		require.True(t, strings.HasSuffix(r.Header.Get("Referer"), "/checkins.php"))
		require.Equal(t, "store__id=1; PHPSESSID=t", r.Header.Get("Cookie"))

		require.NoError(t, r.ParseForm())
		require.Equal(t, "5", r.PostForm.Get("rating"))
		_, hasNote := r.PostForm["note"]
		require.False(t, hasNote)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	requester, _ := newTestRequester(t, testConfig(server.URL))
	resp, err := requester.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/checkins",
		Form:   Form{"rating": ptr("5"), "note": nil},
		Cookie: "store__id=1; PHPSESSID=t",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)
	require.Equal(t, requester.UserAgentString(), userAgent.Load())
}

func TestRequester_CookieJarCarriesServerCookies(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("remember_me"); err == nil {
			seen.Store(c.Value)
		}
		http.SetCookie(w, &http.Cookie{Name: "remember_me", Value: "rm-token", Path: "/"})
	}))
	defer server.Close()

	requester, _ := newTestRequester(t, testConfig(server.URL))
	_, err := requester.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/login"})
	require.NoError(t, err)
	_, err = requester.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/login"})
	require.NoError(t, err)
	require.Equal(t, "rm-token", seen.Load())
}

func TestRequester_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		require.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	requester, _ := newTestRequester(t, cfg)
	requester.http.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	result := requester.Probe(context.Background())
	require.True(t, result.Reachable)
	require.Equal(t, http.StatusFound, result.Status)
	require.Nil(t, result.Err)

	server.Close()
	result = requester.Probe(context.Background())
	require.False(t, result.Reachable)
	require.NotNil(t, result.Err)
	require.True(t, result.Err.Retryable())
}

func TestRequester_ProbeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	requester, _ := newTestRequester(t, testConfig(server.URL))
	result := requester.Probe(context.Background())
	require.False(t, result.Reachable)
	require.Equal(t, http.StatusBadGateway, result.Status)
}

func ptr(s string) *string { return &s }
