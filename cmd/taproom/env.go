package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/taproom-client/access"
	"github.com/jrsteele09/taproom-client/auth"
	"github.com/jrsteele09/taproom-client/catalog"
	"github.com/jrsteele09/taproom-client/internal/config"
	"github.com/jrsteele09/taproom-client/securestore"
	"github.com/jrsteele09/taproom-client/sessions"
)

// deviceKey holds the generated device id when none is configured.
const deviceKey = "device.id"

// env is what a command runs against. The client stack is built on first use
// so commands that never touch the backend do not open the store.
type env struct {
	cfg *config.Settings
	out io.Writer

	db       *securestore.SQLite
	cookies  *cookieStore
	registry *prometheus.Registry
	app      *app
}

// app is the wired client stack.
type app struct {
	provider *sessions.Provider
	client   *access.Client
	auth     *auth.Service
	catalog  *catalog.Service
}

func (e *env) open(ctx context.Context, authOptions ...auth.ServiceOption) (*app, error) {
	if e.app != nil {
		return e.app, nil
	}
	if dir := filepath.Dir(e.cfg.GetStorePath()); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "[env.open] create store directory")
		}
	}
	db, err := securestore.OpenSQLite(ctx, e.cfg.GetStorePath())
	if err != nil {
		return nil, err
	}
	e.db = db

	var storage securestore.Storage = db
	if key := e.cfg.GetStorageKey(); key != "" {
		if storage, err = securestore.NewSealed(db, key); err != nil {
			return nil, err
		}
	}
	if e.cfg.DeviceID == "" {
		if e.cfg.DeviceID, err = loadDeviceID(ctx, db); err != nil {
			return nil, err
		}
	}

	store, err := sessions.NewStore(storage)
	if err != nil {
		return nil, err
	}
	if e.cookies, err = newCookieStore(storage, e.cfg.GetBaseURL()); err != nil {
		return nil, err
	}
	if err := e.cookies.restore(ctx); err != nil {
		return nil, err
	}
	e.registry = prometheus.NewRegistry()
	requester := access.NewRequester(e.cfg,
		access.WithHTTPClient(&http.Client{Jar: e.cookies}),
		access.WithMetrics(access.NewMetrics(e.registry)),
	)
	provider := sessions.NewProvider(store)

	var authService *auth.Service
	client := access.NewClient(requester, provider, access.RefreshFunc(func(ctx context.Context) (*sessions.Record, error) {
		return authService.Refresh(ctx)
	}))
	authOptions = append([]auth.ServiceOption{auth.WithObserver(client)}, authOptions...)
	if authService, err = auth.NewService(requester, store, e.cfg, authOptions...); err != nil {
		return nil, err
	}
	catalogService, err := catalog.NewService(client, e.cfg)
	if err != nil {
		return nil, err
	}

	e.app = &app{provider: provider, client: client, auth: authService, catalog: catalogService}
	return e.app, nil
}

// loadDeviceID returns the persisted device id, creating one on first run.
func loadDeviceID(ctx context.Context, storage securestore.Storage) (string, error) {
	value, err := storage.Get(ctx, deviceKey)
	if err == nil && len(value) > 0 {
		return string(value), nil
	}
	if err != nil && !errors.Is(err, securestore.ErrNotFound) {
		return "", errors.Wrap(err, "[loadDeviceID] get")
	}
	id := uuid.NewString()
	if err := storage.Set(ctx, deviceKey, []byte(id)); err != nil {
		return "", errors.Wrap(err, "[loadDeviceID] set")
	}
	return id, nil
}

func (e *env) close() {
	if e.db == nil {
		return
	}
	if e.cookies != nil {
		if err := e.cookies.flush(context.Background()); err != nil {
			log.Warn().Err(err).Msg("saving cookies")
		}
	}
	if err := e.db.Close(); err != nil {
		log.Warn().Err(err).Msg("closing store")
	}
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) printMetrics(w io.Writer) {
	if e.registry == nil {
		return
	}
	families, err := e.registry.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("gathering metrics")
		return
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			log.Warn().Err(err).Msg("writing metrics")
			return
		}
	}
}
