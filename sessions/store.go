package sessions

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/taproom-client/securestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RecordKey is the only storage key owned by the session layer.
const RecordKey = "session.current"

var _ Repo = (*Store)(nil)

// Store keeps the current Record JSON-encoded under RecordKey.
type Store struct {
	storage securestore.Storage
	logger  zerolog.Logger
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithStoreLogger sets the logger (defaults to the global zerolog logger)
func WithStoreLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store on top of the given storage medium.
func NewStore(storage securestore.Storage, options ...StoreOption) (*Store, error) {
	if storage == nil {
		return nil, errors.New("[NewStore] storage is required")
	}
	s := &Store{storage: storage, logger: log.Logger}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Save overwrites the stored record. Storage failures, including a locked
// medium, are returned to the caller.
func (s *Store) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("[Store.Save] record is required")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "[Store.Save] marshal")
	}
	if err := s.storage.Set(ctx, RecordKey, data); err != nil {
		return errors.Wrap(err, "[Store.Save] storage.Set")
	}
	return nil
}

// Load returns nil without error when nothing usable is stored: no record, a
// record that fails validation or decryption, or a locked medium. Only
// unexpected medium faults are returned as errors.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	data, err := s.storage.Get(ctx, RecordKey)
	switch {
	case err == nil:
	case errors.Is(err, securestore.ErrNotFound):
		return nil, nil
	case errors.Is(err, securestore.ErrLocked):
		s.logger.Debug().Msg("session storage locked, treating session as absent")
		return nil, nil
	case errors.Is(err, securestore.ErrSealed):
		s.logger.Warn().Err(err).Msg("stored session could not be opened, treating as absent")
		return nil, nil
	default:
		return nil, errors.Wrap(err, "[Store.Load] storage.Get")
	}

	record := ValidateJSON(data)
	if record == nil {
		s.logger.Warn().Int("bytes", len(data)).Msg("discarding invalid stored session")
	}
	return record, nil
}

// Clear removes the stored record.
func (s *Store) Clear(ctx context.Context) error {
	err := s.storage.Delete(ctx, RecordKey)
	if err != nil && !errors.Is(err, securestore.ErrNotFound) {
		return errors.Wrap(err, "[Store.Clear] storage.Delete")
	}
	return nil
}
