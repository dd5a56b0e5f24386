// Package securestore provides the durable key-value medium the session layer
// persists into. Values are opaque bytes; Sealed adds encryption at rest.
package securestore

import (
	"context"

	ierrors "github.com/jrsteele09/taproom-client/internal/errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = ierrors.ErrNotFound

	// ErrLocked is returned when the medium is temporarily inaccessible, for
	// example while the device is locked or another process holds the database.
	ErrLocked = ierrors.ErrLocked

	// ErrSealed is returned when a sealed value cannot be authenticated or decrypted.
	ErrSealed = ierrors.ErrSealed
)

// Storage is a key-value medium. Set must replace the value atomically: a
// concurrent Get observes either the old or the new value, never a mix.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
