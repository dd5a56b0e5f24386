package sessions

import "context"

// Repo persists the single current session record.
type Repo interface {
	// Save replaces any stored record
	Save(ctx context.Context, record *Record) error

	// Load returns the stored record, or nil when there is no usable record
	Load(ctx context.Context) (*Record, error)

	// Clear removes the stored record; clearing an empty repo is not an error
	Clear(ctx context.Context) error
}
