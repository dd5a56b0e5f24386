package errors

import (
	"errors"
	"fmt"
)

// Common error types for the taproom client
var (
	// Storage errors
	ErrNotFound = errors.New("not found")
	ErrLocked   = errors.New("storage locked")
	ErrSealed   = errors.New("sealed value could not be opened")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid config")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
