package auth

import "errors"

var (
	ErrTransportRequired = errors.New("transport is required")
	ErrRepoRequired      = errors.New("session repo is required")
	ErrEndpointsRequired = errors.New("endpoint config is required")
)

const (
	msgCredentialsRequired = "username and password are required"
	msgLoginRejected       = "login rejected"
	msgIncompleteSession   = "login response did not include a usable session"
	msgMissingCookies      = "missing session cookies"
)
