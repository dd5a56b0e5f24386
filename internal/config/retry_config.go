package config

import "time"

type RetryConfig interface {
	GetRetries() int
	GetRetryDelay() time.Duration
	GetTimeout() time.Duration
}

// GetRetries is the total number of attempts per request.
func (s *Settings) GetRetries() int {
	if s.Retries < 1 {
		return 1
	}
	return s.Retries
}

// GetRetryDelay is the fixed wait between attempts.
func (s *Settings) GetRetryDelay() time.Duration {
	return s.RetryDelay
}

// GetTimeout bounds each attempt.
func (s *Settings) GetTimeout() time.Duration {
	return s.Timeout
}
