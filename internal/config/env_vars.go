package config

import (
	"os"
	"strconv"

	ierrors "github.com/jrsteele09/taproom-client/internal/errors"
)

const (
	configFileVar = "TAPROOM_CONFIG"
	envVar        = "ENV"
	logLevelVar   = "LOG_LEVEL"
	baseURLVar    = "TAPROOM_BASE_URL"
	deviceIDVar   = "TAPROOM_DEVICE_ID"
	retriesVar    = "TAPROOM_RETRIES"
	retryDelayVar = "TAPROOM_RETRY_DELAY"
	timeoutVar    = "TAPROOM_TIMEOUT"
	storePathVar  = "TAPROOM_STORE_PATH"
	storageKeyVar = "TAPROOM_STORAGE_KEY"
)

func (s *Settings) applyEnv() error {
	overlay(&s.Env, os.Getenv(envVar))
	overlay(&s.LogLevel, os.Getenv(logLevelVar))
	overlay(&s.BaseURL, os.Getenv(baseURLVar))
	overlay(&s.DeviceID, os.Getenv(deviceIDVar))
	overlay(&s.StorePath, os.Getenv(storePathVar))
	overlay(&s.StorageKey, os.Getenv(storageKeyVar))

	if v := os.Getenv(retriesVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ierrors.Wrapf(ierrors.ErrInvalidConfig, "%s=%q", retriesVar, v)
		}
		s.Retries = n
	}

	var err error
	if s.RetryDelay, err = parseDuration(os.Getenv(retryDelayVar), s.RetryDelay, true); err != nil {
		return err
	}
	if s.Timeout, err = parseDuration(os.Getenv(timeoutVar), s.Timeout, false); err != nil {
		return err
	}
	return nil
}

// GetEnvOr returns the environment value or defaultValue when unset.
func GetEnvOr(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
