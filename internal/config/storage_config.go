package config

type StorageConfig interface {
	GetStorePath() string
	GetStorageKey() string
}

func (s *Settings) GetStorePath() string {
	return s.StorePath
}

// GetStorageKey is the passphrase sealing the session at rest. Empty means the
// session is stored unsealed.
func (s *Settings) GetStorageKey() string {
	return s.StorageKey
}
