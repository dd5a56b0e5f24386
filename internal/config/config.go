package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	ierrors "github.com/jrsteele09/taproom-client/internal/errors"
	"github.com/jrsteele09/taproom-client/internal/utils"
)

// DefaultConfigFile is read when TAPROOM_CONFIG is not set. A missing file is not an error.
const DefaultConfigFile = "taproom.yaml"

type Config interface {
	EnvConfig
	BackendConfig
	EndpointConfig
	RetryConfig
	StorageConfig
}

type EnvConfig interface {
	GetEnv() string
	GetLogLevel() string
	GetAppName() string
	GetVersion() string
}

// Settings is the resolved configuration. It implements every config interface
// so tests can build one literally.
type Settings struct {
	Env      string
	LogLevel string
	AppName  string
	Version  string

	BaseURL        string
	DefaultReferer string
	Referers       map[string]string // request path prefix -> referer page path
	Endpoints      map[string]string // endpoint name -> path template
	DeviceID       string

	Retries    int // total attempts per request, at least 1
	RetryDelay time.Duration
	Timeout    time.Duration

	StorePath  string
	StorageKey string
}

var _ Config = (*Settings)(nil)

// Default returns settings that work against the production backend.
func Default() *Settings {
	return &Settings{
		Env:            "DEV",
		LogLevel:       "info",
		AppName:        "Taproom",
		Version:        "dev",
		BaseURL:        "https://app.taproom.example",
		DefaultReferer: "/index.php",
		Referers:       defaultReferers(),
		Endpoints:      defaultEndpoints(),
		Retries:        3,
		RetryDelay:     time.Second,
		Timeout:        30 * time.Second,
		StorePath:      "./data/taproom.db",
	}
}

type fileConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	AppName  string `yaml:"app_name"`

	Backend struct {
		BaseURL        string            `yaml:"base_url"`
		DefaultReferer string            `yaml:"default_referer"`
		Referers       map[string]string `yaml:"referers"`
		Endpoints      map[string]string `yaml:"endpoints"`
		DeviceID       string            `yaml:"device_id"`
	} `yaml:"backend"`

	Retry struct {
		Retries *int    `yaml:"retries"`
		Delay   *string `yaml:"delay"`
		Timeout *string `yaml:"timeout"`
	} `yaml:"retry"`

	Storage struct {
		Path string `yaml:"path"`
		Key  string `yaml:"key"`
	} `yaml:"storage"`
}

// Load resolves defaults, then the YAML file at path (if present), then
// environment overrides. An empty path uses TAPROOM_CONFIG or DefaultConfigFile.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = GetEnvOr(configFileVar, DefaultConfigFile)
	}
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := s.applyFile(data); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "[config.Load] read %s", path)
	}

	if err := s.applyEnv(); err != nil {
		return nil, errors.Wrap(err, "[config.Load] environment")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyFile(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return ierrors.Wrapf(ierrors.ErrInvalidConfig, "yaml: %s", err.Error())
	}
	overlay(&s.Env, fc.Env)
	overlay(&s.LogLevel, fc.LogLevel)
	overlay(&s.AppName, fc.AppName)
	overlay(&s.BaseURL, fc.Backend.BaseURL)
	overlay(&s.DefaultReferer, fc.Backend.DefaultReferer)
	overlay(&s.DeviceID, fc.Backend.DeviceID)
	for k, v := range fc.Backend.Referers {
		s.Referers[k] = v
	}
	for k, v := range fc.Backend.Endpoints {
		s.Endpoints[k] = v
	}
	s.Retries = utils.ValueOr(fc.Retry.Retries, s.Retries)

	var err error
	if s.RetryDelay, err = parseDuration(utils.ValueOr(fc.Retry.Delay, ""), s.RetryDelay, true); err != nil {
		return err
	}
	if s.Timeout, err = parseDuration(utils.ValueOr(fc.Retry.Timeout, ""), s.Timeout, false); err != nil {
		return err
	}
	overlay(&s.StorePath, fc.Storage.Path)
	overlay(&s.StorageKey, fc.Storage.Key)
	return nil
}

// Validate enforces the invariants the access layer relies on.
func (s *Settings) Validate() error {
	switch {
	case s.BaseURL == "":
		return ierrors.Wrapf(ierrors.ErrInvalidConfig, "base url is required")
	case s.Retries < 1:
		return ierrors.Wrapf(ierrors.ErrInvalidConfig, "retries must be at least 1, got %d", s.Retries)
	case s.RetryDelay < 0:
		return ierrors.Wrapf(ierrors.ErrInvalidConfig, "retry delay must not be negative")
	case s.Timeout <= 0:
		return ierrors.Wrapf(ierrors.ErrInvalidConfig, "timeout must be positive")
	}
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseDuration(v string, fallback time.Duration, allowZero bool) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, ierrors.Wrapf(ierrors.ErrInvalidConfig, "invalid duration %q", v)
	}
	return d, nil
}

func (s *Settings) GetEnv() string      { return s.Env }
func (s *Settings) GetLogLevel() string { return s.LogLevel }
func (s *Settings) GetAppName() string  { return s.AppName }
func (s *Settings) GetVersion() string  { return s.Version }
