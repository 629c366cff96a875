// Package config loads phasetrack runtime configuration from a YAML file
// with environment overrides.
//
// Precedence, lowest first: Default(), the YAML file, environment variables,
// command-line flags (applied by the cli package).
//
//	PHASETRACK_STORAGE_DRIVER: sqlite|sqlite-purego|postgres
//	PHASETRACK_DSN:            database path or connection string
//	PHASETRACK_LOG_LEVEL:      debug|info|warn|error
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/secrets"
	"github.com/roach88/phasetrack/internal/store"
)

// Environment variable names.
const (
	EnvStorageDriver = "PHASETRACK_STORAGE_DRIVER"
	EnvDSN           = "PHASETRACK_DSN"
	EnvLogLevel      = "PHASETRACK_LOG_LEVEL"
)

// DefaultDSN is the sqlite file used when nothing else is configured.
const DefaultDSN = "phasetrack.db"

// Config is the root of the configuration file.
type Config struct {
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
	Secrets Secrets `yaml:"secrets"`
	Process Process `yaml:"process"`
}

// Storage selects and tunes the relational backend.
type Storage struct {
	// Driver is one of sqlite, sqlite-purego or postgres.
	Driver string `yaml:"driver"`

	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `yaml:"dsn"`

	// BusyTimeoutMS bounds sqlite lock waits. Ignored by postgres.
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Secrets configures password hashing.
type Secrets struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// Process configures lifecycle rules.
type Process struct {
	// Transitions names the state transition policy: permissive or
	// terminal-guard.
	Transitions string `yaml:"transitions"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: Storage{
			Driver:        string(store.DriverSQLite),
			DSN:           DefaultDSN,
			BusyTimeoutMS: 5000,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Secrets: Secrets{BcryptCost: 0},
		Process: Process{Transitions: "permissive"},
	}
}

// Load reads path over Default(), applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv outside
// tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvStorageDriver); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := lookup(EnvDSN); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	var errs []error

	if !validDriver(c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, errors.New("storage.dsn is required"))
	}
	if c.Storage.BusyTimeoutMS < 0 {
		errs = append(errs, errors.New("storage.busy_timeout_ms must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if _, err := secrets.NewBcrypt(c.Secrets.BcryptCost); err != nil {
		errs = append(errs, fmt.Errorf("secrets.bcrypt_cost: %w", err))
	}
	if _, err := domain.PolicyByName(c.Process.Transitions); err != nil {
		errs = append(errs, fmt.Errorf("process.transitions: %w", err))
	}

	return errors.Join(errs...)
}

func validDriver(name string) bool {
	for _, d := range store.Drivers {
		if string(d) == name {
			return true
		}
	}
	return false
}

// StoreOptions converts the storage section into store.Options.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      store.Driver(c.Storage.Driver),
		DSN:         c.Storage.DSN,
		BusyTimeout: time.Duration(c.Storage.BusyTimeoutMS) * time.Millisecond,
	}
}

// Hasher returns the configured password hasher.
func (c Config) Hasher() (secrets.Hasher, error) {
	h, err := secrets.NewBcrypt(c.Secrets.BcryptCost)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// TransitionPolicy returns the configured state transition policy.
func (c Config) TransitionPolicy() (domain.TransitionPolicy, error) {
	return domain.PolicyByName(c.Process.Transitions)
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", name)
	}
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (c Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
