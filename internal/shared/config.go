package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Environment variables (FITLINK_*) override file values, see [LoadConfig].
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	App         AppConfig         `toml:"app"`
	Bridge      BridgeConfig      `toml:"bridge"`
	Dispatch    DispatchConfig    `toml:"dispatch"`
	Poll        PollConfig        `toml:"poll"`
	Database    DatabaseConfig    `toml:"database"`
}

// CredentialsConfig contains provider-specific credentials.
type CredentialsConfig struct {
	Fitbit FitbitConfig `toml:"fitbit"`
}

// FitbitConfig contains the Fitbit implicit-grant application settings.
//
// RedirectURI is the single authoritative redirect value; no other
// component may carry its own literal.
type FitbitConfig struct {
	ClientID    string `toml:"client_id" env:"FITLINK_FITBIT_CLIENT_ID"`
	RedirectURI string `toml:"redirect_uri" env:"FITLINK_FITBIT_REDIRECT_URI"`
	AuthURL     string `toml:"auth_url" env:"FITLINK_FITBIT_AUTH_URL"`
	APIBase     string `toml:"api_base" env:"FITLINK_FITBIT_API_BASE"`
	Scope       string `toml:"scope" env:"FITLINK_FITBIT_SCOPE"`
	ExpiresIn   int64  `toml:"expires_in" env:"FITLINK_FITBIT_EXPIRES_IN"`
}

// AppConfig describes the native app's deep-link surface.
type AppConfig struct {
	Scheme       string   `toml:"scheme" env:"FITLINK_APP_SCHEME"`
	KnownDomains []string `toml:"known_domains"`
}

// BridgeConfig contains redirect bridge server settings.
type BridgeConfig struct {
	Host       string `toml:"host" env:"FITLINK_BRIDGE_HOST"`
	Port       int    `toml:"port" env:"FITLINK_BRIDGE_PORT"`
	PendingTTL int    `toml:"pending_ttl" env:"FITLINK_BRIDGE_PENDING_TTL"` // seconds
	RedisAddr  string `toml:"redis_addr" env:"FITLINK_BRIDGE_REDIS_ADDR"`   // empty selects the in-memory store
}

// DispatchConfig bounds the redirect dispatcher's retry policy.
type DispatchConfig struct {
	IntervalMS  int `toml:"interval_ms" env:"FITLINK_DISPATCH_INTERVAL_MS"`
	MaxAttempts int `toml:"max_attempts" env:"FITLINK_DISPATCH_MAX_ATTEMPTS"`
}

// PollConfig bounds the app-side fallback store poller.
type PollConfig struct {
	IntervalMS int `toml:"interval_ms" env:"FITLINK_POLL_INTERVAL_MS"`
	Timeout    int `toml:"timeout" env:"FITLINK_POLL_TIMEOUT"` // seconds
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"FITLINK_DB_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path, then applies FITLINK_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
//
// The environment overlay is best effort here: a malformed FITLINK_* value
// leaves the embedded default in place rather than failing startup. The
// panic guards only the static embedded TOML.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	_ = env.Parse(&config)
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidArgument)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig serializes the config back to TOML at the specified path.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// Validate checks the fields every auth flow depends on.
func (c *Config) Validate() error {
	fb := c.Credentials.Fitbit
	if fb.ClientID == "" {
		return fmt.Errorf("%w: fitbit client_id", ErrMissingCredentials)
	}
	if fb.RedirectURI == "" {
		return fmt.Errorf("%w: fitbit redirect_uri", ErrMissingCredentials)
	}
	if fb.ExpiresIn <= 0 {
		return fmt.Errorf("%w: expires_in must be positive", ErrInvalidConfig)
	}
	if c.App.Scheme == "" {
		return fmt.Errorf("%w: app scheme", ErrInvalidConfig)
	}
	return nil
}
