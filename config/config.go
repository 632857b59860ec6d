package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	EnvAPIBaseURL = "DJRAG_API_BASE_URL"
	EnvDataDir    = "DJRAG_DATA_DIR"
	EnvDebug      = "DJRAG_DEBUG"
	EnvTrace      = "DJRAG_TRACE"

	DefaultAPIBaseURL = "http://127.0.0.1:8000"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout string `toml:"request_timeout"`
}

type HealthConfig struct {
	Interval string `toml:"interval"`
	Timeout  string `toml:"timeout"`
}

type UserConfig struct {
	API    APIConfig    `toml:"api"`
	Health HealthConfig `toml:"health"`
}

// Config is the resolved configuration used by the rest of the program.
type Config struct {
	DataDirectory  string
	APIBaseURL     string
	RequestTimeout time.Duration
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	Keybindings    *KeyBindingsConfig
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// BaseURL returns the backend URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.APIBaseURL, "/")
}

func (c *Config) applyUserConfig(u *UserConfig) error {
	if u.API.BaseURL != "" {
		c.APIBaseURL = u.API.BaseURL
	}

	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"api.request_timeout", u.API.RequestTimeout, &c.RequestTimeout},
		{"health.interval", u.Health.Interval, &c.HealthInterval},
		{"health.timeout", u.Health.Timeout, &c.HealthTimeout},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, f.value, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s %q: must be positive", f.name, f.value)
		}
		*f.dst = d
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if baseURL := os.Getenv(EnvAPIBaseURL); baseURL != "" {
		c.APIBaseURL = baseURL
	}
}

// CheckDebug reports whether verbose logging was requested.
func CheckDebug() bool {
	return envEnabled(EnvDebug)
}

// CheckTrace reports whether API spans should be exported.
func CheckTrace() bool {
	return envEnabled(EnvTrace)
}

func envEnabled(name string) bool {
	v := strings.ToLower(os.Getenv(name))
	return v == "true" || v == "1"
}

// Default returns the built-in configuration. It touches no files.
func Default() *Config {
	return &Config{
		DataDirectory:  GetDefaultDataDir(),
		APIBaseURL:     DefaultAPIBaseURL,
		RequestTimeout: 120 * time.Second,
		HealthInterval: 30 * time.Second,
		HealthTimeout:  5 * time.Second,
		Keybindings:    DefaultKeybindings(),
	}
}

// Load resolves configuration from settings.toml, the user config.toml and
// the environment, creating default files on first run.
func Load() (*Config, error) {
	cfg := Default()

	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		cfg.DataDirectory = dataDir
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		if systemCfg.DataDirectory != "" {
			cfg.DataDirectory = systemCfg.DataDirectory
		}
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if err := cfg.applyUserConfig(userCfg); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	kb, err := LoadKeybindings(dataDir)
	if err != nil {
		return nil, err
	}
	cfg.Keybindings = kb

	return cfg, nil
}
