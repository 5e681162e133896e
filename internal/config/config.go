package config

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Cache backends.
const (
	CacheBackendFile = "file"
	CacheBackendBolt = "bolt"
)

// Config is the complete service configuration.
type Config struct {
	// ListenAddr is where router callbacks are served.
	ListenAddr string `yaml:"listen_addr"`
	// OpsAddr serves /metrics, /healthz and /readyz.
	OpsAddr  string `yaml:"ops_addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Cache    CacheConfig    `yaml:"cache"`
	Provider ProviderConfig `yaml:"provider"`
}

// CacheConfig selects where the record snapshot is kept.
type CacheConfig struct {
	Path    string `yaml:"path"`
	Backend string `yaml:"backend"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ListenAddr: ":80",
		OpsAddr:    ":8081",
		Cache:      CacheConfig{Path: "cache.json", Backend: CacheBackendFile},
		Provider:   ProviderConfig{Provider: "rackhost", Settings: map[string]string{}},
	}
}

// Load builds the configuration from the optional YAML file named by
// DDNS_CONFIG_PATH, then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("DDNS_CONFIG_PATH"); path != "" {
		var err error
		if cfg, err = LoadFromPath(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromPath reads a YAML configuration file on top of the defaults.
// ${ENV_VAR} references are expanded before parsing.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Provider.Settings == nil {
		cfg.Provider.Settings = map[string]string{}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.ListenAddr, "DDNS_LISTEN_ADDR")
	setFromEnv(&c.OpsAddr, "DDNS_OPS_ADDR")
	setFromEnv(&c.Username, "DDNS_USERNAME")
	setFromEnv(&c.Password, "DDNS_PASSWORD")
	setFromEnv(&c.Cache.Path, "DDNS_CACHE_PATH")
	setFromEnv(&c.Cache.Backend, "DDNS_CACHE_BACKEND")
	c.Provider.applyEnv()
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// ValidateServer checks what the callback server needs on top of the
// provider settings.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.Username == "" || c.Password == "" {
		errs = append(errs, errors.New("DDNS_USERNAME and DDNS_PASSWORD must be set"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q (want %q or %q)", c.Cache.Backend, CacheBackendFile, CacheBackendBolt))
	}
	if c.Cache.Path == "" {
		errs = append(errs, errors.New("cache path must not be empty"))
	}
	errs = append(errs, c.ValidateProvider())
	return errors.Join(errs...)
}

// ValidateProvider checks the provider settings used by every command.
func (c *Config) ValidateProvider() error {
	return c.Provider.Validate()
}
