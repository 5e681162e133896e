package config

import (
	"errors"
	"maps"
	"os"
)

// ProviderConfig holds the DNS provider type and its connection settings.
type ProviderConfig struct {
	Provider string            `yaml:"name"`
	Settings map[string]string `yaml:"settings"`
}

// providerEnv maps environment variables to provider settings.
var providerEnv = []struct {
	env     string
	setting string
}{
	{"RACKHOST_URL", "base_url"},
	{"RACKHOST_EMAIL", "email"},
	{"RACKHOST_PASSWORD", "password"},
	{"RACKHOST_RATE_LIMIT", "rate_limit"},
	{"DDNS_PROVIDER_TIMEOUT", "timeout"},
	{"HTTP_PROXY", "http_proxy"},
	{"HTTPS_PROXY", "https_proxy"},
}

func (p *ProviderConfig) applyEnv() {
	if p.Settings == nil {
		p.Settings = map[string]string{}
	}
	for _, m := range providerEnv {
		if v, ok := os.LookupEnv(m.env); ok && v != "" {
			p.Settings[m.setting] = v
		}
	}
}

// Validate reports missing mandatory settings. Only the rackhost settings are
// checked here; other providers validate their own settings in New.
func (p *ProviderConfig) Validate() error {
	if p.Provider == "" {
		return errors.New("provider config: missing required field 'name'")
	}
	if p.Provider != "rackhost" {
		return nil
	}
	var errs []error
	for _, m := range providerEnv[:3] {
		if p.Settings[m.setting] == "" {
			errs = append(errs, errors.New(m.env+" must be set"))
		}
	}
	return errors.Join(errs...)
}

// ProviderSettings returns a copy of the settings map handed to the provider
// registry.
func (c *Config) ProviderSettings() map[string]string {
	return maps.Clone(c.Provider.Settings)
}
