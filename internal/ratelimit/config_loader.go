package ratelimit

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SourceConfigs maps a source name to its limiter config.
type SourceConfigs struct {
	RateLimits map[string]Config `yaml:"rate_limits" json:"rate_limits"`
}

// LoadSourceConfigs loads a rate_limits YAML document.
func LoadSourceConfigs(data []byte) (SourceConfigs, error) {
	var cfgs SourceConfigs
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return SourceConfigs{}, err
	}
	for name, cfg := range cfgs.RateLimits {
		cfgs.RateLimits[name] = applyDefaults(cfg)
	}
	return cfgs, nil
}

// Get returns limiter config for a source or the default if missing.
func (s SourceConfigs) Get(source string) (Config, error) {
	if s.RateLimits == nil {
		return DefaultConfig(), fmt.Errorf("no rate_limits configured")
	}
	cfg, ok := s.RateLimits[source]
	if !ok {
		return DefaultConfig(), fmt.Errorf("rate_limits for %s not found", source)
	}
	return applyDefaults(cfg), nil
}

// Limiter builds the limiter for source, falling back to defaults.
func (s SourceConfigs) Limiter(source string) Limiter {
	cfg, _ := s.Get(source)
	return NewLimiter(cfg)
}
