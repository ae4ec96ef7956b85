package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a new ConfigBuilder backed by the in-memory store.
func NewTestConfig() *ConfigBuilder {
	cfg := Default()
	cfg.Store.Backend = "memory"
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithRecoveryWindow sets the recovery window.
func (b *ConfigBuilder) WithRecoveryWindow(d time.Duration) *ConfigBuilder {
	b.cfg.Lifecycle.RecoveryWindow = d
	return b
}

// WithSchedule sets the reclamation schedule.
func (b *ConfigBuilder) WithSchedule(schedule string) *ConfigBuilder {
	b.cfg.Reclamation.Schedule = schedule
	return b
}

// WithAPIKey adds an API key.
func (b *ConfigBuilder) WithAPIKey(key, userID, role string) *ConfigBuilder {
	b.cfg.Security.Authentication.Keys = append(b.cfg.Security.Authentication.Keys, APIKeyConfig{
		Key:    key,
		UserID: userID,
		Role:   role,
	})
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
