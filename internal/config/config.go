// Package config defines arena's process configuration and how it is loaded.
//
// Values are layered: defaults from New, then an optional YAML file named by
// ARENA_CONFIG, then ARENA_* environment variables. A .env file is loaded into
// the environment first, so its values rank with the environment and above
// the YAML file, but never replace variables that are already set.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the BFF listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BackendURL is the base URL of the platform REST backend.
	BackendURL string `koanf:"backend_url"`

	// Token is an optional bearer token used by CLI commands.
	Token string `koanf:"token"`

	// RequestTimeoutMS bounds every backend request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// VerifyIntervalMS is the payment verification polling interval.
	VerifyIntervalMS int `koanf:"verify_interval_ms"`

	// TreeCacheTTLMS is how long a fetched leaderboard tree is served from memory.
	TreeCacheTTLMS int `koanf:"tree_cache_ttl_ms"`

	// AllowedOrigins lists CORS origins for the BFF.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		BackendURL:       "http://localhost:8000/api",
		RequestTimeoutMS: 15_000,
		VerifyIntervalMS: 30_000,
		TreeCacheTTLMS:   60_000,
		AllowedOrigins:   []string{"*"},
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// VerifyInterval returns VerifyIntervalMS as a duration.
func (c *Config) VerifyInterval() time.Duration {
	return time.Duration(c.VerifyIntervalMS) * time.Millisecond
}

// TreeCacheTTL returns TreeCacheTTLMS as a duration.
func (c *Config) TreeCacheTTL() time.Duration {
	return time.Duration(c.TreeCacheTTLMS) * time.Millisecond
}
