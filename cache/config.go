package cache

import "time"

// Config holds the tuning knobs for a Store. The values that used to be
// scattered across call sites (dedupe window, retry policy, retention)
// live here so every consumer shares one explicit policy.
type Config struct {
	// DedupeWindow is how long a resolved entry counts as fresh. A
	// subscription arriving inside the window reuses the cached value
	// without refetching. Must be greater than 0. Default: 10s.
	DedupeWindow time.Duration

	// RetryCount is the maximum number of fetch attempts per cycle
	// before the error is surfaced to subscribers. Must be at least 1.
	// Default: 3.
	RetryCount int

	// RetryInterval is the delay between failed fetch attempts.
	// Must be non-negative. Default: 5s.
	RetryInterval time.Duration

	// EvictionGrace is how long an entry with zero subscribers is kept
	// before it becomes eligible for eviction. Zero disables eviction
	// and retains entries indefinitely, which matches the historical
	// behavior of the dashboard; retention is now an explicit choice.
	EvictionGrace time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		DedupeWindow:  10 * time.Second,
		RetryCount:    3,
		RetryInterval: 5 * time.Second,
		EvictionGrace: 0,
	}
}

// Validate checks if the configuration values are valid.
// Returns an error if any configuration parameter is invalid.
func (c Config) Validate() error {
	if c.DedupeWindow <= 0 {
		return &ConfigError{Field: "DedupeWindow", Message: "must be greater than 0"}
	}
	if c.RetryCount < 1 {
		return &ConfigError{Field: "RetryCount", Message: "must be at least 1"}
	}
	if c.RetryInterval < 0 {
		return &ConfigError{Field: "RetryInterval", Message: "must be non-negative"}
	}
	if c.EvictionGrace < 0 {
		return &ConfigError{Field: "EvictionGrace", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
