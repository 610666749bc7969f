package config

import "time"

// RateLimitConfig controls the login attempt throttle. MaxAttempts
// and Window define the fixed window applied per source+identity key;
// Prefix namespaces the keys when the Redis backend is in use.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

// LoadRateLimitConfig reads the RATE_LIMIT_* environment variables,
// falling back to 5 attempts per 15 minute window.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		MaxAttempts: envInt("RATE_LIMIT_MAX", 5),
		Window:      envDur("RATE_LIMIT_WINDOW", 15*time.Minute),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "authrl"),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return cfg
}
