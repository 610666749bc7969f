package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values, enumerated once at
// startup. Required values are enforced by must() and missing values
// cause the program to exit with a fatal log message; tunables fall
// back to the documented defaults.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret        string        // secret used to sign session tokens
	TokenTTL         time.Duration // session token validity window
	BcryptCost       int           // bcrypt work factor for password hashing
	MaxLoginAttempts int           // consecutive failures before lockout
	LockDuration     time.Duration // account lockout window

	CookieSecure   bool   // set the Secure flag on the auth cookie
	CookieSameSite string // lax | strict | none
	CookieDomain   string // optional cookie domain

	PruneInterval time.Duration // blacklist/limiter maintenance cadence
}

// Load reads configuration values from environment variables and
// returns a Config.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:        must("JWT_SECRET"),
		TokenTTL:         envDur("TOKEN_TTL", 24*time.Hour),
		BcryptCost:       envInt("BCRYPT_COST", 12),
		MaxLoginAttempts: envInt("MAX_LOGIN_ATTEMPTS", 5),
		LockDuration:     envDur("ACCOUNT_LOCK_DURATION", 30*time.Minute),

		CookieSecure:   envBool("COOKIE_SECURE", false),
		CookieSameSite: envStr("COOKIE_SAME_SITE", "lax"),
		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),

		PruneInterval: envDur("PRUNE_INTERVAL", time.Hour),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
