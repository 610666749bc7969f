// Package limiter implements the fixed-window throttle applied to
// authentication attempts. It is deliberately separate from account
// lockout: the limiter defends against one source spraying attempts
// across many accounts, lockout defends a single account regardless
// of source.
package limiter

import (
	"context"
	"fmt"
)

// RateLimitError is returned when a key has exhausted its attempts in
// the current window. RemainingMinutes is the time until the window
// resets, rounded up.
type RateLimitError struct {
	RemainingMinutes int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %d minutes", e.RemainingMinutes)
}

// Limiter gates login attempts. Allow records one attempt for the key
// and returns a *RateLimitError once the window's budget is spent.
// Windows are absolute: they open on the first attempt and expire a
// fixed duration later, they do not slide.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Key builds the composite throttle key from the source address and
// the attempted identity.
func Key(ip, email string) string {
	if ip == "" {
		ip = "unknown"
	}
	if email == "" {
		email = "anonymous"
	}
	return ip + ":" + email
}
