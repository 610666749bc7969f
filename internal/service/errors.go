package service

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// The error kinds below are expected, recoverable outcomes returned
// to the transport layer for translation into status codes. Only
// store connectivity failures and invariant violations propagate as
// plain errors.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. The two cases are deliberately indistinguishable so
	// responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTokenRevoked means the token's jti is on the blacklist.
	ErrTokenRevoked = errors.New("token has been revoked")

	// ErrUnauthorized means the account behind a token is missing,
	// inactive or deleted.
	ErrUnauthorized = errors.New("account missing or inactive")

	// ErrNotFound is a lookup miss for non-auth entities.
	ErrNotFound = errors.New("not found")
)

// AccountLockedError is returned while an account sits inside its
// lockout window. RemainingMinutes counts from now to the lock
// expiry, rounded up to the nearest minute.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d minutes", e.RemainingMinutes)
}

func remainingMinutes(now, until time.Time) int {
	mins := int(math.Ceil(until.Sub(now).Minutes()))
	if mins < 1 {
		mins = 1
	}
	return mins
}
