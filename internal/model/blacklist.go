package model

import "time"

// BlacklistedToken models a row in the `token_blacklist` table. A row
// marks a single token id (jti) as revoked until the token would have
// expired on its own; past ExpiresAt the row is dead weight and only
// kept until the next prune pass.
type BlacklistedToken struct {
	ID        uint64    // token_blacklist.id
	TokenJTI  string    // token_blacklist.token_jti (unique)
	ExpiresAt time.Time // token_blacklist.expires_at (indexed)
	CreatedAt time.Time // token_blacklist.created_at
}
