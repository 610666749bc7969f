// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published to the auth.events queue.
const (
	EventLoginFailed   = "login.failed"
	EventAccountLocked = "account.locked"
	EventTokenRevoked  = "token.revoked"
)

// AuthEvent is published for security-relevant moments of the session
// lifecycle. It carries enough for downstream consumers to build an
// audit trail without querying the primary database. Passwords and
// password hashes never appear in events.
type AuthEvent struct {
	Type        string `json:"type"`
	UserUUID    string `json:"user_uuid,omitempty"`
	Email       string `json:"email,omitempty"`
	ProjectUUID string `json:"project_uuid,omitempty"`
	SourceIP    string `json:"source_ip,omitempty"`
	TokenJTI    string `json:"token_jti,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
