package utils // package utils provides token issuing and verification helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
	"github.com/google/uuid"       // uuid generation for unique token ids (jti)
)

// Verification failures are collapsed into two kinds the caller can
// tell apart: a token past its exp claim, and everything else (bad
// signature, wrong algorithm, garbage input).
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed or invalid")
)

// Claims is the payload carried by every session token. The account,
// its project and the role type travel inside the token so protected
// requests can be authorized without re-reading the role row. ID (the
// registered jti claim) is a fresh uuid on every issuance and is the
// handle the blacklist revokes.
type Claims struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	ProjectUUID string `json:"project_uuid"`
	jwt.RegisteredClaims
}

// SessionToken bundles a signed token string with its expiry and jti
// so callers do not need to re-parse what they just issued.
type SessionToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// NewSessionToken builds and signs an HS256 JWT for an account. Every
// call generates a fresh random jti; a jti is never reused, including
// across refreshes of the same session.
func NewSessionToken(secret, userUUID, email, roleType, projectUUID string, ttl time.Duration) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := Claims{
		Email:       email,
		Role:        roleType,
		ProjectUUID: projectUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUUID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// VerifySessionToken parses and validates a signed token. Tokens
// signed with anything other than HMAC are rejected outright. The
// returned error is ErrTokenExpired when only the exp check failed and
// ErrTokenMalformed for every other validation failure.
func VerifySessionToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !tok.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// DecodeSessionToken extracts the claims without verifying the
// signature. Logout and refresh use it to pull the jti and expiry out
// of a token the middleware already authenticated upstream; it must
// never be used to establish identity.
func DecodeSessionToken(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
