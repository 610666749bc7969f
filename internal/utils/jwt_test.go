package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSessionTokenRoundTrip(t *testing.T) {
	st, err := NewSessionToken(testSecret, "u-1", "a@x.com", "USER", "p-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, st.Token)
	require.NotEmpty(t, st.JTI)

	claims, err := VerifySessionToken(testSecret, st.Token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "USER", claims.Role)
	require.Equal(t, "p-1", claims.ProjectUUID)
	require.Equal(t, st.JTI, claims.ID)
}

func TestSessionTokenFreshJTI(t *testing.T) {
	a, err := NewSessionToken(testSecret, "u-1", "a@x.com", "USER", "p-1", time.Hour)
	require.NoError(t, err)
	b, err := NewSessionToken(testSecret, "u-1", "a@x.com", "USER", "p-1", time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, a.JTI, b.JTI)
}

func TestVerifyExpiredToken(t *testing.T) {
	st, err := NewSessionToken(testSecret, "u-1", "a@x.com", "USER", "p-1", -time.Minute)
	require.NoError(t, err)

	_, err = VerifySessionToken(testSecret, st.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	st, err := NewSessionToken(testSecret, "u-1", "a@x.com", "USER", "p-1", time.Hour)
	require.NoError(t, err)

	_, err = VerifySessionToken("other-secret", st.Token)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyGarbage(t *testing.T) {
	_, err := VerifySessionToken(testSecret, "not.a.token")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyRejectsNonHMAC(t *testing.T) {
	// A token claiming alg=none must never pass, whatever its payload says.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1"})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifySessionToken(testSecret, raw)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestDecodeWithoutVerification(t *testing.T) {
	// Decode must work even when the token is expired or the secret is
	// unknown; logout only needs the jti and expiry out of it.
	st, err := NewSessionToken(testSecret, "u-1", "a@x.com", "USER", "p-1", -time.Minute)
	require.NoError(t, err)

	claims, err := DecodeSessionToken(st.Token)
	require.NoError(t, err)
	require.Equal(t, st.JTI, claims.ID)
	require.Equal(t, st.ExpiresAt.Unix(), claims.ExpiresAt.Unix())

	_, err = DecodeSessionToken("garbage")
	require.ErrorIs(t, err, ErrTokenMalformed)
}
