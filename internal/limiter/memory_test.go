package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryAllowsUpToMax(t *testing.T) {
	m := NewMemory(5, 15*time.Minute)
	key := Key("1.2.3.4", "a@x.com")

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Allow(context.Background(), key))
	}

	err := m.Allow(context.Background(), key)
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 15, rl.RemainingMinutes)
}

func TestMemoryWindowReset(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := NewMemory(5, 15*time.Minute)
	m.now = func() time.Time { return now }

	key := Key("1.2.3.4", "a@x.com")
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Allow(context.Background(), key))
	}
	require.Error(t, m.Allow(context.Background(), key))

	// Once the window elapses the counter starts fresh.
	now = base.Add(15*time.Minute + time.Second)
	require.NoError(t, m.Allow(context.Background(), key))
}

func TestMemoryRemainingRoundsUp(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := NewMemory(1, 15*time.Minute)
	m.now = func() time.Time { return now }

	key := Key("1.2.3.4", "a@x.com")
	require.NoError(t, m.Allow(context.Background(), key))

	now = base.Add(14*time.Minute + 30*time.Second) // 30s left -> 1 minute
	err := m.Allow(context.Background(), key)
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 1, rl.RemainingMinutes)
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	m := NewMemory(1, 15*time.Minute)

	require.NoError(t, m.Allow(context.Background(), Key("1.2.3.4", "a@x.com")))
	require.Error(t, m.Allow(context.Background(), Key("1.2.3.4", "a@x.com")))
	// Different identity from the same source is a different window.
	require.NoError(t, m.Allow(context.Background(), Key("1.2.3.4", "b@x.com")))
	// Same identity from a different source too.
	require.NoError(t, m.Allow(context.Background(), Key("5.6.7.8", "a@x.com")))
}

func TestMemoryCleanup(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := NewMemory(5, 15*time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Allow(context.Background(), "k1"))
	require.NoError(t, m.Allow(context.Background(), "k2"))

	require.Equal(t, 0, m.Cleanup(base.Add(time.Minute)))
	require.Equal(t, 2, m.Cleanup(base.Add(16*time.Minute)))
	require.Empty(t, m.windows)
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := error(&RateLimitError{RemainingMinutes: 3})
	require.Contains(t, err.Error(), "3 minutes")

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
}
