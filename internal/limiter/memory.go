package limiter

import (
	"context"
	"math"
	"sync"
	"time"
)

type window struct {
	attempts int
	resetAt  time.Time
}

// Memory is the single-instance limiter backend: a mutex-protected
// map of attempt windows. Increments from concurrent requests on the
// same key are serialized by the lock so no attempt is lost.
type Memory struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxAttempts int
	windowSize  time.Duration

	now func() time.Time // swapped in tests
}

// NewMemory builds an in-memory limiter allowing maxAttempts per key
// within each fixed window.
func NewMemory(maxAttempts int, windowSize time.Duration) *Memory {
	return &Memory{
		windows:     make(map[string]*window),
		maxAttempts: maxAttempts,
		windowSize:  windowSize,
		now:         time.Now,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		// First attempt, or the previous window has lapsed.
		m.windows[key] = &window{attempts: 1, resetAt: now.Add(m.windowSize)}
		return nil
	}
	if w.attempts >= m.maxAttempts {
		return &RateLimitError{RemainingMinutes: minutesUntil(now, w.resetAt)}
	}
	w.attempts++
	return nil
}

// Cleanup drops windows that reset before now. Called periodically by
// the maintenance loop; correctness does not depend on it, only the
// size of the map does.
func (m *Memory) Cleanup(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

func minutesUntil(now, until time.Time) int {
	mins := int(math.Ceil(until.Sub(now).Minutes()))
	if mins < 1 {
		mins = 1
	}
	return mins
}
