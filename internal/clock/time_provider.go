// Package clock derives video-aligned virtual time from a host wall clock.
package clock

import (
	"sync"
	"time"
)

// TimeProvider supplies wall-clock readings.
type TimeProvider interface {
	Now() time.Time
}

// WallClock reads the system monotonic clock.
type WallClock struct{}

// Now returns the current time with monotonic clock reading.
func (WallClock) Now() time.Time {
	return time.Now()
}

// MockTimeProvider is a TimeProvider that only moves when told to. Tests
// share one between a scheduler and the code driving it.
type MockTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTimeProvider starts the mock at start.
func NewMockTimeProvider(start time.Time) *MockTimeProvider {
	return &MockTimeProvider{now: start}
}

// Now returns the mocked time.
func (m *MockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mocked time forward by d.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
