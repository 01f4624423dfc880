// Package clock provides time injection so every duration in the engine can
// be derived from wall-clock timestamps and replayed in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides time information for the engine.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// Real provides actual system time.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// Test provides controllable time for testing.
type Test struct {
	mu      sync.Mutex
	current time.Time
}

// NewTest returns a test clock fixed at t.
func NewTest(t time.Time) *Test {
	return &Test{current: t}
}

// Now returns the test time.
func (t *Test) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Set moves the test clock to the given instant.
func (t *Test) Set(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = now
}

// Advance moves the test clock forward by d.
func (t *Test) Advance(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = t.current.Add(d)
}
