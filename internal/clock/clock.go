// Package clock abstracts time so message ids, funnel timestamps and the
// circuit breaker can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type realClock struct{}

// New returns a Clock backed by the system time.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Mock is a Clock whose time only moves when told to.
type Mock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMock creates a Mock set to t.
func NewMock(t time.Time) *Mock {
	return &Mock{current: t}
}

func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Set moves the mock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// Advance moves the mock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// IDSource hands out strictly increasing ids derived from the clock in
// milliseconds. When the clock has not moved (or moved backwards) since the
// previous id, the previous id plus one is returned.
type IDSource struct {
	mu    sync.Mutex
	clock Clock
	last  int64
}

// NewIDSource returns an IDSource reading c. A nil clock uses system time.
func NewIDSource(c Clock) *IDSource {
	if c == nil {
		c = New()
	}
	return &IDSource{clock: c}
}

// Next returns an id greater than every id returned before and greater than
// floor. floor lets a restored session continue above its stored ids.
func (s *IDSource) Next(floor int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.clock.Now().UnixMilli()
	if s.last > floor {
		floor = s.last
	}
	if id <= floor {
		id = floor + 1
	}
	s.last = id
	return id
}
