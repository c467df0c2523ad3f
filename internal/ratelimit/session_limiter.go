package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/clock"
)

// SessionLimitConfig holds per-session message limits.
type SessionLimitConfig struct {
	MaxPerMinute int
	MaxPerHour   int
	// StaleAfter is how long an idle session keeps its counters.
	StaleAfter time.Duration
}

// DefaultSessionLimitConfig returns the default per-session limits.
func DefaultSessionLimitConfig() SessionLimitConfig {
	return SessionLimitConfig{
		MaxPerMinute: 20,
		MaxPerHour:   200,
		StaleAfter:   30 * time.Minute,
	}
}

// LimitError reports an exhausted session window.
type LimitError struct {
	Window     string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return "session " + e.Window + " message limit exceeded"
}

type sessionBuckets struct {
	minute     *tokenBucket
	hour       *tokenBucket
	lastAccess time.Time
}

// SessionLimiter counts visitor inputs per chat session.
type SessionLimiter struct {
	mu      sync.Mutex
	config  SessionLimitConfig
	buckets map[string]*sessionBuckets
	clock   clock.Clock
	logger  *zap.Logger
}

// NewSessionLimiter creates a limiter. A nil clock uses the wall clock.
func NewSessionLimiter(cfg SessionLimitConfig, c clock.Clock, logger *zap.Logger) *SessionLimiter {
	if c == nil {
		c = clock.New()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultSessionLimitConfig().StaleAfter
	}
	return &SessionLimiter{
		config:  cfg,
		buckets: make(map[string]*sessionBuckets),
		clock:   c,
		logger:  logger,
	}
}

// Allow consumes one input for the session, or returns a *LimitError.
func (l *SessionLimiter) Allow(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.buckets[sessionID]
	if !ok {
		b = &sessionBuckets{
			minute: newTokenBucket(l.config.MaxPerMinute, time.Minute, now),
			hour:   newTokenBucket(l.config.MaxPerHour, time.Hour, now),
		}
		l.buckets[sessionID] = b
	}
	b.lastAccess = now

	if !b.minute.tryAcquire(now) {
		l.logger.Warn("session rate limit exceeded", zap.String("session_id", sessionID), zap.String("window", "minute"))
		return &LimitError{Window: "minute", RetryAfter: b.minute.resetIn(now)}
	}
	if !b.hour.tryAcquire(now) {
		b.minute.release()
		l.logger.Warn("session rate limit exceeded", zap.String("session_id", sessionID), zap.String("window", "hour"))
		return &LimitError{Window: "hour", RetryAfter: b.hour.resetIn(now)}
	}
	return nil
}

// Remaining returns the inputs left in the current minute and hour windows.
func (l *SessionLimiter) Remaining(sessionID string) (minute, hour int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[sessionID]
	if !ok {
		return l.config.MaxPerMinute, l.config.MaxPerHour
	}
	now := l.clock.Now()
	b.minute.refill(now)
	b.hour.refill(now)
	return b.minute.remaining(), b.hour.remaining()
}

// Len returns the number of tracked sessions.
func (l *SessionLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep forgets sessions idle for longer than StaleAfter.
func (l *SessionLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for id, b := range l.buckets {
		if now.Sub(b.lastAccess) > l.config.StaleAfter {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}

// Run sweeps stale sessions every interval until ctx is done.
func (l *SessionLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("swept idle session limits", zap.Int("removed", n))
			}
		}
	}
}
