// Package ratelimit bounds how fast visitors and the service itself may
// spend completion provider calls, and retries flaky startup dependencies.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/clock"
)

// Errors for completion limiting.
var (
	ErrConcurrentLimitExceeded = errors.New("concurrent completion limit exceeded")
	ErrMinuteLimitExceeded     = errors.New("minute completion limit exceeded")
	ErrHourLimitExceeded       = errors.New("hour completion limit exceeded")
)

// CompletionLimiterConfig holds the completion budget.
type CompletionLimiterConfig struct {
	MaxPerMinute  int
	MaxPerHour    int
	MaxConcurrent int
}

// DefaultCompletionLimiterConfig returns the default completion budget.
func DefaultCompletionLimiterConfig() *CompletionLimiterConfig {
	return &CompletionLimiterConfig{
		MaxPerMinute:  60,
		MaxPerHour:    1200,
		MaxConcurrent: 16,
	}
}

// CompletionLimiter caps provider spend across all sessions: how many
// completions may run at once and how many may start per minute and hour.
type CompletionLimiter struct {
	mu sync.Mutex

	maxConcurrent int
	minute        *tokenBucket
	hour          *tokenBucket
	active        int

	totalRequests int64
	totalRejected int64
	lastReason    string

	clock  clock.Clock
	logger *zap.Logger
}

// NewCompletionLimiter creates a limiter. A nil config uses the defaults and
// a nil clock the wall clock.
func NewCompletionLimiter(cfg *CompletionLimiterConfig, c clock.Clock, logger *zap.Logger) *CompletionLimiter {
	if cfg == nil {
		cfg = DefaultCompletionLimiterConfig()
	}
	if c == nil {
		c = clock.New()
	}
	now := c.Now()
	return &CompletionLimiter{
		maxConcurrent: cfg.MaxConcurrent,
		minute:        newTokenBucket(cfg.MaxPerMinute, time.Minute, now),
		hour:          newTokenBucket(cfg.MaxPerHour, time.Hour, now),
		clock:         c,
		logger:        logger,
	}
}

// Acquire takes a completion slot. Every successful Acquire must be paired
// with a Release.
func (l *CompletionLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalRequests++
	now := l.clock.Now()

	if l.maxConcurrent > 0 && l.active >= l.maxConcurrent {
		return l.reject("concurrent", ErrConcurrentLimitExceeded)
	}
	if !l.minute.tryAcquire(now) {
		return l.reject("minute", ErrMinuteLimitExceeded)
	}
	if !l.hour.tryAcquire(now) {
		l.minute.release()
		return l.reject("hour", ErrHourLimitExceeded)
	}

	l.active++
	return nil
}

// Release frees a slot taken by Acquire.
func (l *CompletionLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active > 0 {
		l.active--
	}
}

func (l *CompletionLimiter) reject(reason string, err error) error {
	l.totalRejected++
	l.lastReason = reason
	l.logger.Warn("completion limit exceeded",
		zap.String("reason", reason),
		zap.Int64("total_rejected", l.totalRejected),
	)
	return err
}

// CompletionLimiterStats is a snapshot of the limiter.
type CompletionLimiterStats struct {
	Active              int    `json:"active"`
	MaxConcurrent       int    `json:"max_concurrent"`
	MinuteRemaining     int    `json:"minute_remaining"`
	HourRemaining       int    `json:"hour_remaining"`
	TotalRequests       int64  `json:"total_requests"`
	TotalRejected       int64  `json:"total_rejected"`
	LastRejectionReason string `json:"last_rejection_reason,omitempty"`
}

// Stats returns current limiter statistics.
func (l *CompletionLimiter) Stats() CompletionLimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.minute.refill(now)
	l.hour.refill(now)
	return CompletionLimiterStats{
		Active:              l.active,
		MaxConcurrent:       l.maxConcurrent,
		MinuteRemaining:     l.minute.remaining(),
		HourRemaining:       l.hour.remaining(),
		TotalRequests:       l.totalRequests,
		TotalRejected:       l.totalRejected,
		LastRejectionReason: l.lastReason,
	}
}

// tokenBucket is a fixed window counter: max tokens, refilled all at once
// when period has elapsed since the last reset. A max of 0 disables it.
type tokenBucket struct {
	max       int
	period    time.Duration
	tokens    int
	lastReset time.Time
}

func newTokenBucket(maxTokens int, period time.Duration, now time.Time) *tokenBucket {
	return &tokenBucket{
		max:       maxTokens,
		period:    period,
		tokens:    maxTokens,
		lastReset: now,
	}
}

func (b *tokenBucket) tryAcquire(now time.Time) bool {
	if b.max <= 0 {
		return true
	}
	b.refill(now)
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (b *tokenBucket) release() {
	if b.tokens < b.max {
		b.tokens++
	}
}

func (b *tokenBucket) remaining() int {
	return b.tokens
}

func (b *tokenBucket) resetIn(now time.Time) time.Duration {
	remaining := b.period - now.Sub(b.lastReset)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (b *tokenBucket) refill(now time.Time) {
	if now.Sub(b.lastReset) >= b.period {
		b.tokens = b.max
		b.lastReset = now
	}
}
