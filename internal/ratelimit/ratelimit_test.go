package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/clock"
)

var t0 = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newTestCompletionLimiter(c clock.Clock) *CompletionLimiter {
	return NewCompletionLimiter(&CompletionLimiterConfig{
		MaxPerMinute:  5,
		MaxPerHour:    8,
		MaxConcurrent: 2,
	}, c, zap.NewNop())
}

func TestCompletionLimiter_AcquireRelease(t *testing.T) {
	limiter := newTestCompletionLimiter(clock.NewMock(t0))
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := limiter.Stats().Active; got != 1 {
		t.Errorf("Active = %d, want 1", got)
	}
	limiter.Release()
	limiter.Release()
	if got := limiter.Stats().Active; got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestCompletionLimiter_ConcurrentLimit(t *testing.T) {
	limiter := newTestCompletionLimiter(clock.NewMock(t0))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() %d error = %v", i, err)
		}
	}
	if err := limiter.Acquire(ctx); !errors.Is(err, ErrConcurrentLimitExceeded) {
		t.Errorf("Acquire() error = %v, want concurrent limit", err)
	}

	limiter.Release()
	if err := limiter.Acquire(ctx); err != nil {
		t.Errorf("Acquire() after Release error = %v", err)
	}
}

func TestCompletionLimiter_MinuteAndHourWindows(t *testing.T) {
	c := clock.NewMock(t0)
	limiter := newTestCompletionLimiter(c)
	ctx := context.Background()

	take := func() error {
		err := limiter.Acquire(ctx)
		if err == nil {
			limiter.Release()
		}
		return err
	}

	for i := 0; i < 5; i++ {
		if err := take(); err != nil {
			t.Fatalf("Acquire() %d error = %v", i, err)
		}
	}
	if err := take(); !errors.Is(err, ErrMinuteLimitExceeded) {
		t.Fatalf("error = %v, want minute limit", err)
	}

	c.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		if err := take(); err != nil {
			t.Fatalf("Acquire() after refill %d error = %v", i, err)
		}
	}
	if err := take(); !errors.Is(err, ErrHourLimitExceeded) {
		t.Fatalf("error = %v, want hour limit", err)
	}

	stats := limiter.Stats()
	if stats.TotalRejected != 2 || stats.LastRejectionReason != "hour" {
		t.Errorf("stats = %+v", stats)
	}
	// The hour rejection must hand back its minute token.
	if stats.MinuteRemaining != 2 {
		t.Errorf("MinuteRemaining = %d, want 2", stats.MinuteRemaining)
	}
}

func TestCompletionLimiter_CanceledContext(t *testing.T) {
	limiter := newTestCompletionLimiter(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestTokenBucket(t *testing.T) {
	b := newTokenBucket(2, time.Minute, t0)

	if !b.tryAcquire(t0) || !b.tryAcquire(t0) {
		t.Fatal("expected two tokens")
	}
	if b.tryAcquire(t0.Add(30 * time.Second)) {
		t.Error("bucket should be empty")
	}
	if got := b.resetIn(t0.Add(45 * time.Second)); got != 15*time.Second {
		t.Errorf("resetIn = %v, want 15s", got)
	}
	if !b.tryAcquire(t0.Add(time.Minute)) {
		t.Error("bucket should refill after its period")
	}

	b.release()
	b.release()
	if b.remaining() != 2 {
		t.Errorf("release must not exceed max, remaining = %d", b.remaining())
	}

	unlimited := newTokenBucket(0, time.Minute, t0)
	for i := 0; i < 100; i++ {
		if !unlimited.tryAcquire(t0) {
			t.Fatal("a zero max disables the bucket")
		}
	}
}

func TestSessionLimiter_Allow(t *testing.T) {
	c := clock.NewMock(t0)
	limiter := NewSessionLimiter(SessionLimitConfig{MaxPerMinute: 3, MaxPerHour: 4}, c, zap.NewNop())

	for i := 0; i < 3; i++ {
		if err := limiter.Allow("s1"); err != nil {
			t.Fatalf("Allow() %d error = %v", i, err)
		}
	}

	err := limiter.Allow("s1")
	var limitErr *LimitError
	if !errors.As(err, &limitErr) || limitErr.Window != "minute" {
		t.Fatalf("Allow() error = %v, want minute LimitError", err)
	}
	if limitErr.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", limitErr.RetryAfter)
	}

	if err := limiter.Allow("s2"); err != nil {
		t.Errorf("sessions are limited independently, got %v", err)
	}

	c.Advance(time.Minute)
	if err := limiter.Allow("s1"); err != nil {
		t.Fatalf("Allow() after a minute error = %v", err)
	}
	err = limiter.Allow("s1")
	if !errors.As(err, &limitErr) || limitErr.Window != "hour" {
		t.Errorf("Allow() error = %v, want hour LimitError", err)
	}

	minute, hour := limiter.Remaining("s1")
	if minute != 2 || hour != 0 {
		t.Errorf("Remaining = (%d, %d), want (2, 0)", minute, hour)
	}
	minute, hour = limiter.Remaining("unknown")
	if minute != 3 || hour != 4 {
		t.Errorf("Remaining(unknown) = (%d, %d)", minute, hour)
	}
}

func TestSessionLimiter_Sweep(t *testing.T) {
	c := clock.NewMock(t0)
	limiter := NewSessionLimiter(SessionLimitConfig{MaxPerMinute: 3, MaxPerHour: 10, StaleAfter: 10 * time.Minute}, c, zap.NewNop())

	_ = limiter.Allow("old")
	c.Advance(8 * time.Minute)
	_ = limiter.Allow("recent")
	c.Advance(5 * time.Minute)

	if removed := limiter.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if limiter.Len() != 1 {
		t.Errorf("Len() = %d, want 1", limiter.Len())
	}
}

func newTestBackoff(maxRetries int) (*Backoff, *[]time.Duration) {
	b := NewBackoff(&BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2,
		MaxRetries:   maxRetries,
	}, zap.NewNop())
	var slept []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return b, &slept
}

func TestBackoff_RetriesUntilSuccess(t *testing.T) {
	b, slept := newTestBackoff(5)

	calls := 0
	got, err := ExecuteWithResult(context.Background(), b, "connect", func(ctx context.Context) (string, error) {
		calls++
		if calls < 4 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("ExecuteWithResult() = %q, %v", got, err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	b, _ := newTestBackoff(2)
	cause := errors.New("connection refused")

	calls := 0
	err := b.Execute(context.Background(), "ping", func(ctx context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, ErrMaxRetriesExhausted) || !errors.Is(err, cause) {
		t.Errorf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBackoff_ContextErrorsAreNotRetried(t *testing.T) {
	b, slept := newTestBackoff(5)

	err := b.Execute(context.Background(), "ping", func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v", err)
	}
	if len(*slept) != 0 {
		t.Errorf("expected no retry, slept %v", *slept)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Execute(ctx, "ping", func(ctx context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() on canceled ctx = %v", err)
	}
}
