package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// BackoffConfig configures exponential backoff.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Jitter spreads delays by +/- this fraction.
	Jitter float64
}

// DefaultBackoffConfig suits dependencies that may still be starting, like
// a database container booting next to the service.
func DefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   5,
		Jitter:       0.2,
	}
}

// ErrMaxRetriesExhausted is returned when every attempt failed.
var ErrMaxRetriesExhausted = errors.New("maximum retries exhausted")

// Backoff retries operations with exponentially growing delays.
type Backoff struct {
	config *BackoffConfig
	logger *zap.Logger
	// sleep waits for d or until ctx is done; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBackoff creates a Backoff. A nil config uses the defaults.
func NewBackoff(config *BackoffConfig, logger *zap.Logger) *Backoff {
	if config == nil {
		config = DefaultBackoffConfig()
	}
	return &Backoff{config: config, logger: logger, sleep: sleepContext}
}

// Execute runs op until it succeeds, the retries are exhausted or ctx is
// done. Context errors from op are not retried.
func (b *Backoff) Execute(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := ExecuteWithResult(ctx, b, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// ExecuteWithResult is Execute for operations that produce a value.
func ExecuteWithResult[T any](ctx context.Context, b *Backoff, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				b.logger.Info("operation succeeded after retry", zap.String("operation", name), zap.Int("attempts", attempt+1))
			}
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if attempt >= b.config.MaxRetries {
			return zero, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrMaxRetriesExhausted, attempt+1, err)
		}

		delay := b.delay(attempt)
		b.logger.Warn("operation failed, retrying",
			zap.String("operation", name),
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		if err := b.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func (b *Backoff) delay(attempt int) time.Duration {
	d := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(attempt))
	if b.config.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.config.Jitter
	}
	if d > float64(b.config.MaxDelay) {
		d = float64(b.config.MaxDelay)
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
