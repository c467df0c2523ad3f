package ai

import (
	"context"
	"errors"

	"go.uber.org/zap"

	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// Chain tries completers in order and returns the first answer.
type Chain struct {
	completers []Completer
	logger     *zap.Logger
}

// NewChain creates a fallback chain.
func NewChain(logger *zap.Logger, completers ...Completer) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{completers: completers, logger: logger}
}

// Name implements Completer.
func (c *Chain) Name() string {
	return "chain"
}

// Len returns the number of providers in the chain.
func (c *Chain) Len() int {
	return len(c.completers)
}

// Complete returns the first successful answer. When every provider fails
// the error matches apperrors.ErrLLMUnavailable.
func (c *Chain) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var errs []error
	for _, comp := range c.completers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := comp.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		c.logger.Warn("completion provider failed, trying next",
			zap.String("provider", comp.Name()),
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		errs = append(errs, err)
	}
	return nil, apperrors.Wrap(errors.Join(errs...), "ai.Chain.Complete", apperrors.CodeLLMUnavailable, "no completion provider available")
}

// Limiter bounds how many completions may be started.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// LimitedCompleter holds a limiter slot for the duration of each call.
type LimitedCompleter struct {
	next    Completer
	limiter Limiter
}

// NewLimitedCompleter wraps next with limiter.
func NewLimitedCompleter(next Completer, limiter Limiter) *LimitedCompleter {
	return &LimitedCompleter{next: next, limiter: limiter}
}

// Name implements Completer.
func (l *LimitedCompleter) Name() string {
	return l.next.Name()
}

// Complete implements Completer. A refused slot fails like an unavailable
// provider so callers fall back the same way.
func (l *LimitedCompleter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := l.limiter.Acquire(ctx); err != nil {
		return nil, apperrors.Wrap(err, "ai.LimitedCompleter.Complete", apperrors.CodeLLMUnavailable, "completion budget exhausted")
	}
	defer l.limiter.Release()
	return l.next.Complete(ctx, req)
}
