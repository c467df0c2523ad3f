package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/circuitbreaker"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
)

// maxResponseBytes bounds provider response bodies.
const maxResponseBytes = 1 << 20

// Options holds the dependencies shared by every provider client.
type Options struct {
	HTTPClient *http.Client
	// Breaker configures the provider's circuit breaker; nil uses the defaults.
	Breaker *circuitbreaker.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Prompts *PromptBuilder
}

// provider carries what each client needs to call out: an HTTP client, a
// circuit breaker and instrumentation.
type provider struct {
	name       string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *metrics.Metrics
	prompts    *PromptBuilder
}

func newProvider(name string, timeout time.Duration, opts Options) provider {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", name))

	httpClient := opts.HTTPClient
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	cbCfg := circuitbreaker.DefaultConfig()
	if opts.Breaker != nil {
		c := *opts.Breaker
		cbCfg = &c
	}
	if cbCfg.OnStateChange == nil && opts.Metrics != nil {
		m := opts.Metrics
		cbCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
			m.SetCircuitBreakerState(name, int(to))
		}
	}

	prompts := opts.Prompts
	if prompts == nil {
		prompts = NewPromptBuilder(nil)
	}

	return provider{
		name:       name,
		httpClient: httpClient,
		breaker:    circuitbreaker.New(name, cbCfg, logger),
		logger:     logger,
		metrics:    opts.Metrics,
		prompts:    prompts,
	}
}

// Name returns the provider name.
func (p *provider) Name() string {
	return p.name
}

// CircuitBreakerStats returns the provider's breaker counters.
func (p *provider) CircuitBreakerStats() circuitbreaker.Stats {
	return p.breaker.Stats()
}

// call runs fn through the circuit breaker and records the outcome.
func (p *provider) call(ctx context.Context, fn func(context.Context) (*CompletionResponse, error)) (*CompletionResponse, error) {
	start := time.Now()
	var resp *CompletionResponse

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = fn(ctx)
		return callErr
	})
	p.metrics.RecordLLMCall(p.name, err == nil, time.Since(start))

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, apperrors.Wrap(err, p.name+".Complete", apperrors.CodeCircuitOpen, "completion provider circuit open")
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.ProviderError(p.name, err)
	}
	return resp, nil
}

// do sends req and returns the body of a 2xx response.
func (p *provider) do(req *http.Request) ([]byte, int, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
