// Package shutdown stops the chat server in stages: stop taking new
// visitors, close client connections, flush persistence, then release
// stores. Each stage waits for the previous one.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stage is a shutdown step group. Steps of one stage run concurrently.
type Stage int

const (
	// StageIntake stops background refreshes and flips readiness.
	StageIntake Stage = iota
	// StageClients closes the HTTP listener and open websocket connections.
	StageClients
	// StageFlush writes queued conversation records and funnel snapshots.
	StageFlush
	// StageRelease closes the session store and the database pool.
	StageRelease
)

var stageOrder = []Stage{StageIntake, StageClients, StageFlush, StageRelease}

func (s Stage) String() string {
	switch s {
	case StageIntake:
		return "intake"
	case StageClients:
		return "clients"
	case StageFlush:
		return "flush"
	case StageRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Step is one thing to stop.
type Step struct {
	Name string
	Stop func(ctx context.Context) error
	// Pending, when set, reports outstanding work (queued records, open
	// connections). It is logged before the step runs and after it returns.
	Pending func() int
}

// StepResult is the outcome of one step.
type StepResult struct {
	Stage    Stage
	Name     string
	Duration time.Duration
	// PendingBefore and PendingAfter are -1 for steps without a Pending func.
	PendingBefore int
	PendingAfter  int
	Err           error
}

// Config holds the coordinator settings.
type Config struct {
	// Timeout bounds the whole shutdown.
	Timeout time.Duration
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}

// Coordinator runs registered steps stage by stage.
type Coordinator struct {
	mu      sync.Mutex
	steps   map[Stage][]Step
	timeout time.Duration
	logger  *zap.Logger

	started chan struct{}
	once    sync.Once
	done    chan struct{}
	results []StepResult
	err     error
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg *Config, logger *zap.Logger) *Coordinator {
	if cfg == nil || cfg.Timeout <= 0 {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		steps:   make(map[Stage][]Step),
		timeout: cfg.Timeout,
		logger:  logger.Named("shutdown"),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Add registers a step in stage.
func (c *Coordinator) Add(stage Stage, step Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[stage] = append(c.steps[stage], step)
}

// AddFunc registers a step with no pending report.
func (c *Coordinator) AddFunc(stage Stage, name string, stop func(ctx context.Context) error) {
	c.Add(stage, Step{Name: name, Stop: stop})
}

// Started is closed when Shutdown is first called.
func (c *Coordinator) Started() <-chan struct{} {
	return c.started
}

// Shutdown runs every stage once, within the configured timeout, and returns
// the joined step errors. Later calls wait for the first run. ctx only
// bounds how long the caller waits.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		close(c.started)
		go c.run()
	})

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the step outcomes of a finished shutdown.
func (c *Coordinator) Results() []StepResult {
	<-c.done
	return c.results
}

func (c *Coordinator) run() {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.logger.Info("shutting down", zap.Duration("timeout", c.timeout))

	var errs []error
	for _, stage := range stageOrder {
		c.mu.Lock()
		steps := append([]Step(nil), c.steps[stage]...)
		c.mu.Unlock()
		if len(steps) == 0 {
			continue
		}

		results := c.runStage(ctx, stage, steps)
		c.results = append(c.results, results...)
		for _, r := range results {
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", r.Stage, r.Name, r.Err))
			}
		}

		if ctx.Err() != nil {
			c.logger.Error("shutdown timed out", zap.String("stage", stage.String()))
			errs = append(errs, fmt.Errorf("stage %s: %w", stage, ctx.Err()))
			break
		}
	}

	c.err = errors.Join(errs...)
	if c.err != nil {
		c.logger.Error("shutdown finished with errors", zap.Int("errors", len(errs)))
		return
	}
	c.logger.Info("shutdown complete")
}

func (c *Coordinator) runStage(ctx context.Context, stage Stage, steps []Step) []StepResult {
	results := make([]StepResult, len(steps))

	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step Step) {
			defer wg.Done()
			results[i] = c.runStep(ctx, stage, step)
		}(i, step)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) runStep(ctx context.Context, stage Stage, step Step) StepResult {
	res := StepResult{Stage: stage, Name: step.Name, PendingBefore: -1, PendingAfter: -1}
	if step.Pending != nil {
		res.PendingBefore = step.Pending()
	}

	start := time.Now()
	res.Err = step.Stop(ctx)
	res.Duration = time.Since(start)

	if step.Pending != nil {
		res.PendingAfter = step.Pending()
	}

	fields := []zap.Field{
		zap.String("stage", stage.String()),
		zap.String("step", step.Name),
		zap.Duration("duration", res.Duration),
	}
	if step.Pending != nil {
		fields = append(fields, zap.Int("pending_before", res.PendingBefore), zap.Int("pending_after", res.PendingAfter))
	}
	if res.Err != nil {
		c.logger.Error("shutdown step failed", append(fields, zap.Error(res.Err))...)
	} else {
		c.logger.Info("shutdown step done", fields...)
	}
	return res
}

// Readiness reports not ready once shutdown has started, so load
// balancers stop routing new visitors before connections are closed.
type Readiness struct {
	coordinator *Coordinator
}

// NewReadiness creates a Readiness bound to c.
func NewReadiness(c *Coordinator) *Readiness {
	return &Readiness{coordinator: c}
}

// IsReady reports whether shutdown has not started.
func (r *Readiness) IsReady() bool {
	select {
	case <-r.coordinator.Started():
		return false
	default:
		return true
	}
}
