package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
)

const (
	recordKindTurn     = "turn"
	recordKindSnapshot = "snapshot"
)

// RecorderConfig holds configuration for the Recorder.
type RecorderConfig struct {
	Workers      int
	BufferSize   int
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns default recorder settings.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Workers:      2,
		BufferSize:   256,
		WriteTimeout: 5 * time.Second,
	}
}

type record struct {
	turn     *domain.ConversationRecord
	snapshot *domain.FunnelSnapshot
}

func (r record) kind() string {
	if r.turn != nil {
		return recordKindTurn
	}
	return recordKindSnapshot
}

// Recorder persists chat exchanges and funnel snapshots in the background.
// Delivery is best-effort and at most once: records are dropped when the
// queue is full or a write fails, and the chat never waits on the database.
type Recorder struct {
	conversations domain.ConversationRepository
	funnels       domain.FunnelRepository
	logger        *zap.Logger
	metrics       *metrics.Metrics
	cfg           *RecorderConfig

	queue    chan record
	workerWg sync.WaitGroup

	mu       sync.RWMutex
	running  bool
	stopping bool
}

// NewRecorder creates a Recorder. It accepts records only after Start.
func NewRecorder(
	conversations domain.ConversationRepository,
	funnels domain.FunnelRepository,
	cfg *RecorderConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Recorder {
	if cfg == nil {
		cfg = DefaultRecorderConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Recorder{
		conversations: conversations,
		funnels:       funnels,
		logger:        logger.Named("recorder"),
		metrics:       m,
		cfg:           cfg,
		queue:         make(chan record, cfg.BufferSize),
	}
}

// Start launches the workers.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.workerWg.Add(1)
		go r.worker(i)
	}

	r.logger.Info("recorder started",
		zap.Int("workers", r.cfg.Workers),
		zap.Int("buffer_size", r.cfg.BufferSize),
	)
}

// Stop stops accepting records and waits for the queue to drain or ctx to
// expire.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return nil
	}
	r.stopping = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("recorder stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out", zap.Int("pending", len(r.queue)))
		return ctx.Err()
	}
}

// RecordTurn queues an exchange for persistence.
func (r *Recorder) RecordTurn(rec domain.ConversationRecord) {
	r.enqueue(record{turn: &rec})
}

// RecordSnapshot queues a funnel snapshot for persistence.
func (r *Recorder) RecordSnapshot(snap domain.FunnelSnapshot) {
	r.enqueue(record{snapshot: &snap})
}

// Pending returns the number of queued records.
func (r *Recorder) Pending() int {
	return len(r.queue)
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.running || r.stopping {
		r.metrics.RecordRecorderEvent(rec.kind(), "dropped")
		return
	}

	select {
	case r.queue <- rec:
		r.metrics.RecordRecorderEvent(rec.kind(), "enqueued")
		r.metrics.SetRecorderQueueDepth(len(r.queue))
	default:
		r.metrics.RecordRecorderEvent(rec.kind(), "dropped")
		r.logger.Warn("recorder queue full, dropping record", zap.String("kind", rec.kind()))
	}
}

func (r *Recorder) worker(id int) {
	defer r.workerWg.Done()

	logger := r.logger.With(zap.Int("worker_id", id))
	logger.Debug("worker started")

	for rec := range r.queue {
		r.metrics.SetRecorderQueueDepth(len(r.queue))
		r.write(rec)
	}

	logger.Debug("worker stopped")
}

func (r *Recorder) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	var (
		err       error
		sessionID string
	)
	if rec.turn != nil {
		sessionID = rec.turn.SessionID
		err = r.conversations.Insert(ctx, rec.turn)
	} else {
		sessionID = rec.snapshot.SessionID
		err = r.funnels.InsertSnapshot(ctx, rec.snapshot)
	}

	if err != nil {
		r.metrics.RecordRecorderEvent(rec.kind(), "failed")
		r.logger.Error("failed to persist record",
			zap.String("kind", rec.kind()),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}
	r.metrics.RecordRecorderEvent(rec.kind(), "written")
}
