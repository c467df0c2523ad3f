package database

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// QueryLoggerConfig configures query logging behavior.
type QueryLoggerConfig struct {
	// SlowQueryThreshold is the duration above which queries are logged at WARN.
	SlowQueryThreshold time.Duration

	// VerySlowQueryThreshold is the duration above which queries are logged at ERROR.
	VerySlowQueryThreshold time.Duration

	// LogAllQueries logs every other query at DEBUG.
	LogAllQueries bool
}

// DefaultQueryLoggerConfig returns the default slow query thresholds.
func DefaultQueryLoggerConfig() *QueryLoggerConfig {
	return &QueryLoggerConfig{
		SlowQueryThreshold:     100 * time.Millisecond,
		VerySlowQueryThreshold: 500 * time.Millisecond,
	}
}

// QueryStats is a snapshot of the traced queries.
type QueryStats struct {
	Total           int64
	Slow            int64
	VerySlow        int64
	Failed          int64
	AvgDuration     time.Duration
	SlowestQuery    string
	SlowestDuration time.Duration
}

// QueryLogger implements pgx.QueryTracer.
type QueryLogger struct {
	config *QueryLoggerConfig
	logger *zap.Logger

	total, slow, verySlow, failed atomic.Int64

	mu              sync.Mutex
	totalDuration   time.Duration
	slowestQuery    string
	slowestDuration time.Duration
}

// NewQueryLogger creates a new query logger.
func NewQueryLogger(cfg *QueryLoggerConfig, logger *zap.Logger) *QueryLogger {
	if cfg == nil {
		cfg = DefaultQueryLoggerConfig()
	}
	return &QueryLogger{config: cfg, logger: logger.Named("query")}
}

type queryStart struct {
	at  time.Time
	sql string
}

type ctxKey struct{}

// TraceQueryStart implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, ctxKey{}, queryStart{at: time.Now(), sql: data.SQL})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(ctxKey{}).(queryStart)
	if !ok {
		return
	}
	ql.observe(start.sql, time.Since(start.at), data.CommandTag.String(), data.Err)
}

func (ql *QueryLogger) observe(sql string, duration time.Duration, tag string, err error) {
	ql.total.Add(1)

	ql.mu.Lock()
	ql.totalDuration += duration
	if duration > ql.slowestDuration {
		ql.slowestDuration = duration
		ql.slowestQuery = truncateSQL(sql, 200)
	}
	ql.mu.Unlock()

	fields := []zap.Field{
		zap.String("sql", truncateSQL(sql, 500)),
		zap.Duration("duration", duration),
	}

	switch {
	case err != nil:
		ql.failed.Add(1)
		ql.logger.Error("query failed", append(fields, zap.Error(err))...)
	case duration >= ql.config.VerySlowQueryThreshold:
		ql.verySlow.Add(1)
		ql.slow.Add(1)
		ql.logger.Error("very slow query detected", append(fields, zap.String("command_tag", tag))...)
	case duration >= ql.config.SlowQueryThreshold:
		ql.slow.Add(1)
		ql.logger.Warn("slow query detected", append(fields, zap.String("command_tag", tag))...)
	case ql.config.LogAllQueries:
		ql.logger.Debug("query executed", append(fields, zap.String("command_tag", tag))...)
	}
}

// Stats returns a snapshot of the query statistics.
func (ql *QueryLogger) Stats() QueryStats {
	s := QueryStats{
		Total:    ql.total.Load(),
		Slow:     ql.slow.Load(),
		VerySlow: ql.verySlow.Load(),
		Failed:   ql.failed.Load(),
	}
	ql.mu.Lock()
	defer ql.mu.Unlock()
	if s.Total > 0 {
		s.AvgDuration = ql.totalDuration / time.Duration(s.Total)
	}
	s.SlowestQuery = ql.slowestQuery
	s.SlowestDuration = ql.slowestDuration
	return s
}

// LogStats logs current query statistics.
func (ql *QueryLogger) LogStats() {
	s := ql.Stats()
	ql.logger.Info("query statistics",
		zap.Int64("total_queries", s.Total),
		zap.Int64("slow_queries", s.Slow),
		zap.Int64("very_slow_queries", s.VerySlow),
		zap.Int64("failed_queries", s.Failed),
		zap.Duration("avg_duration", s.AvgDuration),
		zap.String("slowest_query", s.SlowestQuery),
		zap.Duration("slowest_duration", s.SlowestDuration),
	)
}

// truncateSQL truncates SQL to a maximum length for logging.
func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen-3] + "..."
}
