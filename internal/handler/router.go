package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/audit"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/middleware"
)

// RouterConfig holds the handlers and middleware settings of the API.
type RouterConfig struct {
	Chat       *ChatHandler
	Websocket  *WebsocketHandler
	Completion *CompletionHandler
	Catalog    *CatalogHandler
	Health     *HealthHandler

	// LogLevel serves GET/PUT /admin/log-level when set.
	LogLevel LevelHandler
	Audit    *audit.Logger

	Metrics        *metrics.Metrics
	MetricsPath    string
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	MaxBodyBytes   int64
	Logger         *zap.Logger
}

// NewRouter builds the chi router serving the chat API.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Logger == nil {
		panic("logger is required")
	}

	correlation := middleware.NewRequestCorrelation(cfg.Logger)

	r := chi.NewRouter()

	// Order matters: correlation IDs first so every later log line has them.
	r.Use(correlation.Middleware)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(r)
	}
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.Metrics.Handler())
	}
	if cfg.LogLevel != nil {
		r.Handle("/admin/log-level", auditLevelChanges(cfg.LogLevel, cfg.Audit))
	}

	// The websocket stays outside the compressed group; it hijacks the
	// connection.
	if cfg.Websocket != nil {
		cfg.Websocket.RegisterRoutes(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))
		r.Use(middleware.BodySizeLimiter(cfg.MaxBodyBytes))

		if cfg.Chat != nil {
			cfg.Chat.RegisterRoutes(r)
		}
		if cfg.Completion != nil {
			cfg.Completion.RegisterRoutes(r)
		}
		if cfg.Catalog != nil {
			cfg.Catalog.RegisterRoutes(r)
		}
	})

	return r
}

// LevelHandler serves the runtime log level.
type LevelHandler interface {
	http.Handler
	GetLevel() string
}

// auditLevelChanges records every request that changed the log level.
func auditLevelChanges(next LevelHandler, a *audit.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		before := next.GetLevel()
		next.ServeHTTP(w, r)
		if after := next.GetLevel(); after != before {
			a.ConfigChanged(r.Context(), auditSource(r), "log_level", before, after)
		}
	})
}
