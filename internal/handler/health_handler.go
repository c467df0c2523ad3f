package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/circuitbreaker"
)

// HealthChecker defines the interface for checking a backing store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AIHealthChecker exposes a completion provider's circuit breaker.
type AIHealthChecker interface {
	Name() string
	CircuitBreakerStats() circuitbreaker.Stats
}

// ReadinessGate reports whether the process still accepts traffic.
type ReadinessGate interface {
	IsReady() bool
}

// CatalogSizer reports how many businesses the catalog holds.
type CatalogSizer interface {
	Len() int
}

// HealthHandler handles health check HTTP requests.
type HealthHandler struct {
	database  HealthChecker
	sessions  HealthChecker
	providers []AIHealthChecker
	catalog   CatalogSizer
	readiness ReadinessGate
	version   string
	logger    *zap.Logger
}

// HealthHandlerConfig holds configuration for HealthHandler. Nil checkers
// are skipped.
type HealthHandlerConfig struct {
	Database  HealthChecker
	Sessions  HealthChecker
	Providers []AIHealthChecker
	Catalog   CatalogSizer
	Readiness ReadinessGate
	Version   string
	Logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler with all required dependencies.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &HealthHandler{
		database:  cfg.Database,
		sessions:  cfg.Sessions,
		providers: cfg.Providers,
		catalog:   cfg.Catalog,
		readiness: cfg.Readiness,
		version:   cfg.Version,
		logger:    cfg.Logger,
	}
}

// RegisterRoutes registers health routes on the router.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReadiness)
	r.Get("/live", h.HandleLiveness)
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string                     `json:"status"`
	Version   string                     `json:"version,omitempty"`
	Checks    map[string]ComponentHealth `json:"checks,omitempty"`
	Providers []ProviderHealth           `json:"providers,omitempty"`
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ProviderHealth is the breaker view of one completion provider.
type ProviderHealth struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

// HandleHealth returns a health check response including all service dependencies.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Checks:  make(map[string]ComponentHealth),
	}

	hasCriticalFailure := false
	hasDegradation := false

	for name, checker := range map[string]HealthChecker{"database": h.database, "sessions": h.sessions} {
		if checker == nil {
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			hasCriticalFailure = true
			response.Checks[name] = ComponentHealth{Status: "unhealthy", Message: err.Error()}
			h.logger.Error("health check failed", zap.String("component", name), zap.Error(err))
			continue
		}
		response.Checks[name] = ComponentHealth{Status: "healthy"}
	}

	// Completion providers degrade the service; the engine still answers
	// from the catalog and FAQ without them.
	if len(h.providers) > 0 {
		open := 0
		for _, p := range h.providers {
			stats := p.CircuitBreakerStats()
			if stats.State == circuitbreaker.StateOpen.String() {
				open++
			}
			response.Providers = append(response.Providers, ProviderHealth{
				Name:                p.Name(),
				State:               stats.State,
				ConsecutiveFailures: stats.ConsecutiveFailures,
				LastError:           stats.LastError,
			})
		}
		if open == len(h.providers) {
			hasDegradation = true
			response.Checks["ai_service"] = ComponentHealth{
				Status:  "degraded",
				Message: "all provider circuit breakers open",
			}
		} else {
			response.Checks["ai_service"] = ComponentHealth{
				Status:  "healthy",
				Message: fmt.Sprintf("%d of %d provider(s) available", len(h.providers)-open, len(h.providers)),
			}
		}
	}

	if h.catalog != nil {
		if n := h.catalog.Len(); n == 0 {
			hasDegradation = true
			response.Checks["catalog"] = ComponentHealth{Status: "degraded", Message: "catalog is empty"}
		} else {
			response.Checks["catalog"] = ComponentHealth{Status: "healthy", Message: fmt.Sprintf("%d business(es)", n)}
		}
	}

	if hasCriticalFailure {
		response.Status = "unhealthy"
	} else if hasDegradation {
		response.Status = "degraded"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	JSONWithRequest(w, r, statusCode, response)
}

// HandleReadiness reports whether the service can take chat traffic: not
// shutting down, and both stores reachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil && !h.readiness.IsReady() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, checker := range map[string]HealthChecker{"database": h.database, "sessions": h.sessions} {
		if checker == nil {
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			h.logger.Error("readiness check failed", zap.String("component", name), zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// HandleLiveness returns a simple liveness response.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
