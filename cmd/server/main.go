// Package main is the entry point for the TEKKI Studio chat server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/ai"
	"github.com/tekkistudio/tekki-chat/internal/audit"
	"github.com/tekkistudio/tekki-chat/internal/catalog"
	"github.com/tekkistudio/tekki-chat/internal/circuitbreaker"
	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/config"
	"github.com/tekkistudio/tekki-chat/internal/database"
	"github.com/tekkistudio/tekki-chat/internal/dialogue"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/faq"
	"github.com/tekkistudio/tekki-chat/internal/handler"
	"github.com/tekkistudio/tekki-chat/internal/logging"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/middleware"
	"github.com/tekkistudio/tekki-chat/internal/ratelimit"
	"github.com/tekkistudio/tekki-chat/internal/repository"
	"github.com/tekkistudio/tekki-chat/internal/service"
	"github.com/tekkistudio/tekki-chat/internal/session"
	"github.com/tekkistudio/tekki-chat/internal/shutdown"
)

const version = "1.0.0"

func main() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// initLogger builds the process logger from the log and server sections.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
}

func run(cfg *config.Config, appLogger *logging.Logger) error {
	logger := appLogger.Zap()
	logger.Info("starting chat server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
		zap.Strings("llm_providers", cfg.EnabledProviders()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background loops stop in the coordinator's intake stage, not on the
	// signal itself.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}

	backoff := ratelimit.NewBackoff(ratelimit.DefaultBackoffConfig(), logger)

	db, err := ratelimit.ExecuteWithResult(ctx, backoff, "database connect", func(ctx context.Context) (*database.DB, error) {
		return database.New(ctx, &cfg.Database, logger)
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := migrate(cfg, logger); err != nil {
			db.Close()
			return err
		}
	}

	store, closeStore, err := initSessionStore(ctx, cfg, backoff, logger)
	if err != nil {
		db.Close()
		return err
	}

	businesses := repository.NewBusinessRepository(db.Pool)
	conversations := repository.NewConversationRepository(db.Pool)
	funnels := repository.NewFunnelRepository(db.Pool)
	faqs := repository.NewFAQRepository(db.Pool)
	acquisitions := repository.NewAcquisitionRepository(db.Pool)

	cat := catalog.New(businesses, logger, m)
	if res := cat.Load(ctx); !res.OK() {
		// The refresh loop retries; the engine answers with what it has.
		logger.Warn("initial catalog load failed", zap.Error(res.Err))
	}
	faqCache := faq.NewCache(faqs, logger, m)
	if err := faqCache.Refresh(ctx); err != nil {
		logger.Warn("initial FAQ load failed", zap.Error(err))
	}

	providers := newProviders(cfg, ai.Options{
		HTTPClient: &http.Client{Timeout: cfg.LLM.Timeout},
		Breaker:    circuitbreaker.DefaultConfig(),
		Logger:     logger,
		Metrics:    m,
		Prompts:    ai.NewPromptBuilder(cat),
	})
	completionLimiter := ratelimit.NewCompletionLimiter(ratelimit.DefaultCompletionLimiterConfig(), nil, logger)
	chatCompleter, directCompleter := newCompleters(providers, completionLimiter, logger)

	recorder := service.NewRecorder(conversations, funnels, &service.RecorderConfig{
		Workers:      cfg.Chat.RecorderWorkers,
		BufferSize:   cfg.Chat.RecorderBuffer,
		WriteTimeout: 5 * time.Second,
	}, logger, m)
	recorder.Start()

	engine := dialogue.NewEngine(dialogue.Config{
		Catalog:            cat,
		FAQ:                faqCache,
		Completer:          chatCompleter,
		Snapshots:          recorder,
		Turns:              recorder,
		Metrics:            m,
		Logger:             logger,
		WhatsAppNumber:     cfg.Chat.WhatsAppNumber,
		BusinessesPagePath: cfg.Chat.BusinessesPagePath,
	})

	sessionLimiter := ratelimit.NewSessionLimiter(ratelimit.DefaultSessionLimitConfig(), clock.New(), logger)
	chatService := service.NewChatService(engine, store, cfg.Chat.MaxMessageLength, logger, m)
	chatService.SetLimiter(sessionLimiter)
	acquisitionService := service.NewAcquisitionService(businesses, acquisitions, clock.New(), logger, m)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)

	go cat.Run(bgCtx, cfg.Chat.CatalogRefresh)
	go faqCache.Run(bgCtx, cfg.Chat.FAQRefresh)
	go sessionLimiter.Run(bgCtx, 10*time.Minute)
	go rateLimiter.Run(bgCtx)

	coord := shutdown.NewCoordinator(&shutdown.Config{Timeout: cfg.Server.ShutdownTimeout}, logger)
	readiness := shutdown.NewReadiness(coord)

	healthProviders := make([]handler.AIHealthChecker, 0, len(providers))
	for _, p := range providers {
		healthProviders = append(healthProviders, p)
	}

	auditLog := audit.NewLogger(logger)
	catalogHandler := handler.NewCatalogHandler(cat, acquisitionService, cfg.Chat.BusinessesPagePath, logger)
	catalogHandler.SetAuditLogger(auditLog)

	websocketHandler := handler.NewWebsocketHandler(chatService, cfg.Server.AllowedOrigins, logger, m)

	router := handler.NewRouter(handler.RouterConfig{
		Chat:       handler.NewChatHandler(chatService, logger),
		Websocket:  websocketHandler,
		Completion: handler.NewCompletionHandler(directCompleter, cfg.Chat.MaxMessageLength, logger),
		Catalog:    catalogHandler,
		Health: handler.NewHealthHandler(handler.HealthHandlerConfig{
			Database:  db,
			Sessions:  store,
			Providers: healthProviders,
			Catalog:   cat,
			Readiness: readiness,
			Version:   version,
			Logger:    logger,
		}),
		LogLevel:       appLogger,
		Audit:          auditLog,
		Metrics:        m,
		MetricsPath:    cfg.Metrics.Path,
		RateLimiter:    rateLimiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Logger:         logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout(cfg.LLM.Timeout, len(providers)),
		IdleTimeout:       60 * time.Second,
	}

	coord.AddFunc(shutdown.StageIntake, "refresh-loops", func(context.Context) error {
		stopBackground()
		return nil
	})
	coord.AddFunc(shutdown.StageClients, "http-server", server.Shutdown)
	coord.Add(shutdown.StageClients, shutdown.Step{
		Name:    "websockets",
		Stop:    websocketHandler.Drain,
		Pending: websocketHandler.Open,
	})
	coord.Add(shutdown.StageFlush, shutdown.Step{
		Name:    "recorder",
		Stop:    recorder.Stop,
		Pending: recorder.Pending,
	})
	coord.AddFunc(shutdown.StageRelease, "session-store", func(context.Context) error {
		return closeStore()
	})
	coord.AddFunc(shutdown.StageRelease, "database", func(context.Context) error {
		db.Close()
		return nil
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	auditLog.ServiceStarted(ctx, version, cfg.EnabledProviders())

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		auditLog.ServiceStopping(context.Background(), "signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
			auditLog.ServiceStopping(context.Background(), "server error")
		}
	}

	if err := coord.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
	if err, ok := <-serverErr; ok && err != nil {
		return err
	}
	return nil
}

// migrate applies pending schema migrations at startup.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	mg, err := database.NewMigrator(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() { _ = mg.Close() }()

	if err := mg.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// initSessionStore returns the Redis store when an address is configured,
// the in-memory store otherwise, and a close function for shutdown.
func initSessionStore(ctx context.Context, cfg *config.Config, backoff *ratelimit.Backoff, logger *zap.Logger) (sessionStore, func() error, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("redis not configured, sessions are kept in memory")
		return session.NewMemoryStore(cfg.Chat.SessionTTL, clock.New()), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := session.NewRedisStore(client, cfg.Chat.SessionTTL)
	if err := backoff.Execute(ctx, "redis ping", store.Ping); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("redis session store connected", zap.String("addr", cfg.Redis.Addr))
	return store, client.Close, nil
}

// sessionStore is a session store the readiness check can ping.
type sessionStore interface {
	domain.SessionStore
	Ping(ctx context.Context) error
}

// completionProvider is a provider client with an observable breaker.
type completionProvider interface {
	ai.Completer
	CircuitBreakerStats() circuitbreaker.Stats
}

// newProviders builds the enabled providers in configured fallback order.
func newProviders(cfg *config.Config, opts ai.Options) []completionProvider {
	var out []completionProvider
	for _, name := range cfg.EnabledProviders() {
		switch name {
		case "remote":
			out = append(out, ai.NewHTTPCompleter(cfg.LLM.Remote.URL, cfg.LLM.Timeout, opts))
		case "anthropic":
			out = append(out, ai.NewClaudeClient(&cfg.LLM.Anthropic, opts))
		case "openai":
			out = append(out, ai.NewOpenAIClient(&cfg.LLM.OpenAI, opts))
		}
	}
	return out
}

// newCompleters returns the chain used by the dialogue engine and the chain
// served on /api/chat/complete. The served chain never includes the remote
// provider so two deployments pointed at each other cannot loop. Both share
// one spend limiter. directCompleter is nil when only the remote provider is
// configured.
func newCompleters(providers []completionProvider, limiter ai.Limiter, logger *zap.Logger) (chat, direct ai.Completer) {
	all := make([]ai.Completer, 0, len(providers))
	var local []ai.Completer
	for _, p := range providers {
		all = append(all, p)
		if p.Name() != "remote" {
			local = append(local, p)
		}
	}

	chat = ai.NewLimitedCompleter(ai.NewChain(logger, all...), limiter)
	if len(local) > 0 {
		direct = ai.NewLimitedCompleter(ai.NewChain(logger, local...), limiter)
	}
	return chat, direct
}

// writeTimeout leaves room for a turn that falls through every provider.
func writeTimeout(llmTimeout time.Duration, providers int) time.Duration {
	if llmTimeout <= 0 {
		llmTimeout = 30 * time.Second
	}
	if providers < 1 {
		providers = 1
	}
	return llmTimeout*time.Duration(providers) + 15*time.Second
}
