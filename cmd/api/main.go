package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenmfb/backend/internal/assistant"
	"github.com/lumenmfb/backend/internal/auth"
	"github.com/lumenmfb/backend/internal/config"
	"github.com/lumenmfb/backend/internal/db"
	"github.com/lumenmfb/backend/internal/domain/account"
	"github.com/lumenmfb/backend/internal/domain/admin"
	"github.com/lumenmfb/backend/internal/domain/application"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/http/handlers"
	"github.com/lumenmfb/backend/internal/jobs"
	"github.com/lumenmfb/backend/internal/observability"
	"github.com/lumenmfb/backend/internal/ratelimit"
	"github.com/lumenmfb/backend/internal/report"
	postgresrepo "github.com/lumenmfb/backend/internal/repository/postgres"
	"github.com/lumenmfb/backend/internal/server"
	"github.com/lumenmfb/backend/internal/storage"
	"github.com/lumenmfb/backend/internal/ws"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, "api")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg, "lumen-api")
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := storage.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure object storage", "err", err)
		os.Exit(1)
	}

	checks := map[string]handlers.Pinger{"database": pool}
	limiter, closeLimiter := newAILimiter(cfg, logger, checks)
	defer closeLimiter()

	staffService := staff.NewService(postgresrepo.NewRoleRepository(pool), cfg.AuthMaxFailedAttempts, cfg.AuthLockoutDuration)
	adminService := admin.NewService(
		postgresrepo.NewAdminActionRepository(pool),
		postgresrepo.NewSettingsRepository(pool),
		postgresrepo.NewAdminAuditRepository(pool),
	)
	documentService := document.NewService(store, cfg.SignedURLTTL)
	applicationService := application.NewService(postgresrepo.NewApplicationRepository(pool))
	accountService := account.NewService(postgresrepo.NewAccountRepository(pool))

	maintenanceRepo := postgresrepo.NewMaintenanceRepository(pool)
	cleanup := jobs.NewCleanup(maintenanceRepo, adminService, documentService, logger)
	purge := jobs.NewPurge(maintenanceRepo, documentService, logger)

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	verifier := auth.NewTokenVerifier(cfg.IdPIssuer, cfg.IdPAudience, cfg.IdPVerificationKey, cfg.IdPSharedSecret, cfg.IdPJWKSURL)
	authService := auth.NewService(
		db.NewAuthRepository(pool),
		jwtManager,
		verifier,
		staffService,
		auth.Bootstrap{Subject: cfg.AuthBootstrapAdminSubject, AccessCode: cfg.AuthBootstrapAccessCode},
		cfg.JWTAccessTTL,
		cfg.JWTRefreshTTL,
	)
	cookieCfg := auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}

	llm := assistant.NewClient(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.LLMModel)
	var pdf report.PDFRenderer
	if cfg.ChromeRemoteURL != "" {
		chrome, err := report.NewChromeRenderer(cfg.ChromeRemoteURL, 30*time.Second, logger)
		if err != nil {
			logger.Error("failed to configure pdf renderer", "err", err)
			os.Exit(1)
		}
		defer chrome.Close()
		pdf = chrome
	}
	documents, err := report.NewGenerator(pdf)
	if err != nil {
		logger.Error("failed to load document template", "err", err)
		os.Exit(1)
	}

	hub := ws.NewHub()
	notifier := ws.NewNotifier(postgresrepo.NewWSRepository(pool), hub, cfg.WSPollInterval, logger)

	deps := server.Dependencies{
		Checks: checks,
		Features: handlers.Features{
			Assistant: llm.Configured(),
			PDF:       documents.PDFAvailable(),
			Realtime:  true,
		},
		AuthHandler:        handlers.NewAuthHandler(authService, cookieCfg, cfg.JWTAccessTTL, cfg.JWTRefreshTTL),
		ApplicationHandler: handlers.NewApplicationHandler(applicationService, documentService, documents, assistant.NewRiskAnalyzer(llm)),
		AccountHandler:     handlers.NewAccountHandler(accountService, documentService),
		UploadHandler:      handlers.NewUploadHandler(documentService),
		AssistantHandler:   handlers.NewAssistantHandler(assistant.NewChat(llm)),
		AdminHandler:       handlers.NewAdminHandler(staffService, adminService, cleanup, purge),
		WSHandler:          ws.NewHandler(hub),
		JWTManager:         jwtManager,
		AILimiter:          limiter,
	}
	if mem, ok := store.(*storage.MemoryStore); ok {
		deps.LocalFilesHandler = handlers.NewLocalFilesHandler(mem)
	}
	r := server.NewRouter(cfg, logger, deps)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := notifier.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("status notifier stopped", "err", err)
		}
	}()
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		go mem.RunSweeper(sigCtx, 5*time.Minute)
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}

// newAILimiter shares the AI budget across replicas through Redis when it
// is configured, and keeps it per process otherwise.
func newAILimiter(cfg config.Config, logger *slog.Logger, checks map[string]handlers.Pinger) (ratelimit.Limiter, func()) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(int(cfg.AIRatePerMinute)), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	logger.Info("ai rate limit backed by redis", "addr", cfg.RedisAddr)
	return ratelimit.NewRedisLimiter(client, int(cfg.AIRatePerMinute)), func() { _ = client.Close() }
}
