package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/app"
	"github.com/snt-portal/snt-portal/internal/audit"
	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/kv"
	"github.com/snt-portal/snt-portal/internal/mail"
	"github.com/snt-portal/snt-portal/internal/metering"
	"github.com/snt-portal/snt-portal/internal/news"
	"github.com/snt-portal/snt-portal/internal/observability"
	"github.com/snt-portal/snt-portal/internal/platform/cache"
	"github.com/snt-portal/snt-portal/internal/platform/db"
	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
	"github.com/snt-portal/snt-portal/internal/voting"
	"github.com/snt-portal/snt-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "snt_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	store := kv.NewStore(redisClient, "snt")

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	mailService := mail.NewService(mail.QueueEnqueuer{Client: queueClient}, metrics, logger, cfg.MailFromName).
		WithBoardEmail(cfg.BoardEmail)

	accountsRepo := accounts.NewRepository(dbpool)

	meteringRepo := metering.NewRepository(dbpool)
	confirmations := metering.NewConfirmationStore(store, cfg.SessionTTL)
	meteringService := metering.NewService(meteringRepo, confirmations, accountsRepo, auditLogger, store, metrics, logger).
		WithNotifier(mail.NewMeteringNotifier(mailService, accountsRepo, logger))

	accountsService := accounts.NewService(accountsRepo, mailService, meteringService, logger)

	rbacMiddleware := rbac.Middleware{Source: accountsService, Logger: logger}

	authService := auth.NewService(accountsRepo, auth.NewSessionRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	accountsHandler := accounts.NewHandler(logger, accountsService, rbacMiddleware)
	meteringHandler := metering.NewHandler(logger, meteringService, accountsService, rbacMiddleware)

	votingService := voting.NewService(voting.NewPGRepository(dbpool), logger)
	votingHandler := voting.NewHandler(logger, votingService, rbacMiddleware)

	newsService := news.NewService(news.NewPGRepository(dbpool), mailService, accountsService, logger)
	newsHandler := news.NewHandler(logger, newsService, rbacMiddleware)

	auditHandler := audit.NewHandler(logger, audit.NewPGRepository(dbpool), rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Middleware: app.MiddlewareStack(app.MiddlewareConfig{
			Logger:         logger,
			Config:         cfg,
			SessionManager: sessionManager,
			CSRFManager:    csrfManager,
			Metrics:        metrics,
		}),
		Auth:     authHandler,
		Accounts: accountsHandler,
		Metering: meteringHandler,
		Voting:   votingHandler,
		News:     newsHandler,
		Audit:    auditHandler,
		Jobs:     jobHandler,
		Metrics:  metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
