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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/narck25/gestion-visitas-promotores/internal/app"
	"github.com/narck25/gestion-visitas-promotores/internal/auth"
	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/clients"
	"github.com/narck25/gestion-visitas-promotores/internal/observability"
	"github.com/narck25/gestion-visitas-promotores/internal/platform/httpx"
	"github.com/narck25/gestion-visitas-promotores/internal/ratelimit"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
	"github.com/narck25/gestion-visitas-promotores/internal/users"
	"github.com/narck25/gestion-visitas-promotores/internal/visits"
	"github.com/narck25/gestion-visitas-promotores/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := dbpool.Ping(ctx); err != nil {
		logger.Error("ping postgres", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	usersRepo := users.NewRepository(dbpool)
	resolver := authz.NewResolver(usersRepo)
	engine := authz.NewEngine(usersRepo)
	assignments := authz.NewAssignmentValidator(usersRepo)
	auditLogger := shared.NewAuditLogger(dbpool)

	tokenIssuer, err := auth.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	authRepo := auth.NewRepository(dbpool)
	refreshStore := auth.NewRefreshStore(redisClient)
	authService := auth.NewService(authRepo, tokenIssuer, refreshStore)
	authHandler := auth.NewHandler(logger, authService)

	usersService := users.NewService(logger, usersRepo, assignments, auditLogger)
	usersHandler := users.NewHandler(logger, usersService)

	clientsRepo := clients.NewRepository(dbpool)
	clientsService := clients.NewService(logger, clientsRepo, resolver, engine, assignments, auditLogger)
	clientsHandler := clients.NewHandler(logger, clientsService)

	visitsRepo := visits.NewRepository(dbpool)
	statsCache := visits.NewRedisStatsCache(redisClient)
	visitsService := visits.NewService(logger, visitsRepo, clientsRepo, usersRepo, resolver, engine, statsCache)
	visitsHandler := visits.NewHandler(logger, visitsService)

	rateLimiter := ratelimit.NewPolicy(redisClient, ratelimit.Config{
		Auth:   ratelimit.Limit{Requests: cfg.RateAuthRequests, Window: cfg.RateWindow},
		Read:   ratelimit.Limit{Requests: cfg.RateReadRequests, Window: cfg.RateWindow},
		Mutate: ratelimit.Limit{Requests: cfg.RateMutateRequests, Window: cfg.RateWindow},
	})
	metrics := observability.NewMetrics()
	httpx.OnDenial = metrics.RecordDenial

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthService:    authService,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		ClientsHandler: clientsHandler,
		VisitsHandler:  visitsHandler,
		JobsHandler:    jobsHandler,
		RateLimiter:    rateLimiter,
		Pool:           dbpool,
		Metrics:        metrics,
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
