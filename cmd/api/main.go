package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orderdesk/orderdesk-backend/api/routes"
	"github.com/orderdesk/orderdesk-backend/internal/agents"
	"github.com/orderdesk/orderdesk-backend/internal/assignment"
	"github.com/orderdesk/orderdesk-backend/internal/ingest"
	"github.com/orderdesk/orderdesk-backend/internal/orders"
	"github.com/orderdesk/orderdesk-backend/internal/performance"
	"github.com/orderdesk/orderdesk-backend/internal/products"
	"github.com/orderdesk/orderdesk-backend/internal/settings"
	"github.com/orderdesk/orderdesk-backend/pkg/config"
	"github.com/orderdesk/orderdesk-backend/pkg/db"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	"github.com/orderdesk/orderdesk-backend/pkg/instance"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
	"github.com/orderdesk/orderdesk-backend/pkg/metrics"
	"github.com/orderdesk/orderdesk-backend/pkg/migrate"
	"github.com/orderdesk/orderdesk-backend/pkg/pubsub"
	"github.com/orderdesk/orderdesk-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{DB: dbClient}
	var guard ingest.Guard
	if redis.Configured(cfg.Redis) {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisGuard, err := ingest.NewRedisGuard(redisClient, cfg.Assignment.InFlightLockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create in-flight guard", err)
			os.Exit(1)
		}
		guard = redisGuard
		deps.Idempotency = redisClient
		deps.Redis = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; in-flight guard and idempotent replay disabled")
	}

	var publisher ingest.EventPublisher
	if cfg.PubSub.Enabled {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		assignmentPublisher, err := pubsub.NewAssignmentPublisher(psClient.AssignmentPublisher())
		if err != nil {
			logg.Error(ctx, "failed to create assignment publisher", err)
			os.Exit(1)
		}
		publisher = assignmentPublisher
		deps.PubSub = psClient
	}

	roles, err := enums.ParseAgentRoles(cfg.Assignment.Roles)
	if err != nil {
		logg.Error(ctx, "invalid assignment roles", err)
		os.Exit(1)
	}

	assignmentMetrics := metrics.NewAssignmentMetrics(prometheus.DefaultRegisterer)
	conn := dbClient.DB()
	orderRepo := orders.NewRepository(conn)

	ingestService, err := ingest.NewService(ingest.ServiceParams{
		Logger:            logg,
		Tx:                dbClient,
		Orders:            orderRepo,
		Agents:            agents.NewRepository(conn),
		Products:          products.NewRepository(conn),
		Engine:            assignment.NewEngine(logg, assignmentMetrics),
		Metrics:           assignmentMetrics,
		Publisher:         publisher,
		Guard:             guard,
		Roles:             roles,
		RosterTimeout:     cfg.Assignment.RosterTimeout,
		ConstraintTimeout: cfg.Assignment.ConstraintTimeout,
		MaxBatchSize:      cfg.Assignment.MaxBatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create ingest service", err)
		os.Exit(1)
	}

	defaults, err := settings.DefaultsFromConfig(cfg.WorkHours)
	if err != nil {
		logg.Error(ctx, "invalid default work hours", err)
		os.Exit(1)
	}
	settingsRepo := settings.NewRepository(conn, defaults)

	performanceService, err := performance.NewService(orderRepo, settingsRepo)
	if err != nil {
		logg.Error(ctx, "failed to create performance service", err)
		os.Exit(1)
	}

	deps.Ingest = ingestService
	deps.Settings = settingsRepo
	deps.Performance = performanceService
	deps.Metrics = promhttp.Handler()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
