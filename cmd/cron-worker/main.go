package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orderdesk/orderdesk-backend/internal/agents"
	"github.com/orderdesk/orderdesk-backend/internal/assignment"
	"github.com/orderdesk/orderdesk-backend/internal/cron"
	"github.com/orderdesk/orderdesk-backend/internal/ingest"
	"github.com/orderdesk/orderdesk-backend/internal/orders"
	"github.com/orderdesk/orderdesk-backend/internal/products"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	lock := cron.NewLocalLock()
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
		lock, err = cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
		redisGuard, err := ingest.NewRedisGuard(redisClient, cfg.Assignment.InFlightLockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create in-flight guard", err)
			os.Exit(1)
		}
		guard = redisGuard
	} else {
		logg.Warn(ctx, "redis not configured; cron lock is process-local")
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
	}

	roles, err := enums.ParseAgentRoles(cfg.Assignment.Roles)
	if err != nil {
		logg.Error(ctx, "invalid assignment roles", err)
		os.Exit(1)
	}

	assignmentMetrics := metrics.NewAssignmentMetrics(prometheus.DefaultRegisterer)
	conn := dbClient.DB()
	ingestService, err := ingest.NewService(ingest.ServiceParams{
		Logger:            logg,
		Tx:                dbClient,
		Orders:            orders.NewRepository(conn),
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

	sweep, err := cron.NewUnassignedSweepJob(cron.UnassignedSweepJobParams{
		Logger:    logg,
		Assigner:  ingestService,
		BatchSize: cfg.Cron.SweepBatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create unassigned sweep job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweep),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.SweepInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
