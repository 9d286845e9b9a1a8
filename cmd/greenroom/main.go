// Package main is the entry point for the greenroom production server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/greenroomhq/greenroom/internal/config"
	"github.com/greenroomhq/greenroom/internal/deadline"
	"github.com/greenroomhq/greenroom/internal/directory"
	"github.com/greenroomhq/greenroom/internal/episode"
	"github.com/greenroomhq/greenroom/internal/inventory"
	"github.com/greenroomhq/greenroom/internal/notify"
	"github.com/greenroomhq/greenroom/internal/observability"
	"github.com/greenroomhq/greenroom/internal/reassign"
	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/internal/transport"
	"github.com/greenroomhq/greenroom/internal/workflow"
	"github.com/greenroomhq/greenroom/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "greenroom", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Role tables: built-in defaults, optionally overridden from a policy file.
	tables, err := buildTables(cfg.Roles, logger)
	if err != nil {
		logger.Error("role table load failed", zap.Error(err))
		return 1
	}

	stores, err := buildStores(ctx, cfg.Stores, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}
	defer stores.close()

	reminders, redisClient, err := buildReminderLog(ctx, cfg.Stores.Redis, logger)
	if err != nil {
		logger.Error("reminder log initialization failed", zap.Error(err))
		return 1
	}

	dir, err := buildDirectory(cfg.Directory, logger)
	if err != nil {
		logger.Error("user directory load failed", zap.Error(err))
		return 1
	}

	dispatcher := notify.NewAsyncDispatcher(logger, cfg.Notifications.Buffer, notify.NewLogSink(logger))

	// Core wiring. The scheduler reads air dates through the episode store;
	// the engine regenerates deadlines on stage entry; the allocator advances
	// the workflow when the last request of a gated episode resolves.
	scheduler := deadline.NewScheduler(stores.deadlines, tables, episode.AirDates{Store: stores.episodes}, reminders, dispatcher)
	engine := workflow.NewEngine(stores.workflows, tables, scheduler, dispatcher)
	allocator := inventory.NewAllocator(stores.inventory, tables, engine, dispatcher)
	service := episode.NewService(stores.episodes, tables, engine, scheduler, allocator)

	writers := map[model.TaskType]reassign.TaskWriter{
		model.TaskWorkflowStep:     reassign.TaskWriterFunc(engine.SetStepAssignee),
		model.TaskDeadline:         reassign.TaskWriterFunc(scheduler.SetAssignee),
		model.TaskEquipmentRequest: reassign.TaskWriterFunc(allocator.SetRequestAssignee),
	}
	auditor := reassign.NewAuditor(stores.reassignments, tables, dir, writers, dispatcher)

	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)

	readiness := observability.ReadinessChecks{
		RolesLoaded: func() bool { return tables != nil },
	}
	if stores.pool != nil {
		pool := stores.pool
		readiness.Database = observability.HealthCheckerFunc(func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}
	if redisClient != nil {
		readiness.ReminderLog = observability.HealthCheckerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwks),
		Ready:        observability.HandleReady(readiness),
		Episodes:     service,
		Workflow:     engine,
		Deadlines:    scheduler,
		Inventory:    allocator,
		Reassign:     auditor,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		runDeadlineSweeps(bgCtx, scheduler, metrics, cfg.Deadlines, logger)
	}()

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("stores", cfg.Stores.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Join the sweep goroutine before closing the dispatcher: a sweep mid
	// flight may still be dispatching notifications.
	bgCancel()
	<-sweepDone
	dispatcher.Close()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close error", zap.Error(err))
		}
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildTables loads the role tables, from the policy file when one is
// configured.
func buildTables(cfg config.RolesConfig, logger *zap.Logger) (*roles.Tables, error) {
	if cfg.PolicyFile == "" {
		return roles.Defaults(), nil
	}
	logger.Info("loading role policy file", zap.String("path", cfg.PolicyFile))
	return roles.LoadFile(cfg.PolicyFile)
}

// coreStores bundles the per-component stores plus the shared pool backing
// them when the postgres driver is selected.
type coreStores struct {
	episodes      episode.Store
	workflows     workflow.Store
	deadlines     deadline.Store
	inventory     inventory.Store
	reassignments reassign.Store

	pool *pgxpool.Pool
}

func (s *coreStores) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildStores creates the component stores based on the configured driver.
func buildStores(ctx context.Context, cfg config.StoresConfig, logger *zap.Logger) (*coreStores, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory stores")
		return &coreStores{
			episodes:      episode.NewMemoryStore(),
			workflows:     workflow.NewMemoryStore(),
			deadlines:     deadline.NewMemoryStore(),
			inventory:     inventory.NewMemoryStore(),
			reassignments: reassign.NewMemoryStore(),
		}, nil

	case "postgres":
		dsn := os.Getenv(cfg.Postgres.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("stores: %s environment variable not set", cfg.Postgres.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("stores: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
		poolCfg.MinConns = int32(cfg.Postgres.MinConns)
		poolCfg.MaxConnLifetime = cfg.Postgres.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("stores: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("stores: ping: %w", err)
		}

		logger.Info("using postgres stores", zap.Int32("max_conns", poolCfg.MaxConns))
		return &coreStores{
			episodes:      episode.NewPgStore(pool),
			workflows:     workflow.NewPgStore(pool),
			deadlines:     deadline.NewPgStore(pool),
			inventory:     inventory.NewPgStore(pool),
			reassignments: reassign.NewPgStore(pool),
			pool:          pool,
		}, nil

	default:
		return nil, fmt.Errorf("stores: unsupported driver %q", cfg.Driver)
	}
}

// buildReminderLog creates the reminder dedup log: redis when enabled,
// in-memory otherwise.
func buildReminderLog(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (deadline.ReminderLog, *redis.Client, error) {
	if !cfg.Enabled {
		logger.Info("using in-memory reminder log")
		return deadline.NewMemoryReminderLog(), nil, nil
	}

	addr := os.Getenv(cfg.AddrEnv)
	if addr == "" {
		return nil, nil, fmt.Errorf("reminder log: %s environment variable not set", cfg.AddrEnv)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("reminder log: redis ping: %w", err)
	}

	logger.Info("using redis reminder log", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return deadline.NewRedisReminderLog(client), client, nil
}

// buildDirectory loads the static user directory used to validate
// reassignment targets. Without a users file the directory is empty and
// every reassignment fails target validation.
func buildDirectory(cfg config.DirectoryConfig, logger *zap.Logger) (model.Directory, error) {
	if cfg.UsersFile == "" {
		logger.Warn("no directory.users_file configured, reassignment targets cannot be resolved")
		return directory.NewStatic(nil), nil
	}
	logger.Info("loading user directory", zap.String("path", cfg.UsersFile))
	return directory.LoadFile(cfg.UsersFile)
}

// runDeadlineSweeps periodically marks overdue deadlines and sends upcoming
// reminders. Each sweep notifies at most once per deadline per TTL window.
func runDeadlineSweeps(ctx context.Context, scheduler *deadline.Scheduler, metrics *observability.Metrics, cfg config.DeadlinesConfig, logger *zap.Logger) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			now := start.UTC()

			overdue, err := scheduler.SweepOverdue(ctx, now, cfg.OverdueTTL)
			if err != nil {
				logger.Error("overdue sweep failed", zap.Error(err))
			} else if overdue > 0 {
				logger.Info("overdue deadlines notified", zap.Int("count", overdue))
			}

			reminded, err := scheduler.SendReminders(ctx, now, cfg.ReminderHorizon, cfg.ReminderTTL)
			if err != nil {
				logger.Error("reminder sweep failed", zap.Error(err))
			} else if reminded > 0 {
				logger.Info("deadline reminders sent", zap.Int("count", reminded))
			}

			if metrics != nil {
				metrics.RecordSweep(time.Since(start))
				metrics.SetDeadlinesOverdue(float64(overdue))
				metrics.RecordRemindersSent("upcoming", reminded)
			}
		}
	}
}
