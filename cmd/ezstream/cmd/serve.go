package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/truongvando/ezstream-sub000/internal/cleanup"
	"github.com/truongvando/ezstream-sub000/internal/config"
	"github.com/truongvando/ezstream-sub000/internal/database"
	"github.com/truongvando/ezstream-sub000/internal/database/migrations"
	"github.com/truongvando/ezstream-sub000/internal/dispatch"
	"github.com/truongvando/ezstream-sub000/internal/events"
	"github.com/truongvando/ezstream-sub000/internal/fleet"
	internalhttp "github.com/truongvando/ezstream-sub000/internal/http"
	"github.com/truongvando/ezstream-sub000/internal/http/handlers"
	"github.com/truongvando/ezstream-sub000/internal/metrics"
	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/orchestrator"
	"github.com/truongvando/ezstream-sub000/internal/playlist"
	"github.com/truongvando/ezstream-sub000/internal/progress"
	"github.com/truongvando/ezstream-sub000/internal/quota"
	"github.com/truongvando/ezstream-sub000/internal/repository"
	"github.com/truongvando/ezstream-sub000/internal/scheduler"
	"github.com/truongvando/ezstream-sub000/internal/service"
	"github.com/truongvando/ezstream-sub000/internal/storage"
	"github.com/truongvando/ezstream-sub000/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ezstream control plane",
	Long: `Start the ezstream HTTP server and orchestration loops.

The server provides:
- REST API for managing streams, playlists, workers, and subscriptions
- Worker registration, heartbeat, and event callbacks for relayd
- Live progress reporting over SSE
- Health check endpoint and Prometheus metrics
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "ezstream.db", "Database DSN (file path for sqlite)")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for video assets")

	// Bind flags to viper
	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize database and run migrations
	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := runMigrations(db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Initialize repositories
	streamRepo := repository.NewStreamRepository(db.DB)
	workerRepo := repository.NewWorkerRepository(db.DB)
	subscriptionRepo := repository.NewSubscriptionRepository(db.DB)

	// Initialize asset storage
	store, err := storage.NewAssetStore(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing asset storage: %w", err)
	}

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Lifecycle event publishing (no-op unless a broker is configured)
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		kafka := events.NewKafkaPublisher(
			cfg.Events.Brokers,
			cfg.Events.Topic,
			cfg.Events.WriteTimeout,
			cfg.Events.BatchTimeout,
			logger,
		)
		defer kafka.Close()
		publisher = kafka
	}

	m := metrics.New()

	// Progress tracker retains terminal snapshots for a while so the UI can
	// show why a stream ended.
	tracker := progress.NewTracker(logger).WithSnapshotTTL(cfg.Progress.SnapshotTTL)
	tracker.Start()
	defer tracker.Stop()

	// Worker fleet registry
	registry := fleet.NewRegistry(workerRepo, logger).
		WithHeartbeatTimeout(cfg.Fleet.HeartbeatTimeout).
		WithHealthCheckPeriod(cfg.Fleet.HealthCheckPeriod).
		WithDefaultMaxStreams(cfg.Fleet.DefaultMaxStreams)
	if err := registry.Restore(ctx); err != nil {
		return fmt.Errorf("restoring worker fleet: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(logger).
		WithAckTimeout(cfg.Dispatcher.AckTimeout).
		WithStopTimeout(cfg.Dispatcher.StopTimeout)

	resolver := playlist.NewResolver()

	enforcer := quota.NewEnforcer(subscriptionRepo, streamRepo, cfg.Quota.DefaultMaxConcurrent, logger)

	orch := orchestrator.NewOrchestrator(streamRepo, registry, dispatcher, resolver, enforcer, tracker, logger).
		WithPublisher(publisher).
		WithMetrics(m)

	// Lost workers fail their streams through the orchestrator; the health
	// sweep must not start before recovery has reconciled persisted state.
	registry.OnWorkerLost(orch.HandleWorkerLost)
	if err := orch.Recover(ctx); err != nil {
		return fmt.Errorf("recovering stream state: %w", err)
	}
	registry.Start(ctx)
	defer registry.Stop()

	sched := scheduler.NewScheduler(streamRepo, orch, logger).
		WithInterval(cfg.Scheduler.SweepInterval)
	sched.Start(ctx)
	defer sched.Stop()

	cleaner := cleanup.NewAgent(streamRepo, store, logger).
		WithInterval(cfg.Cleanup.SweepInterval).
		WithGracePeriod(cfg.Cleanup.GracePeriod).
		WithMetrics(m)
	cleaner.Start(ctx)
	defer cleaner.Stop()

	// Initialize services
	streamService := service.NewStreamService(streamRepo, orch, store).WithLogger(logger)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, cfg.Quota.DefaultMaxConcurrent).WithLogger(logger)

	// Initialize HTTP server
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db).WithFleet(registry)
	healthHandler.Register(server.API())

	streamHandler := handlers.NewStreamHandler(streamService, orch)
	streamHandler.Register(server.API())

	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	subscriptionHandler.Register(server.API())

	workerHandler := handlers.NewWorkerHandler(registry, orch)
	workerHandler.Register(server.API())

	progressHandler := handlers.NewProgressHandler(tracker, logger)
	progressHandler.Register(server.API())
	progressHandler.RegisterSSE(server.Router())

	server.Router().Handle("/metrics", m.Handler(func() {
		active, err := streamRepo.GetByStatus(context.Background(),
			models.StreamStatusStarting, models.StreamStatusStreaming, models.StreamStatusStopping)
		if err == nil {
			m.SetActiveStreams(len(active))
		}
		m.SetOnlineWorkers(registry.CountOnline())
	}))

	logger.Info("starting ezstream server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

func runMigrations(db *database.DB, logger *slog.Logger) error {
	migrator := migrations.NewMigrator(db.DB, logger)
	return migrator.Up(context.Background())
}
