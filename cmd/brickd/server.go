package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/offmode/brickd/internal/admin"
	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/config"
	"github.com/offmode/brickd/internal/engine"
	"github.com/offmode/brickd/internal/essential"
	"github.com/offmode/brickd/internal/goal"
	"github.com/offmode/brickd/internal/jobs"
	"github.com/offmode/brickd/internal/lock"
	"github.com/offmode/brickd/internal/metrics"
	"github.com/offmode/brickd/internal/override"
	"github.com/offmode/brickd/internal/storage/bolt"
	redisstore "github.com/offmode/brickd/internal/storage/redis"
	"github.com/offmode/brickd/internal/systemd"
	"github.com/offmode/brickd/internal/unlock"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the brickd daemon",
	Long:  `Start the enforcement daemon: the evaluation loop, the local admin API and optionally the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting brickd")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	store, err := bolt.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()
	logger.Info().Str("path", cfg.Storage.Path).Msg("Storage opened")

	// Short-lived records (grants, countdowns) can live in Redis; everything
	// durable stays in the bolt file.
	grantStore := store.Grants()
	countdownStore := store.Countdowns()
	if cfg.Storage.Type == "redis" {
		rstore, err := redisstore.Open(redisstore.Config{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to open redis: %w", err)
		}
		defer rstore.Close()
		grantStore = rstore.Grants()
		countdownStore = rstore.Countdowns()
		logger.Info().Str("addr", cfg.Storage.Redis.Addr).Msg("Redis backend enabled for grants and countdowns")
	}

	clk := clock.Real{}
	registry := essential.NewRegistry(store.Essential(), logger)
	if err := registry.Seed(context.Background()); err != nil {
		return fmt.Errorf("failed to seed essential apps: %w", err)
	}

	grants := unlock.NewManager(grantStore, clk, logger)
	goals := goal.NewLedger(store.Goals(), clk, logger)
	locks := lock.NewManager(store.Sessions(), clk, logger)

	eng, err := engine.New(store, registry, grants, goals, locks, clk,
		enforcementSink(logger),
		engine.Config{
			CooldownMinutes:      cfg.Engine.CooldownMinutes,
			OverrideGrantMinutes: cfg.Engine.OverrideGrantMinutes,
			RepeatedActionCount:  cfg.Engine.RepeatedActionCount,
		}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	controller := override.NewController(eng, countdownStore, clk, logger)

	cleanup := jobs.NewCleanupJob(store.Logs(), grants, locks, controller, clk,
		cfg.Logging.LogRetentionDays, time.Hour, logger)
	cleanup.Start()
	defer cleanup.Stop()

	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminServer = admin.NewServer(admin.Config{
			ListenAddr:  cfg.Admin.ListenAddr,
			BearerToken: cfg.Admin.BearerToken,
		}, admin.Deps{
			Engine:     eng,
			Controller: controller,
			Grants:     grants,
			Registry:   registry,
			Goals:      goals,
			Locks:      locks,
			Logs:       store.Logs(),
		}, logger)
		if err := adminServer.Start(sdListeners.Admin); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
		defer func() {
			if err := adminServer.Stop(); err != nil {
				logger.Error().Err(err).Msg("Error stopping admin server")
			}
		}()
	}

	if cfg.Metrics.Enabled {
		metrics.Register()
		metricsListener := sdListeners.Metrics
		if metricsListener == nil {
			metricsListener, err = net.Listen("tcp", cfg.Metrics.ListenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on metrics address: %w", err)
			}
		}
		go metrics.Serve(metricsListener, logger)
	}

	// Evaluation loop
	tickInterval := parseDuration(cfg.Engine.TickInterval, 30*time.Second)
	tickDone := make(chan struct{})
	go runTicks(eng, clk, tickInterval, tickDone, logger)

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	close(tickDone)

	logger.Info().Msg("brickd stopped")
	return nil
}

// runTicks drives the engine. A tick skipped because the previous one is
// still running is expected under load and only counted, not retried.
func runTicks(eng *engine.Engine, clk clock.Clock, interval time.Duration, done <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if _, err := eng.EvaluateTick(ctx, clk.Now()); err != nil && err != engine.ErrTickBusy {
			logger.Error().Err(err).Msg("Evaluation tick failed")
		}
		if systemd.IsSystemdService() {
			_ = systemd.NotifyWatchdog()
		}
	}

	tick()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			tick()
		}
	}
}

// enforcementSink logs every decision change. Platform integrations (app
// blocking overlays, site filters) subscribe here.
func enforcementSink(logger zerolog.Logger) engine.Sink {
	sink := logger.With().Str("component", "sink").Logger()
	return engine.SinkFunc(func(d engine.Decision) {
		sink.Info().
			Str("scope", string(d.Scope)).
			Str("identifier", d.Identifier).
			Bool("blocked", d.Blocked).
			Str("session_id", d.SessionID).
			Str("goal_id", d.GoalID).
			Msg("Enforcement changed")
	})
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
