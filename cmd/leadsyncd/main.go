package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leadstack/leadsync/internal/api"
	"github.com/leadstack/leadsync/internal/auth"
	"github.com/leadstack/leadsync/internal/cache"
	"github.com/leadstack/leadsync/internal/config"
	"github.com/leadstack/leadsync/internal/connection"
	"github.com/leadstack/leadsync/internal/database"
	"github.com/leadstack/leadsync/internal/journal"
	"github.com/leadstack/leadsync/internal/ops"
	"github.com/leadstack/leadsync/internal/registry"
	"github.com/leadstack/leadsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/leadsync.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting leadsyncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"session_id", cfg.Session.ID,
		"base_url", cfg.Server.BaseURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Token source: literal token or file-backed for rotation.
	var tokens connection.TokenSource
	if cfg.Server.TokenFile != "" {
		tokens = auth.NewFileToken(cfg.Server.TokenFile, logger)
	} else {
		tokens = auth.NewStaticToken(cfg.Server.Token)
	}

	restToken, err := tokens.Token(ctx)
	if err != nil {
		logger.Error("failed to resolve token", "error", err)
		os.Exit(1)
	}

	// REST client for the initial snapshot, refreshes, and mutations.
	restClient := api.NewClient(
		cfg.Server.BaseURL,
		restToken,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Server.Timeout),
		api.WithRetries(cfg.Server.MaxRetries, time.Second),
	)

	// Event fan-out
	reg := registry.New(logger)

	// Cache synchronizer
	sync := cache.NewSynchronizer(cache.Config{
		RefreshInterval: cfg.Cache.RefreshInterval,
		FetchTimeout:    cfg.Cache.FetchTimeout,
	}, restClient, logger)
	sync.Bind(reg)

	// Optional event journal
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		jrnl = journal.New(journal.Config{
			SessionID:     cfg.Session.ID,
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, logger)
		jrnl.Bind(reg)

		if err := jrnl.Start(ctx); err != nil {
			logger.Error("failed to start journal", "error", err)
			os.Exit(1)
		}
	}

	// Connection manager
	connCfg := connection.ManagerConfig{
		URL:                  cfg.Server.WSURL,
		HandshakeTimeout:     cfg.Connection.HandshakeTimeout,
		HeartbeatInterval:    cfg.Connection.HeartbeatInterval,
		HeartbeatTimeout:     cfg.Connection.HeartbeatTimeout,
		WriteTimeout:         cfg.Connection.WriteTimeout,
		BufferSize:           cfg.Connection.BufferSize,
		ReconnectBaseDelay:   cfg.Connection.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Connection.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
	}
	manager := connection.NewManager(connCfg, tokens, reg, logger)

	// Ops server, started early so sync progress is observable
	opsServer := ops.New(cfg.Ops.Port, manager, sync, reg, logger)
	go func() {
		if err := opsServer.Start(); err != nil {
			logger.Error("ops server error", "error", err)
		}
	}()

	// Initial REST snapshot, then the live stream on top of it
	logger.Info("starting cache synchronizer (initial sync)...")
	if err := sync.Start(ctx); err != nil {
		logger.Error("failed to start cache synchronizer", "error", err)
		os.Exit(1)
	}

	if err := manager.Connect(ctx); err != nil {
		// Transport failures keep retrying in the background; only a
		// fatal auth rejection is terminal here.
		if connection.IsFatal(err) {
			logger.Error("connect rejected", "error", err)
			os.Exit(1)
		}
		logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	logger.Info("leadsyncd running",
		"session_id", cfg.Session.ID,
		"ops_port", cfg.Ops.Port,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	manager.Close()
	if err := sync.Stop(shutdownCtx); err != nil {
		logger.Warn("cache synchronizer stop timed out", "error", err)
	}
	if jrnl != nil {
		if err := jrnl.Stop(shutdownCtx); err != nil {
			logger.Warn("journal stop failed", "error", err)
		}
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown failed", "error", err)
	}

	logger.Info("leadsyncd stopped")
}
