// streamtail connects to the push endpoint and prints decoded events to
// the console. Useful for verifying credentials and watching the raw
// stream without a dashboard.
//
// Usage: go run ./cmd/streamtail --config configs/leadsync.local.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadstack/leadsync/internal/auth"
	"github.com/leadstack/leadsync/internal/config"
	"github.com/leadstack/leadsync/internal/connection"
	"github.com/leadstack/leadsync/internal/event"
	"github.com/leadstack/leadsync/internal/registry"
)

func main() {
	configPath := flag.String("config", "configs/leadsync.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full payload JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var tokens connection.TokenSource
	if cfg.Server.TokenFile != "" {
		tokens = auth.NewFileToken(cfg.Server.TokenFile, logger)
	} else {
		tokens = auth.NewStaticToken(cfg.Server.Token)
	}

	reg := registry.New(logger)
	reg.SubscribeAll(func(ev event.Envelope) {
		if *verbose {
			fmt.Printf("%s %s %s\n", ev.ReceivedAt.Format("15:04:05.000"), ev.Type, string(ev.Payload))
			return
		}
		fmt.Printf("%s %s\n", ev.ReceivedAt.Format("15:04:05.000"), ev.Type)
	})

	// Subscribe to every entity event so the server pushes them all.
	for _, name := range event.EntityNames {
		reg.Subscribe(name, func(event.Envelope) {})
	}

	mgrCfg := connection.ManagerConfig{
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
	manager := connection.NewManager(mgrCfg, tokens, reg, logger)

	if err := manager.Connect(ctx); err != nil {
		if connection.IsFatal(err) {
			logger.Error("connect rejected", "error", err)
			os.Exit(1)
		}
		logger.Warn("connect failed, retrying in background", "error", err)
	}

	<-ctx.Done()
	manager.Close()

	// Final status for the road
	snap := manager.Snapshot()
	out, _ := json.Marshal(snap)
	logger.Info("session ended", "state", string(out))
}
