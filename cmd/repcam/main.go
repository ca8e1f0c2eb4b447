package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/repcam/internal/config"
	repcammcp "github.com/claude/repcam/internal/mcp"
	"github.com/claude/repcam/internal/pose"
	"github.com/claude/repcam/internal/server"
	"github.com/claude/repcam/internal/session"
	"github.com/claude/repcam/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	migrateOnly := flag.Bool("migrate-only", false, "run checkpoint migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepCam starting", "version", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openCheckpointStore(ctx, cfg.Checkpoint, *migrateOnly, log)
	if err != nil {
		log.Error("checkpoint store unavailable", "backend", cfg.Checkpoint.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	var detector pose.Detector
	if cfg.Detector.Command != "" {
		side, _ := pose.ParseSide(cfg.Detector.Side)
		sd, err := pose.NewSubprocessDetector(pose.SubprocessConfig{
			Command:       cfg.Detector.Command,
			Args:          cfg.Detector.Args,
			Side:          side,
			MinVisibility: cfg.Detector.MinVisibility,
			Timeout:       cfg.Detector.Timeout,
			Annotate:      cfg.Detector.Annotate,
		}, log)
		if err != nil {
			log.Error("detector setup failed", "error", err)
			os.Exit(1)
		}
		defer sd.Close()
		detector = sd
		log.Info("pose detector configured", "command", cfg.Detector.Command, "side", side)
	} else {
		log.Info("no pose detector configured; clients must send joints")
	}

	manager, err := session.NewManager(session.Options{
		Counter:       cfg.Counter,
		Detector:      detector,
		Store:         store,
		IdleTimeout:   cfg.Sessions.IdleTimeout,
		CheckpointTTL: cfg.Sessions.CheckpointTTL,
		Log:           log,
	})
	if err != nil {
		log.Error("invalid counter configuration", "error", err)
		os.Exit(1)
	}
	go manager.Run(ctx)
	log.Info("rep counter configured",
		"flexion_threshold", cfg.Counter.FlexionThreshold,
		"extension_threshold", cfg.Counter.ExtensionThreshold,
		"debounce", cfg.Counter.Debounce,
		"window_size", cfg.Counter.WindowSize,
	)

	srv := server.New(manager, cfg.Auth.APIKey, log)
	mcpSrv := repcammcp.New(repcammcp.NewManagerSource(manager), Version, log)
	srv.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "plain (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	cancel()
	log.Info("server stopped")
}

// openCheckpointStore builds the configured checkpoint backend. The returned
// close function is always non-nil.
func openCheckpointStore(ctx context.Context, cfg config.CheckpointConfig, migrateOnly bool, log *slog.Logger) (session.CheckpointStore, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		if migrateOnly {
			return nil, func() {}, nil
		}
		st, err := storage.OpenSQLiteStore(cfg.SQLiteDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("checkpoints stored in sqlite", "dir", cfg.SQLiteDir)
		return st, func() { st.Close() }, nil

	case config.BackendPostgres:
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			return nil, nil, err
		}
		log.Info("migrations applied")
		if migrateOnly {
			return nil, func() {}, nil
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		log.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
		return db, db.Close, nil

	default:
		if migrateOnly {
			log.Info("memory checkpoint backend has no migrations")
		}
		return session.NewMemoryStore(), func() {}, nil
	}
}
