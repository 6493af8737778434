// Command forge is the platform's composition root: it loads
// configuration, opens the Dataset Store, starts the Component
// Catalog's watcher, and wires the Execution Core, Pipeline Engine,
// Simulation Engine, Security Scanner, HTTP health/diagram surface,
// and MCP tool-call surface together, the way the teacher's
// cmd/tarsy/main.go wires its own services before starting its
// router.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/glsp-mcp/forge/internal/config"
	"github.com/glsp-mcp/forge/pkg/catalog"
	"github.com/glsp-mcp/forge/pkg/cleanup"
	"github.com/glsp-mcp/forge/pkg/dataset"
	"github.com/glsp-mcp/forge/pkg/diagram"
	"github.com/glsp-mcp/forge/pkg/httpapi"
	"github.com/glsp-mcp/forge/pkg/mcpserver"
	"github.com/glsp-mcp/forge/pkg/pipeline"
	"github.com/glsp-mcp/forge/pkg/security"
	"github.com/glsp-mcp/forge/pkg/simulation"
	"github.com/glsp-mcp/forge/pkg/slack"
	"github.com/glsp-mcp/forge/pkg/version"
	"github.com/glsp-mcp/forge/pkg/wasmexec"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	if err := godotenv.Load(*configDir + "/.env"); err != nil {
		slog.Warn("no .env file loaded", "config_dir", *configDir, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "version", version.Full())

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.System.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	store, err := dataset.Open(ctx, cfg.Dataset)
	if err != nil {
		slog.Error("failed to open dataset store", "error", err)
		os.Exit(1)
	}

	cat := catalog.New(cfg.Catalog.WatchPath)
	if _, err := cat.Scan(ctx); err != nil {
		slog.Error("initial component scan failed", "error", err)
		os.Exit(1)
	}
	if err := cat.StartWatch(cfg.Catalog.DebounceWindow); err != nil {
		slog.Warn("component watcher failed to start", "error", err)
	}
	defer cat.StopWatch()

	scanner := security.New(security.Config{
		DangerousImports: cfg.Security.DangerousImports,
		ImportCountWarn:  cfg.Security.ImportCountWarn,
		TrustedHashes:    cfg.Security.TrustedHashes,
	})

	core := wasmexec.New(wasmexec.Options{
		MaxConcurrent: cfg.Execution.MaxConcurrent,
		Catalog:       cat,
		Scanner:       scanner,
		SensorSource:  newSensorSourceFactory(store),
		Logger:        slog.Default(),
	})
	defer core.Close(ctx)

	retention := cleanup.NewService(core, cfg.Execution.CleanupRetentionTime, cfg.Execution.CleanupInterval)
	retention.Start(ctx)
	defer retention.Stop()

	pipelines := pipeline.New(pipeline.Options{
		MaxConcurrentPipelines: cfg.Pipeline.MaxConcurrentPipelines,
		Executor:               core,
		Resolver:               catalogResolver{catalog: cat},
		Logger:                 slog.Default(),
	})

	notifier := slack.NewService(slack.ServiceConfig{
		Token:   cfg.Slack.Token(),
		Channel: cfg.Slack.Channel,
	})

	simulations := simulation.New(simulation.Options{
		MaxConcurrentSimulations: cfg.Simulation.MaxConcurrentSimulations,
		Pipelines:                pipelines,
		Store:                    store,
		Notifier:                 notifier,
		Logger:                   slog.Default(),
	})

	diagrams, err := diagram.Open(ctx, cfg.Diagram)
	if err != nil {
		slog.Error("failed to open diagram store", "error", err)
		os.Exit(1)
	}

	httpServer := httpapi.NewServer(healthChecker{store: store}, diagrams)
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.HTTP.Port))
	if err != nil {
		slog.Error("failed to bind http listener", "error", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("http server listening", "port", cfg.HTTP.Port)
		if err := httpServer.StartWithListener(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "error", err)
		}
	}()

	mcp := mcpserver.New(cat, core, pipelines, simulations)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp server starting on stdio")
		errCh <- mcp.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("mcp server exited", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "error", err)
	}
}

