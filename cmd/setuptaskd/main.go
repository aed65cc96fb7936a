package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"setuptask/internal/api"
	"setuptask/internal/catalog"
	"setuptask/internal/cli"
	"setuptask/internal/config"
	"setuptask/internal/core"
	"setuptask/internal/logging"
	setuptaskmcp "setuptask/internal/mcp"
	"setuptask/internal/notify"
	"setuptask/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logOut := os.Stdout
	if cfg.Mode == "wizard" {
		logOut = os.Stderr
	}
	logger := logging.NewWithWriter(logOut, cfg.LogLevel)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir, cfg.RunLogKeep)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.DB.Close()

	cat := catalog.Builtin()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			logger.Error("load catalog", "path", cfg.CatalogPath, "err", err)
			os.Exit(1)
		}
	}
	registry, err := cat.BuildRegistry()
	if err != nil {
		// Registry construction errors are fatal: no task may run against
		// a table with broken prerequisite links.
		logger.Error("build registry", "err", err)
		os.Exit(1)
	}

	var notifier core.Notifier
	if cfg.NotifyURL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.NotifyURL)
		if err != nil {
			logger.Error("configure notifier", "err", err)
			os.Exit(1)
		}
		notifier = webhook
	}

	executor := core.NewShellExecutor(storeInst, logger)
	engine := core.NewEngine(registry, storeInst, storeInst, executor, notifier, logger)
	reporter := core.NewReporter(registry, storeInst)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	switch cfg.Mode {
	case "http", "":
		runHTTPMode(cfg, storeInst, registry, engine, reporter, logger)
	case "mcp":
		runMCPMode(storeInst, registry, engine, reporter, logger, cancel)
	case "both":
		runBothMode(cfg, storeInst, registry, engine, reporter, logger)
	case "wizard":
		taskID := ""
		if args := flag.Args(); len(args) > 0 {
			taskID = args[0]
		}
		runner := cli.NewRunner(cat, registry, engine, reporter, storeInst, os.Stdin, os.Stdout, logger)
		code := runner.Run(ctx, taskID)
		if err := storeInst.PruneRunLogs(); err != nil {
			logger.Warn("prune run logs", "err", err)
		}
		os.Exit(code)
	default:
		logger.Error("invalid mode", "mode", cfg.Mode, "valid", []string{"http", "mcp", "both", "wizard"})
		os.Exit(1)
	}
}

// runHTTPMode starts only the HTTP server.
func runHTTPMode(cfg *config.Config, st *store.Store, registry *core.Registry, engine *core.Engine, reporter *core.Reporter, logger *slog.Logger) {
	server, err := api.NewServer(cfg.Addr, cfg.AuthToken, st, registry, engine, reporter, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
}

// runMCPMode starts only the MCP server.
func runMCPMode(st *store.Store, registry *core.Registry, engine *core.Engine, reporter *core.Reporter, logger *slog.Logger, cancel context.CancelFunc) {
	mcpServer := setuptaskmcp.NewMCPServer(st, registry, engine, reporter, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

// runBothMode starts both HTTP and MCP servers.
func runBothMode(cfg *config.Config, st *store.Store, registry *core.Registry, engine *core.Engine, reporter *core.Reporter, logger *slog.Logger) {
	mcpServer := setuptaskmcp.NewMCPServer(st, registry, engine, reporter, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server, err := api.NewServer(cfg.Addr, cfg.AuthToken, st, registry, engine, reporter, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	logger.Info("shutdown complete")
}
