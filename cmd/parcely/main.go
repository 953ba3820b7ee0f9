// Command parcely runs the crate telemetry pipeline: telemetry samples are
// queued, applied to crate/shipment state and broadcast to realtime
// subscribers over SSE and WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/seanttaylor/parcely-sub000/config"
	"github.com/seanttaylor/parcely-sub000/engine"
	"github.com/seanttaylor/parcely-sub000/metric"
)

const (
	appName = "parcely"
	version = "1.0.0"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version)
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}

	if cliCfg.Validate {
		fmt.Println("configuration is valid")
		return nil
	}

	logger := setupLogger(cfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting parcely", "configPath", cliCfg.ConfigPath)

	registry := metric.NewMetricsRegistry()
	e, err := engine.New(engine.ConstructorConfig{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
	})
	if err != nil {
		return err
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, "/metrics", registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server started", "address", metricsServer.Address())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = e.Run(ctx)

	if metricsServer != nil {
		if stopErr := metricsServer.Stop(); stopErr != nil {
			logger.Warn("metrics server stop failed", "error", stopErr)
		}
	}

	logger.Info("parcely stopped")
	return err
}
