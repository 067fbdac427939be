package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tboby/wyoming-onnx-asr/internal/config"
	"github.com/tboby/wyoming-onnx-asr/internal/discovery"
	"github.com/tboby/wyoming-onnx-asr/internal/metrics"
	"github.com/tboby/wyoming-onnx-asr/internal/protocol"
	"github.com/tboby/wyoming-onnx-asr/internal/registry"
	"github.com/tboby/wyoming-onnx-asr/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "wyoming-onnx-asr"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	uri := flag.String("uri", "", "Override listen URI (tcp://host:port, unix:///path, stdio://)")
	debug := flag.Bool("debug", false, "Force debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *uri != "" {
		cfg.Server.URI = *uri
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.String("uri", cfg.Server.URI),
		slog.Int("models", len(cfg.Models)),
		slog.Int("recognition_timeout", cfg.Recognition.Timeout),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	program := registry.ProgramInfo{
		Name:        serviceName,
		Description: "Speech recognition with ONNX models",
		Version:     serviceVersion,
		Attribution: protocol.Attribution{
			Name: "wyoming-onnx-asr",
			URL:  "https://github.com/tboby/wyoming-onnx-asr",
		},
	}
	reg, err := registry.New(cfg.Models, program, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to load recognition backends", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Model registry initialized", slog.Any("tags", reg.Tags()))

	asrServer, err := server.New(cfg, reg, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// stdio serves a single session on the process streams and exits
	// with the peer; no listener, monitor, or mDNS applies.
	if asrServer.Endpoint().Scheme == "stdio" {
		runStdio(ctx, asrServer, logger)
		return
	}

	if err := asrServer.Start(); err != nil {
		logger.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, reg, asrServer, appMetrics, prometheus.DefaultGatherer, logger)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP monitoring server started",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	var announcer *discovery.Announcer
	if cfg.Discovery.Enabled && asrServer.Endpoint().Scheme == "tcp" {
		name := cfg.Discovery.Name
		if name == "" {
			name = serviceName
		}
		port := asrServer.Addr().(*net.TCPAddr).Port
		announcer, err = discovery.Announce(name, port, reg.Tags(), logger)
		if err != nil {
			// Discovery is best effort; the listener still serves.
			logger.Warn("mDNS announcement failed", slog.String("error", err.Error()))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	if announcer != nil {
		announcer.Shutdown()
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := asrServer.Stop(); err != nil {
		logger.Error("Error stopping server", slog.String("error", err.Error()))
	}

	stats := asrServer.Stats()
	logger.Info("Final server statistics",
		slog.Uint64("total_sessions", stats.TotalSessions),
		slog.Duration("uptime", stats.Uptime),
	)

	logger.Info("Service stopped")
}

// runStdio serves the protocol on stdin/stdout until the input closes or a
// termination signal arrives.
func runStdio(ctx context.Context, asrServer *server.Server, logger *slog.Logger) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := asrServer.RunStdio(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("Session failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

// initLogger creates the structured logger. Output always goes to stderr
// so that stdio transport keeps stdout free for protocol events.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
