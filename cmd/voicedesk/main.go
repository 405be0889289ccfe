// Voicedesk is a help-desk daemon for retail banking: it takes a spoken or
// typed customer query, classifies it into a banking intent, and answers
// with a compliance-safe reply as text and, optionally, speech.
//
// Usage:
//
//	voicedesk [flags]
//	voicedesk --config /path/to/voicedesk.yaml
//
// @title       voicedesk API
// @version     1.0
// @description Intent classification and reply pipeline for a banking voice and text assistant.
// @BasePath    /
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/nadzzz/voicedesk/docs"
	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/dispatch"
	"github.com/nadzzz/voicedesk/internal/health"
	"github.com/nadzzz/voicedesk/internal/transport"
	grpctransport "github.com/nadzzz/voicedesk/internal/transport/grpc"
	httptransport "github.com/nadzzz/voicedesk/internal/transport/http"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/voicedesk.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voicedesk %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	level := config.SetupLogging(cfg.Logging)
	cfg.WatchLogLevel(level)
	slog.Info("voicedesk starting", "version", version)

	// A missing credential is fatal here, not on the first query.
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	healthServer := health.New(cfg.Server.HealthPort)

	p, err := buildPipeline(ctx, cfg, healthServer)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	dispatcher := dispatch.New(p.deps, p.opts)

	// Initialize enabled transports.
	var transports []transport.Transport
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP))
	}

	// Start health check server.
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	healthServer.SetReady(true)
	slog.Info("voicedesk ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("voicedesk stopped")
}
