package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tphan267/huddle/apis"
	"github.com/tphan267/huddle/pkg/config"
	"github.com/tphan267/huddle/pkg/gateway"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/presence"
	"github.com/tphan267/huddle/pkg/providers"
	"github.com/tphan267/huddle/pkg/providers/analytics"
	"github.com/tphan267/huddle/pkg/providers/auth"
	"github.com/tphan267/huddle/pkg/providers/rooms"
	"github.com/tphan267/huddle/pkg/relay"
	"github.com/tphan267/huddle/pkg/storage"
	"github.com/tphan267/huddle/pkg/utils"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	var configFile, logLevel string
	flag.StringVar(&configFile, "config", "huddle.yaml", "Path to the config file")
	flag.StringVar(&logLevel, "loglevel", "", "Set the log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(version, configFile, logLevel)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewDefault("HUDDLE")
	appLogger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	appLogger.Info("Starting huddle %s...", version)

	store, err := storage.NewSQLiteStorage(cfg.DBPath, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	sig := newSignaling(cfg, appLogger)

	registry := createServiceRegistry(store, appLogger, cfg, sig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := registry.InitializeAll(ctx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if err := registry.StartRunnable(ctx); err != nil {
		log.Fatalf("Failed to start runnable services: %v", err)
	}

	srv := apis.New(registry, sig.Gateway)
	if err := srv.RegisterRoutes(); err != nil {
		log.Fatalf("Failed to register service routes: %v", err)
	}

	for _, u := range utils.ListenURLs(cfg.ServerAddr) {
		appLogger.Info("Listening on %s", u)
	}

	go func() {
		if err := srv.Start(cfg.ServerAddr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown error: %v", err)
	}
	if err := sig.Gateway.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Gateway shutdown error: %v", err)
	}

	cancel()
	if err := registry.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Service shutdown error: %v", err)
	}

	appLogger.Info("Server exited")
}

// newSignaling wires the presence registry, relay and websocket gateway
func newSignaling(cfg *config.Config, log *logger.Logger) *providers.Signaling {
	reg := presence.NewRegistry(cfg.DefaultRoom, log)
	rl := relay.New(reg, log)
	return &providers.Signaling{
		Presence: reg,
		Relay:    rl,
		Gateway:  gateway.New(reg, rl, cfg.SendBuffer, log),
	}
}

// createServiceRegistry creates and populates the service registry with default services
func createServiceRegistry(store storage.Storage, log *logger.Logger, cfg *config.Config, sig *providers.Signaling) *providers.Registry {
	registry := providers.NewRegistry(store, log, cfg, sig)

	registry.MustRegister(auth.NewService())
	registry.MustRegister(analytics.NewService())
	registry.MustRegister(rooms.NewService())

	return registry
}
