package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"trading-monitor/src/config"
	"trading-monitor/src/fetcher"
	"trading-monitor/src/helpers"
	"trading-monitor/src/interfaces"
	"trading-monitor/src/logger"
	"trading-monitor/src/server"
	sigfeed "trading-monitor/src/signal"
	"trading-monitor/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Setup store
	var store interfaces.IStore

	switch cfg.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		store, err = storage.NewSQLiteStore(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}
	// The bot may still be starting when we come up; retry before giving up
	err = helpers.RetryWithBackoff(appLogger, "store init", 3, time.Second, store.Initialize)
	if err != nil {
		appLogger.Critical("Failed to open store: %v", err)
	}
	defer store.Close()

	// 2. Lifecycle context shared by all background loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}

	// 3. Fetcher (poll-and-cache engine)
	f := fetcher.NewFetcher(cfg.MConfig, store, appLogger)

	// 4. Signal feed (optional)
	var feed *sigfeed.Client
	if cfg.SignalWS.URL != "" {
		feed = sigfeed.NewClient(&cfg.SignalWS, appLogger)
		f.Signals = feed
	}

	// 5. HTTP + WebSocket server
	srv := server.NewServer(cfg.MConfig, f, appLogger)
	if feed != nil {
		srv.Signals = feed
		feed.Broadcaster = srv
	}

	// 6. Start background loops
	f.Start(ctx, wg)
	if feed != nil {
		feed.Start(ctx, wg)
	}

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 7. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	srv.Stop()
	wg.Wait()
}
