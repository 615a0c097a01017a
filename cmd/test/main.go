// Manual smoke check: runs one fast and one slow refresh cycle against a
// real bot database and prints what the dashboard would see.
//
// Usage: go run ./cmd/test -config ../../config/default.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"trading-monitor/src/config"
	"trading-monitor/src/fetcher"
	"trading-monitor/src/interfaces"
	"trading-monitor/src/logger"
	sigfeed "trading-monitor/src/signal"
	"trading-monitor/src/storage"
)

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	watchSignals := flag.Duration("watch-signals", 0, "also listen to the signal feed for this long")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	// 4. Open store
	var store interfaces.IStore
	switch conf.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresStore(conf.MConfig, appLogger)
	default:
		store, err = storage.NewSQLiteStore(conf.MConfig, appLogger)
	}
	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to open store: %v", err)
	}
	defer store.Close()

	// 5. One cycle of each cadence
	f := fetcher.NewFetcher(conf.MConfig, store, appLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f.RefreshFast(ctx)
	f.RefreshSlow(ctx)

	snap := f.FullSnapshot()
	appLogger.Info("Positions: %d, Events: %d, Trades: %d, Performance rows: %d",
		len(snap.Positions), len(snap.Events), len(snap.RecentTrades), len(snap.Performance))

	out, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Println(string(out))

	status := f.Status()
	appLogger.Info("Fetcher status: fast_errors=%d slow_errors=%d degraded=%v",
		status.FastErrors, status.SlowErrors, status.Degraded)

	// 6. Optionally watch the signal feed
	if *watchSignals > 0 && conf.SignalWS.URL != "" {
		appLogger.Info("Listening to signal feed for %s...", *watchSignals)

		feedCtx, feedCancel := context.WithTimeout(context.Background(), *watchSignals)
		defer feedCancel()

		wg := &sync.WaitGroup{}
		feed := sigfeed.NewClient(&conf.SignalWS, appLogger)
		feed.Start(feedCtx, wg)
		wg.Wait()

		st := feed.Status()
		appLogger.Info("Signal feed: received=%d buffered=%d reconnects=%d",
			st.SignalsReceived, st.BufferSize, st.ReconnectCount)
	}
}
