// The POS terminal process: opens the local store, refreshes the
// reference-data cache, and keeps the dispatch loop pushing offline orders
// to the server. Order capture itself is driven by the terminal UI, which
// writes through the localstore facade.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-pos/dispatch"
	"restaurant-pos/localstore"
	"restaurant-pos/models"
	"restaurant-pos/notify"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Backend selection happens exactly once, here. It is not renegotiated
	// mid-session.
	store, err := localstore.Open(localstore.Config{
		Backend: localstore.DetectBackend(),
		Path:    getEnv("POS_LOCAL_PATH", "pos_terminal.db"),
		Logger:  logger,
	})
	if err != nil {
		// Without local persistence the terminal must not take orders:
		// silently failing to persist an order is the one failure mode
		// this system exists to prevent.
		logger.Fatal("local store unavailable, refusing to start", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticketPrinter := notify.New(logger, 64, func(order models.Order) {
		// Stand-in for the kitchen printer driver.
		logger.Info("kitchen ticket",
			zap.String("order_id", order.ID),
			zap.Int("kot_no", order.KotNo),
			zap.String("table", order.TableName),
			zap.Int("items", len(order.Items)))
	})
	ticketPrinter.Start(ctx)

	dispatcher := dispatch.New(
		store,
		getEnv("POS_SERVER_URL", "http://localhost:8080"),
		os.Getenv("POS_TERMINAL_TOKEN"),
		logger,
	)

	// Best effort: a terminal that comes up offline keeps serving from its
	// cached reference data.
	if err := dispatcher.PullBootstrap(ctx); err != nil {
		logger.Warn("bootstrap pull failed, using cached reference data", zap.Error(err))
	}

	interval := 30 * time.Second
	if v := os.Getenv("POS_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}

	logger.Info("terminal started",
		zap.String("backend", localstore.DetectBackend()),
		zap.Duration("sync_interval", interval))
	dispatcher.Run(ctx, interval)
}
