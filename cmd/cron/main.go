package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"traderboard/internal/cli"
	"traderboard/internal/config"
	"traderboard/internal/svc"
	"traderboard/internal/tracker"
)

const shutdownTimeout = 10 * time.Second // Grace period for shutdown

var configFile = flag.String("f", "etc/traderboard.yaml", "the config file")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting tracker cron...")

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] Failed to load config %s: %v", *configFile, err)
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*appCfg)
	trk := svcCtx.Tracker

	snapshotEvery := time.Duration(appCfg.Tracker.SnapshotEvery) * time.Second
	boardEvery := time.Duration(appCfg.Tracker.BoardEvery) * time.Second
	log.Printf("  - Venue: %s", svcCtx.DefaultVenue.Name())
	log.Printf("  - Cycles: snapshot=%s board=%s", snapshotEvery, boardEvery)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One backfill sweep on startup so new accounts have history to rank.
	if err := trk.BackfillAll(ctx); err != nil {
		log.Printf("[main] Warning: initial backfill: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSnapshotCycle(ctx, trk, snapshotEvery)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runBoardCycle(ctx, trk, boardEvery)
	}()

	log.Println("[main] Tracker cron started. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Tracker cron stopped")
}

// runSnapshotCycle snapshots every tracked account on a schedule.
func runSnapshotCycle(ctx context.Context, trk *tracker.Tracker, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	// Run once immediately on startup
	snapshotOnce(ctx, trk)

	for {
		select {
		case <-ctx.Done():
			log.Println("[snapshot] Stopping snapshot cycle")
			return
		case <-ticker.C:
			snapshotOnce(ctx, trk)
		}
	}
}

func snapshotOnce(ctx context.Context, trk *tracker.Tracker) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := trk.SnapshotAll(ctx); err != nil {
		log.Printf("[snapshot] [ERROR] %v, took %dms", err, time.Since(start).Milliseconds())
		return
	}
	log.Printf("[snapshot] [OK] took %dms", time.Since(start).Milliseconds())
}

// runBoardCycle refreshes the leaderboard scalars on a schedule.
func runBoardCycle(ctx context.Context, trk *tracker.Tracker, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	// Run once immediately on startup
	boardOnce(ctx, trk)

	for {
		select {
		case <-ctx.Done():
			log.Println("[board] Stopping board cycle")
			return
		case <-ticker.C:
			boardOnce(ctx, trk)
		}
	}
}

func boardOnce(ctx context.Context, trk *tracker.Tracker) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := trk.RefreshBoard(ctx); err != nil {
		log.Printf("[board] [ERROR] %v, took %dms", err, time.Since(start).Milliseconds())
		return
	}
	log.Printf("[board] [OK] took %dms", time.Since(start).Milliseconds())
}
