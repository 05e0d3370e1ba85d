package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/cache"
	"github.com/Solutionsguy/jet2-sub000/internal/config"
	"github.com/Solutionsguy/jet2-sub000/internal/database"
	"github.com/Solutionsguy/jet2-sub000/internal/game"
	"github.com/Solutionsguy/jet2-sub000/internal/jobs"
	"github.com/Solutionsguy/jet2-sub000/internal/ledger"
	"github.com/Solutionsguy/jet2-sub000/internal/server"
)

const SHUTDOWN_TIMEOUT = 10 * time.Second

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.AppLogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func migrate(cfg *config.Config) error {
	db, err := sql.Open("pgx", cfg.DatabaseDSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return database.RunMigrations(db)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MAIN] %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrate(cfg); err != nil {
		log.Fatalf("[MAIN] Migrations failed: %v", err)
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		log.Fatalf("[MAIN] Database unavailable: %v", err)
	}
	store := ledger.NewStore(db.Pool())

	// Redis backs the round archive and the deferred credit list. The game
	// still runs without it.
	var (
		rdb      cache.Service
		archive  game.RoundArchiver
		deferred game.DeferredStore
		rounds   server.RoundStore
	)
	if rdb, err = cache.New(cfg); err != nil {
		log.WithError(err).Warn("[MAIN] Redis unavailable, running without round archive and deferred credits")
		rdb = nil
	} else {
		archive, deferred, rounds = rdb, rdb, rdb
	}

	hub := game.NewHub()
	go hub.Run()

	settler := game.NewSettler(store, deferred, game.SettlerOptions{
		Workers:    cfg.SettlementWorkers,
		QueueSize:  cfg.SettlementQueueSize,
		Timeout:    cfg.SettlementTimeout,
		MaxElapsed: cfg.SettlementMaxRetry,
	})
	// Not tied to the signal context: Stop drains queued credits first.
	settler.Start(context.Background())

	manager := game.NewManager(cfg.GameConfig, game.Deps{
		Publisher: hub,
		Credits:   settler,
		Wallet:    store,
		Archive:   archive,
	})
	manager.Start()

	scheduler := jobs.NewScheduler(settler, cfg.ReconcileSchedule)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("[MAIN] %v", err)
	}

	health := map[string]server.HealthChecker{"database": db}
	if rdb != nil {
		health["redis"] = rdb
	}
	srv := server.New(cfg.GameConfig, server.Deps{
		Game:    manager,
		Hub:     hub,
		Rounds:  rounds,
		Wallets: store,
		Health:  health,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Infof("[MAIN] Listening on %s", addr)
		if err := srv.Listen(addr); err != nil {
			log.WithError(err).Error("[MAIN] Server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[MAIN] Shutting down")

	if err := srv.Shutdown(SHUTDOWN_TIMEOUT); err != nil {
		log.WithError(err).Warn("[MAIN] Server shutdown")
	}
	manager.Stop()
	scheduler.Stop()
	settler.Stop()
	hub.Stop()
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("[MAIN] Redis close")
		}
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("[MAIN] Database close")
	}
	log.Info("[MAIN] Bye")
}
