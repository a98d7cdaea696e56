package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-scheduler/internal/app"
	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/catalog"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/database"
	"meal-scheduler/internal/ghost"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/logger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rules"
	"meal-scheduler/internal/storage"
	"meal-scheduler/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	// 2. Initialize Storage
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		lg.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close()

	snapshots, err := storage.NewSnapshotStore(cfg.SnapshotDir)
	if err != nil {
		lg.Fatal("Failed to initialize snapshot store", "error", err)
	}
	metricsStore := metrics.NewStore(db.SQL)

	// 3. Initialize Ghost publishing when configured
	var publisher *catalog.Publisher
	if err := cfg.RequireGhost(); err == nil {
		publisher = catalog.NewPublisher(ghost.NewClient(cfg))
	} else {
		lg.Info("Publishing disabled", "reason", err)
	}

	// 4. Initialize Services
	svc := app.NewService(
		recipe.NewRepository(db.SQL),
		rules.NewRepository(db.SQL),
		ledger.NewRepository(db.SQL),
		calendar.NewRepository(db.SQL),
		snapshots,
		metricsStore,
		planner.NewScheduler(planner.WeightsFromConfig(cfg.Scoring)),
		publisher,
		lg,
	)

	// 5. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, svc, metricsStore, lg)
	if err != nil {
		lg.Fatal("Failed to initialize Telegram Bot", "error", err)
	}

	// 6. Start Server with Graceful Shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("Telegram Bot Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		lg.Error("Server forced to shutdown", "error", err)
	}

	lg.Info("Server exiting")
}
