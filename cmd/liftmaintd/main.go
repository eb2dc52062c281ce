package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lift-maintenance-backend/config"
	"lift-maintenance-backend/internal/api"
	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/db"
	"lift-maintenance-backend/internal/extsync"
	"lift-maintenance-backend/internal/notification"
	"lift-maintenance-backend/internal/sched"
	"lift-maintenance-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/robfig/cron/v3"
)

func main() {
	logger := log.New(os.Stdout, "liftmaintd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	engine := sched.NewEngine(appStore, nil, workerPool)

	// Nightly sweep runs on the fixed scheduling timezone regardless of
	// the host clock.
	var sweeper *cron.Cron
	if cfg.Sweep.Enabled {
		sweeper = cron.New(cron.WithLocation(civdate.Zone))
		_, err := sweeper.AddFunc(cfg.Sweep.CronExpr, func() {
			n, err := engine.SweepOverduePlanned(ctx)
			if err != nil {
				logger.Printf("overdue sweep failed: %v", err)
				return
			}
			logger.Printf("overdue sweep moved %d schedules to PENDING", n)
		})
		if err != nil {
			logger.Fatalf("invalid sweep cron expression %q: %v", cfg.Sweep.CronExpr, err)
		}
		sweeper.Start()
		logger.Printf("overdue sweep scheduled at %q", cfg.Sweep.CronExpr)
	}

	syncSvc := extsync.NewService(cfg, appStore)
	go syncSvc.Run(ctx)

	router := api.NewRouter(cfg.Server, appStore, engine, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
