package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screenfund/backend/internal/api"
	"github.com/screenfund/backend/internal/auth"
	"github.com/screenfund/backend/internal/config"
	"github.com/screenfund/backend/internal/db"
	"github.com/screenfund/backend/internal/logger"
	"github.com/screenfund/backend/internal/metrics"
	"github.com/screenfund/backend/internal/notify"
	"github.com/screenfund/backend/internal/payments"
	"github.com/screenfund/backend/internal/repository/postgres"
	"github.com/screenfund/backend/internal/scheduler"
	"github.com/screenfund/backend/internal/services"
	"github.com/screenfund/backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	store := postgres.NewStore(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	metrics.Init()

	provider := payments.NewPaystack(cfg.ProviderBaseURL, cfg.ProviderSecret, cfg.ProviderTimeout)
	notifier := notify.NewDispatcher(notify.LogSink{}, wp)
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	userSvc := services.NewUserService(store, tm)
	dirSvc := services.NewDirectoryService(store)
	allocSvc := services.NewAllocationService(store)
	waitSvc := services.NewWaitlistService(store, allocSvc)
	matchSvc := services.NewMatchingService(store, notifier)
	matchSvc.ConflictRetries = cfg.ConflictRetries
	campSvc := services.NewCampaignService(store, provider)
	apptSvc := services.NewAppointmentService(store, provider, notifier)
	settleSvc := services.NewSettlementService(store, provider, notifier, services.FlatBpsFee(cfg.PlatformFeeBps))

	sched := scheduler.New(cfg, log, matchSvc, allocSvc, waitSvc, campSvc, settleSvc)
	go sched.Run(ctx)

	r := api.NewRouter(api.RouterDeps{
		Cfg:          cfg,
		TokenManager: tm,
		Users:        userSvc,
		Campaigns:    campSvc,
		Waitlist:     waitSvc,
		Appointments: apptSvc,
		Settlement:   settleSvc,
		Matching:     matchSvc,
		Directory:    dirSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
