package main

import (
	"context"
	"errors"
	"idempotent-payments/internal/config"
	"idempotent-payments/internal/database"
	"idempotent-payments/internal/handler"
	"idempotent-payments/internal/infrastructure/payment"
	"idempotent-payments/internal/logger"
	"idempotent-payments/internal/middleware"
	"idempotent-payments/internal/router"
	"idempotent-payments/internal/service"
	"idempotent-payments/internal/worker"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var withSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the payments HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(withSync)
		},
	}
	cmd.Flags().BoolVar(&withSync, "sync", true, "run the gateway status sync worker")
	return cmd
}

func runServe(withSync bool) error {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	var health handler.HealthChecker
	if s.db != nil {
		health = database.New(s.db, log)
	}

	gateway := payment.NewSimulatedGateway()
	paymentSvc := service.NewPaymentService(s.payments, gateway, log, cfg.Gateway.Timeout)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune(10 * time.Minute)
			}
		}
	}()

	if withSync {
		w := worker.NewStatusSyncWorker(s.payments, gateway, log, cfg.Sync.Interval, cfg.Sync.Lookback, cfg.Sync.Batch)
		go w.Run(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(cfg, paymentSvc, health, limiter, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
