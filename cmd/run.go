package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fantasygolf/alerts"
	"fantasygolf/api"
	"fantasygolf/config"
	"fantasygolf/database"
	"fantasygolf/events"
	"fantasygolf/observability"
	"fantasygolf/repository"
	"fantasygolf/service"
	"fantasygolf/worker"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Services bundles the core services built on one unit of work factory
type Services struct {
	Ledger         service.LedgerService
	Payments       service.PaymentService
	Entries        service.EntryService
	HeadToHead     service.HeadToHeadService
	Withdrawals    service.WithdrawalService
	Status         service.StatusService
	Reconciliation service.ReconciliationService
}

// NewServices wires every service. lock may be nil.
func NewServices(cfg *config.Config, uowFactory service.UnitOfWorkFactory, lock service.SweepLock) *Services {
	reconciliation := service.NewReconciliationService(uowFactory)
	payments := service.NewPaymentService(uowFactory, reconciliation, cfg.MaxTopup)
	headToHead := service.NewHeadToHeadService(uowFactory, cfg.HeadToHeadAutoActivate)

	return &Services{
		Ledger:         service.NewLedgerService(uowFactory, reconciliation),
		Payments:       payments,
		Entries:        service.NewEntryService(uowFactory),
		HeadToHead:     headToHead,
		Withdrawals:    service.NewWithdrawalService(uowFactory, cfg.MinWithdrawal),
		Status:         service.NewStatusService(uowFactory, lock, headToHead, payments, cfg.StuckPaymentAge),
		Reconciliation: reconciliation,
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg.LogLevel, cfg.LogFormat)

	log.WithField("environment", cfg.Environment).Info("Starting fantasygolf service...")

	// Database
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Redis guards the sweep only, so the service starts without it
	var sweepLock service.SweepLock
	if cfg.RedisAddr != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, reconciliation sweeps will run without a lock")
		} else {
			defer rdb.Close()
			sweepLock = service.NewRedisSweepLock(rdb, 2*cfg.ReconcileInterval)
		}
	}

	// Events
	eventBus := events.NewBus()

	if cfg.NATSEnabled {
		natsClient := events.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		if err := natsClient.EnsureStream(cfg.NATSStream, events.StreamSubjects()); err != nil {
			return fmt.Errorf("failed to ensure NATS stream: %w", err)
		}
		events.NewNATSForwarder(natsClient).Register(eventBus)
		log.Info("Forwarding domain events to NATS")
	}

	// Metrics
	metrics := observability.NewMetricsProvider(observability.Config{
		Exporter:     cfg.MetricsExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Environment:  cfg.Environment,
	})
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.Register(eventBus)

	// Alerts
	if cfg.IsAlertingEnabled() {
		notifier, err := alerts.NewDiscordNotifier(cfg.DiscordAlertWebhookID, cfg.DiscordAlertWebhookToken, cfg.Environment)
		if err != nil {
			return fmt.Errorf("failed to create discord notifier: %w", err)
		}
		notifier.Register(eventBus)
		log.Info("Reconciliation alerts enabled")
	}

	// Services
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	services := NewServices(cfg, uowFactory, sweepLock)

	// HTTP
	router := api.NewRouter(api.Services{
		Ledger:         services.Ledger,
		Payments:       services.Payments,
		Entries:        services.Entries,
		HeadToHead:     services.HeadToHead,
		Withdrawals:    services.Withdrawals,
		Status:         services.Status,
		Reconciliation: services.Reconciliation,
	}, api.Options{
		JWTSecret:           cfg.JWTSecret,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		RequestTimeout:      cfg.RequestTimeout,
		DemoPaymentsEnabled: cfg.DemoPaymentsEnabled,
		WebhookSecret:       cfg.PaymentWebhookSecret,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweeper := worker.NewSweeper(services.Status, cfg.ReconcileInterval, metrics)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error shutting down HTTP server")
		}
		eventBus.Wait(shutdownCtx)
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error shutting down metrics provider")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Shutdown completed")
	return nil
}
