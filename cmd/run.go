package cmd

import (
	"context"
	"fmt"
	"time"

	"wagerbook/affordability"
	"wagerbook/api"
	"wagerbook/config"
	"wagerbook/database"
	"wagerbook/escrowpay"
	"wagerbook/events"
	"wagerbook/metrics"
	"wagerbook/notifications"
	"wagerbook/repository"
	"wagerbook/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting wagerbook...")

	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	var provider service.PaymentProvider
	switch cfg.EscrowProvider {
	case "stripe":
		log.Info("Using Stripe payment provider")
		provider = escrowpay.NewStripeProvider(cfg.StripeAPIKey)
	default:
		log.Warn("Using fake payment provider, funds are not real")
		provider = escrowpay.NewFakeProvider()
	}

	var affordabilityProvider service.AffordabilityProvider
	if cfg.WalletServiceURL != "" {
		cache, err := affordability.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, affordability checks will be uncached")
			cache = nil
		}
		affordabilityProvider = affordability.NewClient(cfg.WalletServiceURL, cache, cfg.AffordabilityTTL)
	} else {
		log.Warn("WALLET_SERVICE_URL not set, affordability checks always pass")
		affordabilityProvider = affordability.AlwaysAfford{}
	}

	escrowService := service.NewEscrowService(uowFactory, provider)
	wagerService := service.NewWagerService(uowFactory, affordabilityProvider, escrowService)

	// Kafka notifier is optional; without brokers events stay in-process
	var notifier *notifications.Notifier
	if cfg.KafkaBrokers != "" {
		log.WithField("topic", cfg.KafkaTopic).Info("Publishing wager events to Kafka")
		notifier = notifications.NewNotifier(notifications.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		notifier.Register(eventBus)
	}

	reconciler := service.NewReconciler(uowFactory, escrowService, wagerService, cfg.ReconcileInterval, cfg.OrphanEscrowCutoff)
	stopReconciler := reconciler.Start(ctx)

	metricsServer := metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		return db.Ping(ctx)
	})

	apiServer := api.NewServer(cfg.ListenAddr, api.NewHandler(wagerService, escrowService))
	apiServer.Start()

	log.WithField("environment", cfg.Environment).Info("wagerbook is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	stopReconciler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP API")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics server")
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			log.WithError(err).Error("Error closing Kafka writer")
		}
	}

	db.Close()
	log.Info("Shutdown completed")
	return nil
}
