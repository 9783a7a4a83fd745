package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tradelines-backend/api/routes"
	"github.com/angelmondragon/tradelines-backend/internal/activity"
	"github.com/angelmondragon/tradelines-backend/internal/auth"
	"github.com/angelmondragon/tradelines-backend/internal/brokers"
	"github.com/angelmondragon/tradelines-backend/internal/clients"
	checkoutsvc "github.com/angelmondragon/tradelines-backend/internal/checkout"
	"github.com/angelmondragon/tradelines-backend/internal/fulfillment"
	"github.com/angelmondragon/tradelines-backend/internal/orders"
	"github.com/angelmondragon/tradelines-backend/internal/payouts"
	"github.com/angelmondragon/tradelines-backend/internal/pricing"
	stripewebhook "github.com/angelmondragon/tradelines-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tradelines-backend/pkg/auth/session"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db"
	"github.com/angelmondragon/tradelines-backend/pkg/instance"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
	"github.com/angelmondragon/tradelines-backend/pkg/migrate"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/redis"
	"github.com/angelmondragon/tradelines-backend/pkg/stripe"
	"github.com/angelmondragon/tradelines-backend/pkg/tradelinesupply"
)

const (
	webhookClaimTTL = 24 * time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	payoutMetrics := metrics.NewPayoutMetrics(registry)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, webhookMetrics, payoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(cfg.Service.Kind),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	webhookMetrics *metrics.WebhookMetrics,
	payoutMetrics *metrics.PayoutMetrics,
) (routes.Dependencies, error) {
	ctx := context.Background()
	cache := redis.NewCache(redisClient)

	sessions, err := session.NewManager(redisClient, redis.SessionKey)
	if err != nil {
		return routes.Dependencies{}, err
	}

	activityService, err := activity.NewService(activity.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Dependencies{}, err
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	brokerService, err := brokers.NewService(brokers.ServiceParams{
		Repo:     brokers.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Activity: activityService,
		Outbox:   outboxService,
		Cache:    cache,
		Pricing:  cfg.Pricing,
		Password: cfg.Password,
		CacheTTL: cfg.Cache.BrokerTTL,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Brokers:        brokerService,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		Admin:          cfg.Admin,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	supplierClient, err := tradelinesupply.NewClient(cfg.Supplier)
	if err != nil {
		return routes.Dependencies{}, err
	}
	catalog, err := pricing.NewCatalog(supplierClient, cache, cfg.Cache.CatalogTTL, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	clientService, err := clients.NewService(clients.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	pricingService, err := pricing.NewService(catalog, brokerService, clientService, pricing.NewCalculator(cfg.Pricing))
	if err != nil {
		return routes.Dependencies{}, err
	}

	supplier, err := fulfillment.NewTradelineSupplier(supplierClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:           orders.NewRepository(dbClient.DB()),
		Tx:             dbClient,
		Quoter:         pricingService,
		Clients:        clientService,
		Supplier:       supplier,
		Sales:          brokerService,
		Activity:       activityService,
		Outbox:         outboxService,
		Cache:          cache,
		CacheTTL:       cfg.Cache.OrderTTL,
		PaymentTimeout: cfg.DB.PaymentTxTimeout,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Repo:     payouts.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Activity: activityService,
		Outbox:   outboxService,
		Metrics:  payoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps := routes.Dependencies{
		DB:             dbClient,
		Redis:          redisClient,
		Store:          redisClient,
		Sessions:       sessions,
		WebhookMetrics: webhookMetrics,
		Auth:           authService,
		Pricing:        pricingService,
		Orders:         orderService,
		Brokers:        brokerService,
		Clients:        clientService,
		Payouts:        payoutService,
	}

	// Card payments stay off until Stripe is configured; manual payment still works.
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "stripe disabled")
		return deps, nil
	}

	checkoutService, err := checkoutsvc.NewService(orderService, stripeClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	guard, err := stripewebhook.NewDeliveryGuard(redisClient, webhookClaimTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Logs:    stripewebhook.NewLogRepository(dbClient.DB()),
		Orders:  orderService,
		Guard:   guard,
		Metrics: webhookMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps.Checkout = checkoutService
	deps.StripeSigner = stripeClient
	deps.StripeWebhook = webhookService
	return deps, nil
}
