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

	"github.com/angelmondragon/crm-backend/api/routes"
	"github.com/angelmondragon/crm-backend/internal/entitlements"
	"github.com/angelmondragon/crm-backend/internal/gateway"
	"github.com/angelmondragon/crm-backend/internal/leads"
	"github.com/angelmondragon/crm-backend/internal/plans"
	"github.com/angelmondragon/crm-backend/internal/subscriptions"
	"github.com/angelmondragon/crm-backend/internal/teams"
	"github.com/angelmondragon/crm-backend/internal/users"
	stripewebhook "github.com/angelmondragon/crm-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	"github.com/angelmondragon/crm-backend/pkg/instance"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	"github.com/angelmondragon/crm-backend/pkg/migrate"
	"github.com/angelmondragon/crm-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/crm-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	billingMetrics := metrics.NewBillingMetrics(registry)

	catalog, err := plans.NewCatalog(plans.CatalogParams{
		Repo:      plans.NewRepository(dbClient.DB()),
		PriceIDs:  priceIDs(cfg.Stripe),
		CacheSize: cfg.Billing.PlanCacheSize,
		CacheTTL:  cfg.Billing.PlanCacheTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan catalog", err)
		os.Exit(1)
	}

	leadRepo := leads.NewRepository(dbClient.DB())
	teamService, err := teams.NewService(teams.ServiceParams{
		Repo:  teams.NewRepository(dbClient.DB()),
		Users: users.NewRepository(dbClient.DB()),
		Leads: leadRepo,
		Plans: catalog,
		Tx:    dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create team service", err)
		os.Exit(1)
	}

	entitlementService, err := entitlements.NewService(teamService, catalog, leadRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}

	stripeGateway, err := gateway.NewStripeGateway(gateway.StripeParams{
		Client:  stripeClient,
		Prices:  catalog,
		Metrics: billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing gateway", err)
		os.Exit(1)
	}

	reconciler, err := subscriptions.NewReconciler(subscriptions.ReconcilerParams{
		Teams:      teamService,
		Plans:      catalog,
		Gateway:    stripeGateway,
		Sessions:   subscriptions.NewSessionRepository(dbClient.DB()),
		SuccessURL: cfg.Frontend.SuccessURL,
		CancelURL:  cfg.Frontend.CancelURL,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription reconciler", err)
		os.Exit(1)
	}

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Billing.WebhookIdempotencyTTL, "")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Teams:          teamService,
			Plans:          catalog,
			Entitlements:   entitlementService,
			Reconciler:     reconciler,
			Gateway:        stripeGateway,
			WebhookGuard:   guard,
			BillingMetrics: billingMetrics,
			Gatherer:       registry,
			PublishableKey: stripeClient.PublishableKey(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func priceIDs(cfg config.StripeConfig) map[enums.PlanKey]string {
	return map[enums.PlanKey]string{
		enums.PlanKeySmallTeam: cfg.SmallTeamPriceID,
		enums.PlanKeyBigTeam:   cfg.BigTeamPriceID,
	}
}
