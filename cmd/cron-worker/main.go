package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/crm-backend/internal/cron"
	"github.com/angelmondragon/crm-backend/internal/gateway"
	"github.com/angelmondragon/crm-backend/internal/leads"
	"github.com/angelmondragon/crm-backend/internal/plans"
	"github.com/angelmondragon/crm-backend/internal/subscriptions"
	"github.com/angelmondragon/crm-backend/internal/teams"
	"github.com/angelmondragon/crm-backend/internal/users"
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

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	catalog, err := plans.NewCatalog(plans.CatalogParams{
		Repo: plans.NewRepository(dbClient.DB()),
		PriceIDs: map[enums.PlanKey]string{
			enums.PlanKeySmallTeam: cfg.Stripe.SmallTeamPriceID,
			enums.PlanKeyBigTeam:   cfg.Stripe.BigTeamPriceID,
		},
		CacheSize: cfg.Billing.PlanCacheSize,
		CacheTTL:  cfg.Billing.PlanCacheTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan catalog", err)
		os.Exit(1)
	}

	teamService, err := teams.NewService(teams.ServiceParams{
		Repo:  teams.NewRepository(dbClient.DB()),
		Users: users.NewRepository(dbClient.DB()),
		Leads: leads.NewRepository(dbClient.DB()),
		Plans: catalog,
		Tx:    dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create team service", err)
		os.Exit(1)
	}

	stripeGateway, err := gateway.NewStripeGateway(gateway.StripeParams{
		Client:  stripeClient,
		Prices:  catalog,
		Metrics: metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
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

	retryJob, err := cron.NewRemoteCancelRetryJob(cron.RemoteCancelRetryJobParams{
		Logger:     logg,
		Teams:      teamService,
		Reconciler: reconciler,
		Limit:      cfg.Cron.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create remote cancel retry job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewPlanExpiryJob(cron.PlanExpiryJobParams{
		Logger:     logg,
		Teams:      teamService,
		Reconciler: reconciler,
		Limit:      cfg.Cron.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockName, cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(retryJob, expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	if *once {
		ran, err := service.RunOnce(ctx)
		if err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "ran", ran), "cron cycle finished")
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
