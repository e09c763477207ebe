package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/crm-backend/api/controllers"
	billingcontrollers "github.com/angelmondragon/crm-backend/api/controllers/billing"
	teamcontrollers "github.com/angelmondragon/crm-backend/api/controllers/teams"
	webhookcontrollers "github.com/angelmondragon/crm-backend/api/controllers/webhooks"
	"github.com/angelmondragon/crm-backend/api/middleware"
	"github.com/angelmondragon/crm-backend/internal/entitlements"
	"github.com/angelmondragon/crm-backend/internal/gateway"
	"github.com/angelmondragon/crm-backend/internal/plans"
	"github.com/angelmondragon/crm-backend/internal/subscriptions"
	"github.com/angelmondragon/crm-backend/internal/teams"
	stripewebhook "github.com/angelmondragon/crm-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/crm-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          *pkgredis.Client
	Teams          teams.Service
	Plans          *plans.Catalog
	Entitlements   *entitlements.Service
	Reconciler     *subscriptions.Reconciler
	Gateway        gateway.Gateway
	WebhookGuard   *stripewebhook.IdempotencyGuard
	BillingMetrics *metrics.BillingMetrics
	Gatherer       prometheus.Gatherer
	PublishableKey string
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Stripe signs the webhook; it carries no bearer token.
	r.Post("/api/v1/stripe/webhook/", webhookcontrollers.StripeWebhook(webhookcontrollers.StripeWebhookParams{
		Verifier: deps.Gateway,
		Handler:  deps.Reconciler,
		Guard:    deps.WebhookGuard,
		Metrics:  deps.BillingMetrics,
		Logger:   logg,
	}))

	var idemStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		idemStore = deps.Redis
	}
	idempotent := middleware.Idempotent(idemStore, middleware.DefaultIdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(idempotent).Post("/team/", teamcontrollers.CreateTeam(deps.Teams, logg))
		r.Get("/team/plans/", teamcontrollers.ListPlans(deps.Plans, logg))
		r.Get("/stripe/get-stripe-pub-key/", billingcontrollers.PublishableKey(deps.PublishableKey, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.TeamContext(deps.Teams, logg))

			r.Get("/team/get-my-team/", teamcontrollers.GetMyTeam(deps.Teams, logg))
			r.With(idempotent).Post("/team/add-member/", teamcontrollers.AddMember(deps.Teams, logg))
			r.Post("/team/upgrade-plan/", teamcontrollers.UpgradePlan(deps.Teams, deps.Reconciler, logg))
			r.Get("/team/entitlements/", teamcontrollers.CheckEntitlement(deps.Entitlements, logg))

			r.With(idempotent).Post("/stripe/create-checkout-session/", billingcontrollers.CreateCheckoutSession(deps.Reconciler, logg))
			r.Post("/stripe/check_session/", billingcontrollers.CheckSession(deps.Teams, deps.Reconciler, logg))
			r.Post("/stripe/cancel_plan/", billingcontrollers.CancelPlan(deps.Teams, deps.Reconciler, logg))
		})
	})

	return r
}
