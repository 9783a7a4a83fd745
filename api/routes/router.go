package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tradelines-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/tradelines-backend/api/controllers/orders"
	payoutcontrollers "github.com/angelmondragon/tradelines-backend/api/controllers/payouts"
	webhookcontrollers "github.com/angelmondragon/tradelines-backend/api/controllers/webhooks"
	"github.com/angelmondragon/tradelines-backend/api/middleware"
	"github.com/angelmondragon/tradelines-backend/internal/auth"
	"github.com/angelmondragon/tradelines-backend/internal/brokers"
	"github.com/angelmondragon/tradelines-backend/internal/clients"
	checkoutsvc "github.com/angelmondragon/tradelines-backend/internal/checkout"
	"github.com/angelmondragon/tradelines-backend/internal/orders"
	"github.com/angelmondragon/tradelines-backend/internal/payouts"
	"github.com/angelmondragon/tradelines-backend/internal/pricing"
	"github.com/angelmondragon/tradelines-backend/pkg/auth/session"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/tradelines-backend/pkg/redis"
)

// Store is the Redis surface used by request middleware.
type Store interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Dependencies carries everything the HTTP surface is built from. Nil
// services still mount their routes and answer 500.
type Dependencies struct {
	DB             controllers.Pinger
	Redis          controllers.Pinger
	Store          Store
	Sessions       session.AccessSessionChecker
	Metrics        http.Handler
	WebhookMetrics *metrics.WebhookMetrics
	StripeSigner   webhookcontrollers.Signer

	Auth          auth.Service
	Pricing       pricing.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Brokers       brokers.Service
	Clients       clients.Service
	Payouts       payouts.Service
	StripeWebhook webhookcontrollers.StripeWebhookService
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	tokenPolicy := middleware.RateLimitPolicy{
		Name:   "token",
		Window: cfg.AuthRateLimit.TokenWindow,
		PerIP:  cfg.AuthRateLimit.TokenIPLimit,
		PerKey: cfg.AuthRateLimit.TokenKeyLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeSigner, deps.WebhookMetrics, logg))

	authMW := middleware.Auth(cfg.JWT, deps.Sessions, logg)

	r.Route("/api/v1/auth/token", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(tokenPolicy, deps.Store, logg)).Post("/", controllers.AuthIssueToken(deps.Auth, logg))
		r.With(authMW).Delete("/", controllers.AuthRevokeToken(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW)
		r.Use(middleware.Idempotency(deps.Store, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleBroker, enums.RoleAdmin))

			r.Get("/pricing/catalog", controllers.PricingCatalog(deps.Pricing, logg))
			r.Post("/pricing/quote", controllers.PricingQuote(deps.Pricing, logg))
			r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Post("/clients", controllers.OnboardClient(deps.Clients, logg))
			r.Get("/clients/{clientId}", controllers.GetClient(deps.Clients, logg))
			r.Put("/clients/{clientId}/excluded-banks", controllers.UpdateClientExcludedBanks(deps.Clients, logg))

			r.Post("/orders", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))

			r.Route("/brokers/{brokerId}", func(r chi.Router) {
				r.Get("/orders", ordercontrollers.BrokerOrders(deps.Orders, logg))
				r.Get("/payouts", payoutcontrollers.BrokerHistory(deps.Payouts, logg))
				r.Get("/commission/pending", payoutcontrollers.PendingCommission(deps.Payouts, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

			r.Get("/orders", ordercontrollers.AdminList(deps.Orders, logg))
			r.Post("/orders/{orderId}/manual-payment", ordercontrollers.RecordManualPayment(deps.Orders, logg))

			r.Post("/brokers", controllers.AdminOnboardBroker(deps.Brokers, logg))
			r.Get("/brokers/{brokerId}", controllers.AdminGetBroker(deps.Brokers, logg))
			r.Patch("/brokers/{brokerId}", controllers.AdminUpdateBroker(deps.Brokers, logg))
			r.Post("/brokers/{brokerId}/approve", controllers.AdminApproveBroker(deps.Brokers, logg))

			r.Get("/payouts/pending", payoutcontrollers.Pending(deps.Payouts, logg))
			r.Post("/payouts", payoutcontrollers.Create(deps.Payouts, logg))
			r.Post("/payouts/{payoutId}/process", payoutcontrollers.Process(deps.Payouts, logg))
			r.Get("/payouts/{payoutId}/report", payoutcontrollers.Report(deps.Payouts, logg))
		})
	})

	return r
}
