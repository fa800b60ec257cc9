package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipgate/clipgate-backend/api/controllers"
	webhookcontrollers "github.com/clipgate/clipgate-backend/api/controllers/webhooks"
	"github.com/clipgate/clipgate-backend/api/middleware"
	checkoutsvc "github.com/clipgate/clipgate-backend/internal/checkout"
	discountsvc "github.com/clipgate/clipgate-backend/internal/discounts"
	postcheckoutsvc "github.com/clipgate/clipgate-backend/internal/postcheckout"
	purchasesvc "github.com/clipgate/clipgate-backend/internal/purchases"
	stripewebhook "github.com/clipgate/clipgate-backend/internal/webhooks/stripe"
	"github.com/clipgate/clipgate-backend/pkg/config"
	"github.com/clipgate/clipgate-backend/pkg/db"
	"github.com/clipgate/clipgate-backend/pkg/logger"
	"github.com/clipgate/clipgate-backend/pkg/metrics"
	"github.com/clipgate/clipgate-backend/pkg/redis"
	"github.com/clipgate/clipgate-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	checkoutService checkoutsvc.Service,
	postCheckoutService postcheckoutsvc.Service,
	purchaseService purchasesvc.Service,
	discountService discountsvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	payments *metrics.PaymentMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Buyer-facing surface. The storefronts call checkout directly and
	// Stripe drives the other two.
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Get("/post-checkout", controllers.PostCheckout(postCheckoutService, logg))
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, payments, logg))
		})
	})

	// Trusted server-to-server surface for the sites and the Telegram bot.
	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.InternalToken(cfg.Internal.Token, logg))

		r.Post("/checkout/telegram", controllers.CheckoutTelegram(checkoutService, logg))
		r.Post("/check-purchase", controllers.CheckPurchase(purchaseService, logg))
		r.Get("/purchases", controllers.ListPurchases(purchaseService, logg))

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", controllers.DiscountList(discountService, logg))
			r.Post("/", controllers.DiscountCreate(discountService, logg))
			r.Get("/active", controllers.DiscountActive(discountService, logg))
			r.Get("/{discountId}", controllers.DiscountGet(discountService, logg))
			r.Put("/{discountId}", controllers.DiscountUpdate(discountService, logg))
			r.Delete("/{discountId}", controllers.DiscountDelete(discountService, logg))
		})
	})

	return r
}
