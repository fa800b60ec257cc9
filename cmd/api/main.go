package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clipgate/clipgate-backend/api/routes"
	"github.com/clipgate/clipgate-backend/internal/catalog"
	checkoutsvc "github.com/clipgate/clipgate-backend/internal/checkout"
	discountsvc "github.com/clipgate/clipgate-backend/internal/discounts"
	"github.com/clipgate/clipgate-backend/internal/notify"
	postcheckoutsvc "github.com/clipgate/clipgate-backend/internal/postcheckout"
	"github.com/clipgate/clipgate-backend/internal/pricing"
	purchasesvc "github.com/clipgate/clipgate-backend/internal/purchases"
	stripewebhook "github.com/clipgate/clipgate-backend/internal/webhooks/stripe"
	"github.com/clipgate/clipgate-backend/pkg/config"
	"github.com/clipgate/clipgate-backend/pkg/db"
	"github.com/clipgate/clipgate-backend/pkg/logger"
	"github.com/clipgate/clipgate-backend/pkg/metrics"
	"github.com/clipgate/clipgate-backend/pkg/migrate"
	"github.com/clipgate/clipgate-backend/pkg/profanity"
	"github.com/clipgate/clipgate-backend/pkg/redis"
	"github.com/clipgate/clipgate-backend/pkg/stripe"
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	catalogClient, err := catalog.NewClient(cfg.Catalog)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap catalog client", err)
		os.Exit(1)
	}

	payments := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	purchaseRepo := purchasesvc.NewRepository(dbClient.DB())
	purchaseService, err := purchasesvc.NewService(purchaseRepo, cfg.Access.TokenTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}

	discountRepo := discountsvc.NewRepository(dbClient.DB())
	discountService, err := discountsvc.NewService(discountRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create discount service", err)
		os.Exit(1)
	}

	pricingService, err := pricing.NewService(discountRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		purchaseRepo,
		pricingService,
		catalogClient,
		stripeClient,
		cfg.Sites,
		logg,
		payments,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	postCheckoutService, err := postcheckoutsvc.NewService(
		stripeClient,
		purchaseRepo,
		purchaseService,
		cfg.Sites,
		logg,
		payments,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create post-checkout service", err)
		os.Exit(1)
	}

	bot, err := notify.NewBot(cfg.Telegram)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap telegram bot", err)
		os.Exit(1)
	}
	notifyService, err := notify.NewService(notify.ServiceParams{
		Bot:      bot,
		Config:   cfg.Telegram,
		Counter:  redisClient,
		Cleaner:  profanity.New(cfg.Profanity.ExtraWords),
		Logger:   logg,
		Payments: payments,
		IsTest:   cfg.Stripe.Environment() != "live",
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:   purchaseService,
		Notifier: notifyService,
		Logger:   logg,
		Payments: payments,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.EventIdempotencyTTL, "stripe")
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
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			postCheckoutService,
			purchaseService,
			discountService,
			stripeClient,
			webhookService,
			webhookGuard,
			payments,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
