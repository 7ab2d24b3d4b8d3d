package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dealcrest/dealcrest-backend/api/routes"
	"github.com/dealcrest/dealcrest-backend/internal/checkout"
	"github.com/dealcrest/dealcrest-backend/internal/escrow"
	"github.com/dealcrest/dealcrest-backend/internal/inventory"
	"github.com/dealcrest/dealcrest-backend/internal/ledger"
	"github.com/dealcrest/dealcrest-backend/internal/orders"
	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/products"
	"github.com/dealcrest/dealcrest-backend/internal/purchase"
	"github.com/dealcrest/dealcrest-backend/internal/transactions"
	"github.com/dealcrest/dealcrest-backend/internal/users"
	"github.com/dealcrest/dealcrest-backend/internal/webhooks"
	"github.com/dealcrest/dealcrest-backend/pkg/config"
	"github.com/dealcrest/dealcrest-backend/pkg/db"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
	"github.com/dealcrest/dealcrest-backend/pkg/metrics"
	"github.com/dealcrest/dealcrest-backend/pkg/migrate"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
	"github.com/dealcrest/dealcrest-backend/pkg/redis"
	"github.com/dealcrest/dealcrest-backend/pkg/stripe"
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	commerceMetrics := metrics.NewCommerceMetrics(registry)

	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	usersRepo := users.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	postsRepo := posts.NewRepository(gormDB)
	txnRepo := transactions.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)
	escrowRepo := escrow.NewRepository(gormDB)
	sessionRepo := checkout.NewRepository(gormDB)

	usersSvc, err := users.NewService(usersRepo)
	exitOnWiring(logg, "users service", err)
	productsSvc, err := products.NewService(productsRepo)
	exitOnWiring(logg, "products service", err)
	postsSvc, err := posts.NewService(postsRepo, dbClient, outboxSvc)
	exitOnWiring(logg, "posts service", err)
	txnSvc, err := transactions.NewService(txnRepo, productsRepo, postsRepo)
	exitOnWiring(logg, "transactions service", err)
	ordersSvc, err := orders.NewService(ordersRepo, postsRepo, txnRepo, ledgerRepo, inventory.NewReserver(), dbClient, outboxSvc)
	exitOnWiring(logg, "orders service", err)
	escrowSvc, err := escrow.NewService(escrowRepo, usersRepo, ledgerRepo, dbClient, outboxSvc, commerceMetrics)
	exitOnWiring(logg, "escrow service", err)
	checkoutSvc, err := checkout.NewService(sessionRepo, productsRepo, postsRepo, stripeClient, cfg.Payments)
	exitOnWiring(logg, "checkout service", err)
	purchaseSvc, err := purchase.NewService(txnSvc, txnRepo, ordersSvc, escrowSvc, checkoutSvc, dbClient, outboxSvc, commerceMetrics)
	exitOnWiring(logg, "purchase service", err)
	webhooksSvc, err := webhooks.NewService(
		sessionRepo,
		ordersSvc,
		ordersRepo,
		txnRepo,
		postsSvc,
		ledgerRepo,
		dbClient,
		outboxSvc,
		redisClient,
		cfg.Payments.CallbackIdemTTL,
		commerceMetrics,
		logg,
	)
	exitOnWiring(logg, "webhooks service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Registry: registry,
			Stripe:   stripeClient,
			Users:    usersSvc,
			Products: productsSvc,
			Posts:    postsSvc,
			Orders:   ordersSvc,
			Escrow:   escrowSvc,
			Purchase: purchaseSvc,
			Webhooks: webhooksSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnWiring(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
