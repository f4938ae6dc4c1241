package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/db"
	"storefront-checkout/internal/events"
	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/httpserver"
	"storefront-checkout/internal/logging"
	"storefront-checkout/internal/metrics"
	cartrepo "storefront-checkout/internal/repository/cart"
	checkoutrepo "storefront-checkout/internal/repository/checkout"
	orderrepo "storefront-checkout/internal/repository/order"
	paymentrepo "storefront-checkout/internal/repository/payment"
	productrepo "storefront-checkout/internal/repository/product"
	tokenrepo "storefront-checkout/internal/repository/token"
	anonymoussvc "storefront-checkout/internal/service/anonymous"
	cartsvc "storefront-checkout/internal/service/cart"
	checkoutsvc "storefront-checkout/internal/service/checkout"
	ordersvc "storefront-checkout/internal/service/order"
	paymentsvc "storefront-checkout/internal/service/payment"
	productsvc "storefront-checkout/internal/service/product"
	validationsvc "storefront-checkout/internal/service/validation"
	"storefront-checkout/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New("api", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, "storefront-checkout", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.WithError(err).Fatal("init tracing")
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer dbpool.Close()

	m := metrics.New()

	cartStore, closeCarts := buildCartStore(cfg, dbpool, logger)
	defer closeCarts()
	cartService := cartsvc.New(cartStore, logger)

	productService := productsvc.New(productrepo.NewPostgres(dbpool, logger))
	validationService := validationsvc.New(productService, logger)

	paymentGateway := gateway.Instrument(buildGateway(cfg, logger), m)
	authorizations := paymentrepo.NewPostgres(dbpool)

	checkoutService := checkoutsvc.New(checkoutsvc.Deps{
		Sessions:       checkoutrepo.NewPostgres(dbpool),
		Authorizations: authorizations,
		Carts:          cartService,
		Validator:      validationService,
		Catalog:        productService,
		Gateway:        paymentGateway,
		Pricing: checkoutsvc.Pricing{
			Currency:             cfg.Currency,
			Shipping:             cfg.ShippingFlat,
			TaxRate:              cfg.TaxRate,
			AuthorizationTimeout: cfg.AuthorizationTimeout,
		},
		Logger:  logger,
		Metrics: m,
	})

	outbox := events.NewOutbox(dbpool)
	orderService := ordersvc.New(ordersvc.Deps{
		Authorizations: authorizations,
		Outcomes:       orderrepo.NewPostgres(dbpool),
		Carts:          cartService,
		Checkouts:      checkoutService,
		Gateway:        paymentGateway,
		Publisher:      outbox,
		Topic:          cfg.OrderEventsTopic,
		Logger:         logger,
		Metrics:        m,
	})

	paymentService := paymentsvc.New(paymentsvc.Deps{
		Authorizations: authorizations,
		Carts:          cartService,
		Gateway:        paymentGateway,
		Currency:       cfg.Currency,
		Timeout:        cfg.AuthorizationTimeout,
		Logger:         logger,
	})

	var sink events.Sink = events.LogSink{Logger: logger}
	if cfg.KafkaBrokers != "" {
		kafkaSink := events.NewKafkaSink(cfg.KafkaBrokers)
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	relay := events.NewRelay(outbox, sink, cfg.OutboxRelayPeriod, logger, m)
	var relayDone sync.WaitGroup
	relayDone.Add(1)
	go func() {
		defer relayDone.Done()
		relay.Run(ctx)
	}()

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		DB:           dbpool,
		CartSvc:      cartService,
		ValidateSvc:  validationService,
		PaymentSvc:   paymentService,
		CheckoutSvc:  checkoutService,
		OrderSvc:     orderService,
		AnonymousSvc: anonymoussvc.New(tokenrepo.NewPostgres(dbpool), cfg.CartTTL),
		Metrics:      m,
		CORSOrigins:  cfg.CORSOrigins,
	})
	if err != nil {
		logger.WithError(err).Fatal("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		logger.WithError(err).Error("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	} else {
		logger.Info("server stopped")
	}

	cancel()
	relayDone.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("flush traces")
	}
}

func buildCartStore(cfg config.Config, pool *pgxpool.Pool, logger logrus.FieldLogger) (cartrepo.Store, func()) {
	switch cfg.CartBackend {
	case "redis":
		client := cartrepo.NewRedisClient(cfg.RedisAddr)
		logger.WithField("addr", cfg.RedisAddr).Info("using redis cart store")
		return cartrepo.NewRedis(client, cfg.CartTTL), func() { _ = client.Close() }
	case "memory":
		logger.Warn("using in-memory cart store; carts are lost on restart")
		return cartrepo.NewMemory(), func() {}
	default:
		return cartrepo.NewPostgres(pool), func() {}
	}
}

func buildGateway(cfg config.Config, logger logrus.FieldLogger) gateway.Gateway {
	if cfg.PaymentProvider == "stripe" {
		if cfg.StripeSecretKey == "" {
			logger.Fatal("STRIPE_SECRET_KEY is required for the stripe provider")
		}
		return gateway.NewStripe(cfg.StripeSecretKey, logger)
	}
	logger.Warn("using sandbox payment gateway")
	return gateway.NewSandbox()
}
