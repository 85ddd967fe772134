package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/orderflow-checkout/internal/cart"
	"github.com/joao-fontenele/orderflow-checkout/internal/config"
	"github.com/joao-fontenele/orderflow-checkout/internal/dedupe"
	"github.com/joao-fontenele/orderflow-checkout/internal/inventory"
	"github.com/joao-fontenele/orderflow-checkout/internal/messaging"
	"github.com/joao-fontenele/orderflow-checkout/internal/orders"
	"github.com/joao-fontenele/orderflow-checkout/internal/payment"
	"github.com/joao-fontenele/orderflow-checkout/internal/telemetry"
)

const serviceName = "orderflow-api"

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateAPI()
	}
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.ServiceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to init tracer provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to init meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, closeDB, err := telemetry.OpenDB("postgres", cfg.Postgres.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeDB() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	gatewayClient := &http.Client{
		Timeout:   cfg.Midtrans.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	gateway := payment.NewSnapClient(cfg.Midtrans.BaseURL, cfg.Midtrans.ServerKey, gatewayClient)

	opts := []orders.Option{orders.WithGatewayTimeout(cfg.Midtrans.Timeout)}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers)
		defer func() { _ = producer.Close() }()
		opts = append(opts, orders.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisOpts.ReadTimeout = 500 * time.Millisecond
		redisOpts.WriteTimeout = 500 * time.Millisecond
		store := dedupe.NewStore(redis.NewClient(redisOpts), dedupe.DefaultTTL)
		defer func() { _ = store.Close() }()
		opts = append(opts, orders.WithDeduper(store))
	}

	service, err := orders.NewService(orders.NewOrderRepository(db), gateway, logger, opts...)
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}

	if cfg.Expiry.SweepInterval > 0 {
		sweeper := orders.NewSweeper(logger, service, cfg.Expiry.SweepInterval)
		go func() {
			if err := sweeper.Run(ctx); err != nil {
				logger.Error("expiry sweeper stopped", "error", err)
			}
		}()
	}

	router := newRouter(routerDeps{
		orders:    orders.NewHandler(service, cfg.Midtrans.ClientKey, logger),
		cart:      cart.NewHandler(cart.NewCartRepository(db), logger),
		inventory: inventory.NewHandler(inventory.NewInventoryRepository(db), logger),
		metrics:   metricsHandler,
		health:    db.PingContext,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting api", "port", cfg.Port, "sweep_interval", cfg.Expiry.SweepInterval.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
