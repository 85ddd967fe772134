package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/orderflow-checkout/internal/config"
	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/messaging"
	"github.com/joao-fontenele/orderflow-checkout/internal/telemetry"
	"github.com/joao-fontenele/orderflow-checkout/internal/worker"
)

const serviceName = "orderflow-worker"

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateWorker()
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

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, domain.TopicOrderStatus, "notification-worker", logger)
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   cfg.EmailTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	notificationHandler := worker.NewNotificationHandler(cfg.EmailServiceURL, httpClient, logger)

	logger.Info("starting notification worker", "brokers", cfg.Kafka.Brokers, "topic", domain.TopicOrderStatus)

	if err := consumer.Consume(ctx, notificationHandler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
