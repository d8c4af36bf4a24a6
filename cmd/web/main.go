package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"artisan-market/api/handlers"
	"artisan-market/internal/config"
	"artisan-market/internal/events"
	"artisan-market/internal/logging"
	"artisan-market/internal/services"
	"artisan-market/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.New(ctx, cfg.Telemetry())
	if err != nil {
		return err
	}
	otel.SetMeterProvider(tp.MeterProvider())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("flushing metrics", zap.Error(err))
		}
	}()

	metrics, err := services.NewMetrics(nil)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	promos, err := cfg.PromoTable()
	if err != nil {
		return err
	}

	publisher, closePublisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()
	if kp, ok := publisher.(*events.KafkaPublisher); ok {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		if err := kp.Ping(pingCtx); err != nil {
			logger.Warn("kafka brokers unreachable", zap.Error(err))
		}
		cancel()
	}

	// Initialize services
	productService := services.NewProductService()
	productService.InitSampleData()

	cartService := services.NewCartService(store, logger,
		services.WithPolicy(cfg.Policy()),
		services.WithPersistPromo(cfg.PersistPromo),
		services.WithStoreTimeout(cfg.StoreTimeout),
		services.WithMetrics(metrics),
	)
	orderService := services.NewOrderService(productService, cartService, publisher,
		services.WithOrderTopic(cfg.KafkaOrderTopic),
		services.WithOrderLogger(logger),
		services.WithOrderMetrics(metrics),
	)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(productService, cartService, tp)
	cartHandler := handlers.NewCartHandler(cartService, productService, promos)
	orderHandler := handlers.NewOrderHandler(orderService)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.SetupRouter(productHandler, cartHandler, orderHandler, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(router, "artisan-market"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreBackend),
			zap.String("metrics_exporter", cfg.MetricsExporter),
			zap.Strings("promo_codes", promos.Codes()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	logger.Info("server shutdown complete")
	return nil
}

func openPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, func() {}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
