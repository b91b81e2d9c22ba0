package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/cartflow/internal/cart"
	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/messaging"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "cart", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("cart", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	cartMetrics, err := telemetry.NewCartMetrics()
	if err != nil {
		logger.Error("failed to create cart metrics", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(os.Getenv("CATALOG_PATH"))
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	validationDelay, err := durationEnv("DISCOUNT_VALIDATION_DELAY", cart.DefaultValidationDelay)
	if err != nil {
		logger.Error("invalid DISCOUNT_VALIDATION_DELAY", "error", err)
		os.Exit(1)
	}

	sweepInterval, err := durationEnv("ABANDONED_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		logger.Error("invalid ABANDONED_SWEEP_INTERVAL", "error", err)
		os.Exit(1)
	}

	cacheSize := cart.DefaultRegistrySize
	if v := os.Getenv("CART_CACHE_SIZE"); v != "" {
		cacheSize, err = strconv.Atoi(v)
		if err != nil {
			logger.Error("invalid CART_CACHE_SIZE", "error", err)
			os.Exit(1)
		}
	}

	storeKind := os.Getenv("CART_STORE")
	if storeKind == "" {
		storeKind = "memory"
	}

	store, closeStore, err := openStore(ctx, storeKind)
	if err != nil {
		logger.Error("failed to open cart store", "error", err, "store", storeKind)
		os.Exit(1)
	}
	defer closeStore()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var placer cart.OrderPlacer
	if ordersServiceURL := os.Getenv("ORDERS_SERVICE_URL"); ordersServiceURL != "" {
		placer = cart.NewOrdersClient(ordersServiceURL, httpClient)
	} else {
		logger.Warn("ORDERS_SERVICE_URL not set, checkout disabled")
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()

	lister, canSweep := store.(cart.IdleLister)
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" && canSweep {
		producer := messaging.NewProducer(strings.Split(kafkaBrokers, ","), domain.TopicCartAbandoned)
		defer func() { _ = producer.Close() }()

		sweeper := cart.NewSweeper(lister, producer, sweepInterval, logger)
		go func() {
			logger.Info("starting abandoned cart sweeper", "interval", sweepInterval.String())
			_ = sweeper.Run(sweepCtx)
		}()
	}

	registry, err := cart.NewRegistry(store, cat, cacheSize,
		cart.WithValidationDelay(validationDelay),
		cart.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create cart registry", "error", err)
		os.Exit(1)
	}
	handler := cart.NewHandler(registry, placer, cartMetrics, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, telemetry.WithHTTPRoute)
	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "cart",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting cart service", "port", port, "store", storeKind)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, kind string) (cart.Store, func(), error) {
	switch kind {
	case "memory":
		return cart.NewMemoryStore(), func() {}, nil

	case "redis":
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return nil, nil, errors.New("REDIS_URL environment variable is required")
		}
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return cart.NewRedisStore(client), func() { _ = client.Close() }, nil

	case "postgres":
		postgresURL := os.Getenv("POSTGRES_URL")
		if postgresURL == "" {
			return nil, nil, errors.New("POSTGRES_URL environment variable is required")
		}
		db, err := telemetry.OpenDB(postgresURL, "carts")
		if err != nil {
			return nil, nil, err
		}
		return cart.NewSnapshotRepository(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown cart store %q", kind)
	}
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
