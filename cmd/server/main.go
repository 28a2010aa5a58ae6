package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avask/shopflow/internal/cache"
	"github.com/avask/shopflow/internal/cart"
	"github.com/avask/shopflow/internal/checkout"
	"github.com/avask/shopflow/internal/cleaner"
	"github.com/avask/shopflow/internal/config"
	"github.com/avask/shopflow/internal/delivery"
	"github.com/avask/shopflow/internal/httpapi"
	"github.com/avask/shopflow/internal/orderstore"
	"github.com/avask/shopflow/internal/payment"
	"github.com/avask/shopflow/internal/pricing"
	"github.com/avask/shopflow/internal/publisher"
	"github.com/avask/shopflow/internal/reaper"
	"github.com/avask/shopflow/internal/reconcile"
	"github.com/avask/shopflow/internal/repository"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cart storage
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	cartRepo := repository.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	// Order storage
	orderRepo, err := orderstore.NewRepository(&orderstore.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDBName,
		MigrationsDirPath: cfg.MigrationsDir,
	})
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(&orderstore.Credentials{MigrationsDirPath: cfg.MigrationsDir}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Connected to postgres")

	// Caches
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	snapshotCache := cache.NewSnapshotRedisCache(redisClient)
	sessionCache := cache.NewSessionRedisCache(redisClient)
	calendarCache := cache.NewCalendarRedisCache(redisClient)

	// Core services
	catalogStore := pricing.NewHTTPCatalogStore(cfg.CatalogBaseURL)
	resolver := pricing.NewResolver(catalogStore, pricing.NewCatalogCache(pricing.DefaultCatalogTTL))
	cartService := cart.NewCartService(cartRepo, snapshotCache, resolver)
	deliveryService := delivery.NewService(delivery.DefaultZones(), calendarCache)
	provider := payment.NewStripeProvider(cfg.StripeAPIKey, cfg.StripeTimeout)
	broker := checkout.NewBroker(sessionCache, orderRepo, provider)
	reconciler := reconcile.NewReconciler(orderRepo, sessionCache)

	// Background workers
	sweeper := reaper.NewReaper(cartRepo, orderRepo, snapshotCache)
	go sweeper.Run(ctx)

	outbox := publisher.NewOutboxPoller(orderRepo, cfg.KafkaBrokers...)
	defer outbox.Close()
	go outbox.Run(ctx)

	cleanup := cleaner.NewConsumer(cartRepo, snapshotCache, cfg.KafkaBrokers...)
	defer cleanup.Close()
	go cleanup.Run(ctx)

	// HTTP surface
	router := httpapi.NewRouter(
		httpapi.NewCartHandler(cartService),
		httpapi.NewDeliveryHandler(deliveryService, delivery.DefaultZones()),
		httpapi.NewCheckoutHandler(cartService, broker, reconciler),
		httpapi.NewOrdersHandler(orderRepo),
		cfg.RequestTimeout,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: otelhttp.NewHandler(router, "shopflow"),
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
		os.Exit(1)
	}
}
