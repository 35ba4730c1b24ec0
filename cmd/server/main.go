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

	"github.com/shasan419/qkart/internal/auth"
	c "github.com/shasan419/qkart/internal/cache"
	"github.com/shasan419/qkart/internal/catalog"
	"github.com/shasan419/qkart/internal/config"
	"github.com/shasan419/qkart/internal/events"
	qhttp "github.com/shasan419/qkart/internal/http"
	"github.com/shasan419/qkart/internal/repository"
	s "github.com/shasan419/qkart/internal/service"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// MongoDB holds carts, users, and the checkout outbox.
	mongoDB, err := repository.ConnectMongoDB(ctx, repository.MongoSettings{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDBName,
		MaxPoolSize: uint64(cfg.MongoMaxPoolSize),
		MinPoolSize: uint64(cfg.MongoMinPoolSize),
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	cartStore := repository.NewMongoCartStore(mongoDB)
	userStore := repository.NewMongoUserStore(mongoDB)

	// The product catalog is a read-only sqlite database.
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	if err := catalogRepo.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}
	log.Printf("Catalog ready at %s", cfg.CatalogDBPath)

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

	cartCache := c.NewRedisCache(redisClient)
	outbox := events.NewMongoOutbox(mongoDB)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenExpiry)
	cartService := s.NewCartService(cartStore, userStore, catalogRepo, cartCache, outbox)
	userService := s.NewUserService(userStore, tokens, cfg.DefaultWalletMoney)

	// Publish recorded checkouts to Kafka in the background.
	pollerCtx, stopPoller := context.WithCancel(ctx)
	poller := events.NewOutboxPoller(outbox, cfg.KafkaBrokers, cfg.KafkaTopic)
	go poller.Run(pollerCtx)

	router := qhttp.NewRouter(qhttp.RouterDeps{
		Carts:          cartService,
		Users:          userService,
		UserLoader:     userService,
		Catalog:        catalogRepo,
		Tokens:         tokens,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("QKart server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	stopPoller()
	poller.Close()
	if err := catalogRepo.Close(); err != nil {
		log.Printf("catalog close error: %v", err)
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Printf("mongo disconnect error: %v", err)
	}
	log.Println("Server stopped")
}
