package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/craftdeck/craftdeck-backend/config"
	"github.com/craftdeck/craftdeck-backend/internal/auth"
	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	eventsrepo "github.com/craftdeck/craftdeck-backend/internal/events/repository"
	graphsrepo "github.com/craftdeck/craftdeck-backend/internal/graphs/repository"
	relay "github.com/craftdeck/craftdeck-backend/internal/relay/service"
	"github.com/craftdeck/craftdeck-backend/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	sqlDB, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("failed to open postgres: %v", err)
	}
	defer sqlDB.Close()

	var store graphsrepo.Store
	if cfg.Firebase.CredentialsPath != "" {
		_, fsClient, err := auth.InitializeFirebase(&cfg.Firebase)
		if err != nil {
			log.Fatalf("failed to initialize firebase: %v", err)
		}
		defer fsClient.Close()
		store = graphsrepo.NewFirestoreRepository(fsClient)
	} else {
		log.Println("FIREBASE_CREDENTIALS_PATH not set; using in-memory graph store")
		store = graphsrepo.NewMemStore()
	}

	svc := relay.New(
		store,
		broker.New(redisClient),
		eventsrepo.NewLogRepository(pool),
		eventsrepo.NewUploadRepository(sqlDB),
		cfg.Events.RelayRateLimit,
	)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay stopped: %v", err)
	}
	log.Println("relay shut down")
}
