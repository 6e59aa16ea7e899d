package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/craftdeck/craftdeck-backend/config"
	"github.com/craftdeck/craftdeck-backend/internal/auth"
	"github.com/craftdeck/craftdeck-backend/internal/bootstrap"
	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	eventsrepo "github.com/craftdeck/craftdeck-backend/internal/events/repository"
	graphsrepo "github.com/craftdeck/craftdeck-backend/internal/graphs/repository"
	cronjob "github.com/craftdeck/craftdeck-backend/internal/maintenance/cron"
	"github.com/craftdeck/craftdeck-backend/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

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

	deps := bootstrap.RouterDeps{
		ServiceName: "craftdeck-api",
		Version:     cfg.App.Version,
		DB:          pool,
		Redis:       redisClient,
		Broker:      broker.New(redisClient),
	}

	if cfg.Firebase.CredentialsPath != "" {
		authClient, fsClient, err := auth.InitializeFirebase(&cfg.Firebase)
		if err != nil {
			log.Fatalf("failed to initialize firebase: %v", err)
		}
		defer fsClient.Close()
		deps.AuthClient = authClient
		deps.Store = graphsrepo.NewFirestoreRepository(fsClient)
	} else {
		log.Println("FIREBASE_CREDENTIALS_PATH not set; auth disabled, using in-memory graph store")
		deps.Store = graphsrepo.NewMemStore()
	}

	sweeper := cronjob.NewSweeper(eventsrepo.NewLogRepository(pool), cfg.Events.Retention)
	sweeper.Start()

	r := bootstrap.BuildRouter(deps)
	log.Printf("craftdeck-api listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
