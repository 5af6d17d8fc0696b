package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/config"
	"github.com/sahaj-pos/core/internal/guard"
	"github.com/sahaj-pos/core/internal/router"
	"github.com/sahaj-pos/core/internal/service"
	"github.com/sahaj-pos/core/internal/store"
	"github.com/sahaj-pos/core/internal/store/memory"
	"github.com/sahaj-pos/core/internal/store/postgres"
	"github.com/sahaj-pos/core/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: could not load .env: %v", err)
	}
	cfg := config.Load()
	ctx := context.Background()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pg.Close()
		st = pg
		log.Println("Using postgres store")
	} else {
		st = memory.New()
		log.Println("Using in-memory store")
	}

	var g guard.Guard
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Unable to ping redis: %v", err)
		}
		g = guard.NewRedis(client, cfg.DedupeWindow)
		log.Println("Using redis dedupe guard")
	} else {
		g = guard.NewMemory(cfg.DedupeWindow)
		log.Println("Using in-memory dedupe guard")
	}

	hub := ws.NewHub()
	go hub.Run()

	tables := service.NewTableService(st, hub)
	lifecycle := service.NewLifecycleService(st, tables, hub, cfg.CancelGrace)
	tickets := service.NewTicketService(st, hub)
	splits := service.NewSplitService(st, lifecycle, hub)

	dir := auth.NewStaticDirectory(seedUsers())

	r := router.New(cfg, router.Deps{
		Store:     st,
		Directory: dir,
		Lifecycle: lifecycle,
		Tickets:   tickets,
		Tables:    tables,
		Splits:    splits,
		Guard:     g,
		Hub:       hub,
	})

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}

// seedUsers builds the static staff directory for dev and single-site
// deployments. SEED_PASSWORD overrides the shared default.
func seedUsers() []auth.User {
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	roles := map[string]string{
		"owner":   "OWNER",
		"manager": "MANAGER",
		"cashier": "CASHIER",
		"waiter":  "WAITER",
		"kitchen": "KITCHEN",
	}
	users := make([]auth.User, 0, len(roles))
	for username, role := range roles {
		users = append(users, auth.User{
			ID:           uuid.New(),
			Username:     username,
			PasswordHash: hash,
			Role:         role,
		})
	}
	return users
}
