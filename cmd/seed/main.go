package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"tivrox-backend/internal/admins"
	"tivrox-backend/internal/auth"
	"tivrox-backend/internal/config"
	"tivrox-backend/internal/db"
)

// seed provisions indexes and the admin account, then exits.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	manager := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL, "tivrox-backend")
	service := admins.NewService(admins.NewRepository(cols.Admins), manager, logger)

	created, err := service.Seed(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("seed admin error for %s: %v", cfg.AdminUsername, err)
	}
	if created {
		logger.Info("admin user seeded", slog.String("username", cfg.AdminUsername))
	} else {
		logger.Info("admin user already exists", slog.String("username", cfg.AdminUsername))
	}
	log.Println("seed completed")
}
