package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"levelbot/internal/cache"
	"levelbot/internal/config"
	"levelbot/internal/database"
	"levelbot/internal/discord"
	"levelbot/internal/progression"
	"levelbot/internal/status"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	repository := database.NewRepository(db)
	engine := progression.New(repository)

	// Optional Redis leaderboard cache
	lbCache, err := cache.NewLeaderboard(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer lbCache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Discord bot
	bot, err := discord.New(cfg, repository, engine, lbCache)
	if err != nil {
		log.Fatalf("Failed to create Discord bot: %v", err)
	}

	// Start bot
	if err := bot.Start(ctx); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	defer bot.Stop()

	// Liveness endpoint
	status.New(cfg.Host, cfg.Port).Start()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("Shutting down bot...")
}
