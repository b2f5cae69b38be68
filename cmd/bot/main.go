package main

import (
	"context"
	"fmt"
	"log"

	"nexapicks-bot/internal/bot"
	"nexapicks-bot/internal/config"
	"nexapicks-bot/internal/ledger"
	"nexapicks-bot/internal/notify"
	"nexapicks-bot/internal/store"
	"nexapicks-bot/internal/worker"

	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()
	ctx := context.Background()

	// Connect to Redis (reminder dedup, and the snapshot when configured)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPass,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}
	log.Println("Connected to Redis")

	st, err := openStore(cfg, rdb)
	if err != nil {
		log.Fatalf("Could not open store: %v", err)
	}

	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		log.Fatalf("Could not create bot: %v", err)
	}

	notifier := notify.NewTelegram(tgBot, cfg.GroupID)

	ld, err := ledger.New(ctx, st, notifier)
	if err != nil {
		// A corrupt snapshot lands here; never start over an empty state.
		log.Fatalf("Could not load snapshot: %v", err)
	}

	checker := worker.NewChecker(ld, rdb, notifier)
	go checker.Start()

	log.Println("Bot started")
	bot.NewBot(tgBot, ld, st, notifier, cfg.AdminID).Start()
}

func openStore(cfg *config.Config, rdb *redis.Client) (store.Store, error) {
	switch cfg.StoreDriver {
	case "file":
		return store.NewFileStore(cfg.DBFile), nil
	case "redis":
		return store.NewRedisStore(rdb), nil
	case "postgres":
		return store.NewPostgresStore(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
