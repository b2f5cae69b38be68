package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"nexapicks-bot/internal/ledger"
	"nexapicks-bot/internal/notify"

	"github.com/redis/go-redis/v9"
)

// Checker reminds subscribers shortly before their subscription lapses.
// Redis keys keep each user from being reminded more than once per cycle.
type Checker struct {
	Ledger   *ledger.Ledger
	Redis    *redis.Client
	Notifier notify.Notifier
}

func NewChecker(ld *ledger.Ledger, rdb *redis.Client, notifier notify.Notifier) *Checker {
	return &Checker{
		Ledger:   ld,
		Redis:    rdb,
		Notifier: notifier,
	}
}

func (c *Checker) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	log.Println("Background subscription worker started")

	// Run once at start
	c.checkSubscriptions()

	for range ticker.C {
		c.checkSubscriptions()
	}
}

func (c *Checker) checkSubscriptions() {
	ctx := context.Background()
	now := time.Now()

	// Expiring in [23, 25] hours
	expiring := c.Ledger.ExpiringBetween(now.Add(23*time.Hour), now.Add(25*time.Hour))

	for _, userID := range expiring {
		key := fmt.Sprintf("notified_24h_%s", userID)
		exists, _ := c.Redis.Exists(ctx, key).Result()
		if exists != 0 {
			continue
		}

		err := c.Notifier.SendMessage(ctx, userID,
			"⚠️ Tu suscripción expira en 24 horas. Usa /pagar para renovarla y no perder el acceso al grupo VIP.")
		if err != nil {
			log.Printf("Failed to send 24h reminder to %s: %v", userID, err)
			continue
		}
		c.Redis.Set(ctx, key, "true", 48*time.Hour)
		log.Printf("Sent 24h reminder to user %s", userID)
	}
}
