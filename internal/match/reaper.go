package match

import (
	"context"
	"log"
	"time"

	"github.com/quizclash/backend/internal/config"
	"github.com/quizclash/backend/internal/store"
	"github.com/redis/go-redis/v9"
)

// StartReaper runs a background loop that removes waiting entries whose
// expiry has passed (user abandoned the browser mid-queue). Matched entries
// are never touched.
func StartReaper(ctx context.Context, st store.Store, rdb *redis.Client, cfg *config.Config) {
	interval := time.Duration(cfg.ReaperPollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[REAPER] Starting stale-entry reaper (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[REAPER] Worker stopped")
			return
		case <-ticker.C:
			reapExpired(ctx, st, rdb)
		}
	}
}

func reapExpired(ctx context.Context, st store.Store, rdb *redis.Client) {
	reaped, err := st.DeleteExpiredWaiting(ctx, time.Now())
	if err != nil {
		log.Printf("[REAPER] Failed to delete expired entries: %v", err)
		return
	}
	for category, n := range reaped {
		log.Printf("[REAPER] Removed %d expired entries (category=%s)", n, category)
		if rdb != nil {
			if err := rdb.HIncrBy(ctx, QueueGaugeKey, category, int64(-n)).Err(); err != nil {
				log.Printf("[REAPER] queue gauge update failed: %v", err)
			}
		}
	}
}
