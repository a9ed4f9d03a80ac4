package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quizclash/backend/internal/match"
	"github.com/redis/go-redis/v9"
)

// GetQueueStatus returns the live per-category waiting gauge from Redis.
// Best-effort: an empty map is returned when Redis is unavailable.
func GetQueueStatus(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts := make(map[string]int64)
		if rdb != nil {
			gauge, err := rdb.HGetAll(c.Request.Context(), match.QueueGaugeKey).Result()
			if err == nil {
				for category, v := range gauge {
					n, _ := strconv.ParseInt(v, 10, 64)
					if n > 0 {
						counts[category] = n
					}
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"queue_by_category": counts,
		})
	}
}
