package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/quizclash/backend/internal/api/handlers"
	"github.com/quizclash/backend/internal/config"
	"github.com/quizclash/backend/internal/match"
	"github.com/quizclash/backend/internal/middleware"
	"github.com/quizclash/backend/internal/store"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, st store.Store, engine *match.Engine, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware())

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Matchmaking: single endpoint multiplexed by action
		v1.POST("/match", handlers.HandleMatch(engine))

		// Room state for the game UI
		v1.GET("/room/:code", handlers.GetRoom(st))

		// Live queue gauge
		v1.GET("/queue/status", handlers.GetQueueStatus(rdb))

		// Admin endpoints
		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/login", handlers.AdminLogin(db, cfg))
			adminGroup.GET("/overview", middleware.AdminAuth(cfg), handlers.AdminOverview(st))
		}
	}
}
