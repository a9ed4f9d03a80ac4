package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/quizclash/backend/internal/admin"
	"github.com/quizclash/backend/internal/config"
	"github.com/quizclash/backend/internal/store"
)

const recentRoomsLimit = 20

// AdminLogin validates admin credentials and issues a signed session token
func AdminLogin(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		username := strings.TrimSpace(req.Username)
		acc, err := admin.ValidateCredentials(db, username, req.Password)
		if err != nil {
			log.Printf("[ADMIN] Login failed for username %s: %v", username, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		ttl := time.Duration(cfg.AdminSessionTTLHours) * time.Hour
		claims := jwt.MapClaims{
			"sub": acc.Username,
			"iat": time.Now().Unix(),
			"exp": time.Now().Add(ttl).Unix(),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			log.Printf("[ADMIN] Failed to sign token for %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
			return
		}

		log.Printf("[ADMIN] Login successful for username: %s", username)
		c.JSON(http.StatusOK, gin.H{
			"token":        signed,
			"display_name": acc.DisplayName,
			"expires_in":   int(ttl.Seconds()),
		})
	}
}

// AdminOverview returns matchmaking state for the ops dashboard: waiting
// entries per category, active room count and the most recent rooms.
func AdminOverview(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		waiting, err := st.CountWaitingByCategory(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		activeRooms, err := st.CountActiveRooms(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		recentRooms, err := st.ListRecentRooms(ctx, recentRoomsLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"waiting_by_category": waiting,
			"active_rooms":        activeRooms,
			"recent_rooms":        recentRooms,
		})
	}
}
