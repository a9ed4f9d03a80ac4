package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizclash/backend/internal/match"
)

// matchRequest is the envelope for the multiplexed matchmaking endpoint.
// The action string selects one of the typed operations below; each
// operation validates its own required fields.
type matchRequest struct {
	Action   string `json:"action"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Category string `json:"category"`
}

type findMatchRequest struct {
	UserID   string
	Username string
	Category string
}

type checkMatchRequest struct {
	UserID string
}

type cancelMatchRequest struct {
	UserID string
}

// HandleMatch serves the polling client contract: a single JSON endpoint
// multiplexed by action (test, find_match, check_match, cancel_match).
func HandleMatch(engine *match.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req matchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
		if req.Action == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
			return
		}

		switch req.Action {
		case "test":
			c.JSON(http.StatusOK, gin.H{
				"success":   true,
				"message":   "Matchmaking service is running",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		case "find_match":
			handleFindMatch(c, engine, findMatchRequest{
				UserID:   req.UserID,
				Username: req.Username,
				Category: req.Category,
			})
		case "check_match":
			handleCheckMatch(c, engine, checkMatchRequest{UserID: req.UserID})
		case "cancel_match":
			handleCancelMatch(c, engine, cancelMatchRequest{UserID: req.UserID})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		}
	}
}

func handleFindMatch(c *gin.Context, engine *match.Engine, req findMatchRequest) {
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	result, err := engine.FindMatch(c.Request.Context(), req.UserID, req.Username, req.Category)
	if err != nil {
		log.Printf("[API] find_match failed for user %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"success": true,
		"matched": result.Matched,
		"message": result.Message,
	}
	if result.Room != nil {
		resp["room"] = result.Room
		resp["matchDetails"] = gin.H{
			"opponent": result.Opponent,
			"players":  result.Players,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func handleCheckMatch(c *gin.Context, engine *match.Engine, req checkMatchRequest) {
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	result, err := engine.CheckMatch(c.Request.Context(), req.UserID)
	if err != nil {
		log.Printf("[API] check_match failed for user %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"success": true,
		"matched": result.Matched,
		"status":  result.Status,
	}
	if result.Room != nil {
		resp["room"] = result.Room
	}
	c.JSON(http.StatusOK, resp)
}

func handleCancelMatch(c *gin.Context, engine *match.Engine, req cancelMatchRequest) {
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if err := engine.CancelMatch(c.Request.Context(), req.UserID); err != nil {
		log.Printf("[API] cancel_match failed for user %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
