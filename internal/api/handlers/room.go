package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizclash/backend/internal/store"
)

// GetRoom returns a room and its roster by shareable room code.
func GetRoom(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")

		room, err := st.GetRoomByCode(c.Request.Context(), code)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		players, err := st.ListRoomPlayers(c.Request.Context(), room.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"room":    room,
			"players": players,
		})
	}
}
