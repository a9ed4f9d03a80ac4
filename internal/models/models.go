package models

import (
	"database/sql"
	"time"
)

// Queue entry statuses
const (
	QueueStatusWaiting = "waiting"
	QueueStatusMatched = "matched"
)

// Room statuses
const (
	RoomStatusWaiting  = "waiting"
	RoomStatusStarted  = "started"
	RoomStatusFinished = "finished"
)

// QueueEntry represents a user waiting for (or paired into) a match.
// At most one active entry exists per user; repeated join calls reuse it.
type QueueEntry struct {
	ID        int            `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Username  string         `db:"username" json:"username"`
	Category  string         `db:"category" json:"category"`
	Status    string         `db:"status" json:"status"`
	RoomID    sql.NullString `db:"room_id" json:"room_id,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
	ExpiresAt time.Time      `db:"expires_at" json:"expires_at"`
}

// Room represents one paired 1v1 quiz session.
type Room struct {
	ID                   string       `db:"id" json:"id"`
	RoomCode             string       `db:"room_code" json:"room_code"`
	Status               string       `db:"status" json:"status"`
	Category             string       `db:"category" json:"category"`
	MaxPlayers           int          `db:"max_players" json:"max_players"`
	CurrentQuestionIndex int          `db:"current_question_index" json:"current_question_index"`
	QuestionStartTime    sql.NullTime `db:"question_start_time" json:"question_start_time,omitempty"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
}

// RoomPlayer is a per-room score-tracking row; exactly two per room.
type RoomPlayer struct {
	ID       int    `db:"id" json:"id"`
	RoomID   string `db:"room_id" json:"room_id"`
	UserID   string `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
	Score    int    `db:"score" json:"score"`
	Streak   int    `db:"streak" json:"streak"`
	XPEarned int    `db:"xp_earned" json:"xp_earned"`
}

// AdminAccount is an operator login for the admin overview endpoints.
type AdminAccount struct {
	Username     string    `db:"username" json:"username"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
