// Package store provides durable queue and room storage for matchmaking.
// CreateMatch carries the conditional pairing update that serializes all
// concurrent matching attempts, so every implementation must apply it
// atomically: all of its writes land or none do.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/quizclash/backend/internal/models"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateEntry indicates the user already has an active queue entry.
	ErrDuplicateEntry = errors.New("store: duplicate queue entry")

	// ErrPairConflict indicates the conditional pairing update touched fewer
	// than two rows: another matcher claimed one of the entries first.
	ErrPairConflict = errors.New("store: pairing conflict")
)

// Store is the storage surface the matching engine runs against.
type Store interface {
	GetEntryByUser(ctx context.Context, userID string) (*models.QueueEntry, error)
	CreateEntry(ctx context.Context, entry *models.QueueEntry) error
	DeleteEntry(ctx context.Context, userID string) (bool, error)
	FindWaitingCandidate(ctx context.Context, category, excludeUserID string) (*models.QueueEntry, error)

	// CreateMatch atomically creates the room, flips both queue entries from
	// waiting to matched, seeds the two roster rows and starts the room.
	// It returns ErrPairConflict, changing nothing, if either entry is no
	// longer waiting by the time the update runs.
	CreateMatch(ctx context.Context, room *models.Room, caller, candidate *models.QueueEntry) error

	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	ListRoomPlayers(ctx context.Context, roomID string) ([]models.RoomPlayer, error)

	CountWaitingByCategory(ctx context.Context) (map[string]int, error)
	CountActiveRooms(ctx context.Context) (int, error)
	ListRecentRooms(ctx context.Context, limit int) ([]models.Room, error)

	// DeleteExpiredWaiting removes waiting entries whose expires_at has
	// passed and reports how many were removed per category.
	DeleteExpiredWaiting(ctx context.Context, now time.Time) (map[string]int, error)
}
