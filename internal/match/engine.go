package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/quizclash/backend/internal/config"
	"github.com/quizclash/backend/internal/models"
	"github.com/quizclash/backend/internal/store"
	"github.com/redis/go-redis/v9"
)

// QueueGaugeKey is the Redis hash holding the best-effort per-category
// waiting gauge. The database remains the source of truth.
const QueueGaugeKey = "queue:waiting"

// Statuses reported to polling clients.
const (
	StatusWaiting  = "waiting"
	StatusMatched  = "matched"
	StatusNotFound = "not_found"
)

// Result is the outcome of a matchmaking operation.
type Result struct {
	Matched  bool
	Status   string
	Message  string
	Room     *models.Room
	Players  []models.RoomPlayer
	Opponent string
}

// Engine is the stateless matching request handler. Many instances may run
// concurrently; all coordination goes through the store's conditional
// pairing update.
type Engine struct {
	store store.Store
	rdb   *redis.Client
	cfg   *config.Config
}

func NewEngine(st store.Store, rdb *redis.Client, cfg *config.Config) *Engine {
	return &Engine{store: st, rdb: rdb, cfg: cfg}
}

// FindMatch enqueues the user and tries to pair them with a waiting player
// in the same category. Repeated calls are safe: an existing entry is
// reused, and a matched entry returns its room again.
func (e *Engine) FindMatch(ctx context.Context, userID, username, category string) (*Result, error) {
	if category == "" {
		category = e.cfg.DefaultCategory
	}

	entry, err := e.store.GetEntryByUser(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if entry != nil {
		return e.resultForEntry(ctx, entry)
	}

	newEntry := &models.QueueEntry{
		UserID:    userID,
		Username:  username,
		Category:  category,
		ExpiresAt: time.Now().Add(time.Duration(e.cfg.QueueExpiryMinutes) * time.Minute),
	}
	if err := e.store.CreateEntry(ctx, newEntry); err != nil {
		if errors.Is(err, store.ErrDuplicateEntry) {
			// Lost an insert race against our own retry; report whatever
			// state that call left behind.
			existing, err2 := e.store.GetEntryByUser(ctx, userID)
			if err2 != nil {
				return nil, err2
			}
			return e.resultForEntry(ctx, existing)
		}
		return nil, err
	}
	e.bumpGauge(ctx, category, 1)

	candidate, err := e.store.FindWaitingCandidate(ctx, category, userID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[MATCH] queued user=%s category=%s (no opponent yet)", userID, category)
		return &Result{Status: StatusWaiting, Message: "Waiting for an opponent..."}, nil
	}
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:         uuid.NewString(),
		RoomCode:   newRoomCode(),
		Status:     models.RoomStatusWaiting,
		Category:   category,
		MaxPlayers: maxPlayers,
	}
	err = e.store.CreateMatch(ctx, room, newEntry, candidate)
	if errors.Is(err, store.ErrPairConflict) {
		// Another matcher claimed the candidate first. The caller stays
		// waiting and pairs on a later attempt or poll.
		log.Printf("[MATCH] pairing conflict: user=%s candidate=%s category=%s", userID, candidate.UserID, category)
		return &Result{Status: StatusWaiting, Message: "Waiting for an opponent..."}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	players, err := e.store.ListRoomPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	e.bumpGauge(ctx, category, -2)
	e.publishMatchFound(ctx, room, newEntry, candidate)

	log.Printf("[MATCH] ✓ paired user=%s opponent=%s room=%s code=%s category=%s",
		userID, candidate.UserID, room.ID, room.RoomCode, category)

	return &Result{
		Matched:  true,
		Status:   StatusMatched,
		Message:  "Opponent found!",
		Room:     room,
		Players:  players,
		Opponent: candidate.Username,
	}, nil
}

// CheckMatch is the read-only poll. The player who lost the pairing race
// learns of their match here; nothing is pushed to them.
func (e *Engine) CheckMatch(ctx context.Context, userID string) (*Result, error) {
	entry, err := e.store.GetEntryByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &Result{Status: StatusNotFound, Message: "Not in queue"}, nil
	}
	if err != nil {
		return nil, err
	}
	return e.resultForEntry(ctx, entry)
}

// CancelMatch removes the caller's queue entry. Cancelling without an entry
// is a no-op. A room created before the cancel stays on record; reconciling
// an abandoned room is the game lifecycle's concern, not the queue's.
func (e *Engine) CancelMatch(ctx context.Context, userID string) error {
	entry, err := e.store.GetEntryByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	deleted, err := e.store.DeleteEntry(ctx, userID)
	if err != nil {
		return err
	}
	if deleted && entry.Status == models.QueueStatusWaiting {
		e.bumpGauge(ctx, entry.Category, -1)
	}
	log.Printf("[MATCH] cancelled user=%s", userID)
	return nil
}

func (e *Engine) resultForEntry(ctx context.Context, entry *models.QueueEntry) (*Result, error) {
	if entry.Status == models.QueueStatusMatched && entry.RoomID.Valid {
		room, err := e.store.GetRoom(ctx, entry.RoomID.String)
		if err != nil {
			return nil, fmt.Errorf("load room %s: %w", entry.RoomID.String, err)
		}
		players, err := e.store.ListRoomPlayers(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		return &Result{
			Matched:  true,
			Status:   StatusMatched,
			Message:  "Opponent found!",
			Room:     room,
			Players:  players,
			Opponent: opponentOf(players, entry.UserID),
		}, nil
	}
	return &Result{Status: StatusWaiting, Message: "Still waiting for an opponent..."}, nil
}

func opponentOf(players []models.RoomPlayer, userID string) string {
	for _, p := range players {
		if p.UserID != userID {
			return p.Username
		}
	}
	return ""
}

func (e *Engine) bumpGauge(ctx context.Context, category string, delta int64) {
	if e.rdb == nil {
		return
	}
	if err := e.rdb.HIncrBy(ctx, QueueGaugeKey, category, delta).Err(); err != nil {
		log.Printf("[MATCH] queue gauge update failed: %v", err)
	}
}

// publishMatchFound emits a match_found event for the notification layer.
// Fire-and-forget: clients still learn the outcome by polling.
func (e *Engine) publishMatchFound(ctx context.Context, room *models.Room, a, b *models.QueueEntry) {
	if e.rdb == nil {
		return
	}
	payload := map[string]interface{}{
		"type":      "match_found",
		"room_id":   room.ID,
		"room_code": room.RoomCode,
		"category":  room.Category,
		"players":   []string{a.UserID, b.UserID},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[MATCH] marshal match_found failed: %v", err)
		return
	}
	if err := e.rdb.Publish(ctx, e.cfg.MatchEventsChannel, buf).Err(); err != nil {
		log.Printf("[MATCH] publish match_found failed: room=%s err=%v", room.ID, err)
	}
}
