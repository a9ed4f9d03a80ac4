package store

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/quizclash/backend/internal/models"
)

// Memory is an in-process Store with the same conditional-update semantics
// as the Postgres implementation. It backs the engine and handler tests and
// is usable as a single-node dev backend.
type Memory struct {
	mu      sync.Mutex
	nextID  int
	entries map[string]*models.QueueEntry // keyed by user id
	rooms   map[string]*models.Room       // keyed by room id
	codes   map[string]string             // room code -> room id
	players map[string][]models.RoomPlayer
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*models.QueueEntry),
		rooms:   make(map[string]*models.Room),
		codes:   make(map[string]string),
		players: make(map[string][]models.RoomPlayer),
	}
}

func (s *Memory) GetEntryByUser(ctx context.Context, userID string) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *Memory) CreateEntry(ctx context.Context, entry *models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.UserID]; ok {
		return ErrDuplicateEntry
	}
	s.nextID++
	now := time.Now()
	entry.ID = s.nextID
	entry.Status = models.QueueStatusWaiting
	entry.CreatedAt = now
	entry.UpdatedAt = now
	cp := *entry
	s.entries[entry.UserID] = &cp
	return nil
}

func (s *Memory) DeleteEntry(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[userID]; !ok {
		return false, nil
	}
	delete(s.entries, userID)
	return true, nil
}

func (s *Memory) FindWaitingCandidate(ctx context.Context, category, excludeUserID string) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *models.QueueEntry
	now := time.Now()
	for _, entry := range s.entries {
		if entry.UserID == excludeUserID || entry.Category != category {
			continue
		}
		if entry.Status != models.QueueStatusWaiting || !entry.ExpiresAt.After(now) {
			continue
		}
		if best == nil || entry.ID < best.ID {
			best = entry
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *Memory) CreateMatch(ctx context.Context, room *models.Room, caller, candidate *models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Conditional check first: nothing below runs unless both entries are
	// still waiting, mirroring the two-row UPDATE's affected-rows guard.
	a, okA := s.entries[caller.UserID]
	b, okB := s.entries[candidate.UserID]
	if !okA || !okB ||
		a.Status != models.QueueStatusWaiting ||
		b.Status != models.QueueStatusWaiting {
		return ErrPairConflict
	}

	now := time.Now()
	room.Status = models.RoomStatusStarted
	room.CurrentQuestionIndex = 0
	room.QuestionStartTime = sql.NullTime{Time: now, Valid: true}
	room.CreatedAt = now
	room.UpdatedAt = now
	roomCp := *room
	s.rooms[room.ID] = &roomCp
	s.codes[room.RoomCode] = room.ID

	for _, p := range []*models.QueueEntry{caller, candidate} {
		stored := s.entries[p.UserID]
		stored.Status = models.QueueStatusMatched
		stored.RoomID = sql.NullString{String: room.ID, Valid: true}
		stored.UpdatedAt = now
		p.Status = stored.Status
		p.RoomID = stored.RoomID
		p.UpdatedAt = now

		s.nextID++
		s.players[room.ID] = append(s.players[room.ID], models.RoomPlayer{
			ID:       s.nextID,
			RoomID:   room.ID,
			UserID:   p.UserID,
			Username: p.Username,
		})
	}
	return nil
}

func (s *Memory) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *room
	return &cp, nil
}

func (s *Memory) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	roomID, ok := s.codes[code]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetRoom(ctx, roomID)
}

func (s *Memory) ListRoomPlayers(ctx context.Context, roomID string) ([]models.RoomPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]models.RoomPlayer, len(s.players[roomID]))
	copy(players, s.players[roomID])
	return players, nil
}

func (s *Memory) CountWaitingByCategory(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, entry := range s.entries {
		if entry.Status == models.QueueStatusWaiting {
			counts[entry.Category]++
		}
	}
	return counts, nil
}

func (s *Memory) CountActiveRooms(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, room := range s.rooms {
		if room.Status == models.RoomStatusStarted {
			n++
		}
	}
	return n, nil
}

func (s *Memory) ListRecentRooms(ctx context.Context, limit int) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	if len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

func (s *Memory) DeleteExpiredWaiting(ctx context.Context, now time.Time) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := make(map[string]int)
	for userID, entry := range s.entries {
		if entry.Status == models.QueueStatusWaiting && !entry.ExpiresAt.After(now) {
			reaped[entry.Category]++
			delete(s.entries, userID)
		}
	}
	return reaped, nil
}
