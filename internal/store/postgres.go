package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/quizclash/backend/internal/models"
)

// Postgres backs the matching engine with the match_queue, rooms and
// room_players tables.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetEntryByUser(ctx context.Context, userID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.GetContext(ctx, &entry, `
		SELECT id, user_id, username, category, status, room_id, created_at, updated_at, expires_at
		FROM match_queue
		WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return &entry, nil
}

func (s *Postgres) CreateEntry(ctx context.Context, entry *models.QueueEntry) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO match_queue (user_id, username, category, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, 'waiting', NOW(), NOW(), $4)
		RETURNING id, created_at, updated_at
	`, entry.UserID, entry.Username, entry.Category, entry.ExpiresAt).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("insert queue entry: %w", err)
	}
	entry.Status = models.QueueStatusWaiting
	return nil
}

func (s *Postgres) DeleteEntry(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM match_queue WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("delete queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete queue entry: %w", err)
	}
	return n > 0, nil
}

func (s *Postgres) FindWaitingCandidate(ctx context.Context, category, excludeUserID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.GetContext(ctx, &entry, `
		SELECT id, user_id, username, category, status, room_id, created_at, updated_at, expires_at
		FROM match_queue
		WHERE category = $1
		  AND status = 'waiting'
		  AND user_id <> $2
		  AND expires_at > NOW()
		ORDER BY created_at
		LIMIT 1
	`, category, excludeUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find waiting candidate: %w", err)
	}
	return &entry, nil
}

// CreateMatch runs the whole pairing as one transaction. Two concurrent
// matchers touching the same entries serialize on the row locks taken by the
// conditional UPDATE; the loser re-evaluates the WHERE clause after the
// winner commits, updates fewer than two rows and gets ErrPairConflict.
func (s *Postgres) CreateMatch(ctx context.Context, room *models.Room, caller, candidate *models.QueueEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pairing tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (id, room_code, status, category, max_players, current_question_index, created_at, updated_at)
		VALUES ($1, $2, 'waiting', $3, $4, 0, $5, $5)
	`, room.ID, room.RoomCode, room.Category, room.MaxPlayers, now)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE match_queue
		SET status = 'matched', room_id = $1, updated_at = $2
		WHERE user_id IN ($3, $4) AND status = 'waiting'
	`, room.ID, now, caller.UserID, candidate.UserID)
	if err != nil {
		return fmt.Errorf("pair queue entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pair queue entries: %w", err)
	}
	if affected != 2 {
		return ErrPairConflict
	}

	for _, p := range []*models.QueueEntry{caller, candidate} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_players (room_id, user_id, username, score, streak, xp_earned)
			VALUES ($1, $2, $3, 0, 0, 0)
		`, room.ID, p.UserID, p.Username); err != nil {
			return fmt.Errorf("insert roster row for %s: %w", p.UserID, err)
		}
	}

	// 1v1 quick-match has no ready handshake: the room starts in the same
	// transaction that pairs the players.
	if _, err := tx.ExecContext(ctx, `
		UPDATE rooms
		SET status = 'started', current_question_index = 0, question_start_time = $1, updated_at = $1
		WHERE id = $2 AND status = 'waiting'
	`, now, room.ID); err != nil {
		return fmt.Errorf("start room: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pairing tx: %w", err)
	}

	room.Status = models.RoomStatusStarted
	room.CurrentQuestionIndex = 0
	room.QuestionStartTime = sql.NullTime{Time: now, Valid: true}
	room.CreatedAt = now
	room.UpdatedAt = now
	for _, p := range []*models.QueueEntry{caller, candidate} {
		p.Status = models.QueueStatusMatched
		p.RoomID = sql.NullString{String: room.ID, Valid: true}
		p.UpdatedAt = now
	}
	return nil
}

func (s *Postgres) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return s.getRoom(ctx, `WHERE id = $1`, roomID)
}

func (s *Postgres) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	return s.getRoom(ctx, `WHERE room_code = $1`, code)
}

func (s *Postgres) getRoom(ctx context.Context, where, arg string) (*models.Room, error) {
	var room models.Room
	err := s.db.GetContext(ctx, &room, `
		SELECT id, room_code, status, category, max_players, current_question_index,
		       question_start_time, created_at, updated_at
		FROM rooms
	`+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

func (s *Postgres) ListRoomPlayers(ctx context.Context, roomID string) ([]models.RoomPlayer, error) {
	var players []models.RoomPlayer
	err := s.db.SelectContext(ctx, &players, `
		SELECT id, room_id, user_id, username, score, streak, xp_earned
		FROM room_players
		WHERE room_id = $1
		ORDER BY id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room players: %w", err)
	}
	return players, nil
}

func (s *Postgres) CountWaitingByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT category, COUNT(*) FROM match_queue WHERE status = 'waiting' GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("count waiting entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("count waiting entries: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) CountActiveRooms(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM rooms WHERE status = 'started'`); err != nil {
		return 0, fmt.Errorf("count active rooms: %w", err)
	}
	return n, nil
}

func (s *Postgres) ListRecentRooms(ctx context.Context, limit int) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.SelectContext(ctx, &rooms, `
		SELECT id, room_code, status, category, max_players, current_question_index,
		       question_start_time, created_at, updated_at
		FROM rooms
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent rooms: %w", err)
	}
	return rooms, nil
}

func (s *Postgres) DeleteExpiredWaiting(ctx context.Context, now time.Time) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		DELETE FROM match_queue
		WHERE status = 'waiting' AND expires_at <= $1
		RETURNING category
	`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired entries: %w", err)
	}
	defer rows.Close()

	reaped := make(map[string]int)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("delete expired entries: %w", err)
		}
		reaped[category]++
	}
	return reaped, rows.Err()
}
