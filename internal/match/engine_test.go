package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quizclash/backend/internal/config"
	"github.com/quizclash/backend/internal/models"
	"github.com/quizclash/backend/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		DefaultCategory:    "General",
		QueueExpiryMinutes: 10,
		MatchEventsChannel: "match_events",
	}
}

func newTestEngine() (*Engine, *store.Memory) {
	st := store.NewMemory()
	return NewEngine(st, nil, testConfig()), st
}

func TestFindMatchNoOpponent(t *testing.T) {
	engine, st := newTestEngine()
	ctx := context.Background()

	result, err := engine.FindMatch(ctx, "u-carol", "carol", "Math")
	if err != nil {
		t.Fatalf("FindMatch failed: %v", err)
	}
	if result.Matched {
		t.Fatal("expected no match with an empty queue")
	}
	if result.Status != StatusWaiting {
		t.Errorf("status = %q, want %q", result.Status, StatusWaiting)
	}

	entry, err := st.GetEntryByUser(ctx, "u-carol")
	if err != nil {
		t.Fatalf("queue entry not created: %v", err)
	}
	if entry.Status != models.QueueStatusWaiting || entry.Category != "Math" {
		t.Errorf("entry = %q/%q, want waiting/Math", entry.Status, entry.Category)
	}
}

func TestFindMatchDefaultsCategory(t *testing.T) {
	engine, st := newTestEngine()
	ctx := context.Background()

	if _, err := engine.FindMatch(ctx, "u-dave", "dave", ""); err != nil {
		t.Fatalf("FindMatch failed: %v", err)
	}
	entry, err := st.GetEntryByUser(ctx, "u-dave")
	if err != nil {
		t.Fatalf("queue entry not created: %v", err)
	}
	if entry.Category != "General" {
		t.Errorf("category = %q, want General", entry.Category)
	}
}

func TestFindMatchPairsTwoPlayers(t *testing.T) {
	engine, st := newTestEngine()
	ctx := context.Background()

	first, err := engine.FindMatch(ctx, "u-alice", "alice", "General")
	if err != nil {
		t.Fatalf("alice FindMatch failed: %v", err)
	}
	if first.Matched {
		t.Fatal("alice should be waiting, not matched")
	}

	second, err := engine.FindMatch(ctx, "u-bob", "bob", "General")
	if err != nil {
		t.Fatalf("bob FindMatch failed: %v", err)
	}
	if !second.Matched {
		t.Fatal("bob should have been matched with alice")
	}
	if second.Opponent != "alice" {
		t.Errorf("opponent = %q, want alice", second.Opponent)
	}

	room := second.Room
	if room == nil {
		t.Fatal("matched result has no room")
	}
	if room.Status != models.RoomStatusStarted {
		t.Errorf("room status = %q, want started", room.Status)
	}
	if room.CurrentQuestionIndex != 0 {
		t.Errorf("current question index = %d, want 0", room.CurrentQuestionIndex)
	}
	if !room.QuestionStartTime.Valid {
		t.Error("question start time not set on started room")
	}
	if room.MaxPlayers != 2 {
		t.Errorf("max players = %d, want 2", room.MaxPlayers)
	}
	if room.RoomCode == "" {
		t.Error("room code is empty")
	}

	players, err := st.ListRoomPlayers(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListRoomPlayers failed: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("roster has %d players, want 2", len(players))
	}
	seen := map[string]bool{}
	for _, p := range players {
		seen[p.UserID] = true
		if p.Score != 0 || p.Streak != 0 || p.XPEarned != 0 {
			t.Errorf("player %s counters not zeroed: %+v", p.UserID, p)
		}
	}
	if !seen["u-alice"] || !seen["u-bob"] {
		t.Errorf("roster = %v, want alice and bob", seen)
	}

	// Alice learns of the match by polling.
	poll, err := engine.CheckMatch(ctx, "u-alice")
	if err != nil {
		t.Fatalf("alice CheckMatch failed: %v", err)
	}
	if !poll.Matched || poll.Room == nil || poll.Room.ID != room.ID {
		t.Errorf("alice poll did not return the shared room: %+v", poll)
	}
}

func TestFindMatchIdempotentWhileWaiting(t *testing.T) {
	engine, st := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := engine.FindMatch(ctx, "u-alice", "alice", "General")
		if err != nil {
			t.Fatalf("FindMatch call %d failed: %v", i+1, err)
		}
		if result.Matched || result.Status != StatusWaiting {
			t.Errorf("call %d: got %+v, want waiting", i+1, result)
		}
	}

	counts, err := st.CountWaitingByCategory(ctx)
	if err != nil {
		t.Fatalf("CountWaitingByCategory failed: %v", err)
	}
	if counts["General"] != 1 {
		t.Errorf("waiting entries = %d, want 1", counts["General"])
	}
}

func TestFindMatchIdempotentAfterMatch(t *testing.T) {
	engine, st := newTestEngine()
	ctx := context.Background()

	if _, err := engine.FindMatch(ctx, "u-alice", "alice", "General"); err != nil {
		t.Fatalf("alice FindMatch failed: %v", err)
	}
	matched, err := engine.FindMatch(ctx, "u-bob", "bob", "General")
	if err != nil {
		t.Fatalf("bob FindMatch failed: %v", err)
	}

	again, err := engine.FindMatch(ctx, "u-bob", "bob", "General")
	if err != nil {
		t.Fatalf("repeat FindMatch failed: %v", err)
	}
	if !again.Matched || again.Room == nil || again.Room.ID != matched.Room.ID {
		t.Errorf("repeat FindMatch returned a different room: %+v", again.Room)
	}

	rooms, err := st.CountActiveRooms(ctx)
	if err != nil {
		t.Fatalf("CountActiveRooms failed: %v", err)
	}
	if rooms != 1 {
		t.Errorf("active rooms = %d, want 1 (no duplicate room)", rooms)
	}
}

func TestCategoryScoping(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	if _, err := engine.FindMatch(ctx, "u-alice", "alice", "Math"); err != nil {
		t.Fatalf("alice FindMatch failed: %v", err)
	}
	result, err := engine.FindMatch(ctx, "u-bob", "bob", "General")
	if err != nil {
		t.Fatalf("bob FindMatch failed: %v", err)
	}
	if result.Matched {
		t.Error("players in different categories must not be paired")
	}
}

func TestCancelMatch(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	if _, err := engine.FindMatch(ctx, "u-alice", "alice", "General"); err != nil {
		t.Fatalf("FindMatch failed: %v", err)
	}
	if err := engine.CancelMatch(ctx, "u-alice"); err != nil {
		t.Fatalf("CancelMatch failed: %v", err)
	}

	poll, err := engine.CheckMatch(ctx, "u-alice")
	if err != nil {
		t.Fatalf("CheckMatch failed: %v", err)
	}
	if poll.Status != StatusNotFound {
		t.Errorf("status after cancel = %q, want %q", poll.Status, StatusNotFound)
	}

	// A fresh join creates a new entry.
	result, err := engine.FindMatch(ctx, "u-alice", "alice", "General")
	if err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	if result.Status != StatusWaiting {
		t.Errorf("rejoin status = %q, want waiting", result.Status)
	}
}

func TestCancelMatchWithoutEntry(t *testing.T) {
	engine, _ := newTestEngine()

	if err := engine.CancelMatch(context.Background(), "u-nobody"); err != nil {
		t.Errorf("cancel without entry should be a no-op, got %v", err)
	}
}

// staleCandidateStore hands the engine a candidate another matcher already
// claimed, forcing the conditional pairing update to fail.
type staleCandidateStore struct {
	store.Store
}

func (s *staleCandidateStore) FindWaitingCandidate(ctx context.Context, category, excludeUserID string) (*models.QueueEntry, error) {
	return &models.QueueEntry{
		UserID:   "u-ghost",
		Username: "ghost",
		Category: category,
		Status:   models.QueueStatusWaiting,
	}, nil
}

func TestPairingConflictFallsBackToWaiting(t *testing.T) {
	mem := store.NewMemory()
	engine := NewEngine(&staleCandidateStore{Store: mem}, nil, testConfig())
	ctx := context.Background()

	result, err := engine.FindMatch(ctx, "u-alice", "alice", "General")
	if err != nil {
		t.Fatalf("conflict must degrade to waiting, got error: %v", err)
	}
	if result.Matched || result.Status != StatusWaiting {
		t.Errorf("result = %+v, want waiting", result)
	}

	rooms, err := mem.CountActiveRooms(ctx)
	if err != nil {
		t.Fatalf("CountActiveRooms failed: %v", err)
	}
	if rooms != 0 {
		t.Errorf("active rooms = %d, want 0 after conflict", rooms)
	}

	entry, err := mem.GetEntryByUser(ctx, "u-alice")
	if err != nil {
		t.Fatalf("caller entry missing after conflict: %v", err)
	}
	if entry.Status != models.QueueStatusWaiting {
		t.Errorf("caller status = %q, want waiting", entry.Status)
	}
}

// failingMatchStore simulates a partial-write failure during room/roster
// creation; the store contract requires it to change nothing in that case.
type failingMatchStore struct {
	store.Store
}

func (s *failingMatchStore) CreateMatch(ctx context.Context, room *models.Room, caller, candidate *models.QueueEntry) error {
	return errors.New("roster insert failed")
}

func TestPartialWriteFailureLeavesEntriesWaiting(t *testing.T) {
	mem := store.NewMemory()
	engine := NewEngine(&failingMatchStore{Store: mem}, nil, testConfig())
	ctx := context.Background()

	if _, err := engine.FindMatch(ctx, "u-bob", "bob", "General"); err != nil {
		t.Fatalf("bob FindMatch failed: %v", err)
	}
	if _, err := engine.FindMatch(ctx, "u-alice", "alice", "General"); err == nil {
		t.Fatal("expected an error from the failed pairing write")
	}

	for _, userID := range []string{"u-alice", "u-bob"} {
		entry, err := mem.GetEntryByUser(ctx, userID)
		if err != nil {
			t.Fatalf("entry %s missing after failure: %v", userID, err)
		}
		if entry.Status != models.QueueStatusWaiting {
			t.Errorf("%s status = %q, want waiting (retryable)", userID, entry.Status)
		}
	}
	rooms, _ := mem.CountActiveRooms(ctx)
	if rooms != 0 {
		t.Errorf("active rooms = %d, want 0 after failed pairing", rooms)
	}
}

func TestConcurrentFindMatchNoDoublePairing(t *testing.T) {
	engine, st := newTestEngine()
	ctx := context.Background()

	const n = 20
	users := make([]string, n)
	for i := range users {
		users[i] = "u-" + string(rune('a'+i))
	}

	var wg sync.WaitGroup
	for _, userID := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := engine.FindMatch(ctx, id, "player-"+id, "General"); err != nil {
				t.Errorf("FindMatch %s failed: %v", id, err)
			}
		}(userID)
	}
	wg.Wait()

	roomUsers := make(map[string][]string)
	waiting := 0
	for _, userID := range users {
		result, err := engine.CheckMatch(ctx, userID)
		if err != nil {
			t.Fatalf("CheckMatch %s failed: %v", userID, err)
		}
		switch result.Status {
		case StatusMatched:
			roomUsers[result.Room.ID] = append(roomUsers[result.Room.ID], userID)
		case StatusWaiting:
			waiting++
		default:
			t.Errorf("user %s in unexpected state %q", userID, result.Status)
		}
	}

	matched := 0
	for roomID, members := range roomUsers {
		if len(members) != 2 {
			t.Errorf("room %s has %d members, want exactly 2: %v", roomID, len(members), members)
		}
		if len(members) == 2 && members[0] == members[1] {
			t.Errorf("room %s paired a user with themselves", roomID)
		}
		matched += len(members)

		players, err := st.ListRoomPlayers(ctx, roomID)
		if err != nil {
			t.Fatalf("ListRoomPlayers failed: %v", err)
		}
		if len(players) != 2 {
			t.Errorf("room %s roster has %d rows, want 2", roomID, len(players))
		}
	}
	if matched+waiting != n {
		t.Errorf("matched=%d waiting=%d, want total %d", matched, waiting, n)
	}
}

func TestReapExpiredRemovesOnlyStaleWaiting(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	stale := &models.QueueEntry{
		UserID:    "u-stale",
		Username:  "stale",
		Category:  "General",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	fresh := &models.QueueEntry{
		UserID:    "u-fresh",
		Username:  "fresh",
		Category:  "General",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	for _, e := range []*models.QueueEntry{stale, fresh} {
		if err := st.CreateEntry(ctx, e); err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
	}

	reapExpired(ctx, st, nil)

	if _, err := st.GetEntryByUser(ctx, "u-stale"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("stale entry survived the reaper: %v", err)
	}
	if _, err := st.GetEntryByUser(ctx, "u-fresh"); err != nil {
		t.Errorf("fresh entry was reaped: %v", err)
	}
}

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := newRoomCode()
		if len(code) != roomCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), roomCodeLength)
		}
		seen[code] = true
	}
	if len(seen) < 99 {
		t.Errorf("room codes collide too often: %d unique of 100", len(seen))
	}
}
