package matchmaking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playarcana/backend/internal/config"
	"github.com/playarcana/backend/internal/models"
	"github.com/playarcana/backend/internal/rating"
)

type fakeSessions struct {
	live    map[int]bool
	fail    bool
	created [][2]int
}

func (f *fakeSessions) CreateSession(ctx context.Context, player1ID, player2ID int, mode models.Mode) (*models.MatchSession, error) {
	if f.fail {
		return nil, errors.New("session backend down")
	}
	f.created = append(f.created, [2]int{player1ID, player2ID})
	return &models.MatchSession{
		ID:        len(f.created),
		Token:     "tok",
		Mode:      mode,
		Player1ID: player1ID,
		Player2ID: player2ID,
	}, nil
}

func (f *fakeSessions) HasLiveSession(ctx context.Context, playerID int) (bool, error) {
	return f.live[playerID], nil
}

type fakeRatings struct {
	ratings map[int]int
	noDeck  map[int]bool
}

func (f *fakeRatings) GetRating(ctx context.Context, playerID int, mode models.Mode) (int, error) {
	if r, ok := f.ratings[playerID]; ok {
		return r, nil
	}
	return rating.DefaultRating, nil
}

func (f *fakeRatings) GetActiveDeck(ctx context.Context, playerID int) (string, error) {
	if f.noDeck[playerID] {
		return "", rating.ErrNoActiveDeck
	}
	return "control", nil
}

func testConfig() *config.Config {
	return &config.Config{
		QueueTTLMinutes:     5,
		QueueSweepLimit:     100,
		InitialRatingWindow: 200,
		RatingWindowStep:    50,
		MaxRatingWindow:     1000,
		WindowStepSeconds:   10,
		LeaveQueuePerMinute: 6,
	}
}

func newTestService(sessions *fakeSessions, ratings *fakeRatings) (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewService(repo, sessions, ratings, nil, testConfig()), repo
}

func TestJoinAndStatus(t *testing.T) {
	svc, _ := newTestService(
		&fakeSessions{live: map[int]bool{}},
		&fakeRatings{ratings: map[int]int{1: 1200}},
	)
	ctx := context.Background()

	ticket, err := svc.Join(ctx, 1, "alice", models.ModeRanked)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if ticket.Rating != 1200 {
		t.Errorf("ticket rating = %d, want 1200", ticket.Rating)
	}

	status, err := svc.Status(ctx, 1, time.Now())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CurrentWindow != 200 {
		t.Errorf("fresh ticket window = %d, want 200", status.CurrentWindow)
	}
}

func TestJoinTwiceRejected(t *testing.T) {
	svc, _ := newTestService(
		&fakeSessions{live: map[int]bool{}},
		&fakeRatings{},
	)
	ctx := context.Background()

	if _, err := svc.Join(ctx, 1, "alice", models.ModeRanked); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if _, err := svc.Join(ctx, 1, "alice", models.ModeRanked); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("second join: got %v, want ErrAlreadyQueued", err)
	}
	// A different mode does not help; one ticket per player
	if _, err := svc.Join(ctx, 1, "alice", models.ModeCasual); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("cross-mode join: got %v, want ErrAlreadyQueued", err)
	}
}

func TestJoinWhileInLiveSession(t *testing.T) {
	svc, _ := newTestService(
		&fakeSessions{live: map[int]bool{7: true}},
		&fakeRatings{},
	)

	if _, err := svc.Join(context.Background(), 7, "bob", models.ModeRanked); !errors.Is(err, ErrInLiveSession) {
		t.Errorf("got %v, want ErrInLiveSession", err)
	}
}

func TestJoinWithoutActiveDeck(t *testing.T) {
	svc, _ := newTestService(
		&fakeSessions{live: map[int]bool{}},
		&fakeRatings{noDeck: map[int]bool{3: true}},
	)

	if _, err := svc.Join(context.Background(), 3, "carol", models.ModeRanked); !errors.Is(err, rating.ErrNoActiveDeck) {
		t.Errorf("got %v, want ErrNoActiveDeck", err)
	}
}

func TestLeaveQueue(t *testing.T) {
	svc, _ := newTestService(
		&fakeSessions{live: map[int]bool{}},
		&fakeRatings{},
	)
	ctx := context.Background()

	if _, err := svc.Join(ctx, 1, "alice", models.ModeRanked); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := svc.Leave(ctx, 1); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if err := svc.Leave(ctx, 1); !errors.Is(err, ErrNotInQueue) {
		t.Errorf("second leave: got %v, want ErrNotInQueue", err)
	}
	if _, err := svc.Status(ctx, 1, time.Now()); !errors.Is(err, ErrNotInQueue) {
		t.Errorf("status after leave: got %v, want ErrNotInQueue", err)
	}
}

func TestRunPassCreatesSession(t *testing.T) {
	sessions := &fakeSessions{live: map[int]bool{}}
	svc, repo := newTestService(sessions, &fakeRatings{ratings: map[int]int{1: 1000, 2: 1100}})
	ctx := context.Background()

	if _, err := svc.Join(ctx, 1, "alice", models.ModeRanked); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := svc.Join(ctx, 2, "bob", models.ModeRanked); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	svc.RunPass(ctx, models.ModeRanked, time.Now())

	if len(sessions.created) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions.created))
	}
	if n, _ := repo.CountByMode(ctx, models.ModeRanked); n != 0 {
		t.Errorf("expected empty queue after pass, %d tickets left", n)
	}
}

func TestRunPassDoesNotMixModes(t *testing.T) {
	sessions := &fakeSessions{live: map[int]bool{}}
	svc, _ := newTestService(sessions, &fakeRatings{})
	ctx := context.Background()

	if _, err := svc.Join(ctx, 1, "alice", models.ModeRanked); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := svc.Join(ctx, 2, "bob", models.ModeCasual); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	svc.RunPassAll(ctx)

	if len(sessions.created) != 0 {
		t.Errorf("expected no cross-mode sessions, got %d", len(sessions.created))
	}
}

func TestRunPassRequeuesOnSessionFailure(t *testing.T) {
	sessions := &fakeSessions{live: map[int]bool{}, fail: true}
	svc, repo := newTestService(sessions, &fakeRatings{})
	ctx := context.Background()

	if _, err := svc.Join(ctx, 1, "alice", models.ModeRanked); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := svc.Join(ctx, 2, "bob", models.ModeRanked); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	before, err := repo.GetByPlayer(ctx, 1)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}

	svc.RunPass(ctx, models.ModeRanked, time.Now())

	// Both players must be back in the queue with their original join time
	after, err := repo.GetByPlayer(ctx, 1)
	if err != nil {
		t.Fatalf("player 1 not requeued: %v", err)
	}
	if !after.JoinedAt.Equal(before.JoinedAt) {
		t.Errorf("requeue reset joined_at: %v != %v", after.JoinedAt, before.JoinedAt)
	}
	if _, err := repo.GetByPlayer(ctx, 2); err != nil {
		t.Errorf("player 2 not requeued: %v", err)
	}
}

func TestSweepRemovesExpiredTickets(t *testing.T) {
	svc, repo := newTestService(&fakeSessions{live: map[int]bool{}}, &fakeRatings{})
	ctx := context.Background()
	now := time.Now()

	stale := &models.QueueTicket{PlayerID: 1, Username: "alice", Mode: models.ModeRanked,
		Rating: 1000, JoinedAt: now.Add(-10 * time.Minute)}
	fresh := &models.QueueTicket{PlayerID: 2, Username: "bob", Mode: models.ModeRanked,
		Rating: 1000, JoinedAt: now.Add(-time.Minute)}
	if err := repo.Insert(ctx, stale); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, fresh); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted := svc.Sweep(ctx, now)
	if deleted != 1 {
		t.Errorf("sweep deleted %d, want 1", deleted)
	}
	if _, err := repo.GetByPlayer(ctx, 1); !errors.Is(err, ErrNotInQueue) {
		t.Errorf("stale ticket survived the sweep")
	}
	if _, err := repo.GetByPlayer(ctx, 2); err != nil {
		t.Errorf("fresh ticket was swept: %v", err)
	}
}
