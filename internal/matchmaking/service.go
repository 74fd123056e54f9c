package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/playarcana/backend/internal/config"
	"github.com/playarcana/backend/internal/models"
	"github.com/playarcana/backend/internal/rating"
	"github.com/playarcana/backend/internal/session"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInLiveSession  = errors.New("player already in a live session")
	ErrLeaveRateLimit = errors.New("too many queue operations, slow down")
)

// Service exposes the queue operations and owns the matching pass
type Service struct {
	repo     Repository
	sessions session.Factory
	ratings  rating.Provider
	rdb      *redis.Client
	cfg      *config.Config
}

func NewService(repo Repository, sessions session.Factory, ratings rating.Provider, rdb *redis.Client, cfg *config.Config) *Service {
	return &Service{repo: repo, sessions: sessions, ratings: ratings, rdb: rdb, cfg: cfg}
}

func (s *Service) windowParams() WindowParams {
	return WindowParams{
		Initial:     s.cfg.InitialRatingWindow,
		Step:        s.cfg.RatingWindowStep,
		Max:         s.cfg.MaxRatingWindow,
		StepSeconds: s.cfg.WindowStepSeconds,
	}
}

// Join puts a player into the queue for a mode. The player must have an
// active deck, no live session and no outstanding ticket; the repository
// re-checks ticket absence atomically on insert.
func (s *Service) Join(ctx context.Context, playerID int, username string, mode models.Mode) (*models.QueueTicket, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	if _, err := s.repo.GetByPlayer(ctx, playerID); err == nil {
		return nil, ErrAlreadyQueued
	} else if !errors.Is(err, ErrNotInQueue) {
		return nil, err
	}

	live, err := s.sessions.HasLiveSession(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("check live session: %w", err)
	}
	if live {
		return nil, ErrInLiveSession
	}

	deck, err := s.ratings.GetActiveDeck(ctx, playerID)
	if err != nil {
		return nil, err
	}

	r, err := s.ratings.GetRating(ctx, playerID, mode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ticket := &models.QueueTicket{
		PlayerID:      playerID,
		Username:      username,
		Mode:          mode,
		Rating:        r,
		DeckArchetype: deck,
		JoinedAt:      now,
		ExpiresAt:     now.Add(time.Duration(s.cfg.QueueTTLMinutes) * time.Minute),
	}
	if err := s.repo.Insert(ctx, ticket); err != nil {
		return nil, err
	}

	log.Printf("[MATCHMAKER] Player %d joined %s queue (rating=%d deck=%s)", playerID, mode, r, deck)
	return ticket, nil
}

// Leave removes the caller's ticket. Calls are rate limited per player so a
// client stuck in a retry loop cannot hammer the queue.
func (s *Service) Leave(ctx context.Context, playerID int) error {
	if s.rdb != nil && s.cfg.LeaveQueuePerMinute > 0 {
		key := fmt.Sprintf("queue_leave_rate:%d", playerID)
		count, err := s.rdb.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				s.rdb.Expire(ctx, key, time.Minute)
			}
			if count > int64(s.cfg.LeaveQueuePerMinute) {
				return ErrLeaveRateLimit
			}
		}
	}

	if err := s.repo.DeleteByPlayer(ctx, playerID); err != nil {
		return err
	}
	log.Printf("[MATCHMAKER] Player %d left the queue", playerID)
	return nil
}

// Status describes a waiting ticket to its owner
type Status struct {
	Mode          models.Mode `json:"mode"`
	Rating        int         `json:"rating"`
	WaitSeconds   int         `json:"wait_seconds"`
	CurrentWindow int         `json:"current_window"`
}

// Status reports elapsed wait and the current rating window for the caller's
// ticket. Pure read, no side effects.
func (s *Service) Status(ctx context.Context, playerID int, now time.Time) (*Status, error) {
	t, err := s.repo.GetByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	wait := int(now.Sub(t.JoinedAt).Seconds())
	if wait < 0 {
		wait = 0
	}
	return &Status{
		Mode:          t.Mode,
		Rating:        t.Rating,
		WaitSeconds:   wait,
		CurrentWindow: RatingWindow(t.JoinedAt, now, s.windowParams()),
	}, nil
}

// Stats summarizes queue depth per mode plus the total matches created since start
func (s *Service) Stats(ctx context.Context) (map[string]interface{}, error) {
	ranked, err := s.repo.CountByMode(ctx, models.ModeRanked)
	if err != nil {
		return nil, err
	}
	casual, err := s.repo.CountByMode(ctx, models.ModeCasual)
	if err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		"ranked_waiting": ranked,
		"casual_waiting": casual,
	}
	if s.rdb != nil {
		if created, err := s.rdb.Get(ctx, "mm:matches_created").Int64(); err == nil {
			stats["matches_created"] = created
		}
	}
	return stats, nil
}
