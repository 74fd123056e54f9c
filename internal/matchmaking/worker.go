package matchmaking

import (
	"context"
	"log"
	"time"

	"github.com/playarcana/backend/internal/models"
)

// RunPassAll runs one matching pass for every mode
func (s *Service) RunPassAll(ctx context.Context) {
	now := time.Now()
	for _, mode := range []models.Mode{models.ModeRanked, models.ModeCasual} {
		s.RunPass(ctx, mode, now)
	}
}

// RunPass pairs compatible tickets for one mode. The pass works on a single
// snapshot: tickets are paired in memory by the window rule, then each pair is
// claimed transactionally before a session is created. A session creation
// failure skips that pair only; the tickets stay queued for the next pass.
func (s *Service) RunPass(ctx context.Context, mode models.Mode, now time.Time) {
	tickets, err := s.repo.SnapshotByMode(ctx, mode)
	if err != nil {
		log.Printf("[MATCHMAKER] Failed to snapshot %s queue: %v", mode, err)
		return
	}
	if len(tickets) < 2 {
		return
	}

	pairs := PairTickets(tickets, now, s.windowParams())
	for _, pair := range pairs {
		claimed, err := s.repo.ClaimPair(ctx, pair.A.ID, pair.B.ID)
		if err != nil {
			log.Printf("[MATCHMAKER] Failed to claim pair (%d,%d): %v", pair.A.ID, pair.B.ID, err)
			continue
		}
		if !claimed {
			// one of the tickets vanished (left or expired) since the snapshot
			continue
		}

		sess, err := s.sessions.CreateSession(ctx, pair.A.PlayerID, pair.B.PlayerID, mode)
		if err != nil {
			log.Printf("[MATCHMAKER] Session creation failed for players [%d,%d]: %v",
				pair.A.PlayerID, pair.B.PlayerID, err)
			s.requeue(ctx, pair)
			continue
		}

		log.Printf("[MATCHMAKER] Match created: session=%s mode=%s players=[%d,%d] gap=%d",
			sess.Token, mode, pair.A.PlayerID, pair.B.PlayerID, pair.B.Rating-pair.A.Rating)

		if s.rdb != nil {
			s.rdb.Incr(ctx, "mm:matches_created")
		}
	}
}

// requeue restores a claimed pair whose session could not be created, keeping
// their original join time so their windows stay expanded.
func (s *Service) requeue(ctx context.Context, pair Pair) {
	for _, t := range []models.QueueTicket{pair.A, pair.B} {
		retry := t
		retry.ID = 0
		if err := s.repo.Insert(ctx, &retry); err != nil {
			log.Printf("[MATCHMAKER] Failed to requeue player %d: %v", t.PlayerID, err)
		}
	}
}

// Sweep deletes tickets older than the configured TTL, bounded per run so a
// large backlog cannot stall the ticker.
func (s *Service) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-time.Duration(s.cfg.QueueTTLMinutes) * time.Minute)
	deleted, err := s.repo.DeleteExpired(ctx, cutoff, s.cfg.QueueSweepLimit)
	if err != nil {
		log.Printf("[MATCHMAKER] Ticket sweep failed: %v", err)
		return 0
	}
	if deleted > 0 {
		log.Printf("[MATCHMAKER] Ticket sweep removed %d expired tickets", deleted)
	}
	return deleted
}
