package tournament

import (
	"context"
	"log"
	"time"

	"github.com/playarcana/backend/internal/models"
)

// ReapNoShows force-completes bracket matches whose players failed to show
// up within the timeout. Matches still waiting on a session (factory failure
// at ready time) get a creation retry instead. Each candidate is handled
// independently; one failure never stops the rest of the run.
func (s *Service) ReapNoShows(ctx context.Context, now time.Time) {
	cutoff := now.Add(-time.Duration(s.cfg.NoShowTimeoutMins) * time.Minute)
	candidates, err := s.store.ListNoShowCandidates(ctx, cutoff)
	if err != nil {
		log.Printf("[REAPER] Failed to list no-show candidates: %v", err)
		return
	}

	for i := range candidates {
		m := &candidates[i]
		if err := s.reapOne(ctx, m); err != nil {
			log.Printf("[REAPER] Failed to reap match %d: %v", m.ID, err)
		}
	}
}

func (s *Service) reapOne(ctx context.Context, m *models.TournamentMatch) error {
	t, err := s.store.GetTournament(ctx, m.TournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.TournamentActive {
		return nil
	}

	// no session was ever created for this match; retry instead of punishing
	// players who never had a game to join
	if !m.SessionID.Valid {
		log.Printf("[REAPER] Match %d has no session, retrying creation", m.ID)
		s.startMatchSession(ctx, t, m)
		return nil
	}

	sess, err := s.sessions.GetSessionByID(ctx, int(m.SessionID.Int64))
	if err != nil {
		return err
	}

	// the session finished but the outcome callback never reached us
	if sess.Status == models.SessionCompleted && sess.WinnerID.Valid {
		log.Printf("[REAPER] Match %d session already completed, settling from session outcome", m.ID)
		return s.CompleteMatch(ctx, m, int(sess.WinnerID.Int64), models.WinByGame)
	}

	switch {
	case sess.Player1Connected && sess.Player2Connected:
		// both showed up, the game is just slow
		return nil
	case sess.Player1Connected:
		log.Printf("[REAPER] Match %d: player %d no-show, awarding player %d", m.ID, sess.Player2ID, sess.Player1ID)
		return s.CompleteMatch(ctx, m, sess.Player1ID, models.WinByNoShow)
	case sess.Player2Connected:
		log.Printf("[REAPER] Match %d: player %d no-show, awarding player %d", m.ID, sess.Player1ID, sess.Player2ID)
		return s.CompleteMatch(ctx, m, sess.Player2ID, models.WinByNoShow)
	default:
		// neither player showed: forfeit both, nobody advances from here
		log.Printf("[REAPER] Match %d: double no-show, forfeiting both players", m.ID)
		return s.CompleteMatch(ctx, m, 0, models.WinByNoShow)
	}
}
