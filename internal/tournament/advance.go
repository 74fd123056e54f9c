package tournament

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/playarcana/backend/internal/economy"
	"github.com/playarcana/backend/internal/models"
)

// HandleSessionOutcome is the feedback path from the Session Factory: when a
// linked session reports its result, the owning bracket match completes.
// Sessions with no bracket match (queue games) are not ours to settle.
func (s *Service) HandleSessionOutcome(ctx context.Context, sess *models.MatchSession) error {
	m, err := s.store.GetMatchBySession(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil
		}
		return err
	}
	if !sess.WinnerID.Valid {
		return fmt.Errorf("session %d reported no winner", sess.ID)
	}
	return s.CompleteMatch(ctx, m, int(sess.WinnerID.Int64), models.WinByGame)
}

// CompleteMatch records a match result and drives everything that follows:
// loser elimination and placement, winner advancement (or finalization for
// the last round) and the current-round counter. winnerID 0 means the match
// resolved with no winner (both players absent); the match is closed and the
// next round treats the empty slot like a bye. Re-completing a terminal match
// is a no-op.
func (s *Service) CompleteMatch(ctx context.Context, m *models.TournamentMatch, winnerID int, reason models.WinReason) error {
	cur, err := s.store.GetMatch(ctx, m.ID)
	if err != nil {
		return err
	}
	if cur.Status.Terminal() {
		return nil
	}

	t, err := s.store.GetTournament(ctx, cur.TournamentID)
	if err != nil {
		return err
	}

	var loserID int
	if winnerID != 0 {
		switch int64(winnerID) {
		case cur.Player1ID.Int64:
			if cur.Player2ID.Valid {
				loserID = int(cur.Player2ID.Int64)
			}
		case cur.Player2ID.Int64:
			if cur.Player1ID.Valid {
				loserID = int(cur.Player1ID.Int64)
			}
		default:
			return fmt.Errorf("winner %d is not in match %d", winnerID, cur.ID)
		}
	}

	switch {
	case winnerID == 0:
		// no winner, but keep the cause on record so a double no-show is
		// distinguishable from an empty-feeder close
		cur.Status = models.MatchForfeit
		cur.WinReason = sql.NullString{String: string(reason), Valid: reason != ""}
	case reason == models.WinByNoShow || reason == models.WinByForfeit:
		cur.Status = models.MatchForfeit
		cur.WinReason = sql.NullString{String: string(reason), Valid: true}
	default:
		cur.Status = models.MatchCompleted
		cur.WinReason = sql.NullString{String: string(reason), Valid: true}
	}
	if winnerID != 0 {
		cur.WinnerID = sql.NullInt64{Int64: int64(winnerID), Valid: true}
	}
	if loserID != 0 {
		cur.LoserID = sql.NullInt64{Int64: int64(loserID), Valid: true}
	}
	cur.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}

	if err := s.store.UpdateMatch(ctx, cur); err != nil {
		return err
	}
	log.Printf("[TOURNEY] Match %d (t=%d r=%d #%d) resolved: winner=%d reason=%s",
		cur.ID, t.ID, cur.Round, cur.MatchNumber, winnerID, reason)

	if winnerID == 0 {
		// double no-show: both present players are out
		for _, pid := range []int64{cur.Player1ID.Int64, cur.Player2ID.Int64} {
			if pid != 0 {
				s.eliminateParticipant(ctx, t, int(pid), cur.Round)
			}
		}
	} else if loserID != 0 {
		s.eliminateParticipant(ctx, t, loserID, cur.Round)
	}

	if cur.Round == t.TotalRounds {
		if err := s.finalize(ctx, t, cur); err != nil {
			return err
		}
	} else {
		if winnerID != 0 {
			s.bumpWinnerRound(ctx, t, winnerID, cur.Round+1)
		}
		if err := s.feedForward(ctx, t, cur, winnerID); err != nil {
			return err
		}
	}

	s.maybeAdvanceRound(ctx, t.ID, cur.Round)
	return nil
}

// feedForward writes the winner into the next round's match and resolves that
// match if it is now decidable. A winner of 0 writes nothing but still forces
// the readiness check, since the sibling feeder may now be the last blocker.
func (s *Service) feedForward(ctx context.Context, t *models.Tournament, m *models.TournamentMatch, winnerID int) error {
	next, err := s.findMatch(ctx, t.ID, m.Round+1, func(c models.TournamentMatch) bool {
		return (c.SourceMatch1ID.Valid && int(c.SourceMatch1ID.Int64) == m.ID) ||
			(c.SourceMatch2ID.Valid && int(c.SourceMatch2ID.Int64) == m.ID)
	})
	if err != nil {
		return err
	}

	if winnerID != 0 {
		_, slot := NextMatchNumber(m.MatchNumber)
		username := winnerUsername(m, winnerID)
		switch slot {
		case 1:
			if next.Player1ID.Valid && int(next.Player1ID.Int64) != winnerID {
				log.Printf("[TOURNEY] INVARIANT VIOLATION: match %d slot 1 already holds player %d, refusing to overwrite with %d",
					next.ID, next.Player1ID.Int64, winnerID)
				return fmt.Errorf("next match %d slot 1 already populated", next.ID)
			}
			next.Player1ID = sql.NullInt64{Int64: int64(winnerID), Valid: true}
			next.Player1Username = sql.NullString{String: username, Valid: username != ""}
		case 2:
			if next.Player2ID.Valid && int(next.Player2ID.Int64) != winnerID {
				log.Printf("[TOURNEY] INVARIANT VIOLATION: match %d slot 2 already holds player %d, refusing to overwrite with %d",
					next.ID, next.Player2ID.Int64, winnerID)
				return fmt.Errorf("next match %d slot 2 already populated", next.ID)
			}
			next.Player2ID = sql.NullInt64{Int64: int64(winnerID), Valid: true}
			next.Player2Username = sql.NullString{String: username, Valid: username != ""}
		}
		if err := s.store.UpdateMatch(ctx, next); err != nil {
			return err
		}
	}

	return s.maybeResolve(ctx, t, next.ID)
}

// maybeResolve checks whether a pending match can move on: two players make
// it ready (and get a session), one player with both feeders settled is a
// bye, zero players with both feeders settled closes it with no winner.
func (s *Service) maybeResolve(ctx context.Context, t *models.Tournament, matchID int) error {
	next, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if next.Status != models.MatchPending {
		return nil
	}

	filled := countPlayers(next)
	if filled == 2 {
		next.Status = models.MatchReady
		next.ReadyAt = sql.NullTime{Time: time.Now(), Valid: true}
		if err := s.store.UpdateMatch(ctx, next); err != nil {
			return err
		}
		s.startMatchSession(ctx, t, next)
		return nil
	}

	feedersDone, err := s.feedersTerminal(ctx, next)
	if err != nil {
		return err
	}
	if !feedersDone {
		return nil
	}

	if filled == 1 {
		return s.CompleteMatch(ctx, next, byePlayer(next), models.WinByBye)
	}
	// both feeders closed without producing a player
	log.Printf("[TOURNEY] Match %d has no players after both feeders resolved, closing without winner", next.ID)
	return s.CompleteMatch(ctx, next, 0, "")
}

func (s *Service) feedersTerminal(ctx context.Context, m *models.TournamentMatch) (bool, error) {
	for _, src := range []sql.NullInt64{m.SourceMatch1ID, m.SourceMatch2ID} {
		if !src.Valid {
			return false, nil
		}
		feeder, err := s.store.GetMatch(ctx, int(src.Int64))
		if err != nil {
			return false, err
		}
		if !feeder.Status.Terminal() {
			return false, nil
		}
	}
	return true, nil
}

// startMatchSession asks the Session Factory for a live game. Failure is
// soft: the match stays ready and the no-show reaper retries creation.
func (s *Service) startMatchSession(ctx context.Context, t *models.Tournament, m *models.TournamentMatch) {
	sess, err := s.sessions.CreateSession(ctx, int(m.Player1ID.Int64), int(m.Player2ID.Int64), t.Mode)
	if err != nil {
		log.Printf("[TOURNEY] Session creation failed for match %d (t=%d): %v", m.ID, t.ID, err)
		return
	}
	m.SessionID = sql.NullInt64{Int64: int64(sess.ID), Valid: true}
	m.Status = models.MatchActive
	if err := s.store.UpdateMatch(ctx, m); err != nil {
		log.Printf("[TOURNEY] Failed to link session %d to match %d: %v", sess.ID, m.ID, err)
		return
	}

	s.publish(ctx, map[string]interface{}{
		"type":          "match_ready",
		"tournament_id": t.ID,
		"match_id":      m.ID,
		"round":         m.Round,
		"session_token": sess.Token,
		"player1_id":    m.Player1ID.Int64,
		"player2_id":    m.Player2ID.Int64,
	})
}

func (s *Service) eliminateParticipant(ctx context.Context, t *models.Tournament, playerID, round int) {
	p, err := s.store.GetParticipant(ctx, t.ID, playerID)
	if err != nil {
		log.Printf("[TOURNEY] Cannot eliminate player %d in tournament %d: %v", playerID, t.ID, err)
		return
	}
	if p.Status == models.ParticipantEliminated || p.Status == models.ParticipantWinner {
		return
	}
	p.Status = models.ParticipantEliminated
	p.EliminatedRound = sql.NullInt64{Int64: int64(round), Valid: true}
	p.FinalPlacement = sql.NullInt64{Int64: int64(Placement(1<<t.TotalRounds, round, t.TotalRounds)), Valid: true}
	if err := s.store.UpdateParticipant(ctx, p); err != nil {
		log.Printf("[TOURNEY] Failed to eliminate player %d: %v", playerID, err)
	}
}

func (s *Service) bumpWinnerRound(ctx context.Context, t *models.Tournament, playerID, round int) {
	p, err := s.store.GetParticipant(ctx, t.ID, playerID)
	if err != nil {
		log.Printf("[TOURNEY] Cannot bump round for player %d: %v", playerID, err)
		return
	}
	if round > p.CurrentRound {
		p.CurrentRound = round
		if err := s.store.UpdateParticipant(ctx, p); err != nil {
			log.Printf("[TOURNEY] Failed to bump round for player %d: %v", playerID, err)
		}
	}
}

// maybeAdvanceRound moves the tournament's round counter once every match of
// the current round is settled. The tournament row is re-read here: a nested
// cascade (a bye resolving the final) may have finalized the tournament since
// the caller loaded it, and writing that caller's copy back would erase the
// recorded champion.
func (s *Service) maybeAdvanceRound(ctx context.Context, tournamentID, round int) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		log.Printf("[TOURNEY] Round check failed for tournament %d: %v", tournamentID, err)
		return
	}
	if t.Status != models.TournamentActive {
		return
	}
	if round != t.CurrentRound || round >= t.TotalRounds {
		return
	}
	matches, err := s.store.ListMatches(ctx, t.ID)
	if err != nil {
		log.Printf("[TOURNEY] Round check failed for tournament %d: %v", t.ID, err)
		return
	}
	for _, m := range matches {
		if m.Round == round && !m.Status.Terminal() {
			return
		}
	}
	t.CurrentRound = round + 1
	if err := s.store.UpdateTournament(ctx, t); err != nil {
		log.Printf("[TOURNEY] Failed to advance round for tournament %d: %v", t.ID, err)
		return
	}
	log.Printf("[TOURNEY] Tournament %d advanced to round %d/%d", t.ID, t.CurrentRound, t.TotalRounds)
}

// finalize settles a finished tournament: records winner and runner-up, pays
// every outstanding prize at most once, writes one history row per
// participant and marks the tournament completed. The active -> completed
// compare-and-set makes a second invocation a complete no-op.
func (s *Service) finalize(ctx context.Context, t *models.Tournament, final *models.TournamentMatch) error {
	ok, err := s.store.TransitionStatus(ctx, t.ID, models.TournamentActive, models.TournamentCompleted)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if final.WinnerID.Valid {
		winnerID := int(final.WinnerID.Int64)
		if p, err := s.store.GetParticipant(ctx, t.ID, winnerID); err == nil {
			p.Status = models.ParticipantWinner
			p.FinalPlacement = sql.NullInt64{Int64: 1, Valid: true}
			if err := s.store.UpdateParticipant(ctx, p); err != nil {
				log.Printf("[TOURNEY] Failed to mark winner %d: %v", winnerID, err)
			}
		}
		t.WinnerID = final.WinnerID
		t.RunnerUpID = final.LoserID
	} else {
		log.Printf("[TOURNEY] Tournament %d final resolved without a winner; no champion recorded", t.ID)
	}
	if err := s.store.UpdateTournament(ctx, t); err != nil {
		return err
	}

	participants, err := s.store.ListParticipants(ctx, t.ID)
	if err != nil {
		return err
	}

	// prize distribution is best effort per participant: one failed payout
	// must not block the others
	for i := range participants {
		p := &participants[i]
		if !p.FinalPlacement.Valid || p.PrizeAwarded > 0 {
			continue
		}
		// check-in forfeits were refunded at start; their placement is a
		// bookkeeping value, not a prize slot
		if p.Status == models.ParticipantForfeit || p.Status == models.ParticipantRefunded {
			continue
		}
		prize := prizeFor(t, int(p.FinalPlacement.Int64))
		if prize <= 0 {
			continue
		}
		ref := fmt.Sprintf("tournament:%d", t.ID)
		if err := s.ledger.AdjustCurrency(ctx, p.PlayerID, prize, economy.ReasonPrize, ref); err != nil {
			log.Printf("[TOURNEY] Prize payout failed for player %d (placement %d): %v",
				p.PlayerID, p.FinalPlacement.Int64, err)
			continue
		}
		p.PrizeAwarded = prize
		if err := s.store.UpdateParticipant(ctx, p); err != nil {
			log.Printf("[TOURNEY] Failed to record prize for participant %d: %v", p.ID, err)
		}
	}

	matches, err := s.store.ListMatches(ctx, t.ID)
	if err != nil {
		return err
	}
	played := make(map[int]int)
	won := make(map[int]int)
	for _, m := range matches {
		if !m.Status.Terminal() {
			continue
		}
		for _, pid := range []sql.NullInt64{m.Player1ID, m.Player2ID} {
			if pid.Valid {
				played[int(pid.Int64)]++
			}
		}
		if m.WinnerID.Valid {
			won[int(m.WinnerID.Int64)]++
		}
	}
	for i := range participants {
		p := &participants[i]
		h := &models.TournamentHistory{
			TournamentID:   t.ID,
			TournamentName: t.Name,
			PlayerID:       p.PlayerID,
			Placement:      p.FinalPlacement,
			Prize:          p.PrizeAwarded,
			MatchesPlayed:  played[p.PlayerID],
			MatchesWon:     won[p.PlayerID],
		}
		if err := s.store.InsertHistory(ctx, h); err != nil {
			log.Printf("[TOURNEY] Failed to write history for player %d: %v", p.PlayerID, err)
		}
	}

	s.publish(ctx, map[string]interface{}{
		"type":          "tournament_completed",
		"tournament_id": t.ID,
		"winner_id":     t.WinnerID.Int64,
		"runner_up_id":  t.RunnerUpID.Int64,
	})
	log.Printf("[TOURNEY] Tournament %d completed: winner=%d runner_up=%d",
		t.ID, t.WinnerID.Int64, t.RunnerUpID.Int64)
	return nil
}

func prizeFor(t *models.Tournament, placement int) int {
	switch placement {
	case 1:
		return t.PrizeFirst
	case 2:
		return t.PrizeSecond
	case 3:
		return t.PrizeThirdFourth
	default:
		return 0
	}
}

// findMatch locates the single match of a round satisfying pred
func (s *Service) findMatch(ctx context.Context, tournamentID, round int, pred func(models.TournamentMatch) bool) (*models.TournamentMatch, error) {
	matches, err := s.store.ListMatches(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if matches[i].Round == round && pred(matches[i]) {
			return &matches[i], nil
		}
	}
	return nil, ErrMatchNotFound
}

func winnerUsername(m *models.TournamentMatch, winnerID int) string {
	if m.Player1ID.Valid && int(m.Player1ID.Int64) == winnerID {
		return m.Player1Username.String
	}
	if m.Player2ID.Valid && int(m.Player2ID.Int64) == winnerID {
		return m.Player2Username.String
	}
	return ""
}
