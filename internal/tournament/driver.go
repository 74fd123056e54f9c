package tournament

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/playarcana/backend/internal/economy"
	"github.com/playarcana/backend/internal/models"
)

// CloseRegistration handles the registrationEndsAt boundary: enough players
// move the tournament into check-in, too few cancel it. Safe to call more
// than once; the status compare-and-set makes extra invocations no-ops.
func (s *Service) CloseRegistration(ctx context.Context, tournamentID int, now time.Time) error {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.TournamentRegistration || now.Before(t.RegistrationEndsAt) {
		return nil
	}

	participants, err := s.store.ListParticipants(ctx, tournamentID)
	if err != nil {
		return err
	}

	if len(participants) < s.cfg.MinParticipants {
		log.Printf("[TOURNEY] Tournament %d has %d registrations, cancelling", tournamentID, len(participants))
		return s.Cancel(ctx, tournamentID, "not enough registrations")
	}

	ok, err := s.store.TransitionStatus(ctx, tournamentID, models.TournamentRegistration, models.TournamentCheckIn)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	s.publish(ctx, map[string]interface{}{
		"type":          "checkin_open",
		"tournament_id": tournamentID,
	})
	log.Printf("[TOURNEY] Tournament %d registration closed, check-in open (%d registered)",
		tournamentID, len(participants))
	return nil
}

// Start handles the checkInEndsAt boundary: forfeit-and-refund the players
// who never checked in, then seed the bracket, generate every match up front,
// resolve byes and kick off the round-1 sessions. Idempotent through the
// checkin -> active compare-and-set.
func (s *Service) Start(ctx context.Context, tournamentID int, now time.Time) error {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.TournamentCheckIn || now.Before(t.CheckInEndsAt) {
		return nil
	}

	participants, err := s.store.ListParticipants(ctx, tournamentID)
	if err != nil {
		return err
	}

	var checkedIn []models.TournamentParticipant
	for _, p := range participants {
		if p.Status == models.ParticipantCheckedIn {
			checkedIn = append(checkedIn, p)
		}
	}

	if len(checkedIn) < s.cfg.MinParticipants {
		log.Printf("[TOURNEY] Tournament %d has %d checked-in players, cancelling", tournamentID, len(checkedIn))
		return s.Cancel(ctx, tournamentID, "not enough checked-in players")
	}

	ok, err := s.store.TransitionStatus(ctx, tournamentID, models.TournamentCheckIn, models.TournamentActive)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	// Registered-but-absent players forfeit with worst placement and get
	// their entry fee back; they paid but never played.
	for i := range participants {
		p := &participants[i]
		if p.Status != models.ParticipantRegistered {
			continue
		}
		p.Status = models.ParticipantForfeit
		p.FinalPlacement = sql.NullInt64{Int64: int64(len(participants)), Valid: true}
		if err := s.store.UpdateParticipant(ctx, p); err != nil {
			log.Printf("[TOURNEY] Failed to forfeit absent participant %d: %v", p.ID, err)
			continue
		}
		s.refundParticipant(ctx, t, p)
	}

	totalRounds := TotalRounds(len(checkedIn))
	bracketSize := 1 << totalRounds

	// ListParticipants orders by seed rating descending, so rank i is seed i+1
	for i := range checkedIn {
		p := &checkedIn[i]
		p.Status = models.ParticipantActive
		p.Seed = sql.NullInt64{Int64: int64(i + 1), Valid: true}
		p.CurrentRound = 1
		if err := s.store.UpdateParticipant(ctx, p); err != nil {
			return fmt.Errorf("activate participant %d: %w", p.ID, err)
		}
	}

	t.TotalRounds = totalRounds
	t.CurrentRound = 1
	t.CheckedInCount = len(checkedIn)
	if err := s.store.UpdateTournament(ctx, t); err != nil {
		return err
	}

	round1, err := s.generateBracket(ctx, t, checkedIn, bracketSize, totalRounds, now)
	if err != nil {
		return err
	}

	s.publish(ctx, map[string]interface{}{
		"type":          "tournament_started",
		"tournament_id": tournamentID,
		"players":       len(checkedIn),
		"bracket_size":  bracketSize,
		"rounds":        totalRounds,
	})
	log.Printf("[TOURNEY] Tournament %d started: players=%d bracket=%d rounds=%d",
		tournamentID, len(checkedIn), bracketSize, totalRounds)

	// Byes resolve without a session; ready matches get one immediately.
	// A session failure here is soft: the match stays ready for the reaper.
	for _, m := range round1 {
		filled := countPlayers(m)
		switch filled {
		case 1:
			if err := s.CompleteMatch(ctx, m, byePlayer(m), models.WinByBye); err != nil {
				log.Printf("[TOURNEY] Bye resolution failed for match %d: %v", m.ID, err)
			}
		case 2:
			s.startMatchSession(ctx, t, m)
		}
	}

	return nil
}

// generateBracket creates every match of every round. Round 1 takes players
// from seeded slots; later rounds reference the two feeder matches that fill
// them. Returns the round-1 matches.
func (s *Service) generateBracket(ctx context.Context, t *models.Tournament, seeded []models.TournamentParticipant, bracketSize, totalRounds int, now time.Time) ([]*models.TournamentMatch, error) {
	slots := SeedOrder(bracketSize)
	bySeed := make(map[int]models.TournamentParticipant, len(seeded))
	for _, p := range seeded {
		bySeed[int(p.Seed.Int64)] = p
	}

	var round1 []*models.TournamentMatch
	prevRound := make([]*models.TournamentMatch, 0, bracketSize/2)
	for number := 1; number <= bracketSize/2; number++ {
		m := &models.TournamentMatch{
			TournamentID: t.ID,
			Round:        1,
			MatchNumber:  number,
			Status:       models.MatchPending,
		}
		if p, ok := bySeed[slots[2*number-2]]; ok {
			m.Player1ID = sql.NullInt64{Int64: int64(p.PlayerID), Valid: true}
			m.Player1Username = sql.NullString{String: p.Username, Valid: true}
		}
		if p, ok := bySeed[slots[2*number-1]]; ok {
			m.Player2ID = sql.NullInt64{Int64: int64(p.PlayerID), Valid: true}
			m.Player2Username = sql.NullString{String: p.Username, Valid: true}
		}
		if countPlayers(m) == 2 {
			m.Status = models.MatchReady
			m.ReadyAt = sql.NullTime{Time: now, Valid: true}
		}
		if err := s.store.InsertMatch(ctx, m); err != nil {
			return nil, fmt.Errorf("insert round 1 match %d: %w", number, err)
		}
		prevRound = append(prevRound, m)
	}
	round1 = prevRound

	for round := 2; round <= totalRounds; round++ {
		count := bracketSize / (1 << round)
		current := make([]*models.TournamentMatch, 0, count)
		for number := 1; number <= count; number++ {
			m := &models.TournamentMatch{
				TournamentID:   t.ID,
				Round:          round,
				MatchNumber:    number,
				Status:         models.MatchPending,
				SourceMatch1ID: sql.NullInt64{Int64: int64(prevRound[2*number-2].ID), Valid: true},
				SourceMatch2ID: sql.NullInt64{Int64: int64(prevRound[2*number-1].ID), Valid: true},
			}
			if err := s.store.InsertMatch(ctx, m); err != nil {
				return nil, fmt.Errorf("insert round %d match %d: %w", round, number, err)
			}
			current = append(current, m)
		}
		prevRound = current
	}

	return round1, nil
}

// Cancel refunds every participant not already refunded and marks the
// tournament cancelled. Safe against partial refund state and repeat calls.
func (s *Service) Cancel(ctx context.Context, tournamentID int, reason string) error {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if t.Status.Terminal() {
		return nil
	}

	ok, err := s.store.TransitionStatus(ctx, tournamentID, t.Status, models.TournamentCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	participants, err := s.store.ListParticipants(ctx, tournamentID)
	if err != nil {
		return err
	}
	for i := range participants {
		s.refundParticipant(ctx, t, &participants[i])
	}

	s.publish(ctx, map[string]interface{}{
		"type":          "tournament_cancelled",
		"tournament_id": tournamentID,
		"reason":        reason,
	})
	log.Printf("[TOURNEY] Tournament %d cancelled: %s", tournamentID, reason)
	return nil
}

// refundParticipant returns the entry fee once. Refund failures are logged
// and retried on the next cancellation sweep rather than blocking the rest.
func (s *Service) refundParticipant(ctx context.Context, t *models.Tournament, p *models.TournamentParticipant) {
	if p.Status == models.ParticipantRefunded || p.FeePaid <= 0 {
		return
	}
	ref := fmt.Sprintf("tournament:%d", t.ID)
	if err := s.ledger.AdjustCurrency(ctx, p.PlayerID, p.FeePaid, economy.ReasonRefund, ref); err != nil {
		log.Printf("[TOURNEY] Refund failed for player %d in tournament %d: %v", p.PlayerID, t.ID, err)
		return
	}
	p.Status = models.ParticipantRefunded
	if err := s.store.UpdateParticipant(ctx, p); err != nil {
		log.Printf("[TOURNEY] Failed to mark participant %d refunded: %v", p.ID, err)
	}
}

// SweepPhases is the periodic catch-up for phase boundaries whose one-time
// trigger was missed (restart, scheduler hiccup). Transitions are idempotent
// so overlapping with the one-time jobs is harmless.
func (s *Service) SweepPhases(ctx context.Context, now time.Time) {
	pending, err := s.store.ListByStatus(ctx,
		models.TournamentRegistration, models.TournamentCheckIn, models.TournamentActive)
	if err != nil {
		log.Printf("[TOURNEY] Phase sweep failed: %v", err)
		return
	}
	for i := range pending {
		t := &pending[i]
		switch t.Status {
		case models.TournamentRegistration:
			if !now.Before(t.RegistrationEndsAt) {
				if err := s.CloseRegistration(ctx, t.ID, now); err != nil {
					log.Printf("[TOURNEY] Sweep: close registration for %d failed: %v", t.ID, err)
				}
			}
		case models.TournamentCheckIn:
			if !now.Before(t.CheckInEndsAt) {
				if err := s.Start(ctx, t.ID, now); err != nil {
					log.Printf("[TOURNEY] Sweep: start for %d failed: %v", t.ID, err)
				}
			}
		case models.TournamentActive:
			s.resumeBracket(ctx, t)
		}
	}
}

// resumeBracket replays advancement that was lost mid-completion: a process
// death between the match result write and the winner feed leaves the next
// match pending with an empty slot, which nothing else would ever touch
// (the reaper only looks at ready and active matches). Every replayed step
// is idempotent, so overlapping with live completions is safe.
func (s *Service) resumeBracket(ctx context.Context, t *models.Tournament) {
	matches, err := s.store.ListMatches(ctx, t.ID)
	if err != nil {
		log.Printf("[TOURNEY] Bracket resume failed for tournament %d: %v", t.ID, err)
		return
	}

	downstream := func(m *models.TournamentMatch) *models.TournamentMatch {
		for i := range matches {
			c := &matches[i]
			if c.Round != m.Round+1 {
				continue
			}
			if (c.SourceMatch1ID.Valid && int(c.SourceMatch1ID.Int64) == m.ID) ||
				(c.SourceMatch2ID.Valid && int(c.SourceMatch2ID.Int64) == m.ID) {
				return c
			}
		}
		return nil
	}

	for i := range matches {
		m := &matches[i]
		if !m.Status.Terminal() {
			continue
		}
		if m.Round == t.TotalRounds {
			// final settled but the tournament is still active: finalize
			// never ran to completion
			if err := s.finalize(ctx, t, m); err != nil {
				log.Printf("[TOURNEY] Resume: finalize for tournament %d failed: %v", t.ID, err)
			}
			continue
		}
		next := downstream(m)
		if next == nil || next.Status != models.MatchPending {
			continue
		}
		winnerID := 0
		if m.WinnerID.Valid {
			winnerID = int(m.WinnerID.Int64)
			_, slot := NextMatchNumber(m.MatchNumber)
			if (slot == 1 && next.Player1ID.Valid) || (slot == 2 && next.Player2ID.Valid) {
				// already fed; the next match is just waiting on its sibling
				continue
			}
			s.bumpWinnerRound(ctx, t, winnerID, m.Round+1)
		}
		log.Printf("[TOURNEY] Resume: re-feeding match %d result into match %d", m.ID, next.ID)
		if err := s.feedForward(ctx, t, m, winnerID); err != nil {
			log.Printf("[TOURNEY] Resume: feed from match %d failed: %v", m.ID, err)
			continue
		}
		s.maybeAdvanceRound(ctx, t.ID, m.Round)
	}
}

func countPlayers(m *models.TournamentMatch) int {
	n := 0
	if m.Player1ID.Valid {
		n++
	}
	if m.Player2ID.Valid {
		n++
	}
	return n
}

// byePlayer returns the single present player of a one-sided match
func byePlayer(m *models.TournamentMatch) int {
	if m.Player1ID.Valid {
		return int(m.Player1ID.Int64)
	}
	if m.Player2ID.Valid {
		return int(m.Player2ID.Int64)
	}
	return 0
}
