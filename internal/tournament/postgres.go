package tournament

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playarcana/backend/internal/models"
)

// PostgresStore is the production Store backed by Postgres
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tournamentColumns = `id, name, mode, max_players, entry_fee, prize_first, prize_second,
	prize_third_fourth, status, registration_ends_at, checkin_ends_at, scheduled_start_at,
	current_round, total_rounds, registered_count, checked_in_count, winner_id, runner_up_id,
	created_by, created_at`

func (s *PostgresStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO tournaments (name, mode, max_players, entry_fee, prize_first, prize_second,
			prize_third_fourth, status, registration_ends_at, checkin_ends_at, scheduled_start_at,
			created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
		RETURNING id, created_at
	`, t.Name, t.Mode, t.MaxPlayers, t.EntryFee, t.PrizeFirst, t.PrizeSecond,
		t.PrizeThirdFourth, t.Status, t.RegistrationEndsAt, t.CheckInEndsAt, t.ScheduledStartAt,
		t.CreatedBy).Scan(&t.ID, &t.CreatedAt)
}

func (s *PostgresStore) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	var t models.Tournament
	err := s.db.GetContext(ctx, &t, `SELECT `+tournamentColumns+` FROM tournaments WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...models.TournamentStatus) ([]models.Tournament, error) {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}
	var out []models.Tournament
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+tournamentColumns+` FROM tournaments
		WHERE status = ANY($1)
		ORDER BY scheduled_start_at
	`, pq.Array(strs))
	return out, err
}

func (s *PostgresStore) TransitionStatus(ctx context.Context, id int, from, to models.TournamentStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tournaments SET status=$1 WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *PostgresStore) UpdateTournament(ctx context.Context, t *models.Tournament) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tournaments
		SET current_round=$1, total_rounds=$2, registered_count=$3, checked_in_count=$4,
		    winner_id=$5, runner_up_id=$6
		WHERE id=$7
	`, t.CurrentRound, t.TotalRounds, t.RegisteredCount, t.CheckedInCount,
		t.WinnerID, t.RunnerUpID, t.ID)
	return err
}

func (s *PostgresStore) IncrementCheckedIn(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tournaments SET checked_in_count = checked_in_count + 1 WHERE id=$1`, id)
	return err
}

const participantColumns = `id, tournament_id, player_id, username, seed_rating, status, seed,
	current_round, eliminated_round, final_placement, prize_awarded, fee_paid, registered_at`

func (s *PostgresStore) InsertParticipant(ctx context.Context, p *models.TournamentParticipant) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO tournament_participants (tournament_id, player_id, username, seed_rating,
			status, fee_paid, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		RETURNING id, registered_at
	`, p.TournamentID, p.PlayerID, p.Username, p.SeedRating, p.Status, p.FeePaid).Scan(&p.ID, &p.RegisteredAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrAlreadyRegistered
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetParticipant(ctx context.Context, tournamentID, playerID int) (*models.TournamentParticipant, error) {
	var p models.TournamentParticipant
	err := s.db.GetContext(ctx, &p, `
		SELECT `+participantColumns+` FROM tournament_participants
		WHERE tournament_id=$1 AND player_id=$2
	`, tournamentID, playerID)
	if err == sql.ErrNoRows {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, tournamentID int) ([]models.TournamentParticipant, error) {
	var out []models.TournamentParticipant
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+participantColumns+` FROM tournament_participants
		WHERE tournament_id=$1
		ORDER BY seed_rating DESC, registered_at
	`, tournamentID)
	return out, err
}

func (s *PostgresStore) UpdateParticipant(ctx context.Context, p *models.TournamentParticipant) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tournament_participants
		SET status=$1, seed=$2, current_round=$3, eliminated_round=$4, final_placement=$5,
		    prize_awarded=$6
		WHERE id=$7
	`, p.Status, p.Seed, p.CurrentRound, p.EliminatedRound, p.FinalPlacement, p.PrizeAwarded, p.ID)
	return err
}

const matchColumns = `id, tournament_id, round, match_number, player1_id, player1_username,
	player2_id, player2_username, source_match1_id, source_match2_id, status, winner_id,
	loser_id, win_reason, session_id, ready_at, completed_at`

func (s *PostgresStore) InsertMatch(ctx context.Context, m *models.TournamentMatch) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO tournament_matches (tournament_id, round, match_number, player1_id,
			player1_username, player2_id, player2_username, source_match1_id, source_match2_id,
			status, ready_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, m.TournamentID, m.Round, m.MatchNumber, m.Player1ID, m.Player1Username,
		m.Player2ID, m.Player2Username, m.SourceMatch1ID, m.SourceMatch2ID,
		m.Status, m.ReadyAt).Scan(&m.ID)
}

func (s *PostgresStore) GetMatch(ctx context.Context, id int) (*models.TournamentMatch, error) {
	var m models.TournamentMatch
	err := s.db.GetContext(ctx, &m, `SELECT `+matchColumns+` FROM tournament_matches WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) GetMatchBySession(ctx context.Context, sessionID int) (*models.TournamentMatch, error) {
	var m models.TournamentMatch
	err := s.db.GetContext(ctx, &m, `SELECT `+matchColumns+` FROM tournament_matches WHERE session_id=$1`, sessionID)
	if err == sql.ErrNoRows {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, tournamentID int) ([]models.TournamentMatch, error) {
	var out []models.TournamentMatch
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+matchColumns+` FROM tournament_matches
		WHERE tournament_id=$1
		ORDER BY round, match_number
	`, tournamentID)
	return out, err
}

func (s *PostgresStore) UpdateMatch(ctx context.Context, m *models.TournamentMatch) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tournament_matches
		SET player1_id=$1, player1_username=$2, player2_id=$3, player2_username=$4,
		    status=$5, winner_id=$6, loser_id=$7, win_reason=$8, session_id=$9,
		    ready_at=$10, completed_at=$11
		WHERE id=$12
	`, m.Player1ID, m.Player1Username, m.Player2ID, m.Player2Username,
		m.Status, m.WinnerID, m.LoserID, m.WinReason, m.SessionID,
		m.ReadyAt, m.CompletedAt, m.ID)
	return err
}

func (s *PostgresStore) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]models.TournamentMatch, error) {
	var out []models.TournamentMatch
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+matchColumns+` FROM tournament_matches
		WHERE status IN ('ready','active') AND ready_at IS NOT NULL AND ready_at < $1
		ORDER BY tournament_id, round, match_number
	`, cutoff)
	return out, err
}

func (s *PostgresStore) InsertHistory(ctx context.Context, h *models.TournamentHistory) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO tournament_history (tournament_id, tournament_name, player_id, placement,
			prize, matches_played, matches_won, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (tournament_id, player_id) DO NOTHING
		RETURNING id
	`, h.TournamentID, h.TournamentName, h.PlayerID, h.Placement, h.Prize,
		h.MatchesPlayed, h.MatchesWon).Scan(&h.ID)
	if err == sql.ErrNoRows {
		// conflict: history for this participant was already written
		return nil
	}
	return err
}

func (s *PostgresStore) ListHistoryForPlayer(ctx context.Context, playerID int) ([]models.TournamentHistory, error) {
	var out []models.TournamentHistory
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, tournament_id, tournament_name, player_id, placement, prize,
		       matches_played, matches_won, created_at
		FROM tournament_history
		WHERE player_id=$1
		ORDER BY created_at DESC
	`, playerID)
	return out, err
}
