package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/playarcana/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadySettled  = errors.New("session already settled")
	ErrNotParticipant  = errors.New("player is not part of this session")
)

// Factory creates live match sessions and answers liveness queries.
// The turn engine behind a session is a separate collaborator; this
// package only owns the session record and its outcome.
type Factory interface {
	CreateSession(ctx context.Context, player1ID, player2ID int, mode models.Mode) (*models.MatchSession, error)
	HasLiveSession(ctx context.Context, playerID int) (bool, error)
}

// Store is the Postgres-backed session factory
type Store struct {
	db  *sqlx.DB
	rdb *redis.Client
}

func NewStore(db *sqlx.DB, rdb *redis.Client) *Store {
	return &Store{db: db, rdb: rdb}
}

// CreateSession inserts a new waiting session with a uniformly random first
// turn and announces it on the game_events channel.
func (s *Store) CreateSession(ctx context.Context, player1ID, player2ID int, mode models.Mode) (*models.MatchSession, error) {
	token := uuid.NewString()
	firstTurn := player1ID
	if rand.Intn(2) == 1 {
		firstTurn = player2ID
	}

	var sess models.MatchSession
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO match_sessions (token, mode, player1_id, player2_id, first_turn_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'waiting', NOW())
		RETURNING id, token, mode, player1_id, player2_id, first_turn_id, status,
		          winner_id, loser_id, player1_connected, player2_connected,
		          created_at, started_at, completed_at
	`, token, mode, player1ID, player2ID, firstTurn).StructScan(&sess)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.publish(ctx, map[string]interface{}{
		"type":          "match_found",
		"session_token": token,
		"mode":          mode,
		"player1_id":    player1ID,
		"player2_id":    player2ID,
		"first_turn_id": firstTurn,
	})

	log.Printf("[SESSION] Created session %s: players=[%d,%d] mode=%s first_turn=%d",
		token, player1ID, player2ID, mode, firstTurn)
	return &sess, nil
}

// HasLiveSession reports whether the player is in a waiting or in-progress session
func (s *Store) HasLiveSession(ctx context.Context, playerID int) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM match_sessions
		WHERE (player1_id=$1 OR player2_id=$1) AND status IN ('waiting','in_progress')
	`, playerID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetSessionByID loads a session by its internal id
func (s *Store) GetSessionByID(ctx context.Context, id int) (*models.MatchSession, error) {
	var sess models.MatchSession
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, token, mode, player1_id, player2_id, first_turn_id, status,
		       winner_id, loser_id, player1_connected, player2_connected,
		       created_at, started_at, completed_at
		FROM match_sessions WHERE id=$1
	`, id)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetByToken loads a session by its external token
func (s *Store) GetByToken(ctx context.Context, token string) (*models.MatchSession, error) {
	var sess models.MatchSession
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, token, mode, player1_id, player2_id, first_turn_id, status,
		       winner_id, loser_id, player1_connected, player2_connected,
		       created_at, started_at, completed_at
		FROM match_sessions WHERE token=$1
	`, token)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// MarkConnected records that a player has joined their session. Once both
// players are connected the session flips to in_progress.
func (s *Store) MarkConnected(ctx context.Context, token string, playerID int) error {
	sess, err := s.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	var col string
	switch playerID {
	case sess.Player1ID:
		col = "player1_connected"
	case sess.Player2ID:
		col = "player2_connected"
	default:
		return ErrNotParticipant
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE match_sessions SET %s=true WHERE token=$1`, col), token); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE match_sessions
		SET status='in_progress', started_at=NOW()
		WHERE token=$1 AND status='waiting' AND player1_connected AND player2_connected
	`, token)
	return err
}

// CompleteSession records exactly one (winner, loser) outcome for the session.
// A second report for the same session fails with ErrAlreadySettled.
func (s *Store) CompleteSession(ctx context.Context, token string, winnerID int) (*models.MatchSession, error) {
	sess, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionCompleted || sess.Status == models.SessionAbandoned {
		return nil, ErrAlreadySettled
	}

	loserID := sess.Player1ID
	if winnerID == sess.Player1ID {
		loserID = sess.Player2ID
	} else if winnerID != sess.Player2ID {
		return nil, ErrNotParticipant
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE match_sessions
		SET status='completed', winner_id=$1, loser_id=$2, completed_at=NOW()
		WHERE token=$3 AND status IN ('waiting','in_progress')
	`, winnerID, loserID, token)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrAlreadySettled
	}

	// Best-effort stats bump; the session outcome itself is already durable
	if _, err := s.db.ExecContext(ctx, `UPDATE players SET total_games_played=total_games_played+1 WHERE id IN ($1,$2)`, winnerID, loserID); err != nil {
		log.Printf("[SESSION] Failed to bump games played for session %s: %v", token, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE players SET total_games_won=total_games_won+1 WHERE id=$1`, winnerID); err != nil {
		log.Printf("[SESSION] Failed to bump games won for session %s: %v", token, err)
	}

	return s.GetByToken(ctx, token)
}

func (s *Store) publish(ctx context.Context, payload map[string]interface{}) {
	if s.rdb == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, "game_events", b).Err(); err != nil {
		log.Printf("[SESSION] publish failed: %v", err)
	}
}
