package matchmaking

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playarcana/backend/internal/models"
)

// PostgresRepository stores queue tickets in the queue_tickets table
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ticketColumns = `id, player_id, username, mode, rating, deck_archetype, joined_at, expires_at`

// Insert adds a ticket. The unique index on player_id closes the double-join
// race: a concurrent duplicate insert fails the constraint and is surfaced as
// ErrAlreadyQueued.
func (r *PostgresRepository) Insert(ctx context.Context, t *models.QueueTicket) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO queue_tickets (player_id, username, mode, rating, deck_archetype, joined_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, t.PlayerID, t.Username, t.Mode, t.Rating, t.DeckArchetype, t.JoinedAt, t.ExpiresAt).Scan(&t.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrAlreadyQueued
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) DeleteByPlayer(ctx context.Context, playerID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queue_tickets WHERE player_id=$1`, playerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotInQueue
	}
	return nil
}

func (r *PostgresRepository) GetByPlayer(ctx context.Context, playerID int) (*models.QueueTicket, error) {
	var t models.QueueTicket
	err := r.db.GetContext(ctx, &t, `SELECT `+ticketColumns+` FROM queue_tickets WHERE player_id=$1`, playerID)
	if err == sql.ErrNoRows {
		return nil, ErrNotInQueue
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) SnapshotByMode(ctx context.Context, mode models.Mode) ([]models.QueueTicket, error) {
	var tickets []models.QueueTicket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+` FROM queue_tickets
		WHERE mode=$1 AND expires_at > NOW()
		ORDER BY rating
	`, mode)
	return tickets, err
}

// ClaimPair deletes both tickets in one transaction. It reports false when
// either ticket is already gone, which means another pass (or a leave) beat
// us to one of them and the pairing must be skipped.
func (r *PostgresRepository) ClaimPair(ctx context.Context, ticketID1, ticketID2 int) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var claimed []int
	if err := tx.Select(&claimed, `
		DELETE FROM queue_tickets WHERE id IN ($1, $2) RETURNING id
	`, ticketID1, ticketID2); err != nil {
		return false, err
	}
	if len(claimed) != 2 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM queue_tickets
		WHERE id IN (
			SELECT id FROM queue_tickets WHERE joined_at < $1 LIMIT $2
		)
	`, olderThan, limit)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *PostgresRepository) CountByMode(ctx context.Context, mode models.Mode) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM queue_tickets WHERE mode=$1`, mode)
	return count, err
}
