package economy

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// adjustment reasons recorded in the audit trail
const (
	ReasonEntryFee = "tournament_entry_fee"
	ReasonRefund   = "tournament_refund"
	ReasonPrize    = "tournament_prize"
)

// ErrInsufficientFunds is returned when a debit would take a balance negative
var ErrInsufficientFunds = fmt.Errorf("insufficient funds")

// Ledger debits and credits player currency with an auditable reason.
// Implementations must apply each adjustment atomically.
type Ledger interface {
	AdjustCurrency(ctx context.Context, playerID, amount int, reason, referenceID string) error
}

// SQLLedger is the Postgres-backed Ledger
type SQLLedger struct {
	db *sqlx.DB
}

func NewSQLLedger(db *sqlx.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

// AdjustCurrency applies a single balance delta to a player and records an
// audit row. The player row is locked for the duration of the transaction so
// concurrent adjustments serialize. Negative deltas that would overdraw the
// balance fail with ErrInsufficientFunds and leave no trace.
func (l *SQLLedger) AdjustCurrency(ctx context.Context, playerID, amount int, reason, referenceID string) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	if err := tx.Get(&balance, `SELECT balance FROM players WHERE id=$1 FOR UPDATE`, playerID); err != nil {
		return fmt.Errorf("lock player %d: %w", playerID, err)
	}

	newBalance := balance + amount
	if newBalance < 0 {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(`UPDATE players SET balance=$1 WHERE id=$2`, newBalance, playerID); err != nil {
		return err
	}

	ref := sql.NullString{String: referenceID, Valid: referenceID != ""}
	if _, err := tx.Exec(`
		INSERT INTO currency_transactions (player_id, amount, reason, reference_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, playerID, amount, reason, ref, newBalance); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("[LEDGER] Adjustment applied: player=%d amount=%d reason=%s ref=%s balance=%d",
		playerID, amount, reason, referenceID, newBalance)
	return nil
}
