package rating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/playarcana/backend/internal/models"
)

// DefaultRating is assigned to players with no recorded rating for a mode
const DefaultRating = 1000

// ErrNoActiveDeck is returned when a player has no active deck selected
var ErrNoActiveDeck = errors.New("player has no active deck")

// Provider supplies a player's current rating and deck selection
type Provider interface {
	GetRating(ctx context.Context, playerID int, mode models.Mode) (int, error)
	GetActiveDeck(ctx context.Context, playerID int) (string, error)
}

// SQLProvider reads ratings and decks from Postgres
type SQLProvider struct {
	db *sqlx.DB
}

func NewSQLProvider(db *sqlx.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

func (p *SQLProvider) GetRating(ctx context.Context, playerID int, mode models.Mode) (int, error) {
	var r int
	err := p.db.GetContext(ctx, &r, `SELECT rating FROM player_ratings WHERE player_id=$1 AND mode=$2`, playerID, mode)
	if err == sql.ErrNoRows {
		return DefaultRating, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rating for player %d: %w", playerID, err)
	}
	return r, nil
}

// GetActiveDeck returns the archetype of the player's active deck
func (p *SQLProvider) GetActiveDeck(ctx context.Context, playerID int) (string, error) {
	var archetype string
	err := p.db.GetContext(ctx, &archetype, `SELECT archetype FROM decks WHERE player_id=$1 AND is_active=true LIMIT 1`, playerID)
	if err == sql.ErrNoRows {
		return "", ErrNoActiveDeck
	}
	if err != nil {
		return "", fmt.Errorf("get active deck for player %d: %w", playerID, err)
	}
	return archetype, nil
}
