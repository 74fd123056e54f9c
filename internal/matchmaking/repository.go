package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/playarcana/backend/internal/models"
)

var (
	ErrAlreadyQueued = errors.New("player already in queue")
	ErrNotInQueue    = errors.New("player not in queue")
)

// Repository holds the set of outstanding matchmaking tickets. Insert must
// reject a second active ticket for the same player atomically, and ClaimPair
// must remove both tickets in one transaction so a pair can never be claimed
// by two concurrent passes.
type Repository interface {
	Insert(ctx context.Context, t *models.QueueTicket) error
	DeleteByPlayer(ctx context.Context, playerID int) error
	GetByPlayer(ctx context.Context, playerID int) (*models.QueueTicket, error)
	SnapshotByMode(ctx context.Context, mode models.Mode) ([]models.QueueTicket, error)
	ClaimPair(ctx context.Context, ticketID1, ticketID2 int) (bool, error)
	DeleteExpired(ctx context.Context, olderThan time.Time, limit int) (int, error)
	CountByMode(ctx context.Context, mode models.Mode) (int, error)
}
