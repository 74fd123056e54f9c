package tournament

import (
	"context"
	"errors"
	"time"

	"github.com/playarcana/backend/internal/models"
)

var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrMatchNotFound       = errors.New("match not found")
	ErrAlreadyRegistered   = errors.New("player already registered")
)

// Store persists tournaments, participants and the bracket. TransitionStatus
// is a compare-and-set: it only applies the change when the tournament is
// still in the expected phase, which makes every phase procedure idempotent.
type Store interface {
	CreateTournament(ctx context.Context, t *models.Tournament) error
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListByStatus(ctx context.Context, statuses ...models.TournamentStatus) ([]models.Tournament, error)
	TransitionStatus(ctx context.Context, id int, from, to models.TournamentStatus) (bool, error)
	UpdateTournament(ctx context.Context, t *models.Tournament) error
	IncrementCheckedIn(ctx context.Context, id int) error

	InsertParticipant(ctx context.Context, p *models.TournamentParticipant) error
	GetParticipant(ctx context.Context, tournamentID, playerID int) (*models.TournamentParticipant, error)
	ListParticipants(ctx context.Context, tournamentID int) ([]models.TournamentParticipant, error)
	UpdateParticipant(ctx context.Context, p *models.TournamentParticipant) error

	InsertMatch(ctx context.Context, m *models.TournamentMatch) error
	GetMatch(ctx context.Context, id int) (*models.TournamentMatch, error)
	GetMatchBySession(ctx context.Context, sessionID int) (*models.TournamentMatch, error)
	ListMatches(ctx context.Context, tournamentID int) ([]models.TournamentMatch, error)
	UpdateMatch(ctx context.Context, m *models.TournamentMatch) error
	ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]models.TournamentMatch, error)

	InsertHistory(ctx context.Context, h *models.TournamentHistory) error
	ListHistoryForPlayer(ctx context.Context, playerID int) ([]models.TournamentHistory, error)
}
