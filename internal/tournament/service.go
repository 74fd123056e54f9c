package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/playarcana/backend/internal/config"
	"github.com/playarcana/backend/internal/economy"
	"github.com/playarcana/backend/internal/models"
	"github.com/playarcana/backend/internal/rating"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationClosed = errors.New("registration window is closed")
	ErrCheckInClosed      = errors.New("check-in window is closed")
	ErrTournamentFull     = errors.New("tournament is full")
	ErrNotRegistered      = errors.New("player is not registered")
	ErrWrongPhase         = errors.New("tournament is not in the required phase")
	ErrInvalidWindows     = errors.New("tournament windows must be ordered: registration end <= check-in end <= start")
	ErrInvalidBracket     = errors.New("bracket size must be 8, 16 or 32")
)

// PhaseScheduler schedules the per-tournament phase boundary triggers
type PhaseScheduler interface {
	At(at time.Time, name string, task func()) error
}

// Sessions is the session factory surface the bracket engine consumes
type Sessions interface {
	CreateSession(ctx context.Context, player1ID, player2ID int, mode models.Mode) (*models.MatchSession, error)
	GetSessionByID(ctx context.Context, id int) (*models.MatchSession, error)
}

// Service owns the tournament lifecycle: creation, registration, check-in,
// phase transitions, bracket progress and settlement.
type Service struct {
	store    Store
	ledger   economy.Ledger
	ratings  rating.Provider
	sessions Sessions
	sched    PhaseScheduler
	rdb      *redis.Client
	cfg      *config.Config
}

func NewService(store Store, ledger economy.Ledger, ratings rating.Provider, sessions Sessions, sched PhaseScheduler, rdb *redis.Client, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		ledger:   ledger,
		ratings:  ratings,
		sessions: sessions,
		sched:    sched,
		rdb:      rdb,
		cfg:      cfg,
	}
}

// CreateRequest carries the admin parameters for a new tournament
type CreateRequest struct {
	Name               string      `json:"name"`
	Mode               models.Mode `json:"mode"`
	MaxPlayers         int         `json:"max_players"`
	EntryFee           int         `json:"entry_fee"`
	PrizeFirst         int         `json:"prize_first"`
	PrizeSecond        int         `json:"prize_second"`
	PrizeThirdFourth   int         `json:"prize_third_fourth"`
	RegistrationEndsAt time.Time   `json:"registration_ends_at"`
	CheckInEndsAt      time.Time   `json:"checkin_ends_at"`
	ScheduledStartAt   time.Time   `json:"scheduled_start_at"`
}

// Create validates and persists a tournament, then schedules its phase
// boundary triggers.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy string) (*models.Tournament, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("tournament name is required")
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if req.MaxPlayers != 8 && req.MaxPlayers != 16 && req.MaxPlayers != 32 {
		return nil, ErrInvalidBracket
	}
	if req.EntryFee < 0 || req.PrizeFirst < 0 || req.PrizeSecond < 0 || req.PrizeThirdFourth < 0 {
		return nil, fmt.Errorf("fees and prizes must be non-negative")
	}
	if req.RegistrationEndsAt.After(req.CheckInEndsAt) || req.CheckInEndsAt.After(req.ScheduledStartAt) {
		return nil, ErrInvalidWindows
	}
	if !req.RegistrationEndsAt.After(time.Now()) {
		return nil, fmt.Errorf("registration window must end in the future")
	}

	t := &models.Tournament{
		Name:               req.Name,
		Mode:               req.Mode,
		MaxPlayers:         req.MaxPlayers,
		EntryFee:           req.EntryFee,
		PrizeFirst:         req.PrizeFirst,
		PrizeSecond:        req.PrizeSecond,
		PrizeThirdFourth:   req.PrizeThirdFourth,
		Status:             models.TournamentRegistration,
		RegistrationEndsAt: req.RegistrationEndsAt,
		CheckInEndsAt:      req.CheckInEndsAt,
		ScheduledStartAt:   req.ScheduledStartAt,
		CreatedBy:          createdBy,
	}
	if err := s.store.CreateTournament(ctx, t); err != nil {
		return nil, err
	}

	s.schedulePhases(t)
	log.Printf("[TOURNEY] Created tournament %d %q (mode=%s size=%d fee=%d)",
		t.ID, t.Name, t.Mode, t.MaxPlayers, t.EntryFee)
	return t, nil
}

// schedulePhases registers the one-time phase boundary triggers for t
func (s *Service) schedulePhases(t *models.Tournament) {
	if s.sched == nil {
		return
	}
	id := t.ID
	if err := s.sched.At(t.RegistrationEndsAt, fmt.Sprintf("tournament-%d-close-registration", id), func() {
		if err := s.CloseRegistration(context.Background(), id, time.Now()); err != nil {
			log.Printf("[TOURNEY] Close registration for %d failed: %v", id, err)
		}
	}); err != nil {
		log.Printf("[TOURNEY] Failed to schedule registration close for %d: %v", id, err)
	}
	if err := s.sched.At(t.CheckInEndsAt, fmt.Sprintf("tournament-%d-start", id), func() {
		if err := s.Start(context.Background(), id, time.Now()); err != nil {
			log.Printf("[TOURNEY] Start for %d failed: %v", id, err)
		}
	}); err != nil {
		log.Printf("[TOURNEY] Failed to schedule start for %d: %v", id, err)
	}
}

// ReschedulePending re-registers phase triggers for every non-terminal
// tournament. Called once on startup; triggers whose boundary has already
// passed fire immediately and the idempotent transitions sort themselves out.
func (s *Service) ReschedulePending(ctx context.Context) error {
	pending, err := s.store.ListByStatus(ctx, models.TournamentRegistration, models.TournamentCheckIn)
	if err != nil {
		return err
	}
	for i := range pending {
		s.schedulePhases(&pending[i])
	}
	if len(pending) > 0 {
		log.Printf("[TOURNEY] Rescheduled phase triggers for %d pending tournaments", len(pending))
	}
	return nil
}

// Register enrolls a player. The entry fee is debited before the participant
// row is written; a debit failure aborts the registration entirely.
func (s *Service) Register(ctx context.Context, tournamentID, playerID int, username string) (*models.TournamentParticipant, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TournamentRegistration || time.Now().After(t.RegistrationEndsAt) {
		return nil, ErrRegistrationClosed
	}

	participants, err := s.store.ListParticipants(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(participants) >= t.MaxPlayers {
		return nil, ErrTournamentFull
	}
	for _, p := range participants {
		if p.PlayerID == playerID {
			return nil, ErrAlreadyRegistered
		}
	}

	if _, err := s.ratings.GetActiveDeck(ctx, playerID); err != nil {
		return nil, err
	}
	seedRating, err := s.ratings.GetRating(ctx, playerID, t.Mode)
	if err != nil {
		return nil, err
	}

	if t.EntryFee > 0 {
		ref := fmt.Sprintf("tournament:%d", tournamentID)
		if err := s.ledger.AdjustCurrency(ctx, playerID, -t.EntryFee, economy.ReasonEntryFee, ref); err != nil {
			return nil, fmt.Errorf("entry fee: %w", err)
		}
	}

	p := &models.TournamentParticipant{
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Username:     username,
		SeedRating:   seedRating,
		Status:       models.ParticipantRegistered,
		FeePaid:      t.EntryFee,
	}
	if err := s.store.InsertParticipant(ctx, p); err != nil {
		// the fee is already taken; give it back before surfacing the error
		if t.EntryFee > 0 {
			ref := fmt.Sprintf("tournament:%d", tournamentID)
			if rerr := s.ledger.AdjustCurrency(ctx, playerID, t.EntryFee, economy.ReasonRefund, ref); rerr != nil {
				log.Printf("[TOURNEY] FAILED to refund entry fee after insert error: tournament=%d player=%d: %v",
					tournamentID, playerID, rerr)
			}
		}
		return nil, err
	}

	t.RegisteredCount = len(participants) + 1
	if err := s.store.UpdateTournament(ctx, t); err != nil {
		log.Printf("[TOURNEY] Failed to update registered count for %d: %v", tournamentID, err)
	}

	log.Printf("[TOURNEY] Player %d registered for tournament %d (seed_rating=%d)", playerID, tournamentID, seedRating)
	return p, nil
}

// CheckIn flips a registered participant to checked_in during the check-in window
func (s *Service) CheckIn(ctx context.Context, tournamentID, playerID int) error {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if t.Status != models.TournamentCheckIn || time.Now().After(t.CheckInEndsAt) {
		return ErrCheckInClosed
	}

	p, err := s.store.GetParticipant(ctx, tournamentID, playerID)
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return ErrNotRegistered
		}
		return err
	}
	if p.Status != models.ParticipantRegistered {
		return fmt.Errorf("participant is %s, expected registered", p.Status)
	}

	p.Status = models.ParticipantCheckedIn
	if err := s.store.UpdateParticipant(ctx, p); err != nil {
		return err
	}

	// counter increment runs in the store so concurrent check-ins cannot
	// lose each other's update
	if err := s.store.IncrementCheckedIn(ctx, tournamentID); err != nil {
		log.Printf("[TOURNEY] Failed to update checked-in count for %d: %v", tournamentID, err)
	}

	log.Printf("[TOURNEY] Player %d checked in for tournament %d", playerID, tournamentID)
	return nil
}

// ListActive returns tournaments visible to the lobby
func (s *Service) ListActive(ctx context.Context) ([]models.Tournament, error) {
	return s.store.ListByStatus(ctx,
		models.TournamentRegistration, models.TournamentCheckIn, models.TournamentActive)
}

// Details returns a tournament with its participant list
func (s *Service) Details(ctx context.Context, id int) (*models.Tournament, []models.TournamentParticipant, error) {
	t, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	participants, err := s.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return t, participants, nil
}

// Bracket returns all matches of a tournament grouped by round
func (s *Service) Bracket(ctx context.Context, id int) (map[int][]models.TournamentMatch, error) {
	if _, err := s.store.GetTournament(ctx, id); err != nil {
		return nil, err
	}
	matches, err := s.store.ListMatches(ctx, id)
	if err != nil {
		return nil, err
	}
	rounds := make(map[int][]models.TournamentMatch)
	for _, m := range matches {
		rounds[m.Round] = append(rounds[m.Round], m)
	}
	return rounds, nil
}

// History returns a player's past tournament results
func (s *Service) History(ctx context.Context, playerID int) ([]models.TournamentHistory, error) {
	return s.store.ListHistoryForPlayer(ctx, playerID)
}

// publish announces a tournament event on the tournament_events channel
func (s *Service) publish(ctx context.Context, payload map[string]interface{}) {
	if s.rdb == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, "tournament_events", b).Err(); err != nil {
		log.Printf("[TOURNEY] publish failed: %v", err)
	}
}
