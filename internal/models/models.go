package models

import (
	"database/sql"
	"time"
)

// Mode is the play mode a session or ticket belongs to
type Mode string

const (
	ModeRanked Mode = "ranked"
	ModeCasual Mode = "casual"
)

// Valid reports whether m is a known play mode
func (m Mode) Valid() bool {
	return m == ModeRanked || m == ModeCasual
}

// Player represents a user in the system
type Player struct {
	ID               int          `db:"id" json:"id"`
	Username         string       `db:"username" json:"username"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	TotalGamesPlayed int          `db:"total_games_played" json:"total_games_played"`
	TotalGamesWon    int          `db:"total_games_won" json:"total_games_won"`
	Balance          int          `db:"balance" json:"balance"`
	IsActive         bool         `db:"is_active" json:"is_active"`
	LastActive       sql.NullTime `db:"last_active" json:"last_active,omitempty"`
}

// Deck is a player's constructed deck; at most one per player is active
type Deck struct {
	ID        int       `db:"id" json:"id"`
	PlayerID  int       `db:"player_id" json:"player_id"`
	Name      string    `db:"name" json:"name"`
	Archetype string    `db:"archetype" json:"archetype"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlayerRating is a player's rating for one mode
type PlayerRating struct {
	PlayerID  int       `db:"player_id" json:"player_id"`
	Mode      Mode      `db:"mode" json:"mode"`
	Rating    int       `db:"rating" json:"rating"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// QueueTicket represents a player waiting for a match
type QueueTicket struct {
	ID            int       `db:"id" json:"id"`
	PlayerID      int       `db:"player_id" json:"player_id"`
	Username      string    `db:"username" json:"username"`
	Mode          Mode      `db:"mode" json:"mode"`
	Rating        int       `db:"rating" json:"rating"`
	DeckArchetype string    `db:"deck_archetype" json:"deck_archetype"`
	JoinedAt      time.Time `db:"joined_at" json:"joined_at"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
}

// SessionStatus is the lifecycle state of a live match session
type SessionStatus string

const (
	SessionWaiting    SessionStatus = "waiting"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// MatchSession represents a live game between two players.
// Its internal turn engine lives elsewhere; this record only tracks
// creation, connection and the reported outcome.
type MatchSession struct {
	ID               int           `db:"id" json:"id"`
	Token            string        `db:"token" json:"token"`
	Mode             Mode          `db:"mode" json:"mode"`
	Player1ID        int           `db:"player1_id" json:"player1_id"`
	Player2ID        int           `db:"player2_id" json:"player2_id"`
	FirstTurnID      int           `db:"first_turn_id" json:"first_turn_id"`
	Status           SessionStatus `db:"status" json:"status"`
	WinnerID         sql.NullInt64 `db:"winner_id" json:"winner_id,omitempty"`
	LoserID          sql.NullInt64 `db:"loser_id" json:"loser_id,omitempty"`
	Player1Connected bool          `db:"player1_connected" json:"player1_connected"`
	Player2Connected bool          `db:"player2_connected" json:"player2_connected"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	StartedAt        sql.NullTime  `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      sql.NullTime  `db:"completed_at" json:"completed_at,omitempty"`
}

// TournamentStatus is the lifecycle phase of a tournament
type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentCheckIn      TournamentStatus = "checkin"
	TournamentActive       TournamentStatus = "active"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCancelled    TournamentStatus = "cancelled"
)

// CanTransition reports whether moving from s to next is a legal phase change.
// Phases only move forward; cancelled is a side exit from any non-terminal phase.
func (s TournamentStatus) CanTransition(next TournamentStatus) bool {
	switch s {
	case TournamentRegistration:
		return next == TournamentCheckIn || next == TournamentCancelled
	case TournamentCheckIn:
		return next == TournamentActive || next == TournamentCancelled
	case TournamentActive:
		return next == TournamentCompleted || next == TournamentCancelled
	default:
		return false
	}
}

// Terminal reports whether the phase admits no further transitions
func (s TournamentStatus) Terminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

// Tournament represents one bracketed event
type Tournament struct {
	ID                 int              `db:"id" json:"id"`
	Name               string           `db:"name" json:"name"`
	Mode               Mode             `db:"mode" json:"mode"`
	MaxPlayers         int              `db:"max_players" json:"max_players"`
	EntryFee           int              `db:"entry_fee" json:"entry_fee"`
	PrizeFirst         int              `db:"prize_first" json:"prize_first"`
	PrizeSecond        int              `db:"prize_second" json:"prize_second"`
	PrizeThirdFourth   int              `db:"prize_third_fourth" json:"prize_third_fourth"`
	Status             TournamentStatus `db:"status" json:"status"`
	RegistrationEndsAt time.Time        `db:"registration_ends_at" json:"registration_ends_at"`
	CheckInEndsAt      time.Time        `db:"checkin_ends_at" json:"checkin_ends_at"`
	ScheduledStartAt   time.Time        `db:"scheduled_start_at" json:"scheduled_start_at"`
	CurrentRound       int              `db:"current_round" json:"current_round"`
	TotalRounds        int              `db:"total_rounds" json:"total_rounds"`
	RegisteredCount    int              `db:"registered_count" json:"registered_count"`
	CheckedInCount     int              `db:"checked_in_count" json:"checked_in_count"`
	WinnerID           sql.NullInt64    `db:"winner_id" json:"winner_id,omitempty"`
	RunnerUpID         sql.NullInt64    `db:"runner_up_id" json:"runner_up_id,omitempty"`
	CreatedBy          string           `db:"created_by" json:"created_by"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

// ParticipantStatus is a tournament participant's lifecycle state
type ParticipantStatus string

const (
	ParticipantRegistered ParticipantStatus = "registered"
	ParticipantCheckedIn  ParticipantStatus = "checked_in"
	ParticipantActive     ParticipantStatus = "active"
	ParticipantEliminated ParticipantStatus = "eliminated"
	ParticipantWinner     ParticipantStatus = "winner"
	ParticipantForfeit    ParticipantStatus = "forfeit"
	ParticipantRefunded   ParticipantStatus = "refunded"
)

// CanTransition reports whether moving from s to next is legal. Statuses move
// forward along registered -> checked_in -> active -> (eliminated|winner), or
// sideways to forfeit/refunded.
func (s ParticipantStatus) CanTransition(next ParticipantStatus) bool {
	switch s {
	case ParticipantRegistered:
		return next == ParticipantCheckedIn || next == ParticipantForfeit || next == ParticipantRefunded
	case ParticipantCheckedIn:
		return next == ParticipantActive || next == ParticipantRefunded
	case ParticipantActive:
		return next == ParticipantEliminated || next == ParticipantWinner || next == ParticipantForfeit || next == ParticipantRefunded
	case ParticipantForfeit:
		return next == ParticipantRefunded
	default:
		return false
	}
}

// TournamentParticipant is one registered player in one tournament
type TournamentParticipant struct {
	ID              int               `db:"id" json:"id"`
	TournamentID    int               `db:"tournament_id" json:"tournament_id"`
	PlayerID        int               `db:"player_id" json:"player_id"`
	Username        string            `db:"username" json:"username"`
	SeedRating      int               `db:"seed_rating" json:"seed_rating"`
	Status          ParticipantStatus `db:"status" json:"status"`
	Seed            sql.NullInt64     `db:"seed" json:"seed,omitempty"`
	CurrentRound    int               `db:"current_round" json:"current_round"`
	EliminatedRound sql.NullInt64     `db:"eliminated_round" json:"eliminated_round,omitempty"`
	FinalPlacement  sql.NullInt64     `db:"final_placement" json:"final_placement,omitempty"`
	PrizeAwarded    int               `db:"prize_awarded" json:"prize_awarded"`
	FeePaid         int               `db:"fee_paid" json:"fee_paid"`
	RegisteredAt    time.Time         `db:"registered_at" json:"registered_at"`
}

// MatchStatus is the lifecycle state of one bracket cell
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchReady     MatchStatus = "ready"
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
	MatchForfeit   MatchStatus = "forfeit"
)

// Terminal reports whether the match can no longer change
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchForfeit
}

// WinReason explains how a bracket match was decided
type WinReason string

const (
	WinByGame    WinReason = "game_win"
	WinByForfeit WinReason = "opponent_forfeit"
	WinByNoShow  WinReason = "opponent_no_show"
	WinByBye     WinReason = "bye"
)

// TournamentMatch is one cell of a single-elimination bracket
type TournamentMatch struct {
	ID              int            `db:"id" json:"id"`
	TournamentID    int            `db:"tournament_id" json:"tournament_id"`
	Round           int            `db:"round" json:"round"`
	MatchNumber     int            `db:"match_number" json:"match_number"`
	Player1ID       sql.NullInt64  `db:"player1_id" json:"player1_id,omitempty"`
	Player1Username sql.NullString `db:"player1_username" json:"player1_username,omitempty"`
	Player2ID       sql.NullInt64  `db:"player2_id" json:"player2_id,omitempty"`
	Player2Username sql.NullString `db:"player2_username" json:"player2_username,omitempty"`
	SourceMatch1ID  sql.NullInt64  `db:"source_match1_id" json:"source_match1_id,omitempty"`
	SourceMatch2ID  sql.NullInt64  `db:"source_match2_id" json:"source_match2_id,omitempty"`
	Status          MatchStatus    `db:"status" json:"status"`
	WinnerID        sql.NullInt64  `db:"winner_id" json:"winner_id,omitempty"`
	LoserID         sql.NullInt64  `db:"loser_id" json:"loser_id,omitempty"`
	WinReason       sql.NullString `db:"win_reason" json:"win_reason,omitempty"`
	SessionID       sql.NullInt64  `db:"session_id" json:"session_id,omitempty"`
	ReadyAt         sql.NullTime   `db:"ready_at" json:"ready_at,omitempty"`
	CompletedAt     sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// TournamentHistory is the per-player historical record written at finalization
type TournamentHistory struct {
	ID             int           `db:"id" json:"id"`
	TournamentID   int           `db:"tournament_id" json:"tournament_id"`
	TournamentName string        `db:"tournament_name" json:"tournament_name"`
	PlayerID       int           `db:"player_id" json:"player_id"`
	Placement      sql.NullInt64 `db:"placement" json:"placement,omitempty"`
	Prize          int           `db:"prize" json:"prize"`
	MatchesPlayed  int           `db:"matches_played" json:"matches_played"`
	MatchesWon     int           `db:"matches_won" json:"matches_won"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// CurrencyTransaction is one audited balance adjustment
type CurrencyTransaction struct {
	ID           int            `db:"id" json:"id"`
	PlayerID     int            `db:"player_id" json:"player_id"`
	Amount       int            `db:"amount" json:"amount"`
	Reason       string         `db:"reason" json:"reason"`
	ReferenceID  sql.NullString `db:"reference_id" json:"reference_id,omitempty"`
	BalanceAfter int            `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AdminAudit records one admin action for the audit trail
type AdminAudit struct {
	ID            int       `db:"id" json:"id"`
	AdminUsername string    `db:"admin_username" json:"admin_username"`
	IP            string    `db:"ip" json:"ip"`
	Route         string    `db:"route" json:"route"`
	Action        string    `db:"action" json:"action"`
	Details       string    `db:"details" json:"details"`
	Success       bool      `db:"success" json:"success"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// AdminAccount represents an administrator login
type AdminAccount struct {
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	TokenHash   string    `db:"token_hash" json:"-"`
	Roles       []string  `db:"roles" json:"roles"`
	AllowedIPs  []string  `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
