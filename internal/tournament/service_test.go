package tournament

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playarcana/backend/internal/config"
	"github.com/playarcana/backend/internal/economy"
	"github.com/playarcana/backend/internal/models"
	"github.com/playarcana/backend/internal/rating"
)

type fakeLedger struct {
	balances map[int]int
}

func (l *fakeLedger) AdjustCurrency(ctx context.Context, playerID, amount int, reason, referenceID string) error {
	if l.balances[playerID]+amount < 0 {
		return economy.ErrInsufficientFunds
	}
	l.balances[playerID] += amount
	return nil
}

type fakeProvider struct {
	ratings map[int]int
}

func (f *fakeProvider) GetRating(ctx context.Context, playerID int, mode models.Mode) (int, error) {
	if r, ok := f.ratings[playerID]; ok {
		return r, nil
	}
	return rating.DefaultRating, nil
}

func (f *fakeProvider) GetActiveDeck(ctx context.Context, playerID int) (string, error) {
	return "midrange", nil
}

// fakeGames is a Sessions stand-in that hands out session records and lets
// tests settle them or flip connection flags.
type fakeGames struct {
	nextID   int
	sessions map[int]*models.MatchSession
	fail     bool
}

func newFakeGames() *fakeGames {
	return &fakeGames{sessions: make(map[int]*models.MatchSession)}
}

func (f *fakeGames) CreateSession(ctx context.Context, player1ID, player2ID int, mode models.Mode) (*models.MatchSession, error) {
	if f.fail {
		return nil, errors.New("session backend down")
	}
	f.nextID++
	s := &models.MatchSession{
		ID:        f.nextID,
		Token:     fmt.Sprintf("sess-%d", f.nextID),
		Mode:      mode,
		Player1ID: player1ID,
		Player2ID: player2ID,
		Status:    models.SessionWaiting,
	}
	f.sessions[s.ID] = s
	out := *s
	return &out, nil
}

func (f *fakeGames) GetSessionByID(ctx context.Context, id int) (*models.MatchSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	out := *s
	return &out, nil
}

type harness struct {
	store  *MemoryStore
	ledger *fakeLedger
	games  *fakeGames
	svc    *Service
}

func newHarness() *harness {
	ledger := &fakeLedger{balances: map[int]int{}}
	games := newFakeGames()
	store := NewMemoryStore()
	cfg := &config.Config{
		MinParticipants:   2,
		MaxBracketSize:    32,
		NoShowTimeoutMins: 5,
	}
	ratings := &fakeProvider{ratings: map[int]int{
		1: 1500, 2: 1400, 3: 1300, 4: 1200, 5: 1100, 6: 1050, 7: 1020, 8: 1010, 9: 1005,
	}}
	svc := NewService(store, ledger, ratings, games, nil, nil, cfg)
	return &harness{store: store, ledger: ledger, games: games, svc: svc}
}

func (h *harness) createTournament(t *testing.T, maxPlayers, fee int) *models.Tournament {
	t.Helper()
	now := time.Now()
	tour, err := h.svc.Create(context.Background(), CreateRequest{
		Name:               "Friday Cup",
		Mode:               models.ModeRanked,
		MaxPlayers:         maxPlayers,
		EntryFee:           fee,
		PrizeFirst:         500,
		PrizeSecond:        300,
		PrizeThirdFourth:   150,
		RegistrationEndsAt: now.Add(time.Hour),
		CheckInEndsAt:      now.Add(2 * time.Hour),
		ScheduledStartAt:   now.Add(3 * time.Hour),
	}, "admin")
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	return tour
}

// settle reports a winner on a fake session and feeds it into the bracket
func (h *harness) settle(t *testing.T, sessionID, winnerID int) {
	t.Helper()
	s, ok := h.games.sessions[sessionID]
	if !ok {
		t.Fatalf("settle: no session %d", sessionID)
	}
	s.Status = models.SessionCompleted
	s.WinnerID.Int64 = int64(winnerID)
	s.WinnerID.Valid = true
	if err := h.svc.HandleSessionOutcome(context.Background(), s); err != nil {
		t.Fatalf("handle outcome for session %d: %v", sessionID, err)
	}
}

func (h *harness) participant(t *testing.T, tournamentID, playerID int) *models.TournamentParticipant {
	t.Helper()
	p, err := h.store.GetParticipant(context.Background(), tournamentID, playerID)
	if err != nil {
		t.Fatalf("get participant %d: %v", playerID, err)
	}
	return p
}

func TestCreateValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	now := time.Now()

	base := CreateRequest{
		Name:               "Bad Cup",
		Mode:               models.ModeRanked,
		MaxPlayers:         8,
		RegistrationEndsAt: now.Add(time.Hour),
		CheckInEndsAt:      now.Add(2 * time.Hour),
		ScheduledStartAt:   now.Add(3 * time.Hour),
	}

	bad := base
	bad.MaxPlayers = 6
	if _, err := h.svc.Create(ctx, bad, "admin"); !errors.Is(err, ErrInvalidBracket) {
		t.Errorf("size 6: got %v, want ErrInvalidBracket", err)
	}

	bad = base
	bad.CheckInEndsAt = now.Add(30 * time.Minute) // before registration end
	if _, err := h.svc.Create(ctx, bad, "admin"); !errors.Is(err, ErrInvalidWindows) {
		t.Errorf("unordered windows: got %v, want ErrInvalidWindows", err)
	}

	bad = base
	bad.RegistrationEndsAt = now.Add(-time.Minute)
	bad.CheckInEndsAt = now.Add(time.Hour)
	if _, err := h.svc.Create(ctx, bad, "admin"); err == nil {
		t.Errorf("past registration end accepted")
	}
}

func TestRegisterDebitsEntryFee(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 100)
	h.ledger.balances[1] = 1000

	p, err := h.svc.Register(ctx, tour.ID, 1, "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if h.ledger.balances[1] != 900 {
		t.Errorf("balance after fee = %d, want 900", h.ledger.balances[1])
	}
	if p.FeePaid != 100 || p.SeedRating != 1500 {
		t.Errorf("participant fee=%d seed_rating=%d, want 100/1500", p.FeePaid, p.SeedRating)
	}

	if _, err := h.svc.Register(ctx, tour.ID, 1, "alice"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate registration: got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterInsufficientFunds(t *testing.T) {
	h := newHarness()
	tour := h.createTournament(t, 8, 100)
	h.ledger.balances[1] = 50

	if _, err := h.svc.Register(context.Background(), tour.ID, 1, "alice"); !errors.Is(err, economy.ErrInsufficientFunds) {
		t.Errorf("got %v, want ErrInsufficientFunds", err)
	}
	if h.ledger.balances[1] != 50 {
		t.Errorf("balance changed on failed registration: %d", h.ledger.balances[1])
	}
}

func TestRegisterTournamentFull(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 0)

	for pid := 1; pid <= 8; pid++ {
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register player %d: %v", pid, err)
		}
	}
	if _, err := h.svc.Register(ctx, tour.ID, 9, "p9"); !errors.Is(err, ErrTournamentFull) {
		t.Errorf("ninth registration: got %v, want ErrTournamentFull", err)
	}
}

func TestCheckInRequiresPhase(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 0)

	if _, err := h.svc.Register(ctx, tour.ID, 1, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Still in registration
	if err := h.svc.CheckIn(ctx, tour.ID, 1); !errors.Is(err, ErrCheckInClosed) {
		t.Errorf("check-in during registration: got %v, want ErrCheckInClosed", err)
	}

	if _, err := h.svc.Register(ctx, tour.ID, 2, "bob"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}

	if err := h.svc.CheckIn(ctx, tour.ID, 1); err != nil {
		t.Errorf("check-in in window: %v", err)
	}
	if err := h.svc.CheckIn(ctx, tour.ID, 3); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("check-in unregistered: got %v, want ErrNotRegistered", err)
	}
}

func TestCloseRegistrationCancelsUnderfilled(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 100)
	h.ledger.balances[1] = 1000

	if _, err := h.svc.Register(ctx, tour.ID, 1, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}

	got, _ := h.store.GetTournament(ctx, tour.ID)
	if got.Status != models.TournamentCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if h.ledger.balances[1] != 1000 {
		t.Errorf("entry fee not refunded: balance %d", h.ledger.balances[1])
	}
	if p := h.participant(t, tour.ID, 1); p.Status != models.ParticipantRefunded {
		t.Errorf("participant status = %s, want refunded", p.Status)
	}
}

func TestStartForfeitsAbsentPlayers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 100)
	for pid := 1; pid <= 3; pid++ {
		h.ledger.balances[pid] = 1000
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register player %d: %v", pid, err)
		}
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	// Player 3 never checks in
	for pid := 1; pid <= 2; pid++ {
		if err := h.svc.CheckIn(ctx, tour.ID, pid); err != nil {
			t.Fatalf("check in player %d: %v", pid, err)
		}
	}
	if got, _ := h.store.GetTournament(ctx, tour.ID); got.CheckedInCount != 2 {
		t.Errorf("checked-in count = %d, want 2", got.CheckedInCount)
	}
	if err := h.svc.Start(ctx, tour.ID, tour.CheckInEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("start: %v", err)
	}

	p3 := h.participant(t, tour.ID, 3)
	if p3.Status != models.ParticipantRefunded {
		t.Errorf("absent player status = %s, want refunded", p3.Status)
	}
	if !p3.FinalPlacement.Valid || p3.FinalPlacement.Int64 != 3 {
		t.Errorf("absent player placement = %v, want 3", p3.FinalPlacement)
	}
	if h.ledger.balances[3] != 1000 {
		t.Errorf("absent player not refunded: balance %d", h.ledger.balances[3])
	}

	// Two checked-in players meet in a single final; the refunded no-show
	// must not collect a prize on top of the refund
	h.settle(t, 1, 1)

	if got, _ := h.store.GetTournament(ctx, tour.ID); got.Status != models.TournamentCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if h.ledger.balances[1] != 1000-100+500 {
		t.Errorf("winner balance = %d, want %d", h.ledger.balances[1], 1000-100+500)
	}
	if h.ledger.balances[3] != 1000 {
		t.Errorf("absent player balance = %d, want refund only (1000)", h.ledger.balances[3])
	}
	if p3 := h.participant(t, tour.ID, 3); p3.PrizeAwarded != 0 {
		t.Errorf("absent player prize = %d, want 0", p3.PrizeAwarded)
	}
}

// Five check-ins in an 8 bracket: seeds 1-3 get round-1 byes, seeds 4 and 5
// play. The bracket then runs to completion and pays prizes exactly once.
func TestFullTournamentRun(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 100)
	for pid := 1; pid <= 5; pid++ {
		h.ledger.balances[pid] = 1000
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register player %d: %v", pid, err)
		}
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	for pid := 1; pid <= 5; pid++ {
		if err := h.svc.CheckIn(ctx, tour.ID, pid); err != nil {
			t.Fatalf("check in player %d: %v", pid, err)
		}
	}
	if err := h.svc.Start(ctx, tour.ID, tour.CheckInEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Ratings are descending by player id, so player N is seed N.
	// Round 1: only 4 vs 5 needs a game. The three byes resolve immediately,
	// which makes the 2-vs-3 semifinal ready as well: two sessions so far.
	if len(h.games.sessions) != 2 {
		t.Fatalf("after start: %d sessions, want 2", len(h.games.sessions))
	}
	if s := h.games.sessions[1]; s.Player1ID != 4 || s.Player2ID != 5 {
		t.Fatalf("round-1 session players [%d,%d], want [4,5]", s.Player1ID, s.Player2ID)
	}
	if s := h.games.sessions[2]; s.Player1ID != 2 || s.Player2ID != 3 {
		t.Fatalf("semifinal session players [%d,%d], want [2,3]", s.Player1ID, s.Player2ID)
	}

	h.settle(t, 1, 4) // 4 beats 5, meets seed 1 in the other semifinal
	if len(h.games.sessions) != 3 {
		t.Fatalf("after round 1: %d sessions, want 3", len(h.games.sessions))
	}
	h.settle(t, 2, 2) // 2 beats 3
	h.settle(t, 3, 1) // 1 beats 4, final is 1 vs 2
	if len(h.games.sessions) != 4 {
		t.Fatalf("before final: %d sessions, want 4", len(h.games.sessions))
	}
	h.settle(t, 4, 1) // 1 wins it all

	got, _ := h.store.GetTournament(ctx, tour.ID)
	if got.Status != models.TournamentCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.WinnerID.Int64 != 1 || got.RunnerUpID.Int64 != 2 {
		t.Errorf("winner/runner-up = %d/%d, want 1/2", got.WinnerID.Int64, got.RunnerUpID.Int64)
	}

	// fee 100 for all; prizes 500 / 300 / 150+150
	wantBalances := map[int]int{1: 1400, 2: 1200, 3: 1050, 4: 1050, 5: 900}
	for pid, want := range wantBalances {
		if got := h.ledger.balances[pid]; got != want {
			t.Errorf("player %d balance = %d, want %d", pid, got, want)
		}
	}

	wantPlacement := map[int]int64{1: 1, 2: 2, 3: 3, 4: 3, 5: 5}
	for pid, want := range wantPlacement {
		p := h.participant(t, tour.ID, pid)
		if !p.FinalPlacement.Valid || p.FinalPlacement.Int64 != want {
			t.Errorf("player %d placement = %v, want %d", pid, p.FinalPlacement, want)
		}
	}

	for pid := 1; pid <= 5; pid++ {
		history, err := h.store.ListHistoryForPlayer(ctx, pid)
		if err != nil || len(history) != 1 {
			t.Errorf("player %d history rows = %d (%v), want 1", pid, len(history), err)
		}
	}
}

func TestFinalizeTwiceIsNoOp(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 0)
	for _, pid := range []int{1, 2} {
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	for _, pid := range []int{1, 2} {
		if err := h.svc.CheckIn(ctx, tour.ID, pid); err != nil {
			t.Fatalf("check in: %v", err)
		}
	}
	if err := h.svc.Start(ctx, tour.ID, tour.CheckInEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Two players: round 1 is the final
	h.settle(t, 1, 1)
	balanceAfter := h.ledger.balances[1]
	historyAfter, _ := h.store.ListHistoryForPlayer(ctx, 1)

	// Duplicate outcome report must change nothing
	h.settle(t, 1, 1)
	if h.ledger.balances[1] != balanceAfter {
		t.Errorf("balance changed on duplicate report: %d != %d", h.ledger.balances[1], balanceAfter)
	}
	historyAgain, _ := h.store.ListHistoryForPlayer(ctx, 1)
	if len(historyAgain) != len(historyAfter) {
		t.Errorf("history rows changed on duplicate report: %d != %d", len(historyAgain), len(historyAfter))
	}
}

func TestReaperAwardsConnectedPlayer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 0)
	for _, pid := range []int{1, 2} {
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	for _, pid := range []int{1, 2} {
		if err := h.svc.CheckIn(ctx, tour.ID, pid); err != nil {
			t.Fatalf("check in: %v", err)
		}
	}
	if err := h.svc.Start(ctx, tour.ID, tour.CheckInEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(h.games.sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(h.games.sessions))
	}

	// Player 1 connected, player 2 never showed
	h.games.sessions[1].Player1Connected = true

	h.svc.ReapNoShows(ctx, tour.CheckInEndsAt.Add(10*time.Minute))

	got, _ := h.store.GetTournament(ctx, tour.ID)
	if got.Status != models.TournamentCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.WinnerID.Int64 != 1 {
		t.Errorf("winner = %d, want 1 (the player who showed up)", got.WinnerID.Int64)
	}

	matches, _ := h.store.ListMatches(ctx, tour.ID)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Status != models.MatchForfeit {
		t.Errorf("match status = %s, want forfeit", matches[0].Status)
	}
	if matches[0].WinReason.String != string(models.WinByNoShow) {
		t.Errorf("win reason = %q, want %q", matches[0].WinReason.String, models.WinByNoShow)
	}
}

func TestReaperRetriesMissingSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 0)
	for _, pid := range []int{1, 2} {
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	for _, pid := range []int{1, 2} {
		if err := h.svc.CheckIn(ctx, tour.ID, pid); err != nil {
			t.Fatalf("check in: %v", err)
		}
	}

	// Session backend is down when the tournament starts
	h.games.fail = true
	if err := h.svc.Start(ctx, tour.ID, tour.CheckInEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(h.games.sessions) != 0 {
		t.Fatalf("expected no sessions while backend down, got %d", len(h.games.sessions))
	}

	// Backend recovers; the reaper retries creation instead of forfeiting
	h.games.fail = false
	h.svc.ReapNoShows(ctx, tour.CheckInEndsAt.Add(10*time.Minute))

	if len(h.games.sessions) != 1 {
		t.Fatalf("expected retried session, got %d", len(h.games.sessions))
	}
	matches, _ := h.store.ListMatches(ctx, tour.ID)
	if matches[0].Status != models.MatchActive || !matches[0].SessionID.Valid {
		t.Errorf("match not relinked to a session: status=%s session=%v",
			matches[0].Status, matches[0].SessionID)
	}
}

func TestDoubleNoShowCascades(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 0)
	for pid := 1; pid <= 4; pid++ {
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	for pid := 1; pid <= 4; pid++ {
		if err := h.svc.CheckIn(ctx, tour.ID, pid); err != nil {
			t.Fatalf("check in: %v", err)
		}
	}
	if err := h.svc.Start(ctx, tour.ID, tour.CheckInEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("start: %v", err)
	}
	// 4-player bracket: 1v4 and 2v3, two sessions
	if len(h.games.sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(h.games.sessions))
	}

	// Nobody shows for 1v4; 2 beats 3 normally
	h.settle(t, 2, 2)
	h.svc.ReapNoShows(ctx, tour.CheckInEndsAt.Add(10*time.Minute))

	// The final has only player 2; the empty feeder slot is a bye
	got, _ := h.store.GetTournament(ctx, tour.ID)
	if got.Status != models.TournamentCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.WinnerID.Int64 != 2 {
		t.Errorf("winner = %d, want 2", got.WinnerID.Int64)
	}

	// The abandoned match keeps its forfeit cause even with no winner
	matches, _ := h.store.ListMatches(ctx, tour.ID)
	for _, m := range matches {
		if m.Round == 1 && m.Player1ID.Int64 == 1 {
			if m.Status != models.MatchForfeit {
				t.Errorf("abandoned match status = %s, want forfeit", m.Status)
			}
			if m.WinReason.String != string(models.WinByNoShow) {
				t.Errorf("abandoned match win reason = %q, want %q", m.WinReason.String, models.WinByNoShow)
			}
		}
	}

	// Both no-shows were eliminated in round 1
	for _, pid := range []int{1, 4} {
		p := h.participant(t, tour.ID, pid)
		if p.Status != models.ParticipantEliminated {
			t.Errorf("player %d status = %s, want eliminated", pid, p.Status)
		}
		if !p.EliminatedRound.Valid || p.EliminatedRound.Int64 != 1 {
			t.Errorf("player %d eliminated round = %v, want 1", pid, p.EliminatedRound)
		}
	}
}

// A crash between writing a match result and feeding the winner forward
// leaves the next match pending with an empty slot, out of the reaper's
// reach. The phase sweep replays the lost advancement.
func TestSweepResumesStalledBracket(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 0)
	for pid := 1; pid <= 4; pid++ {
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := h.svc.CloseRegistration(ctx, tour.ID, tour.RegistrationEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("close registration: %v", err)
	}
	for pid := 1; pid <= 4; pid++ {
		if err := h.svc.CheckIn(ctx, tour.ID, pid); err != nil {
			t.Fatalf("check in: %v", err)
		}
	}
	if err := h.svc.Start(ctx, tour.ID, tour.CheckInEndsAt.Add(time.Second)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 2 beats 3 normally, filling the final's second slot
	h.settle(t, 2, 2)

	// Write 1v4's result directly to the store, as if the process died
	// after the match write but before the winner feed
	matches, _ := h.store.ListMatches(ctx, tour.ID)
	var stalled *models.TournamentMatch
	for i := range matches {
		if matches[i].Round == 1 && matches[i].Player1ID.Int64 == 1 {
			stalled = &matches[i]
		}
	}
	if stalled == nil {
		t.Fatal("no round-1 match for player 1")
	}
	stalled.Status = models.MatchCompleted
	stalled.WinnerID = sql.NullInt64{Int64: 1, Valid: true}
	stalled.LoserID = sql.NullInt64{Int64: 4, Valid: true}
	stalled.WinReason = sql.NullString{String: string(models.WinByGame), Valid: true}
	if err := h.store.UpdateMatch(ctx, stalled); err != nil {
		t.Fatalf("update match: %v", err)
	}

	h.svc.SweepPhases(ctx, time.Now())

	matches, _ = h.store.ListMatches(ctx, tour.ID)
	var final *models.TournamentMatch
	for i := range matches {
		if matches[i].Round == 2 {
			final = &matches[i]
		}
	}
	if final.Status != models.MatchActive {
		t.Fatalf("final status = %s, want active after sweep", final.Status)
	}
	if final.Player1ID.Int64 != 1 || final.Player2ID.Int64 != 2 {
		t.Errorf("final pairing = %d vs %d, want 1 vs 2", final.Player1ID.Int64, final.Player2ID.Int64)
	}

	h.settle(t, 3, 1)

	got, _ := h.store.GetTournament(ctx, tour.ID)
	if got.Status != models.TournamentCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.WinnerID.Int64 != 1 {
		t.Errorf("winner = %d, want 1", got.WinnerID.Int64)
	}
}

func TestCancelRefundsEveryone(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tour := h.createTournament(t, 8, 100)
	for _, pid := range []int{1, 2, 3} {
		h.ledger.balances[pid] = 500
		if _, err := h.svc.Register(ctx, tour.ID, pid, fmt.Sprintf("p%d", pid)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	if err := h.svc.Cancel(ctx, tour.ID, "maintenance"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, pid := range []int{1, 2, 3} {
		if h.ledger.balances[pid] != 500 {
			t.Errorf("player %d balance = %d, want 500 back", pid, h.ledger.balances[pid])
		}
		if p := h.participant(t, tour.ID, pid); p.Status != models.ParticipantRefunded {
			t.Errorf("player %d status = %s, want refunded", pid, p.Status)
		}
	}

	// A second cancel is a no-op, not a double refund
	if err := h.svc.Cancel(ctx, tour.ID, "again"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if h.ledger.balances[1] != 500 {
		t.Errorf("double refund: balance %d", h.ledger.balances[1])
	}
}
