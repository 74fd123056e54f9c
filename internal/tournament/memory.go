package tournament

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playarcana/backend/internal/models"
)

// MemoryStore is an in-memory Store used to exercise the bracket engine in
// tests without a database.
type MemoryStore struct {
	mu           sync.Mutex
	nextID       int
	tournaments  map[int]models.Tournament
	participants map[int]models.TournamentParticipant
	matches      map[int]models.TournamentMatch
	history      []models.TournamentHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:       1,
		tournaments:  make(map[int]models.Tournament),
		participants: make(map[int]models.TournamentParticipant),
		matches:      make(map[int]models.TournamentMatch),
	}
}

func (s *MemoryStore) id() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemoryStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = time.Now()
	s.tournaments[t.ID] = *t
	return nil
}

func (s *MemoryStore) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	out := t
	return &out, nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, statuses ...models.TournamentStatus) ([]models.Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Tournament
	for _, t := range s.tournaments {
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStartAt.Before(out[j].ScheduledStartAt) })
	return out, nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, id int, from, to models.TournamentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tournaments[id]
	if !ok {
		return false, ErrTournamentNotFound
	}
	if t.Status != from || !from.CanTransition(to) {
		return false, nil
	}
	t.Status = to
	s.tournaments[id] = t
	return true, nil
}

func (s *MemoryStore) UpdateTournament(ctx context.Context, t *models.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tournaments[t.ID]
	if !ok {
		return ErrTournamentNotFound
	}
	stored.CurrentRound = t.CurrentRound
	stored.TotalRounds = t.TotalRounds
	stored.RegisteredCount = t.RegisteredCount
	stored.CheckedInCount = t.CheckedInCount
	stored.WinnerID = t.WinnerID
	stored.RunnerUpID = t.RunnerUpID
	s.tournaments[t.ID] = stored
	return nil
}

func (s *MemoryStore) IncrementCheckedIn(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	t.CheckedInCount++
	s.tournaments[id] = t
	return nil
}

func (s *MemoryStore) InsertParticipant(ctx context.Context, p *models.TournamentParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants {
		if existing.TournamentID == p.TournamentID && existing.PlayerID == p.PlayerID {
			return ErrAlreadyRegistered
		}
	}
	p.ID = s.id()
	p.RegisteredAt = time.Now()
	s.participants[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetParticipant(ctx context.Context, tournamentID, playerID int) (*models.TournamentParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.TournamentID == tournamentID && p.PlayerID == playerID {
			out := p
			return &out, nil
		}
	}
	return nil, ErrParticipantNotFound
}

func (s *MemoryStore) ListParticipants(ctx context.Context, tournamentID int) ([]models.TournamentParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TournamentParticipant
	for _, p := range s.participants {
		if p.TournamentID == tournamentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeedRating != out[j].SeedRating {
			return out[i].SeedRating > out[j].SeedRating
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateParticipant(ctx context.Context, p *models.TournamentParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return ErrParticipantNotFound
	}
	s.participants[p.ID] = *p
	return nil
}

func (s *MemoryStore) InsertMatch(ctx context.Context, m *models.TournamentMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.matches[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, id int) (*models.TournamentMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	out := m
	return &out, nil
}

func (s *MemoryStore) GetMatchBySession(ctx context.Context, sessionID int) (*models.TournamentMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.SessionID.Valid && int(m.SessionID.Int64) == sessionID {
			out := m
			return &out, nil
		}
	}
	return nil, ErrMatchNotFound
}

func (s *MemoryStore) ListMatches(ctx context.Context, tournamentID int) ([]models.TournamentMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TournamentMatch
	for _, m := range s.matches {
		if m.TournamentID == tournamentID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out, nil
}

func (s *MemoryStore) UpdateMatch(ctx context.Context, m *models.TournamentMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; !ok {
		return ErrMatchNotFound
	}
	s.matches[m.ID] = *m
	return nil
}

func (s *MemoryStore) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]models.TournamentMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TournamentMatch
	for _, m := range s.matches {
		if (m.Status == models.MatchReady || m.Status == models.MatchActive) &&
			m.ReadyAt.Valid && m.ReadyAt.Time.Before(cutoff) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) InsertHistory(ctx context.Context, h *models.TournamentHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.history {
		if existing.TournamentID == h.TournamentID && existing.PlayerID == h.PlayerID {
			return nil
		}
	}
	h.ID = s.id()
	h.CreatedAt = time.Now()
	s.history = append(s.history, *h)
	return nil
}

func (s *MemoryStore) ListHistoryForPlayer(ctx context.Context, playerID int) ([]models.TournamentHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TournamentHistory
	for _, h := range s.history {
		if h.PlayerID == playerID {
			out = append(out, h)
		}
	}
	return out, nil
}
