package matchmaking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playarcana/backend/internal/models"
)

// MemoryRepository is an in-memory Repository. The matching pass and the
// queue service are exercised against it in tests, without any database or
// background timer.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int
	tickets map[int]models.QueueTicket // keyed by ticket id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, tickets: make(map[int]models.QueueTicket)}
}

func (r *MemoryRepository) Insert(ctx context.Context, t *models.QueueTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tickets {
		if existing.PlayerID == t.PlayerID {
			return ErrAlreadyQueued
		}
	}
	t.ID = r.nextID
	r.nextID++
	r.tickets[t.ID] = *t
	return nil
}

func (r *MemoryRepository) DeleteByPlayer(ctx context.Context, playerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tickets {
		if t.PlayerID == playerID {
			delete(r.tickets, id)
			return nil
		}
	}
	return ErrNotInQueue
}

func (r *MemoryRepository) GetByPlayer(ctx context.Context, playerID int) (*models.QueueTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tickets {
		if t.PlayerID == playerID {
			out := t
			return &out, nil
		}
	}
	return nil, ErrNotInQueue
}

func (r *MemoryRepository) SnapshotByMode(ctx context.Context, mode models.Mode) ([]models.QueueTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.QueueTicket
	for _, t := range r.tickets {
		if t.Mode == mode {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating < out[j].Rating })
	return out, nil
}

func (r *MemoryRepository) ClaimPair(ctx context.Context, ticketID1, ticketID2 int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[ticketID1]; !ok {
		return false, nil
	}
	if _, ok := r.tickets[ticketID2]; !ok {
		return false, nil
	}
	delete(r.tickets, ticketID1)
	delete(r.tickets, ticketID2)
	return true, nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, t := range r.tickets {
		if deleted >= limit {
			break
		}
		if t.JoinedAt.Before(olderThan) {
			delete(r.tickets, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryRepository) CountByMode(ctx context.Context, mode models.Mode) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, t := range r.tickets {
		if t.Mode == mode {
			count++
		}
	}
	return count, nil
}
