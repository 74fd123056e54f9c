package matchmaking

import (
	"sort"
	"time"

	"github.com/playarcana/backend/internal/models"
)

// WindowParams controls how a ticket's rating window expands while it waits
type WindowParams struct {
	Initial     int
	Step        int
	Max         int
	StepSeconds int
}

// DefaultWindowParams are the production matching defaults
var DefaultWindowParams = WindowParams{
	Initial:     200,
	Step:        50,
	Max:         1000,
	StepSeconds: 10,
}

// RatingWindow computes the maximum rating gap a ticket accepts after having
// waited since joinedAt. The window widens by Step for every StepSeconds
// waited and is capped at Max.
func RatingWindow(joinedAt, now time.Time, p WindowParams) int {
	waited := int(now.Sub(joinedAt).Seconds())
	if waited < 0 {
		waited = 0
	}
	step := p.StepSeconds
	if step <= 0 {
		step = DefaultWindowParams.StepSeconds
	}
	w := p.Initial + (waited/step)*p.Step
	if w > p.Max {
		w = p.Max
	}
	return w
}

// Pair is one matched couple of tickets produced by a pass
type Pair struct {
	A models.QueueTicket
	B models.QueueTicket
}

// PairTickets pairs compatible tickets from one snapshot. Tickets are sorted
// ascending by rating; each unmatched ticket scans forward for the first
// unmatched candidate within its own current window. The sort order means the
// scan can stop as soon as the gap exceeds the window.
func PairTickets(tickets []models.QueueTicket, now time.Time, p WindowParams) []Pair {
	sorted := make([]models.QueueTicket, len(tickets))
	copy(sorted, tickets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rating < sorted[j].Rating })

	matched := make([]bool, len(sorted))
	var pairs []Pair

	for i := range sorted {
		if matched[i] {
			continue
		}
		window := RatingWindow(sorted[i].JoinedAt, now, p)
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Rating-sorted[i].Rating > window {
				break
			}
			if matched[j] {
				continue
			}
			matched[i] = true
			matched[j] = true
			pairs = append(pairs, Pair{A: sorted[i], B: sorted[j]})
			break
		}
	}

	return pairs
}
