package tournament

// TotalRounds returns the number of single-elimination rounds needed for n
// players: ceil(log2(n)).
func TotalRounds(n int) int {
	rounds := 0
	size := 1
	for size < n {
		size *= 2
		rounds++
	}
	return rounds
}

// BracketSize returns the smallest power of two holding n players
func BracketSize(n int) int {
	return 1 << TotalRounds(n)
}

// SeedOrder returns the seed rank occupying each bracket slot, in slot order.
// Slots 2m-1 and 2m face each other in round 1. The recursion places seed 1
// opposite seed size, seed 2 opposite size-1 within its half, and so on, so
// top seeds can only meet in later rounds.
func SeedOrder(size int) []int {
	if size == 1 {
		return []int{1}
	}
	prev := SeedOrder(size / 2)
	out := make([]int, 0, size)
	for _, s := range prev {
		out = append(out, s, size+1-s)
	}
	return out
}

// Placement computes a participant's final placement from the round they were
// eliminated in. Losing the final is 2nd; losing the semifinal is 3rd/4th
// (recorded as 3); earlier rounds follow the bracket halving pattern.
func Placement(bracketSize, roundLost, totalRounds int) int {
	if roundLost >= totalRounds {
		return 2
	}
	return bracketSize/(1<<roundLost) + 1
}

// NextMatchNumber returns the round-(r+1) match fed by round-r match m,
// along with the slot (1 or 2) the winner occupies there.
func NextMatchNumber(matchNumber int) (next int, slot int) {
	next = (matchNumber + 1) / 2
	slot = 2
	if matchNumber%2 == 1 {
		slot = 1
	}
	return next, slot
}
