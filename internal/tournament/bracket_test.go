package tournament

import "testing"

func TestTotalRounds(t *testing.T) {
	cases := []struct{ players, want int }{
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
		{16, 4},
		{32, 5},
	}
	for _, c := range cases {
		if got := TotalRounds(c.players); got != c.want {
			t.Errorf("TotalRounds(%d) = %d, want %d", c.players, got, c.want)
		}
	}
}

func TestBracketSize(t *testing.T) {
	cases := []struct{ players, want int }{
		{2, 2},
		{5, 8},
		{8, 8},
		{9, 16},
		{17, 32},
	}
	for _, c := range cases {
		if got := BracketSize(c.players); got != c.want {
			t.Errorf("BracketSize(%d) = %d, want %d", c.players, got, c.want)
		}
	}
}

func TestSeedOrderEight(t *testing.T) {
	got := SeedOrder(8)
	want := []int{1, 8, 4, 5, 2, 7, 3, 6}
	if len(got) != len(want) {
		t.Fatalf("SeedOrder(8) length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SeedOrder(8) = %v, want %v", got, want)
		}
	}
}

func TestSeedOrderSeparatesTopSeeds(t *testing.T) {
	for _, size := range []int{8, 16, 32} {
		order := SeedOrder(size)

		// Every seed appears exactly once
		seen := make(map[int]bool)
		for _, s := range order {
			if s < 1 || s > size || seen[s] {
				t.Fatalf("SeedOrder(%d) invalid or duplicate seed %d", size, s)
			}
			seen[s] = true
		}

		// Seeds 1 and 2 sit in opposite halves so they can only meet in the final
		var half1, half2 int
		for i, s := range order {
			if s == 1 {
				half1 = i / (size / 2)
			}
			if s == 2 {
				half2 = i / (size / 2)
			}
		}
		if half1 == half2 {
			t.Errorf("SeedOrder(%d): seeds 1 and 2 in the same half", size)
		}

		// Round-1 opponents (slots 2m-1, 2m) always sum to size+1
		for i := 0; i < size; i += 2 {
			if order[i]+order[i+1] != size+1 {
				t.Errorf("SeedOrder(%d): slots %d,%d hold seeds %d,%d, want sum %d",
					size, i, i+1, order[i], order[i+1], size+1)
			}
		}
	}
}

func TestPlacement(t *testing.T) {
	// 8-player bracket, 3 rounds
	cases := []struct {
		roundLost int
		want      int
	}{
		{1, 5}, // lost in round 1: places 5-8
		{2, 3}, // lost in semifinal: 3rd/4th
		{3, 2}, // lost the final
	}
	for _, c := range cases {
		if got := Placement(8, c.roundLost, 3); got != c.want {
			t.Errorf("Placement(8, %d, 3) = %d, want %d", c.roundLost, got, c.want)
		}
	}

	// 32-player bracket
	if got := Placement(32, 1, 5); got != 17 {
		t.Errorf("Placement(32, 1, 5) = %d, want 17", got)
	}
	if got := Placement(32, 4, 5); got != 3 {
		t.Errorf("Placement(32, 4, 5) = %d, want 3", got)
	}
}

func TestNextMatchNumber(t *testing.T) {
	cases := []struct {
		match, next, slot int
	}{
		{1, 1, 1},
		{2, 1, 2},
		{3, 2, 1},
		{4, 2, 2},
		{7, 4, 1},
		{8, 4, 2},
	}
	for _, c := range cases {
		next, slot := NextMatchNumber(c.match)
		if next != c.next || slot != c.slot {
			t.Errorf("NextMatchNumber(%d) = (%d,%d), want (%d,%d)",
				c.match, next, slot, c.next, c.slot)
		}
	}
}
