package sampler

import "testing"

func TestRateNormalCases(t *testing.T) {
	cases := []struct {
		name     string
		current  uint64
		previous uint64
		seconds  float64
		want     uint64
	}{
		{name: "exact division", current: 100, previous: 40, seconds: 2, want: 30},
		{name: "truncates toward zero", current: 10, previous: 3, seconds: 2, want: 3},
		{name: "no growth", current: 55, previous: 55, seconds: 5, want: 0},
		{name: "one second", current: 1234, previous: 234, seconds: 1, want: 1000},
		{name: "sub second interval", current: 30, previous: 0, seconds: 0.5, want: 60},
	}

	for _, tc := range cases {
		got := Rate(tc.current, tc.previous, tc.seconds)
		if got != tc.want {
			t.Fatalf("%s: Rate(%d, %d, %v)=%d want %d", tc.name, tc.current, tc.previous, tc.seconds, got, tc.want)
		}
	}
}

func TestRateCounterReset(t *testing.T) {
	// A restarted process makes the counter shrink; the reset cycle reports zero.
	if got := Rate(5, 1000, 2); got != 0 {
		t.Fatalf("Rate(5, 1000, 2)=%d want 0", got)
	}
	if got := Rate(0, 1, 1); got != 0 {
		t.Fatalf("Rate(0, 1, 1)=%d want 0", got)
	}
}

func TestRateGuardsNonPositiveInterval(t *testing.T) {
	if got := Rate(100, 0, 0); got != 0 {
		t.Fatalf("Rate(100, 0, 0)=%d want 0", got)
	}
	if got := Rate(100, 0, -1); got != 0 {
		t.Fatalf("Rate(100, 0, -1)=%d want 0", got)
	}
}
