package sampler

import (
	"testing"

	"nodestat/internal/source"
)

func TestPercentileWeightedCumulativeSearch(t *testing.T) {
	// total=10, threshold=floor(10*99/100)=9; cumulative sums 1,3,10 so the third
	// bucket is the first to strictly exceed the threshold.
	hist := source.Histogram{
		Buckets: []source.Bucket{
			{UpperMicros: 10, Reads: 1},
			{UpperMicros: 20, Reads: 2},
			{UpperMicros: 30, Reads: 7},
		},
	}

	if got := Percentile(hist, 99, OpRead); got != 0.030 {
		t.Fatalf("Percentile(99, read)=%v want 0.030", got)
	}
}

func TestPercentileLowerTargets(t *testing.T) {
	hist := source.Histogram{
		Buckets: []source.Bucket{
			{UpperMicros: 100, Reads: 50, Writes: 0},
			{UpperMicros: 200, Reads: 40, Writes: 90},
			{UpperMicros: 400, Reads: 10, Writes: 10},
		},
		WritesRecorded: true,
	}

	cases := []struct {
		name string
		pct  int
		op   Operation
		want float64
	}{
		// reads: total=100, p95 threshold=95, sums 50,90,100 -> 400us
		{name: "read p95", pct: 95, op: OpRead, want: 0.400},
		// reads: p50 threshold=50, first sum strictly above 50 is 90 -> 200us
		{name: "read p50", pct: 50, op: OpRead, want: 0.200},
		// writes: total=100, p95 threshold=95, sums 0,90,100 -> 400us
		{name: "write p95", pct: 95, op: OpWrite, want: 0.400},
		// writes: p50 threshold=50, sums 0,90 -> 200us
		{name: "write p50", pct: 50, op: OpWrite, want: 0.200},
	}

	for _, tc := range cases {
		if got := Percentile(hist, tc.pct, tc.op); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestPercentileEmptyHistogram(t *testing.T) {
	empty := source.Histogram{
		Buckets: []source.Bucket{
			{UpperMicros: 10},
			{UpperMicros: 20},
		},
	}

	for _, pct := range []int{95, 99} {
		for _, op := range []Operation{OpRead, OpWrite} {
			if got := Percentile(empty, pct, op); got != 0 {
				t.Fatalf("Percentile(%d, %s) on empty histogram=%v want 0", pct, op, got)
			}
		}
	}

	if got := Percentile(source.Histogram{}, 99, OpRead); got != 0 {
		t.Fatalf("Percentile on bucketless histogram=%v want 0", got)
	}
}

func TestPercentileReadOnlyRecordShape(t *testing.T) {
	// Read-only encoding: writes were never recorded for this table.
	hist := source.Histogram{
		Buckets: []source.Bucket{
			{UpperMicros: 10, Reads: 9},
			{UpperMicros: 20, Reads: 1},
		},
	}

	if got := Percentile(hist, 99, OpRead); got != 0.020 {
		t.Fatalf("Percentile(99, read)=%v want 0.020", got)
	}
	if got := Percentile(hist, 99, OpWrite); got != 0 {
		t.Fatalf("Percentile(99, write)=%v want 0 for read-only shape", got)
	}
}

func TestOperationString(t *testing.T) {
	if OpRead.String() != "read" || OpWrite.String() != "write" {
		t.Fatalf("unexpected operation names: %q %q", OpRead.String(), OpWrite.String())
	}
}
