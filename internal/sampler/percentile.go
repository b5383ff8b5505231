package sampler

import "nodestat/internal/source"

// Operation selects which histogram count column a percentile scan reads.
// Params: none.
// Returns: enum value for read/write selection.
type Operation uint8

const (
	// OpRead selects read operation counts.
	OpRead Operation = iota
	// OpWrite selects write operation counts.
	OpWrite
)

// String renders the operation name.
// Params: none.
// Returns: "read" or "write".
func (op Operation) String() string {
	if op == OpWrite {
		return "write"
	}
	return "read"
}

// Percentile estimates the latency at one percentile from a cumulative bucketed
// histogram. It walks buckets in ascending boundary order and picks the boundary of
// the first bucket whose running count strictly exceeds floor(total*pct/100).
// Params: hist ordered histogram snapshot; pct target percentile in 0..100; op count column.
// Returns: boundary latency in milliseconds, or 0 when no operations were observed
// or no bucket crosses the threshold.
func Percentile(hist source.Histogram, pct int, op Operation) float64 {
	var total uint64
	for _, bucket := range hist.Buckets {
		total += bucketCount(bucket, op)
	}
	if total == 0 {
		return 0
	}

	threshold := total * uint64(pct) / 100

	var running uint64
	for _, bucket := range hist.Buckets {
		running += bucketCount(bucket, op)
		if running > threshold {
			return float64(bucket.UpperMicros) / 1000
		}
	}
	return 0
}

// bucketCount selects the count column for one operation kind.
// Params: bucket histogram entry; op count column selector.
// Returns: read or write occurrence count.
func bucketCount(bucket source.Bucket, op Operation) uint64 {
	if op == OpWrite {
		return bucket.Writes
	}
	return bucket.Reads
}
