package sampler

// Rate converts two snapshots of one cumulative counter into an events-per-second rate.
// Source counters are monotonically non-decreasing unless the monitored process
// restarted; a current value below the previous one is treated as a counter reset and
// reported as zero, with the new value becoming the baseline for the next cycle.
// Params: current and previous counter values; seconds is the elapsed interval.
// Returns: per-second rate truncated toward zero, or 0 on reset or non-positive interval.
func Rate(current, previous uint64, seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	if current < previous {
		return 0
	}
	return uint64(float64(current-previous) / seconds)
}
