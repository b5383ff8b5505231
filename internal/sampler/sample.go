package sampler

import (
	"time"

	"nodestat/internal/source"
)

// Sample is one emitted record of computed metrics for a single sampling interval.
// Rate fields are per-second values normalized over the configured interval; the
// latency fields carry the node's lifetime averages as observed at sample time, not
// per-interval figures. Optional fields hold zero values when the matching column
// is not enabled. A Sample is immutable once emitted.
// Params: none.
// Returns: per-cycle output record.
type Sample struct {
	At time.Time

	ReadRate       uint64
	WriteRate      uint64
	ReadLatencyMs  float64
	WriteLatencyMs float64

	KeyCacheHitRate  float64
	RowCacheHitRate  float64
	ReadStagePending uint64

	CPUUser   float64
	CPUSystem float64
	CPUIdle   float64
	CPUIOWait float64

	DiskReadsPerSec   uint64
	DiskWritesPerSec  uint64
	DiskReadKBPerSec  uint64
	DiskWriteKBPerSec uint64

	NetRxKBPerSec uint64
	NetTxKBPerSec uint64

	ReadRepairRate uint64

	ReadP99  float64
	ReadP95  float64
	WriteP99 float64
	WriteP95 float64

	Compaction *source.CompactionStats

	Events []Event
}

// Sink consumes per-cycle output records.
// Params: assembled sample or the cycle wall-clock for sentinel rows.
// Returns: emit error, absorbed by the orchestrator.
type Sink interface {
	Sample(s Sample) error
	Unresponsive(at time.Time) error
}
