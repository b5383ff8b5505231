package source

import "context"

// KeyspaceCounters is one snapshot of cumulative operation counters for a keyspace
// or one of its tables. Counts grow monotonically for the life of the node process;
// latencies are the node's lifetime averages at snapshot time, not per-interval values.
// Params: none.
// Returns: typed counter snapshot.
type KeyspaceCounters struct {
	ReadCount      uint64
	WriteCount     uint64
	ReadLatencyMs  float64
	WriteLatencyMs float64

	KeyCacheHitRate float64
	RowCacheHitRate float64
	HasKeyCache     bool
	HasRowCache     bool
}

// ThreadPoolDepths is one snapshot of the node's read-path thread pools.
// Params: none.
// Returns: active/pending depths and the cumulative read-repair completion counter.
type ThreadPoolDepths struct {
	ReadStageActive     uint64
	ReadStagePending    uint64
	ReadRepairActive    uint64
	ReadRepairPending   uint64
	ReadRepairCompleted uint64
}

// Bucket is one latency histogram bucket: an upper boundary in microseconds and the
// per-bucket occurrence counts contributed during the covered window.
// Params: none.
// Returns: one histogram bucket entry.
type Bucket struct {
	UpperMicros uint64
	Reads       uint64
	Writes      uint64
}

// Histogram is an ordered bucket sequence, ascending by upper boundary.
// WritesRecorded is false when the source emitted the read-only record shape.
// Params: none.
// Returns: histogram snapshot for one table.
type Histogram struct {
	Buckets        []Bucket
	WritesRecorded bool
}

// CompactionTask describes one in-flight compaction.
// Params: none.
// Returns: task type, target table, and completion percentage.
type CompactionTask struct {
	Type            string
	Keyspace        string
	Table           string
	PercentComplete float64
}

// CompactionStats is one snapshot of the node's compaction backlog.
// Params: none.
// Returns: pending task count and in-flight task list.
type CompactionStats struct {
	Pending int
	Tasks   []CompactionTask
}

// DiskCounters is one snapshot of cumulative block device IO counters.
// Params: none.
// Returns: operation and byte counters for one device.
type DiskCounters struct {
	ReadCount  uint64
	WriteCount uint64
	ReadBytes  uint64
	WriteBytes uint64
}

// NetCounters is one snapshot of cumulative byte counters for one interface.
// Params: none.
// Returns: received/sent byte counters.
type NetCounters struct {
	BytesRecv uint64
	BytesSent uint64
}

// CPUTimes is one snapshot of cumulative host CPU time, in seconds of CPU time
// accumulated since boot. Total covers all accounting buckets, including ones not
// broken out here, so percentage math stays consistent.
// Params: none.
// Returns: cumulative CPU time breakdown.
type CPUTimes struct {
	User   float64
	System float64
	Idle   float64
	IOWait float64
	Total  float64
}

// KeyspaceSource supplies keyspace/table operation counters.
// A (nil, nil) result means the node returned no data for the target: the caller
// treats the node as unresponsive for this cycle.
// Params: ctx for cancellation; keyspace required; table optional scope.
// Returns: counter snapshot, nil when the target produced no data, or query error.
type KeyspaceSource interface {
	Counters(ctx context.Context, keyspace, table string) (*KeyspaceCounters, error)
}

// ThreadPoolSource supplies thread-pool queue depth snapshots.
// Params: ctx for cancellation.
// Returns: depth snapshot, nil when the node produced no data, or query error.
type ThreadPoolSource interface {
	Depths(ctx context.Context) (*ThreadPoolDepths, error)
}

// HistogramSource supplies the latency histogram for one table.
// Params: ctx for cancellation; keyspace and table identify the scoped resource.
// Returns: histogram snapshot (possibly empty) or query error.
type HistogramSource interface {
	Histogram(ctx context.Context, keyspace, table string) (Histogram, error)
}

// CompactionSource supplies the compaction task list.
// Params: ctx for cancellation.
// Returns: compaction snapshot, nil when the node produced no data, or query error.
type CompactionSource interface {
	Compactions(ctx context.Context) (*CompactionStats, error)
}

// DiskSource supplies cumulative IO counters for one named block device.
// Params: ctx for cancellation; device short name such as "sda".
// Returns: counter snapshot or read error.
type DiskSource interface {
	Counters(ctx context.Context, device string) (DiskCounters, error)
}

// NetSource supplies cumulative byte counters for one named interface.
// Params: ctx for cancellation; iface interface name such as "eth0".
// Returns: counter snapshot or read error.
type NetSource interface {
	Counters(ctx context.Context, iface string) (NetCounters, error)
}

// CPUSource supplies cumulative host CPU times.
// Params: ctx for cancellation.
// Returns: CPU time snapshot or read error.
type CPUSource interface {
	Times(ctx context.Context) (CPUTimes, error)
}
