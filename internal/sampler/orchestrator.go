package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nodestat/internal/source"
)

// Config defines one sampling run.
// Params: target identity, pacing, sample budget, and optional column toggles.
// Returns: orchestrator runtime configuration.
type Config struct {
	Keyspace string
	Table    string
	Interval time.Duration
	Count    uint64

	LogPath      string
	DiskDevice   string
	NetInterface string

	CacheQueue  bool
	ReadRepair  bool
	Percentiles bool
	Compactions bool
}

// Sources bundles the metric query surfaces one run polls.
// Params: none.
// Returns: source set for the orchestrator.
type Sources struct {
	Keyspace    source.KeyspaceSource
	ThreadPools source.ThreadPoolSource
	Histograms  source.HistogramSource
	Compactions source.CompactionSource
	Disk        source.DiskSource
	Net         source.NetSource
	CPU         source.CPUSource
}

// Observer receives per-cycle notifications for self-telemetry. Implementations
// must not block.
// Params: elapsed cycle duration, responsiveness outcome, classified event count.
// Returns: none.
type Observer interface {
	ObserveCycle(elapsed time.Duration, responsive bool)
	AddEvents(count int)
}

// previousState holds the single prior generation of cumulative counters. It is
// updated only after a responsive cycle, so a gap left by an unresponsive cycle
// folds into the next successful cycle's delta.
type previousState struct {
	reads      uint64
	writes     uint64
	readRepair uint64
	disk       source.DiskCounters
	net        source.NetCounters
	cpu        source.CPUTimes
}

// Orchestrator drives the sampling loop: prime a baseline once, then per cycle
// acquire snapshots, branch on node responsiveness, compute rates/percentiles/log
// events, emit one record, and stop once the sample budget is spent.
//
// Rates are always divided by the nominal configured interval. After an
// unresponsive cycle the next delta spans more wall-clock time than one interval,
// so that cycle's rates are understated rather than computed over actual elapsed
// time; both sentinel and sample cycles consume the budget.
// Params: none.
// Returns: sampling state machine instance.
type Orchestrator struct {
	cfg    Config
	src    Sources
	sink   Sink
	logger *slog.Logger

	classifier *LogClassifier
	observer   Observer
	prev       previousState
	watermark  int

	now func() time.Time
}

// SetObserver attaches an optional cycle observer.
// Params: observer telemetry hook, nil to disable.
// Returns: none.
func (o *Orchestrator) SetObserver(observer Observer) {
	o.observer = observer
}

// NewOrchestrator validates configuration and builds a sampling run.
// Params: cfg run configuration; src polled sources; sink row consumer; logger root logger.
// Returns: orchestrator or configuration error (fatal, reported before the loop).
func NewOrchestrator(cfg Config, src Sources, sink Sink, logger *slog.Logger) (*Orchestrator, error) {
	if cfg.Keyspace == "" {
		return nil, fmt.Errorf("target keyspace is required")
	}
	if cfg.Percentiles && cfg.Table == "" {
		return nil, fmt.Errorf("percentiles require a target table")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if src.Keyspace == nil || src.Disk == nil || src.Net == nil || src.CPU == nil {
		return nil, fmt.Errorf("keyspace, disk, net, and cpu sources are required")
	}
	if (cfg.CacheQueue || cfg.ReadRepair) && src.ThreadPools == nil {
		return nil, fmt.Errorf("thread pool source is required for cache/queue and read-repair columns")
	}
	if cfg.Percentiles && src.Histograms == nil {
		return nil, fmt.Errorf("histogram source is required for percentile columns")
	}
	if cfg.Compactions && src.Compactions == nil {
		return nil, fmt.Errorf("compaction source is required for compaction column")
	}

	o := &Orchestrator{
		cfg:    cfg,
		src:    src,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
	if cfg.LogPath != "" {
		o.classifier = NewLogClassifier(cfg.LogPath)
	}
	return o, nil
}

// Run primes the baseline and executes sampling cycles until the budget is spent
// or the context is canceled. Unresponsive cycles are recoverable: a sentinel row
// is emitted and the loop retries next cycle.
// Params: ctx controls lifecycle.
// Returns: nil on budget exhaustion or graceful stop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.prime(ctx)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	var cycles uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.cycle(ctx)
			cycles++
			if o.cfg.Count > 0 && cycles >= o.cfg.Count {
				return nil
			}
		}
	}
}

// prime seeds the previous counter baseline and the log watermark without
// emitting a row.
// A failed priming read leaves a zero baseline; the first responsive cycle then
// starts its deltas from zero.
// Params: ctx for source queries.
// Returns: none.
func (o *Orchestrator) prime(ctx context.Context) {
	counters, err := o.src.Keyspace.Counters(ctx, o.cfg.Keyspace, o.cfg.Table)
	if err != nil {
		o.logger.Warn("priming read failed", slog.String("error", err.Error()))
	}
	if counters != nil {
		o.prev.reads = counters.ReadCount
		o.prev.writes = counters.WriteCount
	}

	if o.cfg.ReadRepair {
		if depths, err := o.src.ThreadPools.Depths(ctx); err != nil {
			o.logger.Warn("priming thread pool read failed", slog.String("error", err.Error()))
		} else if depths != nil {
			o.prev.readRepair = depths.ReadRepairCompleted
		}
	}

	if disk, err := o.src.Disk.Counters(ctx, o.cfg.DiskDevice); err != nil {
		o.logger.Warn("priming disk read failed", slog.String("error", err.Error()))
	} else {
		o.prev.disk = disk
	}
	if net, err := o.src.Net.Counters(ctx, o.cfg.NetInterface); err != nil {
		o.logger.Warn("priming net read failed", slog.String("error", err.Error()))
	} else {
		o.prev.net = net
	}
	if cpu, err := o.src.CPU.Times(ctx); err != nil {
		o.logger.Warn("priming cpu read failed", slog.String("error", err.Error()))
	} else {
		o.prev.cpu = cpu
	}

	if o.classifier != nil {
		lines, err := o.classifier.LineCount()
		if err != nil {
			o.logger.Warn("priming log read failed", slog.String("error", err.Error()))
			return
		}
		o.watermark = lines
	}
}

// cycle executes one sampling state transition: acquire, branch on responsiveness,
// compute, emit. All failures below the primary source are absorbed as degraded
// zero values so unattended monitoring keeps running.
// Params: ctx for source queries.
// Returns: none.
func (o *Orchestrator) cycle(ctx context.Context) {
	at := o.now()
	seconds := o.cfg.Interval.Seconds()

	// Host counters are collected exactly once per cycle.
	diskNow, diskErr := o.src.Disk.Counters(ctx, o.cfg.DiskDevice)
	netNow, netErr := o.src.Net.Counters(ctx, o.cfg.NetInterface)
	cpuNow, cpuErr := o.src.CPU.Times(ctx)

	counters, err := o.src.Keyspace.Counters(ctx, o.cfg.Keyspace, o.cfg.Table)
	if err != nil {
		o.logger.Warn("keyspace query failed", slog.String("keyspace", o.cfg.Keyspace), slog.String("error", err.Error()))
	}
	if counters == nil {
		// Unresponsive: no delta/percentile/log work, previous state untouched.
		if err := o.sink.Unresponsive(at); err != nil {
			o.logger.Error("emit failed", slog.String("error", err.Error()))
		}
		if o.observer != nil {
			o.observer.ObserveCycle(o.now().Sub(at), false)
		}
		return
	}

	sample := Sample{
		At:             at,
		ReadRate:       Rate(counters.ReadCount, o.prev.reads, seconds),
		WriteRate:      Rate(counters.WriteCount, o.prev.writes, seconds),
		ReadLatencyMs:  counters.ReadLatencyMs,
		WriteLatencyMs: counters.WriteLatencyMs,
	}

	var depths *source.ThreadPoolDepths
	if o.cfg.CacheQueue || o.cfg.ReadRepair {
		depths, err = o.src.ThreadPools.Depths(ctx)
		if err != nil {
			o.logger.Warn("thread pool query failed", slog.String("error", err.Error()))
		}
	}
	if o.cfg.CacheQueue {
		sample.KeyCacheHitRate = counters.KeyCacheHitRate
		sample.RowCacheHitRate = counters.RowCacheHitRate
		if depths != nil {
			sample.ReadStagePending = depths.ReadStagePending
		}
	}
	if o.cfg.ReadRepair && depths != nil {
		sample.ReadRepairRate = Rate(depths.ReadRepairCompleted, o.prev.readRepair, seconds)
	}

	if cpuErr != nil {
		o.logger.Warn("cpu query failed", slog.String("error", cpuErr.Error()))
	} else {
		sample.CPUUser, sample.CPUSystem, sample.CPUIdle, sample.CPUIOWait = cpuBreakdown(cpuNow, o.prev.cpu)
	}

	if diskErr != nil {
		o.logger.Warn("disk query failed", slog.String("device", o.cfg.DiskDevice), slog.String("error", diskErr.Error()))
	} else {
		sample.DiskReadsPerSec = Rate(diskNow.ReadCount, o.prev.disk.ReadCount, seconds)
		sample.DiskWritesPerSec = Rate(diskNow.WriteCount, o.prev.disk.WriteCount, seconds)
		sample.DiskReadKBPerSec = Rate(diskNow.ReadBytes, o.prev.disk.ReadBytes, seconds) / 1024
		sample.DiskWriteKBPerSec = Rate(diskNow.WriteBytes, o.prev.disk.WriteBytes, seconds) / 1024
	}

	if netErr != nil {
		o.logger.Warn("net query failed", slog.String("iface", o.cfg.NetInterface), slog.String("error", netErr.Error()))
	} else {
		sample.NetRxKBPerSec = Rate(netNow.BytesRecv, o.prev.net.BytesRecv, seconds) / 1024
		sample.NetTxKBPerSec = Rate(netNow.BytesSent, o.prev.net.BytesSent, seconds) / 1024
	}

	if o.cfg.Percentiles {
		hist, err := o.src.Histograms.Histogram(ctx, o.cfg.Keyspace, o.cfg.Table)
		if err != nil {
			o.logger.Warn("histogram query failed", slog.String("error", err.Error()))
		} else {
			sample.ReadP99 = Percentile(hist, 99, OpRead)
			sample.ReadP95 = Percentile(hist, 95, OpRead)
			sample.WriteP99 = Percentile(hist, 99, OpWrite)
			sample.WriteP95 = Percentile(hist, 95, OpWrite)
		}
	}

	if o.cfg.Compactions {
		stats, err := o.src.Compactions.Compactions(ctx)
		if err != nil {
			o.logger.Warn("compaction query failed", slog.String("error", err.Error()))
		} else {
			sample.Compaction = stats
		}
	}

	newWatermark := o.watermark
	if o.classifier != nil {
		events, mark, err := o.classifier.ExtractEvents(o.watermark)
		if err != nil {
			o.logger.Warn("log scan failed", slog.String("path", o.cfg.LogPath), slog.String("error", err.Error()))
		} else {
			sample.Events = events
			newWatermark = mark
		}
	}

	if err := o.sink.Sample(sample); err != nil {
		o.logger.Error("emit failed", slog.String("error", err.Error()))
	}

	o.prev.reads = counters.ReadCount
	o.prev.writes = counters.WriteCount
	if depths != nil {
		o.prev.readRepair = depths.ReadRepairCompleted
	}
	if diskErr == nil {
		o.prev.disk = diskNow
	}
	if netErr == nil {
		o.prev.net = netNow
	}
	if cpuErr == nil {
		o.prev.cpu = cpuNow
	}
	o.watermark = newWatermark

	if o.observer != nil {
		o.observer.ObserveCycle(o.now().Sub(at), true)
		o.observer.AddEvents(len(sample.Events))
	}
}

// cpuBreakdown converts two cumulative CPU time snapshots into utilization percents.
// Params: current and previous cumulative CPU times.
// Returns: user, system, idle, iowait percentages, or zeros on reset or no elapsed time.
func cpuBreakdown(current, previous source.CPUTimes) (user, system, idle, iowait float64) {
	total := current.Total - previous.Total
	if total <= 0 {
		return 0, 0, 0, 0
	}

	percent := func(cur, prev float64) float64 {
		delta := cur - prev
		if delta < 0 {
			return 0
		}
		return delta / total * 100
	}
	return percent(current.User, previous.User),
		percent(current.System, previous.System),
		percent(current.Idle, previous.Idle),
		percent(current.IOWait, previous.IOWait)
}
