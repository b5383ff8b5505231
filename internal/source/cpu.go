package source

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUTimesSource reads cumulative host CPU time counters.
// Params: none.
// Returns: gopsutil-backed CPU source.
type CPUTimesSource struct {
	readTimes func(context.Context, bool) ([]cpu.TimesStat, error)
}

// NewCPUTimesSource creates a CPU source.
// Params: none.
// Returns: configured CPU source.
func NewCPUTimesSource() *CPUTimesSource {
	return &CPUTimesSource{readTimes: cpu.TimesWithContext}
}

// Times reads host-wide cumulative CPU times.
// Params: ctx for cancellation.
// Returns: CPU time snapshot or read error.
func (s *CPUTimesSource) Times(ctx context.Context) (CPUTimes, error) {
	readTimes := s.readTimes
	if readTimes == nil {
		readTimes = cpu.TimesWithContext
	}

	stats, err := readTimes(ctx, false)
	if err != nil {
		return CPUTimes{}, fmt.Errorf("read cpu times: %w", err)
	}
	if len(stats) == 0 {
		return CPUTimes{}, fmt.Errorf("no cpu time rows returned")
	}

	stat := stats[0]
	total := stat.User + stat.Nice + stat.System + stat.Idle + stat.Iowait +
		stat.Irq + stat.Softirq + stat.Steal + stat.Guest + stat.GuestNice

	return CPUTimes{
		User:   stat.User + stat.Nice,
		System: stat.System,
		Idle:   stat.Idle,
		IOWait: stat.Iowait,
		Total:  total,
	}, nil
}
