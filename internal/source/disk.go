package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskIOSource reads cumulative block device IO counters for one named device.
// Delta and rate math lives with the caller, which owns the previous snapshot.
// Params: none.
// Returns: gopsutil-backed disk source.
type DiskIOSource struct {
	readIO func(context.Context, ...string) (map[string]disk.IOCountersStat, error)
}

// NewDiskIOSource creates a disk source.
// Params: none.
// Returns: configured disk source.
func NewDiskIOSource() *DiskIOSource {
	return &DiskIOSource{readIO: disk.IOCountersWithContext}
}

// Counters reads cumulative counters for one block device.
// Params: ctx for cancellation; device short name with optional /dev/ prefix.
// Returns: counter snapshot or error when the device is unknown.
func (s *DiskIOSource) Counters(ctx context.Context, device string) (DiskCounters, error) {
	readIO := s.readIO
	if readIO == nil {
		readIO = disk.IOCountersWithContext
	}

	name := normalizeDeviceName(device)
	stats, err := readIO(ctx, name)
	if err != nil {
		return DiskCounters{}, fmt.Errorf("read disk counters: %w", err)
	}

	stat, ok := stats[name]
	if !ok {
		return DiskCounters{}, fmt.Errorf("disk device %q not found", device)
	}

	return DiskCounters{
		ReadCount:  stat.ReadCount,
		WriteCount: stat.WriteCount,
		ReadBytes:  stat.ReadBytes,
		WriteBytes: stat.WriteBytes,
	}, nil
}

// normalizeDeviceName trims spaces and optional /dev/ prefix.
// Params: raw device name.
// Returns: normalized short device name.
func normalizeDeviceName(name string) string {
	device := strings.TrimSpace(name)
	if strings.HasPrefix(device, "/dev/") {
		device = strings.TrimPrefix(device, "/dev/")
	}
	return device
}
