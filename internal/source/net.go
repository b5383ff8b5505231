package source

import (
	"context"
	"fmt"

	netio "github.com/shirou/gopsutil/v4/net"
)

// NetIOSource reads cumulative byte counters for one named network interface.
// Params: none.
// Returns: gopsutil-backed network source.
type NetIOSource struct {
	readIO func(context.Context, bool) ([]netio.IOCountersStat, error)
}

// NewNetIOSource creates a network source.
// Params: none.
// Returns: configured network source.
func NewNetIOSource() *NetIOSource {
	return &NetIOSource{readIO: netio.IOCountersWithContext}
}

// Counters reads cumulative byte counters for one interface.
// Params: ctx for cancellation; iface interface name.
// Returns: counter snapshot or error when the interface is unknown.
func (s *NetIOSource) Counters(ctx context.Context, iface string) (NetCounters, error) {
	readIO := s.readIO
	if readIO == nil {
		readIO = netio.IOCountersWithContext
	}

	stats, err := readIO(ctx, true)
	if err != nil {
		return NetCounters{}, fmt.Errorf("read net counters: %w", err)
	}

	for _, stat := range stats {
		if stat.Name != iface {
			continue
		}
		return NetCounters{
			BytesRecv: stat.BytesRecv,
			BytesSent: stat.BytesSent,
		}, nil
	}

	return NetCounters{}, fmt.Errorf("network interface %q not found", iface)
}
