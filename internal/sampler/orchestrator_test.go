package sampler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nodestat/internal/source"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeKeyspaceSource struct {
	mu        sync.Mutex
	snapshots []*source.KeyspaceCounters
	calls     int
}

func (f *fakeKeyspaceSource) Counters(_ context.Context, _, _ string) (*source.KeyspaceCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.snapshots) {
		last := f.snapshots[len(f.snapshots)-1]
		f.calls++
		return last, nil
	}
	snapshot := f.snapshots[f.calls]
	f.calls++
	return snapshot, nil
}

type fakeThreadPoolSource struct {
	depths source.ThreadPoolDepths
}

func (f *fakeThreadPoolSource) Depths(_ context.Context) (*source.ThreadPoolDepths, error) {
	depths := f.depths
	return &depths, nil
}

type fakeHostSource struct {
	disk source.DiskCounters
	net  source.NetCounters
	cpu  source.CPUTimes
}

func (f *fakeHostSource) Counters(_ context.Context, _ string) (source.DiskCounters, error) {
	return f.disk, nil
}

type fakeNetSource struct{ host *fakeHostSource }

func (f *fakeNetSource) Counters(_ context.Context, _ string) (source.NetCounters, error) {
	return f.host.net, nil
}

type fakeCPUSource struct{ host *fakeHostSource }

func (f *fakeCPUSource) Times(_ context.Context) (source.CPUTimes, error) {
	return f.host.cpu, nil
}

type recordingSink struct {
	mu        sync.Mutex
	samples   []Sample
	sentinels int
}

func (s *recordingSink) Sample(sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *recordingSink) Unresponsive(time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentinels++
	return nil
}

func testSources(keyspace *fakeKeyspaceSource) Sources {
	host := &fakeHostSource{}
	return Sources{
		Keyspace:    keyspace,
		ThreadPools: &fakeThreadPoolSource{},
		Disk:        host,
		Net:         &fakeNetSource{host: host},
		CPU:         &fakeCPUSource{host: host},
	}
}

func TestOrchestratorTerminatesAfterSampleBudget(t *testing.T) {
	keyspace := &fakeKeyspaceSource{snapshots: []*source.KeyspaceCounters{
		{ReadCount: 100, WriteCount: 10},
	}}
	sink := &recordingSink{}

	o, err := NewOrchestrator(Config{
		Keyspace: "ks1",
		Interval: 20 * time.Millisecond,
		Count:    3,
	}, testSources(keyspace), sink, discardLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not terminate on sample budget")
	}

	if len(sink.samples) != 3 {
		t.Fatalf("samples=%d want exactly 3", len(sink.samples))
	}
	if sink.sentinels != 0 {
		t.Fatalf("sentinels=%d want 0", sink.sentinels)
	}
}

func TestOrchestratorUnresponsiveCycleKeepsBaseline(t *testing.T) {
	// Prime reads 100/10; the first cycle is unresponsive; the second cycle must
	// delta against the pre-gap baseline, still divided by the nominal interval.
	keyspace := &fakeKeyspaceSource{snapshots: []*source.KeyspaceCounters{
		{ReadCount: 100, WriteCount: 10},
		nil,
		{ReadCount: 400, WriteCount: 70},
	}}
	sink := &recordingSink{}

	interval := 50 * time.Millisecond
	o, err := NewOrchestrator(Config{
		Keyspace: "ks1",
		Interval: interval,
		Count:    2,
	}, testSources(keyspace), sink, discardLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sink.sentinels != 1 {
		t.Fatalf("sentinels=%d want 1", sink.sentinels)
	}
	if len(sink.samples) != 1 {
		t.Fatalf("samples=%d want 1", len(sink.samples))
	}

	seconds := interval.Seconds()
	if got, want := sink.samples[0].ReadRate, Rate(400, 100, seconds); got != want {
		t.Fatalf("ReadRate=%d want %d (delta spanning the unresponsive gap)", got, want)
	}
	if got, want := sink.samples[0].WriteRate, Rate(70, 10, seconds); got != want {
		t.Fatalf("WriteRate=%d want %d", got, want)
	}
}

func TestOrchestratorStopsOnContextCancel(t *testing.T) {
	keyspace := &fakeKeyspaceSource{snapshots: []*source.KeyspaceCounters{{}}}
	sink := &recordingSink{}

	o, err := NewOrchestrator(Config{
		Keyspace: "ks1",
		Interval: 10 * time.Millisecond,
	}, testSources(keyspace), sink, discardLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on cancellation")
	}
}

func TestNewOrchestratorConfigurationErrors(t *testing.T) {
	keyspace := &fakeKeyspaceSource{snapshots: []*source.KeyspaceCounters{{}}}
	sink := &recordingSink{}
	sources := testSources(keyspace)

	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing keyspace", cfg: Config{Interval: time.Second}},
		{name: "percentiles without table", cfg: Config{Keyspace: "ks1", Interval: time.Second, Percentiles: true}},
		{name: "non-positive interval", cfg: Config{Keyspace: "ks1"}},
	}

	for _, tc := range cases {
		if _, err := NewOrchestrator(tc.cfg, sources, sink, discardLogger()); err == nil {
			t.Fatalf("%s: expected configuration error", tc.name)
		}
	}
}

func TestOrchestratorReadRepairDelta(t *testing.T) {
	keyspace := &fakeKeyspaceSource{snapshots: []*source.KeyspaceCounters{
		{ReadCount: 0, WriteCount: 0},
	}}
	host := &fakeHostSource{}
	tp := &fakeThreadPoolSource{depths: source.ThreadPoolDepths{ReadRepairCompleted: 500, ReadStagePending: 7}}
	sink := &recordingSink{}

	interval := 20 * time.Millisecond
	o, err := NewOrchestrator(Config{
		Keyspace:   "ks1",
		Interval:   interval,
		Count:      1,
		ReadRepair: true,
		CacheQueue: true,
	}, Sources{
		Keyspace:    keyspace,
		ThreadPools: tp,
		Disk:        host,
		Net:         &fakeNetSource{host: host},
		CPU:         &fakeCPUSource{host: host},
	}, sink, discardLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	// Priming stores 500; advance the counter before the first cycle.
	o.prime(context.Background())
	tp.depths.ReadRepairCompleted = 520
	o.cycle(context.Background())

	if len(sink.samples) != 1 {
		t.Fatalf("samples=%d want 1", len(sink.samples))
	}
	if got, want := sink.samples[0].ReadRepairRate, Rate(520, 500, interval.Seconds()); got != want {
		t.Fatalf("ReadRepairRate=%d want %d", got, want)
	}
	if got := sink.samples[0].ReadStagePending; got != 7 {
		t.Fatalf("ReadStagePending=%d want 7", got)
	}
}
