package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"nodestat/internal/config"
	"nodestat/internal/sampler"
	"nodestat/internal/telemetry"
)

type fakeOrchestrator struct {
	runErr error
	runs   int
}

func (f *fakeOrchestrator) Run(ctx context.Context) error {
	f.runs++
	return f.runErr
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// testDeps returns a dependency set with all external effects stubbed out.
// Params: t test handle; orch orchestrator returned by the factory.
// Returns: stubbed dependency set.
func testDeps(t *testing.T, orch orchestratorRunner) runDeps {
	t.Helper()

	return runDeps{
		newLogger: func(config.LogConfig) (*slog.Logger, func(), error) {
			return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
		},
		startTelemetry: func(context.Context, config.TelemetryConfig, *telemetry.Metrics, *slog.Logger) (func(), error) {
			return func() {}, nil
		},
		newOrchestrator: func(*config.Config, sampler.Sink, *telemetry.Metrics, *slog.Logger) (orchestratorRunner, error) {
			return orch, nil
		},
		openEventOut: func(string) (io.WriteCloser, error) {
			return nopWriteCloser{io.Discard}, nil
		},
		rowOut: &bytes.Buffer{},
	}
}

// validConfig returns a minimal config that passes validation.
// Params: none.
// Returns: config ready for runWithDeps.
func validConfig() *config.Config {
	cfg := config.Default()
	cfg.Keyspace = "ks1"
	return cfg
}

func TestRunWithDepsHappyPath(t *testing.T) {
	orch := &fakeOrchestrator{}

	if err := runWithDeps(context.Background(), validConfig(), testDeps(t, orch)); err != nil {
		t.Fatalf("runWithDeps() error = %v", err)
	}
	if orch.runs != 1 {
		t.Errorf("orchestrator runs = %d, want 1", orch.runs)
	}
}

func TestRunWithDepsInvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Keyspace = ""

	err := runWithDeps(context.Background(), cfg, testDeps(t, &fakeOrchestrator{}))
	if err == nil {
		t.Fatal("runWithDeps() error = nil, want validation error")
	}
}

func TestRunWithDepsNilConfig(t *testing.T) {
	if err := runWithDeps(context.Background(), nil, testDeps(t, &fakeOrchestrator{})); err == nil {
		t.Fatal("runWithDeps() error = nil, want error")
	}
}

func TestRunWithDepsOrchestratorError(t *testing.T) {
	orch := &fakeOrchestrator{runErr: errors.New("loop broke")}

	err := runWithDeps(context.Background(), validConfig(), testDeps(t, orch))
	if err == nil || !errors.Is(err, orch.runErr) {
		t.Fatalf("runWithDeps() error = %v, want wrapped %v", err, orch.runErr)
	}
}

func TestRunWithDepsEventOutputOpened(t *testing.T) {
	opened := ""
	deps := testDeps(t, &fakeOrchestrator{})
	deps.openEventOut = func(path string) (io.WriteCloser, error) {
		opened = path
		return nopWriteCloser{io.Discard}, nil
	}

	cfg := validConfig()
	cfg.LogOutput = "/var/log/nodestat-events.log"

	if err := runWithDeps(context.Background(), cfg, deps); err != nil {
		t.Fatalf("runWithDeps() error = %v", err)
	}
	if opened != cfg.LogOutput {
		t.Errorf("opened event output = %q, want %q", opened, cfg.LogOutput)
	}
}

func TestBuildOrchestratorValidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.LogFile = "/var/log/db/system.log"
	cfg.Interval.Duration = 5 * time.Second

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch, err := buildOrchestrator(cfg, discardSink{}, telemetry.NewMetrics(), logger)
	if err != nil {
		t.Fatalf("buildOrchestrator() error = %v", err)
	}
	if orch == nil {
		t.Fatal("buildOrchestrator() returned nil orchestrator")
	}
}

type discardSink struct{}

func (discardSink) Sample(sampler.Sample) error     { return nil }
func (discardSink) Unresponsive(at time.Time) error { return nil }
