package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"nodestat/internal/config"
	"nodestat/internal/logging"
	"nodestat/internal/render"
	"nodestat/internal/sampler"
	"nodestat/internal/source"
	"nodestat/internal/telemetry"
)

type orchestratorRunner interface {
	Run(context.Context) error
}

type runDeps struct {
	newLogger       func(config.LogConfig) (*slog.Logger, func(), error)
	startTelemetry  func(context.Context, config.TelemetryConfig, *telemetry.Metrics, *slog.Logger) (func(), error)
	newOrchestrator func(cfg *config.Config, sink sampler.Sink, metrics *telemetry.Metrics, logger *slog.Logger) (orchestratorRunner, error)
	openEventOut    func(path string) (io.WriteCloser, error)
	rowOut          io.Writer
}

// Run validates configuration, wires sources and output, and drives the sampling
// loop until the budget is spent or ctx is canceled. Configuration errors are the
// only fatal outcome; everything past startup is absorbed by the loop.
// Params: ctx controls lifecycle; cfg merged configuration.
// Returns: startup error or nil on graceful stop.
func Run(ctx context.Context, cfg *config.Config) error {
	return runWithDeps(ctx, cfg, defaultRunDeps())
}

// runWithDeps executes the runtime lifecycle using injectable dependencies.
// Params: ctx controls lifecycle; cfg merged configuration; deps runtime dependency set.
// Returns: startup error or nil on graceful stop.
func runWithDeps(ctx context.Context, cfg *config.Config, deps runDeps) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLogger, err := deps.newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLogger()

	metrics := telemetry.NewMetrics()
	stopTelemetry, err := deps.startTelemetry(ctx, cfg.Telemetry, metrics, logger)
	if err != nil {
		return fmt.Errorf("start telemetry: %w", err)
	}
	defer stopTelemetry()

	var eventOut io.Writer
	if cfg.LogOutput != "" {
		eventFile, err := deps.openEventOut(cfg.LogOutput)
		if err != nil {
			return fmt.Errorf("open event output: %w", err)
		}
		defer eventFile.Close()
		eventOut = eventFile
	}

	sink := render.New(deps.rowOut, eventOut, render.Options{
		Epoch:       cfg.Epoch,
		Timestamp:   cfg.Timestamp,
		NoHeader:    cfg.NoHeader,
		CacheQueue:  cfg.CacheQueue,
		ReadRepair:  cfg.ReadRepair,
		Percentiles: cfg.Percentiles,
		Compactions: cfg.Compactions,
	})

	orchestrator, err := deps.newOrchestrator(cfg, sink, metrics, logger)
	if err != nil {
		return fmt.Errorf("build sampler: %w", err)
	}

	logStartup(logger, cfg)
	if err := orchestrator.Run(ctx); err != nil {
		return fmt.Errorf("run sampler: %w", err)
	}

	logger.Info("sampler stopped")
	return nil
}

// defaultRunDeps provides production runtime dependencies.
// Params: none.
// Returns: dependency set used by Run.
func defaultRunDeps() runDeps {
	return runDeps{
		newLogger:      logging.New,
		startTelemetry: telemetry.StartServer,
		newOrchestrator: func(cfg *config.Config, sink sampler.Sink, metrics *telemetry.Metrics, logger *slog.Logger) (orchestratorRunner, error) {
			return buildOrchestrator(cfg, sink, metrics, logger)
		},
		openEventOut: func(path string) (io.WriteCloser, error) {
			return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		},
		rowOut: os.Stdout,
	}
}

// buildOrchestrator assembles production sources and the sampling state machine.
// Params: cfg merged configuration; sink row consumer; metrics telemetry handle; logger root logger.
// Returns: orchestrator or configuration error.
func buildOrchestrator(cfg *config.Config, sink sampler.Sink, metrics *telemetry.Metrics, logger *slog.Logger) (*sampler.Orchestrator, error) {
	nodetool := source.NewNodetoolSource(source.NodetoolOptions{
		Path:    cfg.Nodetool.Path,
		Host:    cfg.Nodetool.Host,
		Port:    cfg.Nodetool.Port,
		Timeout: cfg.Nodetool.Timeout.Duration,
	})

	orchestrator, err := sampler.NewOrchestrator(
		sampler.Config{
			Keyspace:     cfg.Keyspace,
			Table:        cfg.Table,
			Interval:     cfg.Interval.Duration,
			Count:        cfg.Count,
			LogPath:      cfg.LogFile,
			DiskDevice:   cfg.Disk,
			NetInterface: cfg.NetInterface,
			CacheQueue:   cfg.CacheQueue,
			ReadRepair:   cfg.ReadRepair,
			Percentiles:  cfg.Percentiles,
			Compactions:  cfg.Compactions,
		},
		sampler.Sources{
			Keyspace:    nodetool,
			ThreadPools: nodetool,
			Histograms:  nodetool,
			Compactions: nodetool,
			Disk:        source.NewDiskIOSource(),
			Net:         source.NewNetIOSource(),
			CPU:         source.NewCPUTimesSource(),
		},
		sink,
		logger,
	)
	if err != nil {
		return nil, err
	}
	orchestrator.SetObserver(metrics)
	return orchestrator, nil
}

// logStartup emits initial startup metadata.
// Params: logger initialized slog logger; cfg validated runtime config.
// Returns: none.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	logger.Info(
		"sampler started",
		slog.String("keyspace", cfg.Keyspace),
		slog.String("table", cfg.Table),
		slog.Duration("interval", cfg.Interval.Duration),
		slog.Uint64("count", cfg.Count),
	)
}
