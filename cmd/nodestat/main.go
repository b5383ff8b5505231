package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"nodestat/internal/app"
	"nodestat/internal/config"
)

const (
	exitCodeFailure = 1
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// options holds CLI flag values before they are merged into the config.
// Params: none.
// Returns: none.
type options struct {
	configPath string
	showInfo   bool

	keyspace string
	table    string
	interval time.Duration
	count    uint64

	logFile   string
	logOutput string

	disk     string
	netIface string

	epoch       bool
	timestamp   bool
	noHeader    bool
	readRepair  bool
	compactions bool
	percentiles bool
	cacheQueue  bool

	nodetoolPath    string
	nodetoolHost    string
	nodetoolPort    uint16
	nodetoolTimeout time.Duration

	logLevel string
	logColor bool
	logSink  string

	telemetry       bool
	telemetryListen string
}

// addFlags registers all CLI flags on the given flag set.
// Params: fs command flag set.
// Returns: none.
func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to optional TOML config file")
	fs.BoolVarP(&o.showInfo, "version", "v", false, "show build information")

	fs.StringVarP(&o.keyspace, "keyspace", "k", "", "keyspace to sample (required)")
	fs.StringVarP(&o.table, "table", "t", "", "table within the keyspace to sample")
	fs.DurationVarP(&o.interval, "interval", "i", 0, "time between samples (minimum 2s)")
	fs.Uint64VarP(&o.count, "count", "n", 0, "number of rows to emit before exiting (0 = run forever)")

	fs.StringVar(&o.logFile, "log-file", "", "node log file to watch for events")
	fs.StringVar(&o.logOutput, "log-output", "", "write classified events to this file instead of interleaving")

	fs.StringVar(&o.disk, "disk", "", "block device to report I/O rates for")
	fs.StringVar(&o.netIface, "net-iface", "", "network interface to report throughput for")

	fs.BoolVar(&o.epoch, "epoch", false, "print row timestamps as Unix epoch seconds")
	fs.BoolVar(&o.timestamp, "timestamp", false, "prefix each row with a timestamp column")
	fs.BoolVar(&o.noHeader, "no-header", false, "suppress the periodic column header")
	fs.BoolVar(&o.readRepair, "read-repair", false, "include the read repair rate column")
	fs.BoolVar(&o.compactions, "compactions", false, "include the compaction status column")
	fs.BoolVar(&o.percentiles, "percentiles", false, "include latency percentile columns (requires --table)")
	fs.BoolVar(&o.cacheQueue, "cache-queue", false, "include cache hit rate and read queue columns")

	fs.StringVar(&o.nodetoolPath, "nodetool", "", "path to the admin tool binary")
	fs.StringVar(&o.nodetoolHost, "host", "", "node JMX host")
	fs.Uint16Var(&o.nodetoolPort, "port", 0, "node JMX port")
	fs.DurationVar(&o.nodetoolTimeout, "tool-timeout", 0, "per-command admin tool timeout")

	fs.StringVar(&o.logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")
	fs.BoolVar(&o.logColor, "log-color", false, "colorize diagnostic log lines on stderr")
	fs.StringVar(&o.logSink, "log-sink", "", "also write diagnostic logs to this file")

	fs.BoolVar(&o.telemetry, "telemetry", false, "expose self-telemetry over HTTP")
	fs.StringVar(&o.telemetryListen, "telemetry-listen", "", "self-telemetry listen address")
}

// buildConfig loads the optional TOML file and applies flag overrides on top.
// A flag that was explicitly set always wins over the file value.
// Params: fs parsed flag set; o flag values.
// Returns: merged configuration or error.
func buildConfig(fs *pflag.FlagSet, o *options) (*config.Config, error) {
	cfg := &config.Config{}
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	setString := func(name string, dst *string, value string) {
		if fs.Changed(name) {
			*dst = value
		}
	}
	setBool := func(name string, dst *bool, value bool) {
		if fs.Changed(name) {
			*dst = value
		}
	}

	setString("keyspace", &cfg.Keyspace, o.keyspace)
	setString("table", &cfg.Table, o.table)
	if fs.Changed("interval") {
		cfg.Interval.Duration = o.interval
	}
	if fs.Changed("count") {
		cfg.Count = o.count
	}

	setString("log-file", &cfg.LogFile, o.logFile)
	setString("log-output", &cfg.LogOutput, o.logOutput)
	setString("disk", &cfg.Disk, o.disk)
	setString("net-iface", &cfg.NetInterface, o.netIface)

	setBool("epoch", &cfg.Epoch, o.epoch)
	setBool("timestamp", &cfg.Timestamp, o.timestamp)
	setBool("no-header", &cfg.NoHeader, o.noHeader)
	setBool("read-repair", &cfg.ReadRepair, o.readRepair)
	setBool("compactions", &cfg.Compactions, o.compactions)
	setBool("percentiles", &cfg.Percentiles, o.percentiles)
	setBool("cache-queue", &cfg.CacheQueue, o.cacheQueue)

	setString("nodetool", &cfg.Nodetool.Path, o.nodetoolPath)
	setString("host", &cfg.Nodetool.Host, o.nodetoolHost)
	if fs.Changed("port") {
		cfg.Nodetool.Port = o.nodetoolPort
	}
	if fs.Changed("tool-timeout") {
		cfg.Nodetool.Timeout.Duration = o.nodetoolTimeout
	}

	setString("log-level", &cfg.Log.Level, o.logLevel)
	setBool("log-color", &cfg.Log.Color, o.logColor)
	setString("log-sink", &cfg.Log.File, o.logSink)

	setBool("telemetry", &cfg.Telemetry.Enabled, o.telemetry)
	setString("telemetry-listen", &cfg.Telemetry.Listen, o.telemetryListen)

	cfg.ApplyDefaults()
	return cfg, nil
}

// newRootCommand creates the nodestat command with all flags registered.
// Params: ctx controls process lifecycle.
// Returns: configured cobra command.
func newRootCommand(ctx context.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "nodestat",
		Short:         "vmstat-style live statistics for a database node",
		Long:          "nodestat samples a database node at a fixed interval and prints one row of operation rates, latencies, OS counters, and log events per cycle.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showInfo {
				fmt.Fprintf(cmd.OutOrStdout(), "nodestat version=%s commit=%s date=%s\n", version, commit, date)
				return nil
			}

			cfg, err := buildConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}

			return app.Run(ctx, cfg)
		},
	}

	opts.addFlags(cmd.Flags())
	return cmd
}

// run executes the root command with signal-driven shutdown.
// Params: none.
// Returns: process exit code.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(ctx).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeFailure
	}

	return 0
}

func main() {
	os.Exit(run())
}
