package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// maxToolOutputBytes caps buffered admin tool stdout.
	maxToolOutputBytes = 4 << 20
	maxToolStderrBytes = 8 * 1024

	readStagePool       = "ReadStage"
	readRepairStagePool = "ReadRepairStage"
)

type cappedBuffer struct {
	buffer bytes.Buffer
	max    int
}

// Write appends data up to configured cap and silently drops the rest.
// Params: payload chunk bytes.
// Returns: consumed input size to keep writer contract for command pipes.
func (b *cappedBuffer) Write(payload []byte) (int, error) {
	if b.max <= 0 || b.buffer.Len() >= b.max {
		return len(payload), nil
	}

	remaining := b.max - b.buffer.Len()
	if len(payload) > remaining {
		_, _ = b.buffer.Write(payload[:remaining])
		return len(payload), nil
	}

	_, _ = b.buffer.Write(payload)
	return len(payload), nil
}

// Bytes returns buffered bytes.
// Params: none.
// Returns: current buffer content.
func (b *cappedBuffer) Bytes() []byte {
	return b.buffer.Bytes()
}

// String returns buffered text.
// Params: none.
// Returns: current buffer text.
func (b *cappedBuffer) String() string {
	return b.buffer.String()
}

// NodetoolSource queries a node's admin tool for keyspace counters, thread pool
// depths, latency histograms, and compaction tasks by running one subcommand per
// query and parsing its text output into typed snapshots.
// Params: none.
// Returns: admin-tool-backed metric source.
type NodetoolSource struct {
	path    string
	host    string
	port    uint16
	timeout time.Duration

	runCommand func(ctx context.Context, args ...string) ([]byte, error)
}

// NodetoolOptions configures the admin tool invocation.
// Params: binary path, node host/port, per-command timeout.
// Returns: option set for NewNodetoolSource.
type NodetoolOptions struct {
	Path    string
	Host    string
	Port    uint16
	Timeout time.Duration
}

// NewNodetoolSource creates an admin tool source with defaults applied.
// Params: opts invocation options; zero values fall back to nodetool/localhost.
// Returns: configured source.
func NewNodetoolSource(opts NodetoolOptions) *NodetoolSource {
	source := &NodetoolSource{
		path:    strings.TrimSpace(opts.Path),
		host:    strings.TrimSpace(opts.Host),
		port:    opts.Port,
		timeout: opts.Timeout,
	}
	if source.path == "" {
		source.path = "nodetool"
	}
	if source.host == "" {
		source.host = "127.0.0.1"
	}
	if source.port == 0 {
		source.port = 8080
	}
	if source.timeout <= 0 {
		source.timeout = 10 * time.Second
	}
	source.runCommand = source.execCommand
	return source
}

// execCommand runs one admin tool subcommand with timeout and capped buffers.
// Params: ctx for cancellation; args subcommand and its arguments.
// Returns: stdout bytes or execution error.
func (s *NodetoolSource) execCommand(ctx context.Context, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	full := append([]string{"-host", s.host, "-port", strconv.Itoa(int(s.port))}, args...)
	command := exec.CommandContext(runCtx, s.path, full...)

	stdout := &cappedBuffer{max: maxToolOutputBytes}
	stderr := &cappedBuffer{max: maxToolStderrBytes}
	command.Stdout = stdout
	command.Stderr = stderr

	if err := command.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s %s timed out after %s", s.path, args[0], s.timeout)
		}
		stderrText := strings.TrimSpace(stderr.String())
		if stderrText == "" {
			return nil, fmt.Errorf("run %s %s: %w", s.path, args[0], err)
		}
		return nil, fmt.Errorf("run %s %s: %w (stderr: %s)", s.path, args[0], err, stderrText)
	}

	return stdout.Bytes(), nil
}

// Counters queries per-keyspace (optionally per-table) operation counters.
// Params: ctx for cancellation; keyspace target; table optional scope.
// Returns: counter snapshot, nil when the target produced no rows, or query error.
func (s *NodetoolSource) Counters(ctx context.Context, keyspace, table string) (*KeyspaceCounters, error) {
	payload, err := s.runCommand(ctx, "cfstats")
	if err != nil {
		return nil, err
	}
	return parseKeyspaceCounters(payload, keyspace, table)
}

// Depths queries read-path thread pool depths.
// Params: ctx for cancellation.
// Returns: depth snapshot, nil when the node produced no rows, or query error.
func (s *NodetoolSource) Depths(ctx context.Context) (*ThreadPoolDepths, error) {
	payload, err := s.runCommand(ctx, "tpstats")
	if err != nil {
		return nil, err
	}
	return parseThreadPoolDepths(payload)
}

// Histogram queries the latency histogram for one table.
// Params: ctx for cancellation; keyspace and table scope the histogram.
// Returns: histogram snapshot (empty when the node produced no rows) or query error.
func (s *NodetoolSource) Histogram(ctx context.Context, keyspace, table string) (Histogram, error) {
	payload, err := s.runCommand(ctx, "cfhistograms", keyspace, table)
	if err != nil {
		return Histogram{}, err
	}
	return parseHistogram(payload)
}

// Compactions queries the compaction backlog.
// Params: ctx for cancellation.
// Returns: compaction snapshot, nil when the node produced no rows, or query error.
func (s *NodetoolSource) Compactions(ctx context.Context) (*CompactionStats, error) {
	payload, err := s.runCommand(ctx, "compactionstats")
	if err != nil {
		return nil, err
	}
	return parseCompactionStats(payload)
}

// parseKeyspaceCounters extracts counters for one keyspace or table section from
// cfstats-style output. Sections are introduced by "Keyspace:"/"Column Family:"
// headers; counter lines are "Name: value" pairs within the section.
// Params: payload tool stdout; keyspace target; table optional scope.
// Returns: counter snapshot or nil when the target section is absent.
func parseKeyspaceCounters(payload []byte, keyspace, table string) (*KeyspaceCounters, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))

	inKeyspace := false
	inTable := table == ""
	found := false
	counters := &KeyspaceCounters{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if name, ok := headerValue(line, "Keyspace:"); ok {
			inKeyspace = name == keyspace
			inTable = table == ""
			continue
		}
		if name, ok := headerValue(line, "Column Family:"); ok {
			inTable = table != "" && name == table
			continue
		}
		if name, ok := headerValue(line, "Table:"); ok {
			inTable = table != "" && name == table
			continue
		}
		if !inKeyspace || !inTable {
			continue
		}

		switch {
		case parseUintField(line, "Read Count:", &counters.ReadCount):
			found = true
		case parseUintField(line, "Write Count:", &counters.WriteCount):
			found = true
		case parseFloatField(line, "Read Latency:", &counters.ReadLatencyMs):
			found = true
		case parseFloatField(line, "Write Latency:", &counters.WriteLatencyMs):
			found = true
		case parseFloatField(line, "Key cache hit rate:", &counters.KeyCacheHitRate):
			counters.HasKeyCache = true
		case parseFloatField(line, "Row cache hit rate:", &counters.RowCacheHitRate):
			counters.HasRowCache = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan cfstats output: %w", err)
	}

	if !found {
		return nil, nil
	}
	return counters, nil
}

// parseThreadPoolDepths extracts ReadStage/ReadRepairStage rows from tpstats-style
// output: pool name followed by active, pending, completed columns.
// Params: payload tool stdout.
// Returns: depth snapshot or nil when no known pool row is present.
func parseThreadPoolDepths(payload []byte) (*ThreadPoolDepths, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))

	depths := &ThreadPoolDepths{}
	found := false

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		switch fields[0] {
		case readStagePool, readRepairStagePool:
		default:
			continue
		}

		active, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s active: %w", fields[0], err)
		}
		pending, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s pending: %w", fields[0], err)
		}
		completed, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s completed: %w", fields[0], err)
		}

		if fields[0] == readStagePool {
			depths.ReadStageActive = active
			depths.ReadStagePending = pending
		} else {
			depths.ReadRepairActive = active
			depths.ReadRepairPending = pending
			depths.ReadRepairCompleted = completed
		}
		found = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan tpstats output: %w", err)
	}

	if !found {
		return nil, nil
	}
	return depths, nil
}

// parseHistogram extracts bucket rows from cfhistograms-style output. A row with
// two numeric columns is the read-only shape (boundary, reads); three or more
// numeric columns carry (boundary, writes, reads). Non-numeric rows are headers
// and are skipped.
// Params: payload tool stdout.
// Returns: histogram snapshot; empty when no bucket rows are present.
func parseHistogram(payload []byte) (Histogram, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))

	hist := Histogram{}
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		boundary, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}

		bucket := Bucket{UpperMicros: boundary}
		if len(fields) >= 3 {
			writes, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				continue
			}
			reads, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				continue
			}
			bucket.Writes = writes
			bucket.Reads = reads
			hist.WritesRecorded = true
		} else {
			reads, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				continue
			}
			bucket.Reads = reads
		}

		hist.Buckets = append(hist.Buckets, bucket)
	}
	if err := scanner.Err(); err != nil {
		return Histogram{}, fmt.Errorf("scan cfhistograms output: %w", err)
	}

	return hist, nil
}

// parseCompactionStats extracts the pending task count and in-flight task rows
// from compactionstats-style output.
// Params: payload tool stdout.
// Returns: compaction snapshot or nil when the pending header is absent.
func parseCompactionStats(payload []byte) (*CompactionStats, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))

	stats := &CompactionStats{}
	found := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if value, ok := headerValue(line, "pending tasks:"); ok {
			pending, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("parse pending tasks: %w", err)
			}
			stats.Pending = pending
			found = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 || !strings.HasSuffix(fields[len(fields)-1], "%") {
			continue
		}

		percentText := strings.TrimSuffix(fields[len(fields)-1], "%")
		percent, err := strconv.ParseFloat(percentText, 64)
		if err != nil {
			continue
		}

		stats.Tasks = append(stats.Tasks, CompactionTask{
			Type:            fields[0],
			Keyspace:        fields[1],
			Table:           fields[2],
			PercentComplete: percent,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan compactionstats output: %w", err)
	}

	if !found {
		return nil, nil
	}
	return stats, nil
}

// headerValue extracts the trimmed value after a "Header:" prefix.
// Params: line trimmed output line; prefix header label including colon.
// Returns: value text and match flag.
func headerValue(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

// parseUintField parses "Label: 123" style lines into dst.
// Params: line trimmed output line; prefix field label; dst parse target.
// Returns: true when the prefix matched and a value was parsed.
func parseUintField(line, prefix string, dst *uint64) bool {
	value, ok := headerValue(line, prefix)
	if !ok {
		return false
	}
	parsed, err := strconv.ParseUint(firstToken(value), 10, 64)
	if err != nil {
		return false
	}
	*dst = parsed
	return true
}

// parseFloatField parses "Label: 1.25 ms." style lines into dst, ignoring any
// trailing unit text.
// Params: line trimmed output line; prefix field label; dst parse target.
// Returns: true when the prefix matched and a value was parsed.
func parseFloatField(line, prefix string, dst *float64) bool {
	value, ok := headerValue(line, prefix)
	if !ok {
		return false
	}
	parsed, err := strconv.ParseFloat(firstToken(value), 64)
	if err != nil {
		return false
	}
	*dst = parsed
	return true
}

// firstToken returns the first whitespace token of value.
// Params: value raw field text.
// Returns: first token or empty string.
func firstToken(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
