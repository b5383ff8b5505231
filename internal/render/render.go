// Package render turns sampler records into fixed-width text rows.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"nodestat/internal/sampler"
)

// defaultHeaderEvery is the row cadence for repeating the column header.
const defaultHeaderEvery = 10

// Options selects which optional columns and prefixes a renderer prints.
// Params: none.
// Returns: renderer options.
type Options struct {
	Epoch       bool
	Timestamp   bool
	NoHeader    bool
	HeaderEvery int

	CacheQueue  bool
	ReadRepair  bool
	Percentiles bool
	Compactions bool
}

// Renderer writes one formatted row per emitted sample, a repeated header every
// N rows, a sentinel row for unresponsive cycles, and classified log events either
// interleaved with rows or routed to a separate stream.
// Params: none.
// Returns: sampler.Sink implementation over text streams.
type Renderer struct {
	out      io.Writer
	eventOut io.Writer
	opts     Options
	rows     int
}

// New creates a renderer.
// Params: out row stream; eventOut optional separate event stream (nil interleaves
// events with rows); opts column selection.
// Returns: configured renderer.
func New(out, eventOut io.Writer, opts Options) *Renderer {
	if opts.HeaderEvery <= 0 {
		opts.HeaderEvery = defaultHeaderEvery
	}
	return &Renderer{out: out, eventOut: eventOut, opts: opts}
}

// Sample renders one sample row plus its classified events.
// Params: s assembled sample record.
// Returns: write error.
func (r *Renderer) Sample(s sampler.Sample) error {
	if err := r.maybeHeader(); err != nil {
		return err
	}

	var row strings.Builder
	r.writePrefix(&row, s.At)

	fmt.Fprintf(&row, "%7d %7d %8.3f %8.3f", s.ReadRate, s.WriteRate, s.ReadLatencyMs, s.WriteLatencyMs)
	if r.opts.CacheQueue {
		fmt.Fprintf(&row, " %6.2f %6.2f %6d", s.KeyCacheHitRate, s.RowCacheHitRate, s.ReadStagePending)
	}
	fmt.Fprintf(&row, " %4.0f %4.0f %4.0f %4.0f", s.CPUUser, s.CPUSystem, s.CPUIdle, s.CPUIOWait)
	fmt.Fprintf(&row, " %6d %6d %8d %8d", s.DiskReadsPerSec, s.DiskWritesPerSec, s.DiskReadKBPerSec, s.DiskWriteKBPerSec)
	fmt.Fprintf(&row, " %8d %8d", s.NetRxKBPerSec, s.NetTxKBPerSec)
	if r.opts.ReadRepair {
		fmt.Fprintf(&row, " %6d", s.ReadRepairRate)
	}
	if r.opts.Percentiles {
		fmt.Fprintf(&row, " %8.3f %8.3f %8.3f %8.3f", s.ReadP99, s.ReadP95, s.WriteP99, s.WriteP95)
	}
	if r.opts.Compactions {
		row.WriteString(" " + compactionCell(s))
	}

	if _, err := fmt.Fprintln(r.out, row.String()); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	r.rows++

	return r.writeEvents(s.Events)
}

// Unresponsive renders the sentinel row for a cycle with no source data.
// Params: at cycle wall-clock time.
// Returns: write error.
func (r *Renderer) Unresponsive(at time.Time) error {
	if err := r.maybeHeader(); err != nil {
		return err
	}

	var row strings.Builder
	r.writePrefix(&row, at)
	row.WriteString("-- node unresponsive --")

	if _, err := fmt.Fprintln(r.out, row.String()); err != nil {
		return fmt.Errorf("write sentinel row: %w", err)
	}
	r.rows++
	return nil
}

// maybeHeader prints the column header on the configured row cadence.
// Params: none.
// Returns: write error.
func (r *Renderer) maybeHeader() error {
	if r.opts.NoHeader || r.rows%r.opts.HeaderEvery != 0 {
		return nil
	}
	if _, err := fmt.Fprintln(r.out, r.header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// header builds the column header matching the enabled row layout.
// Params: none.
// Returns: header line.
func (r *Renderer) header() string {
	var header strings.Builder

	if r.opts.Epoch {
		fmt.Fprintf(&header, "%10s ", "epoch")
	}
	if r.opts.Timestamp {
		fmt.Fprintf(&header, "%8s ", "time")
	}

	fmt.Fprintf(&header, "%7s %7s %8s %8s", "r/s", "w/s", "rlat", "wlat")
	if r.opts.CacheQueue {
		fmt.Fprintf(&header, " %6s %6s %6s", "kcache", "rcache", "rqueue")
	}
	fmt.Fprintf(&header, " %4s %4s %4s %4s", "us", "sy", "id", "wa")
	fmt.Fprintf(&header, " %6s %6s %8s %8s", "dr/s", "dw/s", "drkb/s", "dwkb/s")
	fmt.Fprintf(&header, " %8s %8s", "rxkb/s", "txkb/s")
	if r.opts.ReadRepair {
		fmt.Fprintf(&header, " %6s", "rr/s")
	}
	if r.opts.Percentiles {
		fmt.Fprintf(&header, " %8s %8s %8s %8s", "r99", "r95", "w99", "w95")
	}
	if r.opts.Compactions {
		fmt.Fprintf(&header, " %s", "compactions")
	}

	return header.String()
}

// writePrefix appends optional epoch and timestamp columns.
// Params: row output builder; at cycle wall-clock time.
// Returns: none.
func (r *Renderer) writePrefix(row *strings.Builder, at time.Time) {
	if r.opts.Epoch {
		fmt.Fprintf(row, "%10d ", at.Unix())
	}
	if r.opts.Timestamp {
		fmt.Fprintf(row, "%8s ", at.Format("15:04:05"))
	}
}

// writeEvents prints classified events to the event stream or interleaved with rows.
// Params: events classified this cycle.
// Returns: write error.
func (r *Renderer) writeEvents(events []sampler.Event) error {
	if len(events) == 0 {
		return nil
	}

	dst := r.eventOut
	if dst == nil {
		dst = r.out
	}

	for _, event := range events {
		line := fmt.Sprintf("event %s %s", event.Timestamp, event.Tag)
		if len(event.Fields) > 0 {
			line += " " + strings.Join(event.Fields, " ")
		}
		if _, err := fmt.Fprintln(dst, line); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	return nil
}

// compactionCell renders the compaction summary column.
// Params: s sample carrying the optional compaction snapshot.
// Returns: summary cell text.
func compactionCell(s sampler.Sample) string {
	if s.Compaction == nil {
		return "-"
	}

	cell := fmt.Sprintf("%d pending", s.Compaction.Pending)
	for _, task := range s.Compaction.Tasks {
		cell += fmt.Sprintf(" %s:%s.%s:%.1f%%", task.Type, task.Keyspace, task.Table, task.PercentComplete)
	}
	return cell
}
