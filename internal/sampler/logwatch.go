package sampler

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// EventTag labels one classified log event kind.
// Params: none.
// Returns: event kind name.
type EventTag string

const (
	// TagCommitlogCreated marks creation of a new commitlog segment.
	TagCommitlogCreated EventTag = "CommitlogCreated"
	// TagFlushCompleted marks a completed memtable flush.
	TagFlushCompleted EventTag = "FlushCompleted"
	// TagMajorCompactionStarted marks the start of a major compaction.
	TagMajorCompactionStarted EventTag = "MajorCompactionStarted"
	// TagTreeSent marks an anti-entropy merkle tree sent to a peer.
	TagTreeSent EventTag = "TreeSent"
	// TagRepairStarted marks the start of a repair covering some range count.
	TagRepairStarted EventTag = "RepairStarted"
	// TagManualRepairSession marks a manually triggered repair session.
	TagManualRepairSession EventTag = "ManualRepairSession"
	// TagStreamingRepairProgress marks streaming repair range progress.
	TagStreamingRepairProgress EventTag = "StreamingRepairProgress"
	// TagStreamingRepairFinished marks the end of a streaming repair. The
	// "repair command issued" trigger maps to this same tag, mirroring the
	// node's own log vocabulary.
	TagStreamingRepairFinished EventTag = "StreamingRepairFinished"
	// TagCompactionCompleted marks compaction output written to disk.
	TagCompactionCompleted EventTag = "CompactionCompleted"
)

// Event is one structured record classified from a newly appended log line.
// Params: none.
// Returns: timestamp token, event tag, and extracted payload fields in template order.
type Event struct {
	Timestamp string
	Tag       EventTag
	Fields    []string
}

// timestampToken is the whitespace token index carrying the line timestamp.
const timestampToken = 3

// logTemplate binds a trigger substring to an event tag and the payload token
// positions to capture. Negative positions count back from the end of the line.
type logTemplate struct {
	trigger  string
	tag      EventTag
	captures []int
}

// logTemplates is the classification vocabulary, in priority order: the first
// trigger contained in a line wins and at most one template matches per line.
var logTemplates = []logTemplate{
	{trigger: "new commitlog created", tag: TagCommitlogCreated},
	{trigger: "flush completed", tag: TagFlushCompleted},
	{trigger: "major compaction started", tag: TagMajorCompactionStarted},
	{trigger: "anti-entropy tree sent", tag: TagTreeSent, captures: []int{-3, -2, -1}},
	{trigger: "repair started", tag: TagRepairStarted, captures: []int{-1}},
	{trigger: "manual repair session", tag: TagManualRepairSession, captures: []int{-1}},
	{trigger: "streaming repair in progress", tag: TagStreamingRepairProgress, captures: []int{-3, -2, -1}},
	{trigger: "streaming repair finished", tag: TagStreamingRepairFinished},
	{trigger: "repair command issued", tag: TagStreamingRepairFinished},
	{trigger: "compaction output written", tag: TagCompactionCompleted},
}

// LogClassifier incrementally scans an append-only text log and extracts structured
// events from newly appended lines. The caller owns the watermark between cycles.
// Params: none.
// Returns: classifier bound to one log path.
type LogClassifier struct {
	path     string
	readFile func(string) ([]byte, error)
}

// NewLogClassifier creates a classifier for one log file.
// Params: path log file location.
// Returns: configured classifier.
func NewLogClassifier(path string) *LogClassifier {
	return &LogClassifier{
		path:     path,
		readFile: os.ReadFile,
	}
}

// LineCount returns the log's current line count, used to seed the watermark so
// lines that existed before startup are never replayed.
// Params: none.
// Returns: current line count or read error.
func (c *LogClassifier) LineCount() (int, error) {
	lines, err := c.readLines()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// ExtractEvents classifies lines appended since the given watermark. When the log
// did not grow (or shrank, e.g. after rotation) it returns no events and the
// watermark unchanged; shrinkage is not specially detected.
// Params: watermark count of lines already consumed.
// Returns: classified events, new watermark equal to the current line count, or read error.
func (c *LogClassifier) ExtractEvents(watermark int) ([]Event, int, error) {
	lines, err := c.readLines()
	if err != nil {
		return nil, watermark, err
	}
	if len(lines) <= watermark {
		return nil, watermark, nil
	}

	var events []Event
	for _, line := range lines[watermark:] {
		event, ok := classifyLine(line)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events, len(lines), nil
}

// readLines loads the log and splits it into lines.
// Params: none.
// Returns: line slice or read error.
func (c *LogClassifier) readLines() ([]string, error) {
	readFile := c.readFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	payload, err := readFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read log %q: %w", c.path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log %q: %w", c.path, err)
	}
	return lines, nil
}

// classifyLine matches one line against the template table, first trigger wins.
// Lines matching no trigger, and lines too short for a template's token positions,
// are dropped without diagnostic.
// Params: line raw log line.
// Returns: classified event and match flag.
func classifyLine(line string) (Event, bool) {
	for _, template := range logTemplates {
		if !strings.Contains(line, template.trigger) {
			continue
		}

		tokens := strings.Fields(line)
		timestamp, ok := tokenAt(tokens, timestampToken)
		if !ok {
			return Event{}, false
		}

		fields := make([]string, 0, len(template.captures))
		for _, position := range template.captures {
			value, ok := tokenAt(tokens, position)
			if !ok {
				return Event{}, false
			}
			fields = append(fields, value)
		}

		return Event{Timestamp: timestamp, Tag: template.tag, Fields: fields}, true
	}
	return Event{}, false
}

// tokenAt resolves one token position, supporting negative positions from the end.
// Params: tokens whitespace-split line; position token index.
// Returns: token value and in-range flag.
func tokenAt(tokens []string, position int) (string, bool) {
	if position < 0 {
		position += len(tokens)
	}
	if position < 0 || position >= len(tokens) {
		return "", false
	}
	return tokens[position], true
}
