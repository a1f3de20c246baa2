// Package logging provides leveled logging and stage tracing for depcorr.
//
// Operational messages go to a slog.Logger on stderr. At debug and trace
// level a TraceLogger additionally appends one JSON object per pipeline
// event to .depcorr/trace.jsonl.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug and enables per-gene detail.
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the JSONL trace inside the state directory.
const TraceFile = "trace.jsonl"

// ParseLevel maps "info", "debug" or "trace" (any case) to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a text logger writing to w at the named level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				a.Value = slog.StringValue("TRACE")
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TraceLogger appends structured events to a JSONL file. It is safe for
// concurrent use, and every method is a no-op on a nil receiver.
type TraceLogger struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// NewTraceLogger opens dir/trace.jsonl for append when level is debug or
// trace. It returns nil at info level or when the file cannot be opened.
func NewTraceLogger(dir, level string) *TraceLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &TraceLogger{file: f, now: time.Now}
}

// Log writes event as one line with a "time" field added. The caller's map
// is left untouched.
func (tl *TraceLogger) Log(event map[string]any) {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return
	}

	entry := maps.Clone(event)
	if entry == nil {
		entry = map[string]any{}
	}
	entry["time"] = tl.now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = tl.file.Write(append(data, '\n'))
}

// Stage records the outcome of one pipeline stage.
func (tl *TraceLogger) Stage(name string, elapsed time.Duration, err error, attrs map[string]any) {
	if tl == nil {
		return
	}
	event := maps.Clone(attrs)
	if event == nil {
		event = map[string]any{}
	}
	event["event"] = "stage"
	event["stage"] = name
	event["elapsed_ms"] = float64(elapsed.Microseconds()) / 1000
	event["ok"] = err == nil
	if err != nil {
		event["error"] = err.Error()
	}
	tl.Log(event)
}

// Close closes the file. Later calls to Log are dropped.
func (tl *TraceLogger) Close() {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file != nil {
		tl.file.Close()
		tl.file = nil
	}
}
