package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"

	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/world"
)

// JSONLZstdWriter appends one JSON document per line to hourly files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// WithClock replaces time.Now for rotation.
func (w *JSONLZstdWriter) WithClock(now func() time.Time) *JSONLZstdWriter {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
	return w
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return oops.In("journal").Wrapf(err, "marshal entry")
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// CurrentPath is the open file, or "" when nothing is open.
func (w *JSONLZstdWriter) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.curHour == "" {
		return ""
	}
	return w.pathForHour(w.curHour)
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	errb := oops.In("journal").With("path", path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errb.Wrapf(err, "mkdir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errb.Wrapf(err, "open")
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return errb.Wrapf(err, "zstd writer")
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadJSONL calls fn for every line of a file written by JSONLZstdWriter.
// Stopping early is done by returning an error from fn.
func ReadJSONL(path string, fn func(json.RawMessage) error) error {
	errb := oops.In("journal").With("path", path)
	f, err := os.Open(path)
	if err != nil {
		return errb.Wrapf(err, "open")
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return errb.Wrapf(err, "zstd reader")
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(append([]byte(nil), line...))); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errb.Wrapf(err, "scan")
	}
	return nil
}

// EventJournal writes behavior events (compressed). It satisfies
// behavior.EventSink; write failures are logged and otherwise ignored.
type EventJournal struct {
	w      *JSONLZstdWriter
	logger *clog.Logger
}

func NewEventJournal(worldDir string) *EventJournal {
	return &EventJournal{
		w:      NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "events"),
		logger: clog.Default().WithPrefix("journal"),
	}
}

func (j *EventJournal) Writer() *JSONLZstdWriter { return j.w }

func (j *EventJournal) WriteEvent(e behavior.Event) error { return j.w.Write(e) }

func (j *EventJournal) RecordEvent(e behavior.Event) {
	if err := j.WriteEvent(e); err != nil {
		j.logger.Warn("event write failed", "event", e.ID, "err", err)
	}
}

func (j *EventJournal) Close() error { return j.w.Close() }

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "ticks"), "ticks")}
}

func (l *TickLogger) Writer() *JSONLZstdWriter { return l.w }

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }
