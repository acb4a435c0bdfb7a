// Package log persists the world's two durable streams: the per-tick event
// log that replay re-steps, and the latch/deposit audit trail. Both are
// zstd-compressed JSONL under <worldDir>/<stream>/, rotated by UTC hour.
// These files are the source of truth; the SQLite index is derived from them.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"orefleet.ai/internal/sim/world"
)

// stream is one append-only JSONL stream. Files open lazily on the first
// append of each hour bucket; the bucket format sorts lexicographically in
// chronological order, which replay relies on.
type stream struct {
	dir  string // <worldDir>/<name>
	name string

	mu     sync.Mutex
	bucket string
	file   *os.File
	zw     *zstd.Encoder
	buf    *bufio.Writer
}

const bucketFormat = "20060102T15"

func openStream(worldDir, name string) *stream {
	return &stream{dir: filepath.Join(worldDir, name), name: name}
}

func (s *stream) append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b := time.Now().UTC().Format(bucketFormat); b != s.bucket {
		if err := s.rollTo(b); err != nil {
			return err
		}
	}
	if _, err := s.buf.Write(line); err != nil {
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	return s.buf.Flush()
}

// rollTo finishes the current bucket's file, if any, and starts the next.
func (s *stream) rollTo(bucket string) error {
	if err := s.finish(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.jsonl.zst", s.name, bucket))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file = f
	s.zw = zw
	s.buf = bufio.NewWriterSize(zw, 128*1024)
	s.bucket = bucket
	return nil
}

func (s *stream) finish() error {
	if s.file == nil {
		return nil
	}
	_ = s.buf.Flush()
	err := s.zw.Close()
	_ = s.file.Close()
	s.file, s.zw, s.buf = nil, nil, nil
	s.bucket = ""
	return err
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finish()
}

// TickLogger records one entry per world tick: joins, leaves, the op batch
// and the post-step digest. cmd/replay re-steps this stream.
type TickLogger struct{ s *stream }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{s: openStream(worldDir, "events")}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.s.append(v) }
func (l *TickLogger) Close() error                         { return l.s.close() }

// AuditLogger records latch pulls, latch clears, deposits and spawns.
type AuditLogger struct{ s *stream }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{s: openStream(worldDir, "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.s.append(v) }
func (l *AuditLogger) Close() error                        { return l.s.close() }
