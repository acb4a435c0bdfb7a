package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"orefleet.ai/internal/sim/world"
)

func readJSONL[T any](t *testing.T, dir string) []T {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir %s: %v", dir, err)
	}
	var out []T
	for _, e := range ents {
		if !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("open %s: %v", e.Name(), err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd %s: %v", e.Name(), err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			var v T
			if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			out = append(out, v)
		}
		if err := sc.Err(); err != nil {
			t.Fatalf("scan %s: %v", e.Name(), err)
		}
		dec.Close()
		f.Close()
	}
	return out
}

func TestTickLogger_WritesReadableJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for tick := uint64(0); tick < 5; tick++ {
		entry := world.TickLogEntry{Tick: tick, Digest: "d"}
		if tick == 2 {
			entry.Leaves = []string{"OP000001"}
		}
		if err := l.WriteTick(entry); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// One hour bucket, named so lexicographic order is chronological.
	ents, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("files = %d, want 1", len(ents))
	}
	name := ents[0].Name()
	if !strings.HasPrefix(name, "events-") || !strings.HasSuffix(name, ".jsonl.zst") {
		t.Fatalf("file name = %q, want events-<bucket>.jsonl.zst", name)
	}

	got := readJSONL[world.TickLogEntry](t, filepath.Join(dir, "events"))
	if len(got) != 5 {
		t.Fatalf("entries = %d, want 5", len(got))
	}
	for i, e := range got {
		if e.Tick != uint64(i) {
			t.Fatalf("entry %d has tick %d", i, e.Tick)
		}
	}
	if len(got[2].Leaves) != 1 || got[2].Leaves[0] != "OP000001" {
		t.Fatalf("tick 2 leaves = %v", got[2].Leaves)
	}
}

func TestAuditLogger_WritesReadableJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	if err := l.WriteAudit(world.AuditEntry{
		Tick:  7,
		Actor: "harvest1",
		Kind:  "LATCH_CLEAR",
		Data:  map[string]any{"latch": "switch1"},
	}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readJSONL[world.AuditEntry](t, filepath.Join(dir, "audit"))
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}
	if got[0].Kind != "LATCH_CLEAR" || got[0].Actor != "harvest1" || got[0].Tick != 7 {
		t.Fatalf("entry = %+v", got[0])
	}
	if got[0].Data["latch"] != "switch1" {
		t.Fatalf("data = %v", got[0].Data)
	}
}
