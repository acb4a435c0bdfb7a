package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRateHz         int `json:"tick_rate_hz"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	// Fleet parameters (captured for deterministic resume).
	UnitType      string  `json:"unit_type"`
	CargoCapacity int     `json:"cargo_capacity"`
	DroneSpeed    float64 `json:"drone_speed"`
	ExtractRate   int     `json:"extract_rate"`
	ExtractRadius float64 `json:"extract_radius"`

	Deposited uint64 `json:"deposited"`

	Drones      []DroneV1      `json:"drones"`
	Structures  []StructureV1  `json:"structures"`
	Cells       []CellV1       `json:"cells"`
	Latches     []LatchV1      `json:"latches"`
	Displays    []DisplayV1    `json:"displays"`
	Controllers []ControllerV1 `json:"controllers"`
}

type DroneV1 struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Pos      [2]float64 `json:"pos"`
	Cargo    int        `json:"cargo"`
	Capacity int        `json:"capacity"`
	Flag     int        `json:"flag"`

	Move    *MoveV1    `json:"move,omitempty"`
	Extract *ExtractV1 `json:"extract,omitempty"`
}

type MoveV1 struct {
	Dst       [2]float64 `json:"dst"`
	Tolerance float64    `json:"tolerance"`
}

type ExtractV1 struct {
	At [2]float64 `json:"at"`
}

type StructureV1 struct {
	ID     string     `json:"id"`
	Kind   string     `json:"kind"`
	Pos    [2]float64 `json:"pos"`
	Stored int        `json:"stored"`
}

type CellV1 struct {
	ID    string    `json:"id"`
	Slots []float64 `json:"slots"`
}

type LatchV1 struct {
	ID string `json:"id"`
	On bool   `json:"on"`
}

type DisplayV1 struct {
	ID    string   `json:"id"`
	Lines []string `json:"lines,omitempty"`
}

type ControllerV1 struct {
	ID     string `json:"id"`
	Cursor int    `json:"cursor"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	bw := bufio.NewWriterSize(enc, 128*1024)
	if err := json.NewEncoder(bw).Encode(snap); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
