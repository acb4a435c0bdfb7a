// Command replay re-steps a recorded tick log against a fresh world and
// verifies the per-tick state digests. A divergence means either the log is
// damaged or the simulation is no longer deterministic.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"orefleet.ai/internal/sim/logic"
	"orefleet.ai/internal/sim/logic/harvest"
	"orefleet.ai/internal/sim/tuning"
	"orefleet.ai/internal/sim/world"
)

func main() {
	var (
		worldID    = flag.String("world", "world_1", "world id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		limit      = flag.Uint64("limit", 0, "stop after this many ticks (0 = all)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	eventsDir := filepath.Join(*dataDir, "worlds", *worldID, "events")
	entries, err := readTickLog(eventsDir)
	if err != nil {
		logger.Fatalf("read tick log: %v", err)
	}
	if len(entries) == 0 {
		logger.Fatalf("no tick entries under %s", eventsDir)
	}

	w, err := buildWorld(*worldID, tune)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	seedWorld(w, tune)

	var checked, mismatched uint64
	for _, entry := range entries {
		if *limit > 0 && checked >= *limit {
			break
		}
		if entry.Tick != w.CurrentTick() {
			logger.Fatalf("tick log gap: have tick %d, world at %d", entry.Tick, w.CurrentTick())
		}

		joins := make([]world.JoinRequest, 0, len(entry.Joins))
		for _, j := range entry.Joins {
			joins = append(joins, world.JoinRequest{Name: j.Name})
		}
		ops := make([]world.OpEnvelope, 0, len(entry.Ops))
		for _, o := range entry.Ops {
			ops = append(ops, world.OpEnvelope{OperatorID: o.OperatorID, Op: o.Op})
		}

		tick, digest := w.StepOnce(joins, entry.Leaves, ops)
		checked++
		if entry.Digest != "" && digest != entry.Digest {
			mismatched++
			logger.Printf("DIGEST MISMATCH tick=%d recorded=%s replayed=%s", tick, entry.Digest, digest)
		}
	}

	logger.Printf("replayed %d ticks, %d digest mismatches", checked, mismatched)
	if mismatched > 0 {
		os.Exit(1)
	}
}

// readTickLog loads every hour-bucketed events file in name order and
// returns the entries sorted by tick.
func readTickLog(dir string) ([]world.TickLogEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []world.TickLogEntry
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sc := bufio.NewScanner(dec)
		sc.Buffer(make([]byte, 0, 1<<20), 1<<24)
		for sc.Scan() {
			var entry world.TickLogEntry
			if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
				dec.Close()
				f.Close()
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out = append(out, entry)
		}
		scanErr := sc.Err()
		dec.Close()
		f.Close()
		if scanErr != nil {
			return nil, fmt.Errorf("%s: %w", name, scanErr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}

func buildWorld(worldID string, tune tuning.Tuning) (*world.World, error) {
	w, err := world.New(world.WorldConfig{
		ID:                 worldID,
		TickRateHz:         tune.TickRateHz,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		UnitType:           tune.Fleet.UnitType,
		CargoCapacity:      tune.Fleet.CargoCapacity,
		DroneSpeed:         tune.Fleet.SpeedPerTick,
		ExtractRate:        tune.Fleet.ExtractRate,
		ExtractRadius:      tune.Fleet.ExtractRadius,
	})
	if err != nil {
		return nil, err
	}
	if _, err := w.AddCell(tune.Controller.Cell, 64); err != nil {
		return nil, err
	}
	if err := w.AddLatch(tune.Controller.Latch); err != nil {
		return nil, err
	}
	if err := w.AddDisplay(tune.Controller.Display); err != nil {
		return nil, err
	}
	pos := world.Vec2{X: tune.Controller.Pos[0], Y: tune.Controller.Pos[1]}
	tag := harvest.DepositTagFor(logic.Vec2{X: pos.X, Y: pos.Y})
	coord, err := harvest.New(harvest.Config{
		Tag:           tag,
		MoveTolerance: tune.Controller.MoveTolerance,
		DepositRadius: tune.Controller.DepositRadius,
	})
	if err != nil {
		return nil, err
	}
	if err := w.AttachController(world.ControllerConfig{
		ID:               "harvest1",
		Pos:              pos,
		UnitType:         tune.Fleet.UnitType,
		Cell:             tune.Controller.Cell,
		Latch:            tune.Controller.Latch,
		Display:          tune.Controller.Display,
		DepositStructure: tune.Controller.DepositStructure,
		Tag:              tag,
	}, coord); err != nil {
		return nil, err
	}
	return w, nil
}

func seedWorld(w *world.World, tune tuning.Tuning) {
	for _, s := range tune.Structures {
		_, _ = w.AddStructure(s.ID, s.Kind, world.Vec2{X: s.Pos[0], Y: s.Pos[1]})
	}
	base := world.Vec2{X: tune.Controller.Pos[0], Y: tune.Controller.Pos[1]}
	for i := 0; i < tune.Fleet.InitialDrones; i++ {
		w.SpawnDrone(tune.Fleet.UnitType, world.Vec2{X: base.X + float64(i*2), Y: base.Y})
	}
}
