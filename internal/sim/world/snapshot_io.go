package world

import (
	"fmt"
	"sort"

	"orefleet.ai/internal/persistence/snapshot"
)

// ExportSnapshot captures the full external state surface, in traversal
// order where one exists, so a resumed world steps identically.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		TickRateHz:         w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		UnitType:           w.cfg.UnitType,
		CargoCapacity:      w.cfg.CargoCapacity,
		DroneSpeed:         w.cfg.DroneSpeed,
		ExtractRate:        w.cfg.ExtractRate,
		ExtractRadius:      w.cfg.ExtractRadius,
		Deposited:          w.deposited,
	}

	for _, id := range w.droneOrder {
		d := w.drones[id]
		if d == nil {
			continue
		}
		dv := snapshot.DroneV1{
			ID:       d.ID,
			Type:     d.Type,
			Pos:      [2]float64{d.Pos.X, d.Pos.Y},
			Cargo:    d.Cargo,
			Capacity: d.Capacity,
			Flag:     d.Flag,
		}
		if d.move != nil {
			dv.Move = &snapshot.MoveV1{Dst: [2]float64{d.move.Dst.X, d.move.Dst.Y}, Tolerance: d.move.Tolerance}
		}
		if d.extract != nil {
			dv.Extract = &snapshot.ExtractV1{At: [2]float64{d.extract.At.X, d.extract.At.Y}}
		}
		snap.Drones = append(snap.Drones, dv)
	}

	for _, id := range w.structureOrder {
		s := w.structures[id]
		if s == nil {
			continue
		}
		snap.Structures = append(snap.Structures, snapshot.StructureV1{
			ID: s.ID, Kind: s.Kind, Pos: [2]float64{s.Pos.X, s.Pos.Y}, Stored: s.Stored,
		})
	}

	cids := make([]string, 0, len(w.cells))
	for id := range w.cells {
		cids = append(cids, id)
	}
	sort.Strings(cids)
	for _, id := range cids {
		c := w.cells[id]
		slots := make([]float64, len(c.Slots))
		copy(slots, c.Slots)
		snap.Cells = append(snap.Cells, snapshot.CellV1{ID: id, Slots: slots})
	}

	lids := make([]string, 0, len(w.latches))
	for id := range w.latches {
		lids = append(lids, id)
	}
	sort.Strings(lids)
	for _, id := range lids {
		snap.Latches = append(snap.Latches, snapshot.LatchV1{ID: id, On: w.latches[id]})
	}

	dids := make([]string, 0, len(w.displays))
	for id := range w.displays {
		dids = append(dids, id)
	}
	sort.Strings(dids)
	for _, id := range dids {
		lines := make([]string, len(w.displays[id]))
		copy(lines, w.displays[id])
		snap.Displays = append(snap.Displays, snapshot.DisplayV1{ID: id, Lines: lines})
	}

	for _, b := range w.controllers {
		snap.Controllers = append(snap.Controllers, snapshot.ControllerV1{ID: b.ID, Cursor: b.cursor})
	}

	return snap
}

// ImportSnapshot restores entity state. Controllers must already be
// attached (their wiring comes from config, not snapshots); only their
// cursors are restored here.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.WorldID != "" && snap.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world id mismatch: have %s, snapshot %s", w.cfg.ID, snap.Header.WorldID)
	}

	w.drones = map[string]*Drone{}
	w.droneOrder = w.droneOrder[:0]
	var maxUnit uint64
	for _, dv := range snap.Drones {
		d := &Drone{
			ID:       dv.ID,
			Type:     dv.Type,
			Pos:      Vec2{X: dv.Pos[0], Y: dv.Pos[1]},
			Cargo:    dv.Cargo,
			Capacity: dv.Capacity,
			Flag:     dv.Flag,
		}
		if dv.Move != nil {
			d.move = &moveOrder{Dst: Vec2{X: dv.Move.Dst[0], Y: dv.Move.Dst[1]}, Tolerance: dv.Move.Tolerance}
		}
		if dv.Extract != nil {
			d.extract = &extractOrder{At: Vec2{X: dv.Extract.At[0], Y: dv.Extract.At[1]}}
		}
		w.drones[d.ID] = d
		w.droneOrder = append(w.droneOrder, d.ID)
		var n uint64
		if _, err := fmt.Sscanf(d.ID, "U%06d", &n); err == nil && n > maxUnit {
			maxUnit = n
		}
	}
	w.nextUnitNum.Store(maxUnit)

	w.structures = map[string]*Structure{}
	w.structureOrder = w.structureOrder[:0]
	for _, sv := range snap.Structures {
		w.structures[sv.ID] = &Structure{
			ID: sv.ID, Kind: sv.Kind, Pos: Vec2{X: sv.Pos[0], Y: sv.Pos[1]}, Stored: sv.Stored,
		}
		w.structureOrder = append(w.structureOrder, sv.ID)
	}

	w.cells = map[string]*MemoryCell{}
	for _, cv := range snap.Cells {
		slots := make([]float64, len(cv.Slots))
		copy(slots, cv.Slots)
		w.cells[cv.ID] = &MemoryCell{ID: cv.ID, Slots: slots}
	}

	w.latches = map[string]bool{}
	for _, lv := range snap.Latches {
		w.latches[lv.ID] = lv.On
	}

	w.displays = map[string][]string{}
	for _, dv := range snap.Displays {
		lines := make([]string, len(dv.Lines))
		copy(lines, dv.Lines)
		w.displays[dv.ID] = lines
	}

	cursors := make(map[string]int, len(snap.Controllers))
	for _, cv := range snap.Controllers {
		cursors[cv.ID] = cv.Cursor
	}
	for _, b := range w.controllers {
		if cur, ok := cursors[b.ID]; ok {
			b.cursor = cur
		}
	}

	w.deposited = snap.Deposited
	w.tick.Store(snap.Header.Tick)
	return nil
}
