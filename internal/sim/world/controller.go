package world

import (
	"fmt"

	"orefleet.ai/internal/sim/logic"
)

// ControllerBlock is one placed logic block. The block owns nothing but its
// wiring: which pool it manages, which cell/latch/display it talks to, and
// its environment-maintained pool cursor. The program itself is stateless.
type ControllerBlock struct {
	ID      string
	Pos     Vec2
	UnitType string

	Cell    string
	Latch   string
	Display string

	// DepositStructure, when set, is the statically configured unload
	// point; otherwise the resolver falls back to nearest-core discovery.
	DepositStructure string

	// Tag marks this block's drones in the return phase. Validated unique
	// at attach time: two blocks driving one pool with the same tag would
	// silently steal each other's drones.
	Tag int

	cursor int

	prog logic.Program
}

type ControllerConfig struct {
	ID               string
	Pos              Vec2
	UnitType         string
	Cell             string
	Latch            string
	Display          string
	DepositStructure string
	Tag              int
}

func (w *World) AttachController(cfg ControllerConfig, prog logic.Program) error {
	if cfg.ID == "" {
		return fmt.Errorf("controller: empty id")
	}
	if prog == nil {
		return fmt.Errorf("controller %s: nil program", cfg.ID)
	}
	if cfg.UnitType == "" {
		cfg.UnitType = w.cfg.UnitType
	}
	if cfg.Tag == 0 {
		return fmt.Errorf("controller %s: tag must be nonzero", cfg.ID)
	}
	if _, ok := w.cells[cfg.Cell]; !ok {
		return fmt.Errorf("controller %s: unknown cell %q", cfg.ID, cfg.Cell)
	}
	if _, ok := w.latches[cfg.Latch]; !ok {
		return fmt.Errorf("controller %s: unknown latch %q", cfg.ID, cfg.Latch)
	}
	if _, ok := w.displays[cfg.Display]; !ok {
		return fmt.Errorf("controller %s: unknown display %q", cfg.ID, cfg.Display)
	}
	for _, b := range w.controllers {
		if b.ID == cfg.ID {
			return fmt.Errorf("controller %s: already attached", cfg.ID)
		}
		if b.UnitType == cfg.UnitType && b.Tag == cfg.Tag {
			return fmt.Errorf("controller %s: tag %d collides with %s on pool %s",
				cfg.ID, cfg.Tag, b.ID, cfg.UnitType)
		}
	}
	w.controllers = append(w.controllers, &ControllerBlock{
		ID:               cfg.ID,
		Pos:              cfg.Pos,
		UnitType:         cfg.UnitType,
		Cell:             cfg.Cell,
		Latch:            cfg.Latch,
		Display:          cfg.Display,
		DepositStructure: cfg.DepositStructure,
		Tag:              cfg.Tag,
		cursor:           -1,
		prog:             prog,
	})
	return nil
}

// controllerEnv is the per-block view of the world handed to a program each
// tick. It is the single writer of the block's cell, latch and unit flags.
type controllerEnv struct {
	w *World
	b *ControllerBlock
}

var _ logic.Env = (*controllerEnv)(nil)

func (e *controllerEnv) SenseNearestShooter() (logic.Shooter, bool) {
	op, ok := e.w.nearestShooter(e.b.Pos)
	if !ok {
		return logic.Shooter{}, false
	}
	return logic.Shooter{ID: op.ID, Aim: v2ToLogic(op.Aim)}, true
}

func (e *controllerEnv) LocateNearestCore() (logic.Point, bool) {
	s, ok := e.w.locateNearest(KindCore, e.b.Pos)
	if !ok {
		return logic.Point{}, false
	}
	return logic.Point{ID: s.ID, Pos: v2ToLogic(s.Pos)}, true
}

func (e *controllerEnv) ConfiguredDeposit() (logic.Point, bool) {
	if e.b.DepositStructure == "" {
		return logic.Point{}, false
	}
	s := e.w.structures[e.b.DepositStructure]
	if s == nil {
		// Configured but gone; treated as unresolved so callers retry.
		return logic.Point{}, false
	}
	return logic.Point{ID: s.ID, Pos: v2ToLogic(s.Pos)}, true
}

func (e *controllerEnv) BindNext() (logic.Unit, bool) {
	pool := e.w.poolOf(e.b.UnitType)
	if len(pool) == 0 {
		return logic.Unit{}, false
	}
	e.b.cursor = (e.b.cursor + 1) % len(pool)
	d := pool[e.b.cursor]
	return logic.Unit{ID: d.ID, Pos: v2ToLogic(d.Pos), Cargo: d.Cargo, Capacity: d.Capacity}, true
}

func (e *controllerEnv) Flag(unitID string) int {
	d := e.w.drones[unitID]
	if d == nil {
		return 0
	}
	return d.Flag
}

func (e *controllerEnv) SetFlag(unitID string, v int) {
	if d := e.w.drones[unitID]; d != nil {
		d.Flag = v
	}
}

func (e *controllerEnv) MoveToward(unitID string, dst logic.Vec2, tolerance float64) {
	if d := e.w.drones[unitID]; d != nil {
		d.move = &moveOrder{Dst: v2FromLogic(dst), Tolerance: tolerance}
	}
}

func (e *controllerEnv) ExtractAt(unitID string, p logic.Vec2) {
	if d := e.w.drones[unitID]; d != nil {
		d.extract = &extractOrder{At: v2FromLogic(p)}
	}
}

func (e *controllerEnv) DepositCargo(unitID, structureID string) {
	d := e.w.drones[unitID]
	s := e.w.structures[structureID]
	if d == nil || s == nil || d.Cargo == 0 {
		return
	}
	amount := d.Cargo
	s.Stored += amount
	d.Cargo = 0
	e.w.deposited += uint64(amount)
	e.w.audit(e.w.tick.Load(), e.b.ID, "DEPOSIT", map[string]any{
		"unit":      unitID,
		"structure": structureID,
		"amount":    amount,
	})
}

func (e *controllerEnv) IsWithin(unitID string, p logic.Vec2, radius float64) bool {
	d := e.w.drones[unitID]
	if d == nil {
		return false
	}
	return Dist(d.Pos, v2FromLogic(p)) <= radius
}

func (e *controllerEnv) ReadCell(slot int) float64 {
	return e.w.cellRead(e.b.Cell, slot)
}

func (e *controllerEnv) WriteCell(slot int, v float64) {
	e.w.cellWrite(e.b.Cell, slot, v)
}

func (e *controllerEnv) LatchActive() bool {
	return e.w.latches[e.b.Latch]
}

func (e *controllerEnv) ClearLatch() {
	if _, ok := e.w.latches[e.b.Latch]; !ok {
		return
	}
	e.w.latches[e.b.Latch] = false
	e.w.audit(e.w.tick.Load(), e.b.ID, "LATCH_CLEAR", map[string]any{
		"latch": e.b.Latch,
	})
}

func (e *controllerEnv) Render(lines []string) {
	if _, ok := e.w.displays[e.b.Display]; !ok {
		return
	}
	out := make([]string, len(lines))
	copy(out, lines)
	e.w.displays[e.b.Display] = out
}
