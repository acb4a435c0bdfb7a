// Package harvest implements the swarm harvest coordinator: a single logic
// block that time-multiplexes an unbounded pool of harvest drones, drives
// each through a harvest/return cycle, and coordinates the operator's
// target-selection handshake. The coordinator keeps no state between ticks;
// task phase is recovered from each drone's flag plus the cached target in
// the shared memory cell.
package harvest

import (
	"fmt"
	"math"

	"orefleet.ai/internal/sim/logic"
)

// Memory cell layout. Slot 0 holds the target-set flag, slots 1-2 the
// cached target coordinate. This is the whole inspectable state surface.
const (
	SlotTargetSet = 0
	SlotTargetX   = 1
	SlotTargetY   = 2
)

type Config struct {
	// Tag marks drones in the return phase. Must be nonzero (zero means
	// harvesting) and unique among controllers sharing a pool.
	Tag int

	// MoveTolerance is passed through on every move order.
	MoveTolerance float64

	// DepositRadius is the proximity at which cargo is dropped.
	DepositRadius float64
}

// DepositTagFor derives a return-phase tag from the controller's own
// position. Distinct placements yield distinct tags; uniqueness across
// controllers is still the caller's responsibility and is validated where
// controllers attach to a world.
func DepositTagFor(pos logic.Vec2) int {
	return 1 + int(math.Round(pos.X))*10000 + int(math.Round(pos.Y))
}

type Coordinator struct {
	cfg Config
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Tag == 0 {
		return nil, fmt.Errorf("harvest: tag must be nonzero (zero marks the harvest phase)")
	}
	if cfg.MoveTolerance <= 0 {
		cfg.MoveTolerance = 2
	}
	if cfg.DepositRadius <= 0 {
		cfg.DepositRadius = 5
	}
	return &Coordinator{cfg: cfg}, nil
}

func (c *Coordinator) Step(env logic.Env) {
	c.report(env)

	if env.LatchActive() {
		// Handshake tick: no round-robin work even if it fails.
		c.acquireTarget(env)
		return
	}
	if env.ReadCell(SlotTargetSet) == 0 {
		return
	}
	target := logic.Vec2{X: env.ReadCell(SlotTargetX), Y: env.ReadCell(SlotTargetY)}
	u, ok := env.BindNext()
	if !ok {
		return
	}
	c.drive(env, u, target)
}

// acquireTarget samples the nearest firing ally's aim point and commits it.
// The latch is cleared only on success; with no shooter in sight it stays
// set and the handshake retries next tick.
func (c *Coordinator) acquireTarget(env logic.Env) {
	sh, ok := env.SenseNearestShooter()
	if !ok {
		return
	}
	x := math.Round(sh.Aim.X)
	y := math.Round(sh.Aim.Y)
	env.WriteCell(SlotTargetSet, 1)
	env.WriteCell(SlotTargetX, x)
	env.WriteCell(SlotTargetY, y)
	env.ClearLatch()
	c.sweepLaden(env)
}

// sweepLaden walks the whole pool once, within this tick, and tags every
// drone already carrying cargo for deposit, so none of them hauls old cargo
// to the new target. Cycle detection is by identity: bind the first drone as
// sentinel, advance until it comes around again.
func (c *Coordinator) sweepLaden(env logic.Env) {
	first, ok := env.BindNext()
	if !ok {
		return
	}
	sentinel := first.ID
	u := first
	for {
		if u.Cargo > 0 {
			env.SetFlag(u.ID, c.cfg.Tag)
		}
		next, ok := env.BindNext()
		if !ok {
			return
		}
		if next.ID == sentinel {
			return
		}
		u = next
	}
}

// drive runs one drone's harvest/return state machine for this tick.
func (c *Coordinator) drive(env logic.Env, u logic.Unit, target logic.Vec2) {
	if env.Flag(u.ID) == c.cfg.Tag {
		dep, ok := c.resolveDeposit(env)
		if !ok {
			// Nothing to unload into yet; retried when this drone is
			// bound again.
			return
		}
		env.MoveToward(u.ID, dep.Pos, c.cfg.MoveTolerance)
		if env.IsWithin(u.ID, dep.Pos, c.cfg.DepositRadius) {
			env.DepositCargo(u.ID, dep.ID)
			env.SetFlag(u.ID, 0)
			// Head straight back out; no need to wait for the next
			// time this drone comes up in the rotation.
			env.MoveToward(u.ID, target, c.cfg.MoveTolerance)
		}
		return
	}

	env.MoveToward(u.ID, target, c.cfg.MoveTolerance)
	env.ExtractAt(u.ID, target)
	if u.Cargo >= u.Capacity {
		// Takes effect the next time this drone is bound.
		env.SetFlag(u.ID, c.cfg.Tag)
	}
}

// resolveDeposit prefers the statically configured structure and falls back
// to discovery. Never cached; a transiently missing core is retried on a
// later tick.
func (c *Coordinator) resolveDeposit(env logic.Env) (logic.Point, bool) {
	if p, ok := env.ConfiguredDeposit(); ok {
		return p, true
	}
	return env.LocateNearestCore()
}

// report renders the current configuration to the display. Read-only; it
// never touches controller state.
func (c *Coordinator) report(env logic.Env) {
	lines := []string{"harvest coordinator"}
	if env.ReadCell(SlotTargetSet) != 0 {
		lines = append(lines, fmt.Sprintf("target: %.0f, %.0f",
			env.ReadCell(SlotTargetX), env.ReadCell(SlotTargetY)))
	} else {
		lines = append(lines, "target: unset")
	}
	if dep, ok := env.ConfiguredDeposit(); ok {
		lines = append(lines, fmt.Sprintf("deposit: %s", dep.ID))
	} else {
		lines = append(lines, "deposit: nearest core")
	}
	if env.LatchActive() {
		lines = append(lines, "latch: waiting for shooter")
	}
	env.Render(lines)
}
