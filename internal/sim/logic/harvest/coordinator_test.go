package harvest

import (
	"math"
	"testing"

	"orefleet.ai/internal/sim/logic"
)

type moveCmd struct {
	UnitID    string
	Dst       logic.Vec2
	Tolerance float64
}

type fakeUnit struct {
	ID       string
	Pos      logic.Vec2
	Cargo    int
	Capacity int
}

// fakeEnv is an in-memory stand-in for the world: a drone pool with a
// wrapping cursor, a memory cell, a latch, and recorded actuation commands.
type fakeEnv struct {
	shooter    *logic.Shooter
	cores      []logic.Point
	configured *logic.Point

	pool   []*fakeUnit
	cursor int

	flags   map[string]int
	cells   map[int]float64
	latch   bool
	display []string

	moves      []moveCmd
	extracts   []string
	deposits   []string
	cellWrites int
}

func newFakeEnv(units ...*fakeUnit) *fakeEnv {
	return &fakeEnv{
		pool:   units,
		cursor: -1,
		flags:  map[string]int{},
		cells:  map[int]float64{},
	}
}

func (f *fakeEnv) SenseNearestShooter() (logic.Shooter, bool) {
	if f.shooter == nil {
		return logic.Shooter{}, false
	}
	return *f.shooter, true
}

func (f *fakeEnv) LocateNearestCore() (logic.Point, bool) {
	if len(f.cores) == 0 {
		return logic.Point{}, false
	}
	return f.cores[0], true
}

func (f *fakeEnv) ConfiguredDeposit() (logic.Point, bool) {
	if f.configured == nil {
		return logic.Point{}, false
	}
	return *f.configured, true
}

func (f *fakeEnv) BindNext() (logic.Unit, bool) {
	if len(f.pool) == 0 {
		return logic.Unit{}, false
	}
	f.cursor = (f.cursor + 1) % len(f.pool)
	u := f.pool[f.cursor]
	return logic.Unit{ID: u.ID, Pos: u.Pos, Cargo: u.Cargo, Capacity: u.Capacity}, true
}

func (f *fakeEnv) Flag(unitID string) int       { return f.flags[unitID] }
func (f *fakeEnv) SetFlag(unitID string, v int) { f.flags[unitID] = v }

func (f *fakeEnv) MoveToward(unitID string, dst logic.Vec2, tolerance float64) {
	f.moves = append(f.moves, moveCmd{UnitID: unitID, Dst: dst, Tolerance: tolerance})
}

func (f *fakeEnv) ExtractAt(unitID string, p logic.Vec2) {
	f.extracts = append(f.extracts, unitID)
}

func (f *fakeEnv) DepositCargo(unitID, structureID string) {
	f.deposits = append(f.deposits, unitID)
	for _, u := range f.pool {
		if u.ID == unitID {
			u.Cargo = 0
		}
	}
}

func (f *fakeEnv) IsWithin(unitID string, p logic.Vec2, radius float64) bool {
	for _, u := range f.pool {
		if u.ID == unitID {
			return math.Hypot(u.Pos.X-p.X, u.Pos.Y-p.Y) <= radius
		}
	}
	return false
}

func (f *fakeEnv) ReadCell(slot int) float64 { return f.cells[slot] }
func (f *fakeEnv) WriteCell(slot int, v float64) {
	f.cells[slot] = v
	f.cellWrites++
}

func (f *fakeEnv) LatchActive() bool { return f.latch }
func (f *fakeEnv) ClearLatch()       { f.latch = false }

func (f *fakeEnv) Render(lines []string) { f.display = lines }

func (f *fakeEnv) setTarget(x, y float64) {
	f.cells[SlotTargetSet] = 1
	f.cells[SlotTargetX] = x
	f.cells[SlotTargetY] = y
	f.cellWrites = 0
}

func mustNew(t *testing.T, cfg Config) *Coordinator {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestNew_RejectsZeroTag(t *testing.T) {
	if _, err := New(Config{Tag: 0}); err == nil {
		t.Fatalf("expected error for zero tag")
	}
}

func TestDepositTagFor_DistinctPositions(t *testing.T) {
	a := DepositTagFor(logic.Vec2{X: 10, Y: 20})
	b := DepositTagFor(logic.Vec2{X: 20, Y: 10})
	if a == b {
		t.Fatalf("tags collide: %d", a)
	}
	if a == 0 || b == 0 {
		t.Fatalf("derived tag must be nonzero: a=%d b=%d", a, b)
	}
}

func TestHandshake_CommitsTargetAndClearsLatch(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(&fakeUnit{ID: "U1", Capacity: 10})
	env.latch = true
	env.shooter = &logic.Shooter{ID: "OP1", Aim: logic.Vec2{X: 10.2, Y: 19.7}}

	c.Step(env)

	if env.cells[SlotTargetSet] != 1 {
		t.Fatalf("target-set slot = %v, want 1", env.cells[SlotTargetSet])
	}
	if env.cells[SlotTargetX] != 10 || env.cells[SlotTargetY] != 20 {
		t.Fatalf("target = (%v,%v), want (10,20)", env.cells[SlotTargetX], env.cells[SlotTargetY])
	}
	if env.latch {
		t.Fatalf("latch still active after successful handshake")
	}
	// A handshake tick does only the sweep; no drone is driven.
	if len(env.moves) != 0 || len(env.extracts) != 0 {
		t.Fatalf("handshake tick issued drive commands: moves=%d extracts=%d", len(env.moves), len(env.extracts))
	}
}

func TestHandshake_NoShooterLeavesLatchSet(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(&fakeUnit{ID: "U1", Cargo: 5, Capacity: 10})
	env.latch = true

	c.Step(env)

	if !env.latch {
		t.Fatalf("latch cleared without a shooter")
	}
	if env.cellWrites != 0 {
		t.Fatalf("cell written on failed handshake")
	}
	if got := env.flags["U1"]; got != 0 {
		t.Fatalf("sweep ran on failed handshake: flag=%d", got)
	}
}

func TestSweep_TagsLadenDronesOnly(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(
		&fakeUnit{ID: "U1", Cargo: 5, Capacity: 10},
		&fakeUnit{ID: "U2", Cargo: 0, Capacity: 10},
		&fakeUnit{ID: "U3", Cargo: 8, Capacity: 10},
	)
	env.latch = true
	env.shooter = &logic.Shooter{ID: "OP1", Aim: logic.Vec2{X: 1, Y: 1}}

	c.Step(env)

	want := map[string]int{"U1": 77, "U2": 0, "U3": 77}
	for id, w := range want {
		if got := env.flags[id]; got != w {
			t.Fatalf("flag[%s] = %d, want %d", id, got, w)
		}
	}
}

func TestSweep_EmptyPoolIsNoOp(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv()
	env.latch = true
	env.shooter = &logic.Shooter{ID: "OP1", Aim: logic.Vec2{X: 1, Y: 1}}

	// Must terminate and still commit the target.
	c.Step(env)
	if env.cells[SlotTargetSet] != 1 {
		t.Fatalf("target not committed with empty pool")
	}
	if env.latch {
		t.Fatalf("latch not cleared with empty pool")
	}
}

func TestSweep_SingleDroneCycleTerminates(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(&fakeUnit{ID: "U1", Cargo: 3, Capacity: 10})
	env.latch = true
	env.shooter = &logic.Shooter{ID: "OP1", Aim: logic.Vec2{X: 1, Y: 1}}

	c.Step(env)
	if got := env.flags["U1"]; got != 77 {
		t.Fatalf("flag = %d, want 77", got)
	}
}

func TestRoundRobin_OneDronePerTick(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(
		&fakeUnit{ID: "U1", Capacity: 10},
		&fakeUnit{ID: "U2", Capacity: 10},
	)
	env.setTarget(30, 40)

	c.Step(env)

	if len(env.moves) != 1 {
		t.Fatalf("moves = %d, want 1", len(env.moves))
	}
	if env.moves[0].UnitID != "U1" {
		t.Fatalf("drove %s, want U1", env.moves[0].UnitID)
	}
}

func TestRoundRobin_FullCycleVisitsEachOnce(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(
		&fakeUnit{ID: "U1", Capacity: 10},
		&fakeUnit{ID: "U2", Capacity: 10},
		&fakeUnit{ID: "U3", Capacity: 10},
		&fakeUnit{ID: "U4", Capacity: 10},
	)
	env.setTarget(30, 40)

	for i := 0; i < len(env.pool); i++ {
		c.Step(env)
	}

	if len(env.moves) != 4 {
		t.Fatalf("moves = %d, want 4", len(env.moves))
	}
	for i, want := range []string{"U1", "U2", "U3", "U4"} {
		if env.moves[i].UnitID != want {
			t.Fatalf("visit %d = %s, want %s", i, env.moves[i].UnitID, want)
		}
	}
}

func TestSteadyState_NeverWritesCell(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(&fakeUnit{ID: "U1", Capacity: 10})
	env.setTarget(30, 40)

	for i := 0; i < 20; i++ {
		c.Step(env)
	}
	if env.cellWrites != 0 {
		t.Fatalf("steady state wrote the cell %d times", env.cellWrites)
	}
}

func TestHarvest_CapacityFlipsFlagButNotCourse(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(&fakeUnit{ID: "U1", Cargo: 10, Capacity: 10})
	env.setTarget(30, 40)

	c.Step(env)

	if got := env.flags["U1"]; got != 77 {
		t.Fatalf("flag = %d, want 77", got)
	}
	// The move issued this tick still targets the harvest point; the
	// transition is observed on the next dispatch.
	if len(env.moves) != 1 || env.moves[0].Dst != (logic.Vec2{X: 30, Y: 40}) {
		t.Fatalf("moves = %+v, want one move to (30,40)", env.moves)
	}
	if len(env.extracts) != 1 {
		t.Fatalf("extracts = %d, want 1", len(env.extracts))
	}
}

func TestReturn_UnresolvedDepositDoesNothing(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(&fakeUnit{ID: "U1", Cargo: 10, Capacity: 10})
	env.setTarget(30, 40)
	env.flags["U1"] = 77

	c.Step(env)

	if len(env.moves)+len(env.extracts)+len(env.deposits) != 0 {
		t.Fatalf("commands issued with no deposit point: moves=%d extracts=%d deposits=%d",
			len(env.moves), len(env.extracts), len(env.deposits))
	}
	if got := env.flags["U1"]; got != 77 {
		t.Fatalf("flag = %d, want 77 (unchanged)", got)
	}
}

func TestReturn_DepositClearsFlagAndPipelinesHarvest(t *testing.T) {
	c := mustNew(t, Config{Tag: 77, DepositRadius: 5})
	env := newFakeEnv(&fakeUnit{ID: "U1", Pos: logic.Vec2{X: 1, Y: 1}, Cargo: 10, Capacity: 10})
	env.setTarget(30, 40)
	env.flags["U1"] = 77
	env.cores = []logic.Point{{ID: "CORE1", Pos: logic.Vec2{X: 0, Y: 0}}}

	c.Step(env)

	if len(env.deposits) != 1 || env.deposits[0] != "U1" {
		t.Fatalf("deposits = %v, want [U1]", env.deposits)
	}
	if got := env.flags["U1"]; got != 0 {
		t.Fatalf("flag = %d, want 0 after deposit", got)
	}
	// Two moves: toward the core, then pipelined back toward the target.
	if len(env.moves) != 2 {
		t.Fatalf("moves = %d, want 2", len(env.moves))
	}
	if env.moves[1].Dst != (logic.Vec2{X: 30, Y: 40}) {
		t.Fatalf("second move = %+v, want target (30,40)", env.moves[1].Dst)
	}
}

func TestReturn_ConfiguredDepositWins(t *testing.T) {
	c := mustNew(t, Config{Tag: 77, DepositRadius: 5})
	env := newFakeEnv(&fakeUnit{ID: "U1", Pos: logic.Vec2{X: 1, Y: 1}, Cargo: 10, Capacity: 10})
	env.setTarget(30, 40)
	env.flags["U1"] = 77
	env.cores = []logic.Point{{ID: "CORE1", Pos: logic.Vec2{X: 50, Y: 50}}}
	env.configured = &logic.Point{ID: "VAULT1", Pos: logic.Vec2{X: 0, Y: 0}}

	c.Step(env)

	if len(env.moves) == 0 || env.moves[0].Dst != (logic.Vec2{X: 0, Y: 0}) {
		t.Fatalf("moves = %+v, want first move toward VAULT1", env.moves)
	}
}

func TestNoTargetCached_DoesNothing(t *testing.T) {
	c := mustNew(t, Config{Tag: 77})
	env := newFakeEnv(&fakeUnit{ID: "U1", Capacity: 10})

	c.Step(env)

	if len(env.moves)+len(env.extracts) != 0 {
		t.Fatalf("commands issued with no cached target")
	}
	if len(env.display) == 0 {
		t.Fatalf("display not rendered")
	}
	if env.display[1] != "target: unset" {
		t.Fatalf("display line = %q, want unset indication", env.display[1])
	}
}
