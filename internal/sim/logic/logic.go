package logic

// A Program is one controller script. The world re-executes Step once per
// tick; a Program carries no state of its own between ticks. Everything it
// needs to remember lives behind Env.
type Program interface {
	Step(env Env)
}

// Env is the environment surface a logic block sees: sensing, the unit pool
// cursor, per-unit actuation, the memory-cell/latch mailbox and the display.
// The world hands each block its own Env; the handle is the only writer of
// the block's cell, latch and unit flags.
type Env interface {
	// Sensing.
	SenseNearestShooter() (Shooter, bool)
	LocateNearestCore() (Point, bool)
	ConfiguredDeposit() (Point, bool)

	// Pool cursor. BindNext advances the block's cursor by one unit of the
	// block's managed type and wraps after the last. Not-found means the
	// pool is empty right now.
	BindNext() (Unit, bool)

	// Actuation, addressed by unit ID.
	Flag(unitID string) int
	SetFlag(unitID string, v int)
	MoveToward(unitID string, dst Vec2, tolerance float64)
	ExtractAt(unitID string, p Vec2)
	DepositCargo(unitID, structureID string)
	IsWithin(unitID string, p Vec2, radius float64) bool

	// Memory-cell mailbox.
	ReadCell(slot int) float64
	WriteCell(slot int, v float64)

	// Latch. Operators set it; only the controller clears it.
	LatchActive() bool
	ClearLatch()

	// Display surface.
	Render(lines []string)
}

// Unit is a snapshot of one pool member at bind time.
type Unit struct {
	ID       string
	Pos      Vec2
	Cargo    int
	Capacity int
}

// Shooter is a firing ally plus the point it is aiming at.
type Shooter struct {
	ID  string
	Aim Vec2
}

// Point is a located structure.
type Point struct {
	ID  string
	Pos Vec2
}

// Vec2 is duplicated here to avoid import cycles (logic is used by world).
type Vec2 struct{ X, Y float64 }
