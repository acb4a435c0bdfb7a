package world

type WorldConfig struct {
	ID         string
	TickRateHz int

	SnapshotEveryTicks int

	// Fleet primitives. These are environment parameters, not controller
	// behavior: the simplest kinematics that make the controllers
	// observable.
	UnitType      string
	CargoCapacity int
	DroneSpeed    float64 // distance per tick
	ExtractRate   int     // cargo units per tick at the extraction point
	ExtractRadius float64
}

func (c WorldConfig) withDefaults() WorldConfig {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.UnitType == "" {
		c.UnitType = "MONO"
	}
	if c.CargoCapacity <= 0 {
		c.CargoCapacity = 30
	}
	if c.DroneSpeed <= 0 {
		c.DroneSpeed = 1.5
	}
	if c.ExtractRate <= 0 {
		c.ExtractRate = 3
	}
	if c.ExtractRadius <= 0 {
		c.ExtractRadius = 4
	}
	return c
}
