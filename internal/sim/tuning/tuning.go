package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Fleet Fleet `yaml:"fleet"`

	Controller Controller `yaml:"controller"`

	Structures []Structure `yaml:"structures"`
}

type Fleet struct {
	UnitType      string  `yaml:"unit_type"`
	InitialDrones int     `yaml:"initial_drones"`
	CargoCapacity int     `yaml:"cargo_capacity"`
	SpeedPerTick  float64 `yaml:"speed_per_tick"`
	ExtractRate   int     `yaml:"extract_rate"`
	ExtractRadius float64 `yaml:"extract_radius"`
}

type Controller struct {
	Pos              [2]float64 `yaml:"pos"`
	Cell             string     `yaml:"cell"`
	Latch            string     `yaml:"latch"`
	Display          string     `yaml:"display"`
	DepositStructure string     `yaml:"deposit_structure"` // empty: nearest core
	MoveTolerance    float64    `yaml:"move_tolerance"`
	DepositRadius    float64    `yaml:"deposit_radius"`
}

type Structure struct {
	ID   string     `yaml:"id"`
	Kind string     `yaml:"kind"`
	Pos  [2]float64 `yaml:"pos"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.withDefaults(), nil
}

func Defaults() Tuning {
	return Tuning{}.withDefaults()
}

func (t Tuning) withDefaults() Tuning {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz == 0 {
		t.TickRateHz = 10
	}
	if t.SnapshotEveryTicks == 0 {
		t.SnapshotEveryTicks = 3000
	}
	if t.Fleet.UnitType == "" {
		t.Fleet.UnitType = "MONO"
	}
	if t.Fleet.CargoCapacity == 0 {
		t.Fleet.CargoCapacity = 30
	}
	if t.Fleet.SpeedPerTick == 0 {
		t.Fleet.SpeedPerTick = 1.5
	}
	if t.Fleet.ExtractRate == 0 {
		t.Fleet.ExtractRate = 3
	}
	if t.Fleet.ExtractRadius == 0 {
		t.Fleet.ExtractRadius = 4
	}
	if t.Controller.Cell == "" {
		t.Controller.Cell = "cell1"
	}
	if t.Controller.Latch == "" {
		t.Controller.Latch = "switch1"
	}
	if t.Controller.Display == "" {
		t.Controller.Display = "message1"
	}
	if t.Controller.MoveTolerance == 0 {
		t.Controller.MoveTolerance = 2
	}
	if t.Controller.DepositRadius == 0 {
		t.Controller.DepositRadius = 5
	}
	return t
}
