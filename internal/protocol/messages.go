package protocol

// HelloMsg opens an operator session.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	OperatorName    string `json:"operator_name"`
}

type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	OperatorID      string      `json:"operator_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	WorldID    string `json:"world_id"`
	TickRateHz int    `json:"tick_rate_hz"`
}

// ObsMsg is the per-tick observation frame sent to every operator: the
// shared memory cell, the latch, the display text and a fleet summary.
type ObsMsg struct {
	Type      string     `json:"type"`
	Tick      uint64     `json:"tick"`
	Cell      CellObs    `json:"cell"`
	Latch     bool       `json:"latch"`
	Display   []string   `json:"display"`
	Drones    []DroneObs `json:"drones"`
	Deposited int        `json:"deposited"`
}

type CellObs struct {
	Set bool    `json:"set"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

type DroneObs struct {
	ID       string     `json:"id"`
	Pos      [2]float64 `json:"pos"`
	Cargo    int        `json:"cargo"`
	Capacity int        `json:"capacity"`
	Flag     int        `json:"flag"`
}

// ActMsg carries operator ops, applied at the next tick boundary.
type ActMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick,omitempty"`
	Ops             []OpReq `json:"ops"`
}

// Op types.
const (
	OpSetAim     = "SET_AIM"
	OpPullLatch  = "PULL_LATCH"
	OpSpawnDrone = "SPAWN_DRONE"
)

type OpReq struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Target string      `json:"target,omitempty"` // latch id for PULL_LATCH
	Aim    *[2]float64 `json:"aim,omitempty"`
	Firing *bool       `json:"firing,omitempty"`
	Pos    *[2]float64 `json:"pos,omitempty"` // spawn point for SPAWN_DRONE
}
