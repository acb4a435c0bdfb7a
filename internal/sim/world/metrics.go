package world

type WorldMetrics struct {
	Tick      uint64 `json:"tick"`
	Drones    int    `json:"drones"`
	Operators int    `json:"operators"`
	Clients   int    `json:"clients"`
	Deposited uint64 `json:"deposited"`
	TargetSet bool   `json:"target_set"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}
