package world

import "orefleet.ai/internal/protocol"

// buildObs renders the primary controller's external state surface: its
// cell, latch and display, plus a fleet summary. Observers are read-only;
// nothing here mutates world state.
func (w *World) buildObs(nowTick uint64) protocol.ObsMsg {
	obs := protocol.ObsMsg{
		Type:      protocol.TypeObs,
		Tick:      nowTick,
		Deposited: int(w.deposited),
	}
	if len(w.controllers) > 0 {
		b := w.controllers[0]
		obs.Cell = protocol.CellObs{
			Set: w.cellRead(b.Cell, 0) != 0,
			X:   w.cellRead(b.Cell, 1),
			Y:   w.cellRead(b.Cell, 2),
		}
		obs.Latch = w.latches[b.Latch]
		obs.Display = w.displays[b.Display]
	}
	if obs.Display == nil {
		obs.Display = []string{}
	}
	obs.Drones = make([]protocol.DroneObs, 0, len(w.droneOrder))
	for _, id := range w.droneOrder {
		d := w.drones[id]
		if d == nil {
			continue
		}
		obs.Drones = append(obs.Drones, protocol.DroneObs{
			ID:       d.ID,
			Pos:      [2]float64{d.Pos.X, d.Pos.Y},
			Cargo:    d.Cargo,
			Capacity: d.Capacity,
			Flag:     d.Flag,
		})
	}
	return obs
}
