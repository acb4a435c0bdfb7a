package world

import "fmt"

// Drone is one harvest unit. Flag is its only task-phase marker: persisted
// by the world, written by whichever controller owns the pool, and the sole
// per-drone state a controller can recover after forgetting everything.
type Drone struct {
	ID       string
	Type     string
	Pos      Vec2
	Cargo    int
	Capacity int
	Flag     int

	move    *moveOrder
	extract *extractOrder
}

type moveOrder struct {
	Dst       Vec2
	Tolerance float64
}

type extractOrder struct {
	At Vec2
}

func (w *World) SpawnDrone(unitType string, pos Vec2) *Drone {
	if unitType == "" {
		unitType = w.cfg.UnitType
	}
	id := fmt.Sprintf("U%06d", w.nextUnitNum.Add(1))
	d := &Drone{
		ID:       id,
		Type:     unitType,
		Pos:      pos,
		Capacity: w.cfg.CargoCapacity,
	}
	w.drones[id] = d
	w.droneOrder = append(w.droneOrder, id)
	return d
}

// RemoveDrone destroys a unit. The environment may do this mid-cycle;
// cursors cope by wrapping over the shrunken pool.
func (w *World) RemoveDrone(id string) {
	if _, ok := w.drones[id]; !ok {
		return
	}
	delete(w.drones, id)
	for i, did := range w.droneOrder {
		if did == id {
			w.droneOrder = append(w.droneOrder[:i], w.droneOrder[i+1:]...)
			break
		}
	}
}

// poolOf returns live drones of one type in traversal order.
func (w *World) poolOf(unitType string) []*Drone {
	out := make([]*Drone, 0, len(w.droneOrder))
	for _, id := range w.droneOrder {
		d := w.drones[id]
		if d != nil && d.Type == unitType {
			out = append(out, d)
		}
	}
	return out
}

func (w *World) Drone(id string) *Drone { return w.drones[id] }

func (w *World) DroneCount() int { return len(w.drones) }
