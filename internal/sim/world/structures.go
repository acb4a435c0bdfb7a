package world

import "fmt"

// Structure kinds.
const (
	KindCore  = "CORE"
	KindVault = "VAULT"
)

type Structure struct {
	ID     string
	Kind   string
	Pos    Vec2
	Stored int
}

func (w *World) AddStructure(id, kind string, pos Vec2) (*Structure, error) {
	if id == "" {
		return nil, fmt.Errorf("structure: empty id")
	}
	if _, ok := w.structures[id]; ok {
		return nil, fmt.Errorf("structure %s: already exists", id)
	}
	s := &Structure{ID: id, Kind: kind, Pos: pos}
	w.structures[id] = s
	w.structureOrder = append(w.structureOrder, id)
	return s, nil
}

func (w *World) RemoveStructure(id string) {
	if _, ok := w.structures[id]; !ok {
		return
	}
	delete(w.structures, id)
	for i, sid := range w.structureOrder {
		if sid == id {
			w.structureOrder = append(w.structureOrder[:i], w.structureOrder[i+1:]...)
			break
		}
	}
}

func (w *World) Structure(id string) *Structure { return w.structures[id] }

// locateNearest finds the closest structure of a kind. Distance ties break
// on ID so discovery stays deterministic.
func (w *World) locateNearest(kind string, from Vec2) (*Structure, bool) {
	var best *Structure
	var bestDist float64
	for _, id := range w.structureOrder {
		s := w.structures[id]
		if s == nil || s.Kind != kind {
			continue
		}
		d := Dist(s.Pos, from)
		if best == nil || d < bestDist || (d == bestDist && s.ID < best.ID) {
			best = s
			bestDist = d
		}
	}
	return best, best != nil
}
