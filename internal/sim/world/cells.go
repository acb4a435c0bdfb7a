package world

import "fmt"

// MemoryCell is a small fixed-slot store of numbers, the only durable
// mailbox between an operator-facing latch pull and the controller's cached
// target.
type MemoryCell struct {
	ID    string
	Slots []float64
}

func (w *World) AddCell(id string, slots int) (*MemoryCell, error) {
	if id == "" {
		return nil, fmt.Errorf("cell: empty id")
	}
	if _, ok := w.cells[id]; ok {
		return nil, fmt.Errorf("cell %s: already exists", id)
	}
	if slots <= 0 {
		slots = 64
	}
	c := &MemoryCell{ID: id, Slots: make([]float64, slots)}
	w.cells[id] = c
	return c, nil
}

func (w *World) cellRead(id string, slot int) float64 {
	c := w.cells[id]
	if c == nil || slot < 0 || slot >= len(c.Slots) {
		return 0
	}
	return c.Slots[slot]
}

func (w *World) cellWrite(id string, slot int, v float64) {
	c := w.cells[id]
	if c == nil || slot < 0 || slot >= len(c.Slots) {
		return
	}
	c.Slots[slot] = v
}

func (w *World) AddLatch(id string) error {
	if id == "" {
		return fmt.Errorf("latch: empty id")
	}
	if _, ok := w.latches[id]; ok {
		return fmt.Errorf("latch %s: already exists", id)
	}
	w.latches[id] = false
	return nil
}

func (w *World) AddDisplay(id string) error {
	if id == "" {
		return fmt.Errorf("display: empty id")
	}
	if _, ok := w.displays[id]; ok {
		return fmt.Errorf("display %s: already exists", id)
	}
	w.displays[id] = nil
	return nil
}

// Display returns the current text of a display surface.
func (w *World) Display(id string) []string { return w.displays[id] }

// Latch reports the latch state (read-only; setting goes through operator
// ops, clearing through a controller env).
func (w *World) Latch(id string) bool { return w.latches[id] }

// Cell returns a read-only copy of a cell's slots.
func (w *World) Cell(id string) []float64 {
	c := w.cells[id]
	if c == nil {
		return nil
	}
	out := make([]float64, len(c.Slots))
	copy(out, c.Slots)
	return out
}
