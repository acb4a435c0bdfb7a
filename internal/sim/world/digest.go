package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// stateDigest hashes the externally visible world state in a canonical
// order. Two worlds fed the same ops over the same ticks must digest
// identically; replay verification depends on it.
func (w *World) stateDigest(nowTick uint64) string {
	type droneD struct {
		ID    string     `json:"id"`
		Pos   [2]float64 `json:"pos"`
		Cargo int        `json:"cargo"`
		Flag  int        `json:"flag"`
	}
	type structD struct {
		ID     string `json:"id"`
		Stored int    `json:"stored"`
	}
	type cellD struct {
		ID    string    `json:"id"`
		Slots []float64 `json:"slots"`
	}
	type cursorD struct {
		ID     string `json:"id"`
		Cursor int    `json:"cursor"`
	}
	type stateD struct {
		Tick      uint64    `json:"tick"`
		Drones    []droneD  `json:"drones"`
		Structs   []structD `json:"structs"`
		Cells     []cellD   `json:"cells"`
		Latches   []string  `json:"latches_on"`
		Cursors   []cursorD `json:"cursors"`
		Deposited uint64    `json:"deposited"`
	}

	st := stateD{Tick: nowTick, Deposited: w.deposited}

	ids := make([]string, 0, len(w.drones))
	for id := range w.drones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d := w.drones[id]
		st.Drones = append(st.Drones, droneD{ID: d.ID, Pos: [2]float64{d.Pos.X, d.Pos.Y}, Cargo: d.Cargo, Flag: d.Flag})
	}

	sids := make([]string, 0, len(w.structures))
	for id := range w.structures {
		sids = append(sids, id)
	}
	sort.Strings(sids)
	for _, id := range sids {
		st.Structs = append(st.Structs, structD{ID: id, Stored: w.structures[id].Stored})
	}

	cids := make([]string, 0, len(w.cells))
	for id := range w.cells {
		cids = append(cids, id)
	}
	sort.Strings(cids)
	for _, id := range cids {
		st.Cells = append(st.Cells, cellD{ID: id, Slots: w.cells[id].Slots})
	}

	lids := make([]string, 0, len(w.latches))
	for id, on := range w.latches {
		if on {
			lids = append(lids, id)
		}
	}
	sort.Strings(lids)
	st.Latches = lids

	for _, b := range w.controllers {
		st.Cursors = append(st.Cursors, cursorD{ID: b.ID, Cursor: b.cursor})
	}

	b, _ := json.Marshal(st)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
