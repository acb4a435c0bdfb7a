package world

import (
	"fmt"

	"orefleet.ai/internal/protocol"
)

// Operator is a human-driven ally: it has an aim point and a firing state,
// which is all the handshake ever samples from it.
type Operator struct {
	ID     string
	Name   string
	Pos    Vec2
	Aim    Vec2
	Firing bool
}

func (w *World) joinOperator(name string, out chan []byte) JoinResponse {
	id := fmt.Sprintf("OP%06d", w.nextOpNum.Add(1))
	op := &Operator{ID: id, Name: name}
	w.operators[id] = op
	w.operatorOrder = append(w.operatorOrder, id)
	if out != nil {
		w.clients[id] = &Client{OperatorID: id, Out: out}
	}
	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		OperatorID:      id,
		WorldParams: protocol.WorldParams{
			WorldID:    w.cfg.ID,
			TickRateHz: w.cfg.TickRateHz,
		},
	}}
}

func (w *World) handleLeave(id string) {
	delete(w.clients, id)
	if _, ok := w.operators[id]; !ok {
		return
	}
	delete(w.operators, id)
	for i, oid := range w.operatorOrder {
		if oid == id {
			w.operatorOrder = append(w.operatorOrder[:i], w.operatorOrder[i+1:]...)
			break
		}
	}
}

// nearestShooter finds the closest currently-firing operator. Ties break on
// ID for determinism.
func (w *World) nearestShooter(from Vec2) (*Operator, bool) {
	var best *Operator
	var bestDist float64
	for _, id := range w.operatorOrder {
		op := w.operators[id]
		if op == nil || !op.Firing {
			continue
		}
		d := Dist(op.Pos, from)
		if best == nil || d < bestDist || (d == bestDist && op.ID < best.ID) {
			best = op
			bestDist = d
		}
	}
	return best, best != nil
}
