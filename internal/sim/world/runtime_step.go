package world

import (
	"encoding/json"
	"time"

	"orefleet.ai/internal/protocol"
)

func (w *World) stepInternal(joins []JoinRequest, leaves []string, ops []OpEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Leaves and joins apply deterministically at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.operators[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinOperator(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{OperatorID: resp.Welcome.OperatorID, Name: req.Name})
	}

	// Operator ops in server receive order.
	recordedOps := make([]RecordedOp, 0, len(ops))
	for _, env := range ops {
		if _, ok := w.operators[env.OperatorID]; !ok {
			continue
		}
		recordedOps = append(recordedOps, RecordedOp{OperatorID: env.OperatorID, Op: env.Op})
		w.applyOp(nowTick, env.OperatorID, env.Op)
	}

	// Controllers run before the kinematics systems: orders issued this
	// tick take effect this tick.
	for _, b := range w.controllers {
		b.prog.Step(&controllerEnv{w: w, b: b})
	}

	w.systemMovement()
	w.systemExtraction()

	// Per-operator observation frame.
	if len(w.clients) > 0 {
		obs := w.buildObs(nowTick)
		if b, err := json.Marshal(obs); err == nil {
			for _, cl := range w.clients {
				sendLatest(cl.Out, b)
			}
		}
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:   nowTick,
			Joins:  recordedJoins,
			Leaves: recordedLeaves,
			Ops:    recordedOps,
			Digest: digest,
		})
	}

	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		every := uint64(w.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if the sink is backed up.
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)

	targetSet := false
	if len(w.controllers) > 0 {
		targetSet = w.cellRead(w.controllers[0].Cell, 0) != 0
	}
	w.metrics.Store(WorldMetrics{
		Tick:      nextTick,
		Drones:    len(w.drones),
		Operators: len(w.operators),
		Clients:   len(w.clients),
		Deposited: w.deposited,
		TargetSet: targetSet,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: stepMS,
	})
}

func (w *World) applyOp(nowTick uint64, operatorID string, op protocol.OpReq) {
	switch op.Type {
	case protocol.OpSetAim:
		o := w.operators[operatorID]
		if o == nil {
			return
		}
		if op.Aim != nil {
			o.Aim = Vec2{X: op.Aim[0], Y: op.Aim[1]}
		}
		if op.Firing != nil {
			o.Firing = *op.Firing
		}
	case protocol.OpPullLatch:
		id := op.Target
		if id == "" && len(w.controllers) > 0 {
			id = w.controllers[0].Latch
		}
		if _, ok := w.latches[id]; !ok {
			return
		}
		w.latches[id] = true
		w.audit(nowTick, operatorID, "LATCH_PULL", map[string]any{"latch": id})
	case protocol.OpSpawnDrone:
		pos := Vec2{}
		if len(w.controllers) > 0 {
			pos = w.controllers[0].Pos
		}
		if op.Pos != nil {
			pos = Vec2{X: op.Pos[0], Y: op.Pos[1]}
		}
		d := w.SpawnDrone("", pos)
		w.audit(nowTick, operatorID, "SPAWN", map[string]any{"unit": d.ID})
	}
}

func (w *World) systemMovement() {
	for _, id := range w.droneOrder {
		d := w.drones[id]
		if d == nil || d.move == nil {
			continue
		}
		dist := Dist(d.Pos, d.move.Dst)
		if dist <= d.move.Tolerance {
			continue
		}
		step := w.cfg.DroneSpeed
		if step >= dist {
			d.Pos = d.move.Dst
			continue
		}
		d.Pos.X += (d.move.Dst.X - d.Pos.X) / dist * step
		d.Pos.Y += (d.move.Dst.Y - d.Pos.Y) / dist * step
	}
}

func (w *World) systemExtraction() {
	for _, id := range w.droneOrder {
		d := w.drones[id]
		if d == nil || d.extract == nil {
			continue
		}
		if d.Cargo >= d.Capacity {
			continue
		}
		if Dist(d.Pos, d.extract.At) > w.cfg.ExtractRadius {
			continue
		}
		gain := w.cfg.ExtractRate
		if d.Cargo+gain > d.Capacity {
			gain = d.Capacity - d.Cargo
		}
		d.Cargo += gain
	}
}
