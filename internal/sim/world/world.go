// Package world is the simulated environment: harvest drones, storage
// structures, memory cells, latches and displays, advanced one synchronous
// tick at a time. Logic blocks attached to the world are re-executed once
// per tick; all of their continuity lives in world-owned storage.
package world

import (
	"fmt"
	"sync/atomic"

	"orefleet.ai/internal/persistence/snapshot"
	"orefleet.ai/internal/protocol"
)

type World struct {
	cfg WorldConfig

	tick        atomic.Uint64
	nextUnitNum atomic.Uint64
	nextOpNum   atomic.Uint64

	// Entities. Order slices fix the traversal order for cursors and the
	// digest; the maps are the lookup path.
	drones         map[string]*Drone
	droneOrder     []string
	structures     map[string]*Structure
	structureOrder []string
	operators      map[string]*Operator
	operatorOrder  []string

	cells    map[string]*MemoryCell
	latches  map[string]bool
	displays map[string][]string

	controllers []*ControllerBlock

	clients map[string]*Client

	deposited uint64

	inbox chan OpEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics
}

type Client struct {
	OperatorID string
	Out        chan []byte
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type OpEnvelope struct {
	OperatorID string
	Op         protocol.OpReq
}

type TickLogEntry struct {
	Tick   uint64         `json:"tick"`
	Joins  []RecordedJoin `json:"joins,omitempty"`
	Leaves []string       `json:"leaves,omitempty"`
	Ops    []RecordedOp   `json:"ops,omitempty"`
	Digest string         `json:"digest"`
}

type RecordedJoin struct {
	OperatorID string `json:"operator_id"`
	Name       string `json:"name"`
}

type RecordedOp struct {
	OperatorID string         `json:"operator_id"`
	Op         protocol.OpReq `json:"op"`
}

type AuditEntry struct {
	Tick  uint64         `json:"tick"`
	Actor string         `json:"actor"`
	Kind  string         `json:"kind"`
	Data  map[string]any `json:"data,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

func New(cfg WorldConfig) (*World, error) {
	cfg = cfg.withDefaults()
	if cfg.ID == "" {
		return nil, fmt.Errorf("world: empty id")
	}
	w := &World{
		cfg:        cfg,
		drones:     map[string]*Drone{},
		structures: map[string]*Structure{},
		operators:  map[string]*Operator{},
		cells:      map[string]*MemoryCell{},
		latches:    map[string]bool{},
		displays:   map[string][]string{},
		clients:    map[string]*Client{},
		inbox:      make(chan OpEnvelope, 256),
		join:       make(chan JoinRequest, 16),
		leave:      make(chan string, 16),
		stop:       make(chan struct{}),
	}
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) ID() string { return w.cfg.ID }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// Join and Inbox are the transport-facing mailboxes.
func (w *World) Join() chan<- JoinRequest { return w.join }
func (w *World) Leave() chan<- string     { return w.leave }
func (w *World) Inbox() chan<- OpEnvelope { return w.inbox }

func (w *World) audit(tick uint64, actor, kind string, data map[string]any) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{Tick: tick, Actor: actor, Kind: kind, Data: data})
}
