package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"orefleet.ai/internal/persistence/indexdb"
	persistlog "orefleet.ai/internal/persistence/log"
	"orefleet.ai/internal/persistence/snapshot"
	"orefleet.ai/internal/sim/logic"
	"orefleet.ai/internal/sim/logic/harvest"
	"orefleet.ai/internal/sim/tuning"
	"orefleet.ai/internal/sim/world"
	"orefleet.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/audit index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	// Tuning is required for a fresh world; snapshot resumes fall back to
	// defaults when the file is missing.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		var err error
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	w, err := buildWorld(*worldID, tune)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		seedWorld(w, tune)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	mt := multiTickLogger{a: tickLog}
	ma := multiAuditLogger{a: auditLog}
	if idx != nil {
		mt.b = idx
		ma.b = idx
	}
	w.SetTickLogger(mt)
	w.SetAuditLogger(ma)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP orefleet_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_tick gauge\n")
		fmt.Fprintf(rw, "orefleet_world_tick{world=%q} %d\n", *worldID, tick)

		fmt.Fprintf(rw, "# HELP orefleet_world_drones Current number of drones.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_drones gauge\n")
		fmt.Fprintf(rw, "orefleet_world_drones{world=%q} %d\n", *worldID, m.Drones)

		fmt.Fprintf(rw, "# HELP orefleet_world_operators Current number of operators.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_operators gauge\n")
		fmt.Fprintf(rw, "orefleet_world_operators{world=%q} %d\n", *worldID, m.Operators)

		fmt.Fprintf(rw, "# HELP orefleet_world_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_clients gauge\n")
		fmt.Fprintf(rw, "orefleet_world_clients{world=%q} %d\n", *worldID, m.Clients)

		fmt.Fprintf(rw, "# HELP orefleet_world_deposited_total Total cargo units deposited.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_deposited_total counter\n")
		fmt.Fprintf(rw, "orefleet_world_deposited_total{world=%q} %d\n", *worldID, m.Deposited)

		fmt.Fprintf(rw, "# HELP orefleet_world_target_set Whether a harvest target is cached.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_target_set gauge\n")
		fmt.Fprintf(rw, "orefleet_world_target_set{world=%q} %d\n", *worldID, boolToInt(m.TargetSet))

		fmt.Fprintf(rw, "# HELP orefleet_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "orefleet_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "orefleet_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "orefleet_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP orefleet_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE orefleet_world_step_ms gauge\n")
		fmt.Fprintf(rw, "orefleet_world_step_ms{world=%q} %.3f\n", *worldID, m.StepMS)

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP orefleet_index_dropped_total Index writes dropped under backpressure.\n")
			fmt.Fprintf(rw, "# TYPE orefleet_index_dropped_total counter\n")
			fmt.Fprintf(rw, "orefleet_index_dropped_total{world=%q,stream=%q} %d\n", *worldID, "tick", st.DropTickTotal)
			fmt.Fprintf(rw, "orefleet_index_dropped_total{world=%q,stream=%q} %d\n", *worldID, "audit", st.DropAuditTotal)
			fmt.Fprintf(rw, "orefleet_index_dropped_total{world=%q,stream=%q} %d\n", *worldID, "snapshot", st.DropSnapshotTotal)
			fmt.Fprintf(rw, "# HELP orefleet_index_queue_depth Index writer queue backlog.\n")
			fmt.Fprintf(rw, "# TYPE orefleet_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "orefleet_index_queue_depth{world=%q} %d\n", *worldID, st.QueueDepth)
		}
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// buildWorld creates the world and wires the coordinator per tuning. The
// same wiring is used by cmd/replay so resumed worlds step identically.
func buildWorld(worldID string, tune tuning.Tuning) (*world.World, error) {
	w, err := world.New(world.WorldConfig{
		ID:                 worldID,
		TickRateHz:         tune.TickRateHz,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		UnitType:           tune.Fleet.UnitType,
		CargoCapacity:      tune.Fleet.CargoCapacity,
		DroneSpeed:         tune.Fleet.SpeedPerTick,
		ExtractRate:        tune.Fleet.ExtractRate,
		ExtractRadius:      tune.Fleet.ExtractRadius,
	})
	if err != nil {
		return nil, err
	}

	if _, err := w.AddCell(tune.Controller.Cell, 64); err != nil {
		return nil, err
	}
	if err := w.AddLatch(tune.Controller.Latch); err != nil {
		return nil, err
	}
	if err := w.AddDisplay(tune.Controller.Display); err != nil {
		return nil, err
	}

	pos := world.Vec2{X: tune.Controller.Pos[0], Y: tune.Controller.Pos[1]}
	tag := harvest.DepositTagFor(logic.Vec2{X: pos.X, Y: pos.Y})
	coord, err := harvest.New(harvest.Config{
		Tag:           tag,
		MoveTolerance: tune.Controller.MoveTolerance,
		DepositRadius: tune.Controller.DepositRadius,
	})
	if err != nil {
		return nil, err
	}
	if err := w.AttachController(world.ControllerConfig{
		ID:               "harvest1",
		Pos:              pos,
		UnitType:         tune.Fleet.UnitType,
		Cell:             tune.Controller.Cell,
		Latch:            tune.Controller.Latch,
		Display:          tune.Controller.Display,
		DepositStructure: tune.Controller.DepositStructure,
		Tag:              tag,
	}, coord); err != nil {
		return nil, err
	}
	return w, nil
}

// seedWorld populates a fresh world: structures from tuning plus the
// initial fleet around the controller block.
func seedWorld(w *world.World, tune tuning.Tuning) {
	for _, s := range tune.Structures {
		_, _ = w.AddStructure(s.ID, s.Kind, world.Vec2{X: s.Pos[0], Y: s.Pos[1]})
	}
	base := world.Vec2{X: tune.Controller.Pos[0], Y: tune.Controller.Pos[1]}
	for i := 0; i < tune.Fleet.InitialDrones; i++ {
		w.SpawnDrone(tune.Fleet.UnitType, world.Vec2{X: base.X + float64(i*2), Y: base.Y})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
