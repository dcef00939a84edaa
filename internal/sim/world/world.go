package world

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/aggregate"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// World owns the containment graph.
// All state must be accessed only from the world loop goroutine; other
// goroutines go through Do.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      *log.Logger

	entities map[string]*model.Entity
	eng      *aggregate.Engine

	tick       atomic.Uint64
	nextEntity uint64

	reqs     chan request
	stop     chan struct{}
	stopOnce sync.Once

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	auditLogger   AuditLogger
	driftRecorder DriftRecorder

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, logger *log.Logger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0, got %d", cfg.TickRateHz)
	}
	if cats == nil {
		return nil, fmt.Errorf("catalogs required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	w := &World{
		cfg:        cfg,
		catalogs:   cats,
		log:        logger,
		entities:   map[string]*model.Entity{},
		reqs:       make(chan request, 256),
		stop:       make(chan struct{}),
		nextEntity: 1,
	}
	w.eng = aggregate.New(w)
	return w, nil
}

func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetDriftRecorder(r DriftRecorder)              { w.driftRecorder = r }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) Config() WorldConfig { return w.cfg }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Kinds lists the catalog kinds Spawn accepts.
func (w *World) Kinds() []string { return w.catalogs.Entities.Kinds }

// Engine exposes the aggregation engine for read-only queries.
func (w *World) Engine() *aggregate.Engine { return w.eng }

// Entity resolves id in the arena. Unknown IDs resolve to nil.
func (w *World) Entity(id string) *model.Entity {
	if id == "" {
		return nil
	}
	return w.entities[id]
}

// Exists reports whether id is a live entity. Anchored sublocations use it
// to notice when their anchor has been destroyed.
func (w *World) Exists(id string) bool {
	_, ok := w.entities[id]
	return ok
}

// IDs lists every live entity in a stable order.
func (w *World) IDs() []string {
	out := make([]string, 0, len(w.entities))
	for id := range w.entities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i], out[j]) })
	return out
}

func (w *World) newEntityID() string {
	n := w.nextEntity
	w.nextEntity++
	return "OBJ" + strconv.FormatUint(n, 10)
}

// lessID orders OBJ2 before OBJ10; other IDs sort lexically.
func lessID(a, b string) bool {
	na, oka := entityNum(a)
	nb, okb := entityNum(b)
	if oka && okb {
		return na < nb
	}
	if oka != okb {
		return oka
	}
	return a < b
}

func entityNum(id string) (uint64, bool) {
	if len(id) < 4 || id[:3] != "OBJ" {
		return 0, false
	}
	n, err := strconv.ParseUint(id[3:], 10, 64)
	return n, err == nil
}

func (w *World) audit(entry AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	entry.Tick = w.CurrentTick()
	if err := w.auditLogger.WriteAudit(entry); err != nil {
		w.log.Printf("audit write: %v", err)
	}
}
