package world

import (
	"path/filepath"
	"testing"

	"mudcore.ai/internal/sim/aggregate"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/world/kernel/model"
)

func newTestWorld(t *testing.T, cfg WorldConfig) *World {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if cfg.ID == "" {
		cfg.ID = "test"
	}
	if cfg.TickRateHz == 0 {
		cfg.TickRateHz = 5
	}
	w, err := New(cfg, cats, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func spawn(t *testing.T, w *World, kind string) *model.Entity {
	t.Helper()
	e, err := w.Spawn(kind)
	if err != nil {
		t.Fatalf("spawn %s: %v", kind, err)
	}
	return e
}

func move(t *testing.T, w *World, e, dest *model.Entity, sub string) {
	t.Helper()
	to := ""
	if dest != nil {
		to = dest.ID
	}
	if err := w.Move(e.ID, to, sub); err != nil {
		t.Fatalf("move %s -> %s %q: %v", e.ID, to, sub, err)
	}
}

func mustVerify(t *testing.T, w *World, step string) {
	t.Helper()
	if drift := w.Verify(); len(drift) != 0 {
		t.Fatalf("%s: drift %+v", step, drift)
	}
}

func agg(l, wt, v int64) model.Aggregate {
	return model.Aggregate{Light: l, Weight: wt, Volume: v}
}

type auditSink struct {
	entries []AuditEntry
}

func (a *auditSink) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditSink) actions() map[string]int {
	out := map[string]int{}
	for _, e := range a.entries {
		out[e.Action]++
	}
	return out
}

type driftSink struct {
	ticks []uint64
	drift [][]aggregate.Drift
}

func (d *driftSink) RecordDrift(tick uint64, drift []aggregate.Drift) {
	d.ticks = append(d.ticks, tick)
	d.drift = append(d.drift, drift)
}
