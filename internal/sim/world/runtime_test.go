package world

import (
	"context"
	"testing"
	"time"

	"mudcore.ai/internal/persistence/snapshot"
)

func TestVerifyPassRepairsDrift(t *testing.T) {
	w := newTestWorld(t, WorldConfig{VerifyEveryTicks: 2, RepairDrift: true})
	aud := &auditSink{}
	rec := &driftSink{}
	w.SetAuditLogger(aud)
	w.SetDriftRecorder(rec)
	room := spawn(t, w, "ROOM")
	coin := spawn(t, w, "COIN")
	move(t, w, coin, room, "")

	room.Cache.Weight += 5
	w.StepOnce() // tick 0
	w.StepOnce() // tick 1
	if len(rec.ticks) != 0 {
		t.Fatalf("verify ran early: %v", rec.ticks)
	}
	w.StepOnce() // tick 2
	if len(rec.ticks) != 1 || rec.ticks[0] != 2 {
		t.Fatalf("drift ticks: %v", rec.ticks)
	}
	d := rec.drift[0]
	if len(d) != 1 || d[0].ID != room.ID || d[0].Delta() != agg(0, -5, 0) {
		t.Fatalf("drift: %+v", d)
	}
	if room.Cache != agg(0, 10, 1) {
		t.Fatalf("cache not repaired: %+v", room.Cache)
	}
	got := aud.actions()
	if got[AuditDrift] != 1 || got[AuditRebuild] != 1 {
		t.Fatalf("audit actions: %v", got)
	}
	if w.CurrentTick() != 3 {
		t.Fatalf("tick: %d", w.CurrentTick())
	}
}

func TestVerifyPassReportsWithoutRepair(t *testing.T) {
	w := newTestWorld(t, WorldConfig{VerifyEveryTicks: 1})
	room := spawn(t, w, "ROOM")
	room.Cache.Light = 3

	w.StepOnce()
	w.StepOnce()
	if room.Cache.Light != 3 {
		t.Fatalf("repair disabled but cache changed")
	}
	if len(w.Verify()) != 1 {
		t.Fatalf("drift should persist")
	}
}

func TestSnapshotSinkReceivesPeriodicSnapshot(t *testing.T) {
	w := newTestWorld(t, WorldConfig{SnapshotEveryTicks: 2})
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)
	spawn(t, w, "ROOM")

	for i := 0; i < 3; i++ {
		w.StepOnce()
	}
	select {
	case snap := <-sink:
		if snap.Header.Tick != 2 || len(snap.Entities) != 1 {
			t.Fatalf("snapshot: %+v", snap.Header)
		}
	default:
		t.Fatalf("no snapshot")
	}
}

func TestDoRunsOnLoop(t *testing.T) {
	w := newTestWorld(t, WorldConfig{TickRateHz: 50})
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var id string
	err := w.Do(ctx, func(w *World) error {
		e, err := w.Spawn("COIN")
		if err != nil {
			return err
		}
		id = e.ID
		return nil
	})
	if err != nil || id == "" {
		t.Fatalf("do: %q %v", id, err)
	}
	if _, err := w.RequestSnapshot(ctx); err != nil {
		t.Fatalf("request snapshot: %v", err)
	}
	snap := <-sink
	if len(snap.Entities) != 1 || snap.Entities[0].ID != id {
		t.Fatalf("snapshot entities: %+v", snap.Entities)
	}

	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := w.Do(ctx, func(*World) error { return nil }); err == nil {
		t.Fatalf("do after stop should fail")
	}
}
