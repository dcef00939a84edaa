package log

import (
	"encoding/json"
	"testing"
	"time"

	"mudcore.ai/internal/sim/aggregate"
	"mudcore.ai/internal/sim/world"
	"mudcore.ai/internal/sim/world/kernel/model"
)

func TestAuditLoggerRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l := NewAuditLogger(dir)
	l.w.now = func() time.Time { return clock }

	if err := l.WriteAudit(world.AuditEntry{Tick: 1, Action: world.AuditMove, Entity: "OBJ2", To: "OBJ1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteAudit(world.AuditEntry{Tick: 2, Action: world.AuditSet, Entity: "OBJ2", Key: "closed", New: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteAudit(world.AuditEntry{Tick: 3, Action: world.AuditDestroy, Entity: "OBJ2"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir+"/audit", "audit")
	if err != nil || len(files) != 2 {
		t.Fatalf("files: %v %v", files, err)
	}
	var ticks []uint64
	for _, f := range files {
		err := ReadJSONL(f, func(line json.RawMessage) error {
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			ticks = append(ticks, e.Tick)
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[2] != 3 {
		t.Fatalf("ticks: %v", ticks)
	}
}

func TestDriftLoggerAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	drift := []aggregate.Drift{{ID: "OBJ1", Cached: model.Aggregate{Weight: 5}, Expected: model.Aggregate{Weight: 10}}}

	for i := 0; i < 2; i++ {
		l := NewDriftLogger(dir)
		l.w.now = func() time.Time { return clock }
		l.RecordDrift(uint64(100+i), drift)
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	files, _ := Files(dir+"/drift", "drift")
	if len(files) != 1 {
		t.Fatalf("files: %v", files)
	}
	var got []DriftLogEntry
	err := ReadJSONL(files[0], func(line json.RawMessage) error {
		var e DriftLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[1].Tick != 101 || got[0].Expected != [3]int64{0, 10, 0} {
		t.Fatalf("entries: %+v", got)
	}
}
