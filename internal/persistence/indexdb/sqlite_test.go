package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/aggregate"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/tuning"
	"mudcore.ai/internal/sim/world"
	"mudcore.ai/internal/sim/world/kernel/model"
)

func TestSQLiteIndex_RecordsSnapshotsDriftAndAudits(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	idx.RecordSnapshot("/snaps/10.snap.zst", snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: 1, WorldID: "w1", Tick: 10},
		CatalogDigest: "abc",
		Entities: []snapshot.EntityV1{
			{ID: "OBJ1", Children: []string{"OBJ2"}},
			{ID: "OBJ2", Parent: "OBJ1", LinkedRoom: "OBJ3"},
			{ID: "OBJ3"},
		},
	})
	idx.RecordDrift(12, []aggregate.Drift{
		{ID: "OBJ1", Cached: model.Aggregate{Weight: 5}, Expected: model.Aggregate{Weight: 7}},
		{ID: "OBJ3", Cached: model.Aggregate{Light: 1}},
	})
	idx.RecordDrift(20, []aggregate.Drift{{ID: "OBJ1", Expected: model.Aggregate{Volume: 2}}})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 11, Action: world.AuditMove, Entity: "OBJ2", To: "OBJ1"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 11, Action: world.AuditSet, Entity: "OBJ2", Key: "closed"})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	snaps, err := r.Snapshots(ctx, 0)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("snapshots: %+v %v", snaps, err)
	}
	if s := snaps[0]; s.Tick != 10 || s.Entities != 3 || s.Containers != 1 || s.Linked != 1 || s.Digest != "abc" {
		t.Fatalf("snapshot row: %+v", s)
	}

	all, err := r.Drift(ctx, "", 0, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("drift: %+v %v", all, err)
	}
	if all[0].Tick != 20 || all[0].Expected.Volume != 2 {
		t.Fatalf("newest first: %+v", all[0])
	}
	one, _ := r.Drift(ctx, "OBJ1", 13, 0)
	if len(one) != 1 || one[0].Tick != 20 {
		t.Fatalf("filtered drift: %+v", one)
	}

	n, err := r.AuditCount(ctx, "OBJ2")
	if err != nil || n != 2 {
		t.Fatalf("audits: %d %v", n, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAudit}

	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})
	s.RecordDrift(2, []aggregate.Drift{{ID: "OBJ1"}})
	s.RecordDrift(2, nil)

	st := s.Stats()
	if st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 || st.DropDriftTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_UpsertCatalogsAndFlush(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	configDir := filepath.Join("..", "..", "..", "configs")
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs(configDir, cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var digest string
	if err := idx.db.QueryRow(`SELECT digest FROM catalogs WHERE name='entities'`).Scan(&digest); err != nil {
		t.Fatalf("query: %v", err)
	}
	if digest != cats.Entities.Digest {
		t.Fatalf("digest %q", digest)
	}

	idx.RecordDrift(5, []aggregate.Drift{{ID: "OBJ9"}})
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM drift`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("drift rows after flush: %d %v", n, err)
	}
}

func TestSQLiteIndex_RecordsSnapshotChecksum(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snapshots", "5.snap.zst")
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 5}}
	if err := snapshot.WriteSnapshot(snapPath, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	want, err := snapshot.Checksum(snapPath)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}

	dbPath := filepath.Join(dir, "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.RecordSnapshot(snapPath, snap)
	idx.RecordSnapshot(filepath.Join(dir, "gone.snap.zst"), snapshot.SnapshotV1{Header: snapshot.Header{Version: 1, Tick: 3}})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	rows, err := r.Snapshots(context.Background(), 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("snapshots: %+v %v", rows, err)
	}
	if rows[0].Tick != 5 || rows[0].Checksum != want {
		t.Fatalf("checksum row: %+v want %s", rows[0], want)
	}
	if rows[1].Checksum != "" {
		t.Fatalf("missing file should index without checksum: %+v", rows[1])
	}
}
