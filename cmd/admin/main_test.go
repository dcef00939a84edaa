package main

import (
	"path/filepath"
	"testing"

	persistlog "mudcore.ai/internal/persistence/log"
	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/world"
)

func loadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func TestRollbackUndoesMovesSinceTick(t *testing.T) {
	worldDir := t.TempDir()
	cats := loadCatalogs(t)
	w, err := world.New(world.WorldConfig{ID: "rb", TickRateHz: 5}, cats, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	aud := persistlog.NewAuditLogger(worldDir)
	w.SetAuditLogger(aud)

	room, _ := w.Spawn("ROOM")
	body, _ := w.Spawn("BODY")
	bag, _ := w.Spawn("BAG")
	cloak, _ := w.Spawn("CLOAK")
	mustMove := func(id, dest, sub string) {
		t.Helper()
		if err := w.Move(id, dest, sub); err != nil {
			t.Fatalf("move %s: %v", id, err)
		}
	}
	mustMove(body.ID, room.ID, "")
	mustMove(bag.ID, room.ID, "")
	mustMove(cloak.ID, body.ID, "worn")
	w.StepOnce()
	mustMove(cloak.ID, bag.ID, "")
	w.StepOnce()
	snap := w.ExportSnapshot(1)
	if err := aud.Close(); err != nil {
		t.Fatalf("close audit: %v", err)
	}

	recs, err := readAudit(worldDir, auditFilter{Action: world.AuditMove, Since: 1, To: 1})
	if err != nil || len(recs) != 1 {
		t.Fatalf("audit: %+v %v", recs, err)
	}
	if all, _ := readAudit(worldDir, auditFilter{Entity: cloak.ID}); len(all) != 3 {
		t.Fatalf("cloak entries (spawn + 2 moves): %d", len(all))
	}

	applied, skipped := applyRollback(&snap, recs)
	if applied != 1 || skipped != 0 {
		t.Fatalf("applied=%d skipped=%d", applied, skipped)
	}
	for _, e := range snap.Entities {
		switch e.ID {
		case cloak.ID:
			if e.Parent != body.ID || e.Sublocation != "worn" {
				t.Fatalf("cloak not restored: %+v", e)
			}
		case bag.ID:
			if len(e.Children) != 0 {
				t.Fatalf("bag still holds %v", e.Children)
			}
		}
	}

	// The bag, the body and the room all carry stale caches now.
	stale, err := loadWorld(snap, cats)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(stale) != 3 {
		t.Fatalf("stale: %v", stale)
	}
}

func TestRollbackSkipsEntriesThatNoLongerApply(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, Tick: 9},
		Entities: []snapshot.EntityV1{
			{ID: "OBJ1", Children: []string{"OBJ2"}},
			{ID: "OBJ2", Parent: "OBJ1"},
		},
	}
	recs := []auditRec{
		{Seq: 1, Entry: world.AuditEntry{Tick: 3, Action: world.AuditMove, Entity: "OBJ2", From: "OBJ7", To: "OBJ1"}},
		{Seq: 2, Entry: world.AuditEntry{Tick: 4, Action: world.AuditMove, Entity: "OBJ9", To: "OBJ1"}},
		{Seq: 3, Entry: world.AuditEntry{Tick: 5, Action: world.AuditMove, Entity: "OBJ2", To: "OBJ5"}},
	}
	applied, skipped := applyRollback(&snap, recs)
	if applied != 0 || skipped != 3 {
		t.Fatalf("applied=%d skipped=%d", applied, skipped)
	}
}

func TestSummarize(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w", Tick: 4},
		Entities: []snapshot.EntityV1{
			{ID: "OBJ1", Kind: "ROOM", Children: []string{"OBJ2"}},
			{ID: "OBJ2", Kind: "BAG", Parent: "OBJ1", Children: []string{"OBJ3"}, LinkedRoom: "OBJ4"},
			{ID: "OBJ3", Kind: "COIN", Parent: "OBJ2"},
			{ID: "OBJ4", Kind: "ROOM"},
		},
	}
	s := summarize(snap)
	if s.Entities != 4 || s.Containers != 2 || s.Linked != 1 || s.MaxDepth != 2 {
		t.Fatalf("summary: %+v", s)
	}
	if len(s.Roots) != 2 || s.Kinds["ROOM"] != 2 {
		t.Fatalf("roots/kinds: %+v", s)
	}
}
