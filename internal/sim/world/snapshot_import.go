package world

import (
	"fmt"

	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/sublocation"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
// Stored caches are trusted only after a verify pass; on drift they are
// rebuilt and the drift is returned.
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) ([]string, error) {
	if s.Header.Version != 1 {
		return nil, fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.CatalogDigest != "" && s.CatalogDigest != w.catalogs.Entities.Digest {
		w.log.Printf("snapshot catalog digest %s differs from loaded catalog %s", short(s.CatalogDigest), short(w.catalogs.Entities.Digest))
	}

	// Operational parameters: snapshot is authoritative when present.
	if s.VerifyEveryTicks > 0 {
		w.cfg.VerifyEveryTicks = s.VerifyEveryTicks
	}
	if s.SnapshotEveryTicks > 0 {
		w.cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}

	entities := make(map[string]*model.Entity, len(s.Entities))
	for _, ev := range s.Entities {
		if _, dup := entities[ev.ID]; dup {
			return nil, fmt.Errorf("snapshot: duplicate entity %s", ev.ID)
		}
		e, err := w.importEntity(ev)
		if err != nil {
			return nil, fmt.Errorf("snapshot: entity %s: %w", ev.ID, err)
		}
		entities[ev.ID] = e
	}
	for _, e := range entities {
		if e.Parent != "" {
			p, ok := entities[e.Parent]
			if !ok || !p.HasChild(e.ID) {
				return nil, fmt.Errorf("snapshot: entity %s: parent %s does not hold it", e.ID, e.Parent)
			}
		}
		for _, c := range e.Children {
			if ce, ok := entities[c]; !ok || ce.Parent != e.ID {
				return nil, fmt.Errorf("snapshot: entity %s: child %s is not beneath it", e.ID, c)
			}
		}
		if e.LinkedRoom != "" {
			if _, ok := entities[e.LinkedRoom]; !ok {
				return nil, fmt.Errorf("snapshot: entity %s: linked room %s missing", e.ID, e.LinkedRoom)
			}
		}
	}

	// LinkedFrom follows from the LinkedRoom fields; a stored list that
	// disagrees would stop room deltas from reaching the doorway.
	linkedFrom := map[string][]string{}
	for _, ev := range s.Entities {
		if ev.LinkedRoom != "" {
			linkedFrom[ev.LinkedRoom] = append(linkedFrom[ev.LinkedRoom], ev.ID)
		}
	}
	for _, ev := range s.Entities {
		e := entities[ev.ID]
		if want := linkedFrom[ev.ID]; !sameMembers(e.LinkedFrom, want) {
			w.log.Printf("snapshot: entity %s: linked from %v, rebuilt as %v", e.ID, e.LinkedFrom, want)
			e.LinkedFrom = want
		}
	}

	w.entities = entities
	w.nextEntity = s.Counters.NextEntity
	if w.nextEntity == 0 {
		w.nextEntity = 1
	}
	w.tick.Store(s.Header.Tick + 1)

	drift := w.Verify()
	if len(drift) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(drift))
	for _, d := range drift {
		ids = append(ids, d.ID)
	}
	w.log.Printf("snapshot tick %d: %d stale caches, rebuilding", s.Header.Tick, len(ids))
	w.Rebuild()
	return ids, nil
}

func (w *World) importEntity(ev snapshot.EntityV1) (*model.Entity, error) {
	e := model.New(ev.ID, ev.Kind)
	for k, v := range ev.Ints {
		_, _ = e.Props.Set(props.Key(k), v)
	}
	for k, v := range ev.Flags {
		_, _ = e.Props.Set(props.Key(k), props.Tri(v))
	}
	for k, v := range ev.Strings {
		_, _ = e.Props.Set(props.Key(k), v)
	}
	base := model.Aggregate{Light: ev.Base[0], Weight: ev.Base[1], Volume: ev.Base[2]}
	if err := w.eng.Install(e, base); err != nil {
		return nil, err
	}
	entries := make([]sublocation.Entry, 0, len(ev.Sublocations))
	for _, s := range ev.Sublocations {
		entries = append(entries, sublocation.Entry{
			Name: s.Name,
			Spec: sublocation.Spec{Kind: s.Kind, Params: s.Params},
			Tags: s.Tags,
		})
	}
	if err := e.Sublocations.Import(entries, w); err != nil {
		return nil, err
	}
	e.Props.Lock()

	e.Parent = ev.Parent
	e.Children = append([]string(nil), ev.Children...)
	e.Sub = ev.Sublocation
	e.Cache = model.Aggregate{Light: ev.Cache[0], Weight: ev.Cache[1], Volume: ev.Cache[2]}
	e.LinkedRoom = ev.LinkedRoom
	e.LinkedFrom = append([]string(nil), ev.LinkedFrom...)
	return e, nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, x := range a {
		if seen[x] {
			return false
		}
		seen[x] = true
	}
	for _, x := range b {
		if !seen[x] {
			return false
		}
	}
	return true
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
