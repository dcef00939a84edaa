package world

import (
	"context"
	"errors"

	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// ExportSnapshot captures the whole containment graph at tick.
// It must be called from the world loop goroutine (or while the world is stopped).
func (w *World) ExportSnapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: 1,
			WorldID: w.cfg.ID,
			Tick:    tick,
		},
		TickRate:           w.cfg.TickRateHz,
		VerifyEveryTicks:   w.cfg.VerifyEveryTicks,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		CatalogDigest:      w.catalogs.Entities.Digest,
		Counters:           snapshot.CountersV1{NextEntity: w.nextEntity},
	}
	for _, id := range w.IDs() {
		snap.Entities = append(snap.Entities, w.exportEntity(w.entities[id]))
	}
	return snap
}

func (w *World) exportEntity(e *model.Entity) snapshot.EntityV1 {
	out := snapshot.EntityV1{
		ID:          e.ID,
		Kind:        e.Kind,
		Parent:      e.Parent,
		Children:    append([]string(nil), e.Children...),
		Sublocation: e.Sub,
		Base:        [3]int64{e.RawLight(), e.SelfWeight(), e.SelfVolume()},
		Cache:       triple(e.Cache),
		LinkedRoom:  e.LinkedRoom,
		LinkedFrom:  append([]string(nil), e.LinkedFrom...),
	}
	for k, v := range e.Props.Stored() {
		switch x := v.(type) {
		case props.Tri:
			if out.Flags == nil {
				out.Flags = map[string]int8{}
			}
			out.Flags[string(k)] = int8(x)
		case string:
			if out.Strings == nil {
				out.Strings = map[string]string{}
			}
			out.Strings[string(k)] = x
		default:
			if out.Ints == nil {
				out.Ints = map[string]int64{}
			}
			out.Ints[string(k)] = props.AsInt(x)
		}
	}
	entries, dropped := e.Sublocations.Export()
	for _, s := range entries {
		out.Sublocations = append(out.Sublocations, snapshot.SublocationV1{
			Name:   s.Name,
			Kind:   s.Spec.Kind,
			Params: s.Spec.Params,
			Tags:   s.Tags,
		})
	}
	if len(dropped) > 0 {
		w.log.Printf("snapshot: %s: sublocations not persistable, dropped: %v", e.ID, dropped)
	}
	return out
}

// RequestSnapshot asks the world loop goroutine to hand a snapshot to the
// sink. It is safe to call from other goroutines.
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	err = w.Do(ctx, func(w *World) error {
		tick = w.CurrentTick()
		if tick > 0 {
			tick--
		}
		if w.snapshotSink == nil {
			return errors.New("snapshot sink not configured")
		}
		select {
		case w.snapshotSink <- w.ExportSnapshot(tick):
			return nil
		default:
			return errors.New("snapshot sink backpressure")
		}
	})
	return tick, err
}
