package world

import (
	"fmt"

	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// SetProperty writes a stored property and tells id's environment about
// it. Light, weight and volume are computed and rejected with
// props.ErrComputed; use SetRaw for those.
func (w *World) SetProperty(id string, key props.Key, v any) error {
	e := w.Entity(id)
	if e == nil {
		return fmt.Errorf("set %s on %q: %w", key, id, ErrUnknownEntity)
	}
	v = normalize(key, v)
	old, err := e.Props.Set(key, v)
	if err != nil {
		return err
	}
	w.changed(e, key, v, old)
	return nil
}

// SetRaw changes the raw base of a computed key: the entity's own light,
// weight or volume before anything it holds is added.
func (w *World) SetRaw(id string, key props.Key, v int64) error {
	e := w.Entity(id)
	if e == nil {
		return fmt.Errorf("set raw %s on %q: %w", key, id, ErrUnknownEntity)
	}
	slot := rawSlot(e, key)
	if slot == nil {
		return fmt.Errorf("set raw %s: %w", key, ErrNotComputed)
	}
	old := slot.Rebase(v)
	w.changed(e, key, v, old)
	return nil
}

func (w *World) changed(e *model.Entity, key props.Key, v, old any) {
	if p := w.Entity(e.Parent); p != nil {
		w.eng.OnPropertyChanged(p, e, key, v, old)
	}
	w.audit(AuditEntry{Action: AuditSet, Entity: e.ID, Key: string(key), Old: old, New: v})
}

func rawSlot(e *model.Entity, key props.Key) *props.Slot {
	switch key {
	case props.Light:
		return e.Raw.Light
	case props.Weight:
		return e.Raw.Weight
	case props.Volume:
		return e.Raw.Volume
	}
	return nil
}

// normalize gives known keys their canonical type: flags become Tri and
// numbers become int64, whatever shape the caller used.
func normalize(key props.Key, v any) any {
	switch key {
	case props.Rigid, props.Closed, props.Transparent, props.Attached:
		return props.AsTri(v)
	case props.MaxWeight, props.MaxVolume, props.ReduceWeightPct, props.ReduceVolumePct:
		return props.AsInt(v)
	}
	switch x := v.(type) {
	case bool:
		return props.TriOf(x)
	case float64:
		return int64(x)
	case int:
		return int64(x)
	}
	return v
}
