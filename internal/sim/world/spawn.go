package world

import (
	"fmt"

	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/sublocation"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// Spawn creates a free-standing entity of the given catalog kind.
func (w *World) Spawn(kind string) (*model.Entity, error) {
	def, ok := w.catalogs.Entity(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return w.SpawnDef(def)
}

// SpawnDef creates a free-standing entity from def. The new entity has no
// environment; use Move to place it.
func (w *World) SpawnDef(def catalogs.EntityDef) (*model.Entity, error) {
	e := model.New(w.newEntityID(), def.ID)
	if err := w.populate(e, def); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", def.ID, err)
	}
	w.entities[e.ID] = e
	w.audit(AuditEntry{Action: AuditSpawn, Entity: e.ID, New: def.ID})
	return e, nil
}

func (w *World) populate(e *model.Entity, def catalogs.EntityDef) error {
	t := e.Props
	set := func(k props.Key, v any) {
		_, _ = t.Set(k, v)
	}
	if def.Name != "" {
		set(props.Name, def.Name)
	}
	if def.Short != "" {
		set(props.Short, def.Short)
	}
	if def.MaxWeight > 0 {
		set(props.MaxWeight, def.MaxWeight)
	}
	if def.MaxVolume > 0 {
		set(props.MaxVolume, def.MaxVolume)
	}
	for k, b := range map[props.Key]*bool{
		props.Rigid:       def.Rigid,
		props.Closed:      def.Closed,
		props.Transparent: def.Transparent,
		props.Attached:    def.Attached,
	} {
		if b != nil {
			set(k, props.TriOf(*b))
		}
	}
	if def.ReduceWeightPct > 0 {
		set(props.ReduceWeightPct, def.ReduceWeightPct)
	}
	if def.ReduceVolumePct > 0 {
		set(props.ReduceVolumePct, def.ReduceVolumePct)
	}

	base := model.Aggregate{Light: def.Light, Weight: def.Weight, Volume: def.Volume}
	if err := w.eng.Install(e, base); err != nil {
		return err
	}
	for _, s := range def.Sublocations {
		d, err := sublocation.Build(sublocation.Spec{Kind: s.Kind, Params: s.Params}, w)
		if err != nil {
			return fmt.Errorf("sublocation %q: %w", s.Name, err)
		}
		e.Sublocations.Add(s.Name, d, s.Tags...)
	}
	t.Lock()
	return nil
}
