package world

import (
	"fmt"

	"mudcore.ai/internal/sim/sublocation"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// holder is the sublocation.Container view of an entity.
type holder struct {
	w *World
	e *model.Entity
}

func (h holder) EntityID() string  { return h.e.ID }
func (h holder) ShortDesc() string { return h.e.ShortDesc() }
func (h holder) Closed() bool      { return h.e.Closed() }
func (h holder) Attached() bool    { return h.e.Attached() }

func (h holder) Occupants() []sublocation.Occupant {
	out := make([]sublocation.Occupant, 0, len(h.e.Children))
	for _, id := range h.e.Children {
		if c := h.w.Entity(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Ref names a viewer or actor that need not be an entity in this world,
// such as a remote client.
type Ref string

func (r Ref) EntityID() string { return string(r) }

func (w *World) ref(id string) sublocation.Entity {
	if id == "" {
		return nil
	}
	if e := w.Entity(id); e != nil {
		return e
	}
	return Ref(id)
}

func (w *World) holder(id string) (holder, error) {
	e := w.Entity(id)
	if e == nil {
		return holder{}, fmt.Errorf("%q: %w", id, ErrUnknownEntity)
	}
	return holder{w: w, e: e}, nil
}

// AddSublocation registers (or replaces) a named sublocation on id.
func (w *World) AddSublocation(id, name string, spec sublocation.Spec, tags ...string) error {
	h, err := w.holder(id)
	if err != nil {
		return err
	}
	d, err := sublocation.Build(spec, w)
	if err != nil {
		return fmt.Errorf("add sublocation %q to %s: %w", name, id, err)
	}
	h.e.Sublocations.Add(name, d, tags...)
	w.audit(AuditEntry{Action: AuditSubAdd, Entity: id, Sublocation: name, New: spec.Kind})
	return nil
}

// RemoveSublocation unregisters name from id. Occupants of name fall back
// to the default sublocation; the aggregates are untouched since nothing
// leaves the container.
func (w *World) RemoveSublocation(id, name string) error {
	h, err := w.holder(id)
	if err != nil {
		return err
	}
	occ := sublocation.OccupantsOf(h.Occupants(), name)
	if !h.e.Sublocations.Remove(name, occ) {
		return fmt.Errorf("remove %q from %s: %w", name, id, ErrNoSublocation)
	}
	w.audit(AuditEntry{Action: AuditSubRemove, Entity: id, Sublocation: name})
	return nil
}

// Occupants lists the IDs of the entities in id's sublocation name.
func (w *World) Occupants(id, name string) ([]string, error) {
	h, err := w.holder(id)
	if err != nil {
		return nil, err
	}
	if !h.e.Sublocations.Has(name) {
		return nil, fmt.Errorf("%s %q: %w", id, name, ErrNoSublocation)
	}
	var out []string
	for _, o := range sublocation.OccupantsOf(h.Occupants(), name) {
		out = append(out, o.EntityID())
	}
	return out, nil
}

// SublocationsByTag lists id's sublocations carrying tag.
func (w *World) SublocationsByTag(id, tag string) ([]string, error) {
	h, err := w.holder(id)
	if err != nil {
		return nil, err
	}
	return h.e.Sublocations.ByTag(tag), nil
}

// Render describes id's sublocations as seen by viewer. With no names,
// every registered sublocation is rendered in registration order.
// Sublocations whose describer reports them invalid are dropped and audited.
func (w *World) Render(id, viewer string, names ...string) ([]sublocation.Section, error) {
	h, err := w.holder(id)
	if err != nil {
		return nil, err
	}
	secs, removed := h.e.Sublocations.Render(h, w.ref(viewer), names...)
	for _, name := range removed {
		w.audit(AuditEntry{Action: AuditSubRemove, Entity: id, Sublocation: name})
	}
	return secs, nil
}

// CheckAccess asks the describer of id's sublocation name whether actor
// may look into, put into or take from it.
func (w *World) CheckAccess(id, name string, kind sublocation.AccessKind, actor string) (sublocation.Access, error) {
	h, err := w.holder(id)
	if err != nil {
		return sublocation.Deny, err
	}
	return h.e.Sublocations.CheckAccess(h, name, kind, w.ref(actor)), nil
}
