package world

import (
	"fmt"

	"mudcore.ai/internal/sim/sublocation"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// Move places id inside dest at sublocation sub, firing the leave hooks on
// the old environment and the enter hooks on the new one. An empty dest
// detaches id from its environment.
//
// A linked container is a doorway: moving something into it puts it into
// the room it is linked to.
func (w *World) Move(id, dest, sub string) error {
	e := w.Entity(id)
	if e == nil {
		return fmt.Errorf("move %q: %w", id, ErrUnknownEntity)
	}

	var to *model.Entity
	if dest != "" {
		to = w.Entity(dest)
		if to == nil {
			return fmt.Errorf("move to %q: %w", dest, ErrUnknownEntity)
		}
		if room := w.Entity(to.LinkedRoom); room != nil {
			to = room
		}
		if w.within(to, e) {
			return fmt.Errorf("move %s into %s: %w", e.ID, to.ID, ErrCycle)
		}
		if !to.Sublocations.Has(sub) {
			return fmt.Errorf("move %s into %s %q: %w", e.ID, to.ID, sub, ErrNoSublocation)
		}
	} else if sub != "" {
		return fmt.Errorf("move %s: sublocation %q without destination: %w", e.ID, sub, ErrNoSublocation)
	}

	from := w.Entity(e.Parent)
	if to != nil && from != nil && from.ID == to.ID {
		if e.Sub != sub {
			old := e.Sub
			e.Sub = sub
			w.audit(AuditEntry{Action: AuditMove, Entity: e.ID, From: from.ID, To: to.ID, Sublocation: sub, Old: old})
		}
		return nil
	}
	if to == nil && from == nil {
		return nil
	}
	if to != nil {
		if err := w.checkCapacity(to, e); err != nil {
			return err
		}
	}

	oldSub := e.Sub
	w.detach(e, from)
	if to != nil {
		e.Parent = to.ID
		e.Sub = sub
		to.AddChild(e.ID)
		w.eng.OnChildEnter(to, e)
		w.eng.OnEnvironmentEnter(e, to)
	}

	entry := AuditEntry{Action: AuditMove, Entity: e.ID, Sublocation: sub}
	if from != nil {
		entry.From = from.ID
	}
	if oldSub != "" {
		entry.Old = oldSub
	}
	if to != nil {
		entry.To = to.ID
	}
	w.audit(entry)
	return nil
}

func (w *World) detach(e, from *model.Entity) {
	if from != nil {
		w.eng.OnChildLeave(from, e)
		w.eng.OnEnvironmentLeave(e, from)
		from.RemoveChild(e.ID)
	}
	e.Parent = ""
	e.Sub = ""
}

// within reports whether c is e or sits anywhere beneath e, following both
// containment and room links.
func (w *World) within(c, e *model.Entity) bool {
	seen := map[string]bool{}
	var walk func(x *model.Entity) bool
	walk = func(x *model.Entity) bool {
		if x == nil || seen[x.ID] {
			return false
		}
		if x.ID == e.ID {
			return true
		}
		seen[x.ID] = true
		if walk(w.Entity(x.Parent)) {
			return true
		}
		for _, id := range x.LinkedFrom {
			if walk(w.Entity(id)) {
				return true
			}
		}
		return false
	}
	return walk(c)
}

// checkCapacity applies the destination's max_weight and max_volume to
// what e would add. Zero limits are unlimited.
func (w *World) checkCapacity(to, e *model.Entity) error {
	add := w.eng.Contribution(e)
	if max := to.MaxWeight(); max > 0 && to.Cache.Weight+add.Weight > max {
		return fmt.Errorf("move %s into %s: weight %d over %d: %w", e.ID, to.ID, to.Cache.Weight+add.Weight, max, ErrCapacity)
	}
	if max := to.MaxVolume(); max > 0 && to.Cache.Volume+add.Volume > max {
		return fmt.Errorf("move %s into %s: volume %d over %d: %w", e.ID, to.ID, to.Cache.Volume+add.Volume, max, ErrCapacity)
	}
	return nil
}

// Destroy removes id from the world. It must be empty; containers linked
// to it fall back to their own interior, and sublocations anchored to it
// become invalid the next time they are rendered.
func (w *World) Destroy(id string) error {
	e := w.Entity(id)
	if e == nil {
		return fmt.Errorf("destroy %q: %w", id, ErrUnknownEntity)
	}
	if len(e.Children) > 0 {
		return fmt.Errorf("destroy %s: %w", id, ErrOccupied)
	}
	for _, lid := range append([]string(nil), e.LinkedFrom...) {
		w.eng.Unlink(w.Entity(lid))
	}
	w.eng.Unlink(e)
	from := w.Entity(e.Parent)
	w.detach(e, from)
	delete(w.entities, id)

	entry := AuditEntry{Action: AuditDestroy, Entity: id}
	if from != nil {
		entry.From = from.ID
	}
	w.audit(entry)
	return nil
}

// Link turns id into a doorway onto room.
func (w *World) Link(id, room string) error {
	e := w.Entity(id)
	if e == nil {
		return fmt.Errorf("link %q: %w", id, ErrUnknownEntity)
	}
	r := w.Entity(room)
	if r == nil {
		return fmt.Errorf("link to %q: %w", room, ErrUnknownEntity)
	}
	if w.within(e, r) || w.within(r, e) {
		return fmt.Errorf("link %s to %s: %w", id, room, ErrCycle)
	}
	w.eng.Link(e, r)
	w.audit(AuditEntry{Action: AuditLink, Entity: id, To: room})
	return nil
}

func (w *World) Unlink(id string) error {
	e := w.Entity(id)
	if e == nil {
		return fmt.Errorf("unlink %q: %w", id, ErrUnknownEntity)
	}
	if !e.IsLinked() {
		return nil
	}
	room := e.LinkedRoom
	w.eng.Unlink(e)
	w.audit(AuditEntry{Action: AuditUnlink, Entity: id, From: room})
	return nil
}

// MoveBy is Move on behalf of actor: the describers of the sublocation id
// leaves and the one it enters must allow actor to get and to put.
func (w *World) MoveBy(actor, id, dest, sub string) error {
	e := w.Entity(id)
	if e == nil {
		return fmt.Errorf("move %q: %w", id, ErrUnknownEntity)
	}
	if e.Parent != "" {
		acc, err := w.CheckAccess(e.Parent, e.Sub, sublocation.AccessGet, actor)
		if err != nil {
			return err
		}
		if !acc.Allowed {
			return denied(acc)
		}
	}
	// Unknown destinations are left to Move to report. A doorway is checked
	// against the room it leads into.
	if d := w.Entity(dest); d != nil {
		if r := w.Entity(d.LinkedRoom); r != nil {
			d = r
		}
		if !d.Sublocations.Has(sub) {
			return w.Move(id, dest, sub)
		}
		acc, err := w.CheckAccess(d.ID, sub, sublocation.AccessPut, actor)
		if err != nil {
			return err
		}
		if !acc.Allowed {
			return denied(acc)
		}
	}
	return w.Move(id, dest, sub)
}

func denied(acc sublocation.Access) error {
	if acc.Reason == "" {
		return ErrNoPermission
	}
	return fmt.Errorf("%w: %s", ErrNoPermission, acc.Reason)
}
