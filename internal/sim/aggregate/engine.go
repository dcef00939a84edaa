// Package aggregate keeps the light, weight and volume totals of every
// container correct as things move in and out of it and as flags change.
//
// Totals are maintained incrementally. Each container caches what its
// children contribute; a change is applied to the container's cache and
// the resulting change in the container's own contribution is forwarded to
// its environment, one level at a time, until nothing changes.
//
// The engine assumes the containment graph is acyclic and that a single
// caller mutates a subtree at a time. It takes no locks.
package aggregate

import (
	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// Graph resolves entity IDs. Unknown IDs resolve to nil.
type Graph interface {
	Entity(id string) *model.Entity
}

type Engine struct {
	g Graph
}

func New(g Graph) *Engine { return &Engine{g: g} }

// Install registers light, weight and volume as computed keys on e, seeded
// with e's own raw values. It must run before e.Props is locked.
func (en *Engine) Install(e *model.Entity, base model.Aggregate) error {
	via := getter{en: en, e: e}
	var err error
	if e.Raw.Light, err = e.Props.Compute(props.Light, base.Light, via); err != nil {
		return err
	}
	if e.Raw.Weight, err = e.Props.Compute(props.Weight, base.Weight, via); err != nil {
		return err
	}
	if e.Raw.Volume, err = e.Props.Compute(props.Volume, base.Volume, via); err != nil {
		return err
	}
	return nil
}

type getter struct {
	en *Engine
	e  *model.Entity
}

func (g getter) Compute(key props.Key, _ int64) int64 {
	switch key {
	case props.Light:
		return g.en.Light(g.e)
	case props.Weight:
		return g.en.Weight(g.e)
	case props.Volume:
		return g.en.Volume(g.e)
	}
	return 0
}

// ApplyDelta adds d to c's cache and forwards the change in c's
// contribution to c's environment. A zero delta is a no-op.
func (en *Engine) ApplyDelta(c *model.Entity, d model.Aggregate) {
	if c == nil || d.IsZero() {
		return
	}
	outlets := en.outlets(c)
	before := make([]model.Aggregate, len(outlets))
	for i, o := range outlets {
		before[i] = en.Contribution(o)
	}

	c.Cache = c.Cache.Add(d)

	for i, o := range outlets {
		out := en.Contribution(o).Sub(before[i])
		if out.IsZero() {
			continue
		}
		en.ApplyDelta(en.g.Entity(o.Parent), out)
	}
}

// outlets lists the entities whose contribution reads c's cache and that
// have an environment to report to: c itself unless its cache is shadowed
// by a linked room, plus every container linked to c as its room.
func (en *Engine) outlets(c *model.Entity) []*model.Entity {
	var out []*model.Entity
	if c.HasParent() && en.room(c) == nil {
		out = append(out, c)
	}
	for _, id := range c.LinkedFrom {
		l := en.g.Entity(id)
		if l == nil || !l.HasParent() || l.LinkedRoom != c.ID {
			continue
		}
		out = append(out, l)
	}
	return out
}

// OnChildEnter adds child's full totals to container.
func (en *Engine) OnChildEnter(container, child *model.Entity) {
	if child == nil {
		return
	}
	en.ApplyDelta(container, en.Totals(child))
}

// OnChildLeave removes child's full totals from container.
func (en *Engine) OnChildLeave(container, child *model.Entity) {
	if child == nil {
		return
	}
	en.ApplyDelta(container, en.Totals(child).Neg())
}

// OnEnvironmentEnter applies c's own reduction scaling to its new
// environment. Together with OnChildEnter it adds exactly Contribution(c).
func (en *Engine) OnEnvironmentEnter(c, newParent *model.Entity) {
	if c == nil {
		return
	}
	en.ApplyDelta(newParent, en.scaling(c))
}

// OnEnvironmentLeave undoes the scaling OnEnvironmentEnter applied.
func (en *Engine) OnEnvironmentLeave(c, oldParent *model.Entity) {
	if c == nil {
		return
	}
	en.ApplyDelta(oldParent, en.scaling(c).Neg())
}

// scaling is the part of c's contribution that comes from c's reduction
// percentages: scaled total minus unscaled total. Light has none and a
// rigid container's volume is never scaled.
func (en *Engine) scaling(c *model.Entity) model.Aggregate {
	v := en.view(c)
	return v.contribution().Sub(v.totals())
}

// OnPropertyChanged reacts to a property write on child, whose immediate
// environment is container. Keys outside the tracked set are ignored.
//
// Raw light/weight/volume writes forward the plain (scaled) difference.
// Flag writes forward a toggle correction: closed/transparent/attached
// flips move child's whole interior light in or out of container, rigid
// swaps between capacity and fill volume, and a reduction change rescales
// the total already reported.
func (en *Engine) OnPropertyChanged(container, child *model.Entity, key props.Key, newValue, oldValue any) {
	if container == nil || child == nil || !Tracked(key) {
		return
	}
	before := en.view(child)
	before.set(key, oldValue)
	after := en.view(child)
	after.set(key, newValue)
	en.ApplyDelta(container, after.contribution().Sub(before.contribution()))
}

// Tracked reports whether writes to key can change an entity's
// contribution to its environment.
func Tracked(key props.Key) bool {
	switch key {
	case props.Light, props.Weight, props.Volume,
		props.Closed, props.Transparent, props.Attached,
		props.Rigid, props.MaxVolume,
		props.ReduceWeightPct, props.ReduceVolumePct:
		return true
	}
	return false
}

// Link redirects c's interior to room. The difference in c's contribution
// is forwarded to c's environment, and from then on deltas applied to
// room flow out through c.
func (en *Engine) Link(c, room *model.Entity) {
	if c == nil || room == nil || c.ID == room.ID {
		return
	}
	before := en.Contribution(c)
	if old := en.g.Entity(c.LinkedRoom); old != nil {
		old.RemoveLinkedFrom(c.ID)
	}
	c.LinkedRoom = room.ID
	room.AddLinkedFrom(c.ID)
	en.forward(c, before)
}

// Unlink restores c's own interior.
func (en *Engine) Unlink(c *model.Entity) {
	if c == nil || c.LinkedRoom == "" {
		return
	}
	before := en.Contribution(c)
	if room := en.g.Entity(c.LinkedRoom); room != nil {
		room.RemoveLinkedFrom(c.ID)
	}
	c.LinkedRoom = ""
	en.forward(c, before)
}

func (en *Engine) forward(c *model.Entity, before model.Aggregate) {
	if !c.HasParent() {
		return
	}
	en.ApplyDelta(en.g.Entity(c.Parent), en.Contribution(c).Sub(before))
}

func (en *Engine) room(c *model.Entity) *model.Entity {
	if c.LinkedRoom == "" {
		return nil
	}
	return en.g.Entity(c.LinkedRoom)
}
