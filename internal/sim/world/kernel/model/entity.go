package model

import (
	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/sublocation"
)

// Aggregate is one light/weight/volume triple: a cache, a delta, or a
// contribution as seen from the environment.
type Aggregate struct {
	Light  int64 `json:"light"`
	Weight int64 `json:"weight"`
	Volume int64 `json:"volume"`
}

func (a Aggregate) Add(b Aggregate) Aggregate {
	return Aggregate{Light: a.Light + b.Light, Weight: a.Weight + b.Weight, Volume: a.Volume + b.Volume}
}

func (a Aggregate) Sub(b Aggregate) Aggregate {
	return Aggregate{Light: a.Light - b.Light, Weight: a.Weight - b.Weight, Volume: a.Volume - b.Volume}
}

func (a Aggregate) Neg() Aggregate { return Aggregate{Light: -a.Light, Weight: -a.Weight, Volume: -a.Volume} }

func (a Aggregate) IsZero() bool { return a.Light == 0 && a.Weight == 0 && a.Volume == 0 }

// Raw holds the write capabilities for the computed light/weight/volume
// keys. The bases are the entity's own contribution, independent of
// anything it holds.
type Raw struct {
	Light  *props.Slot
	Weight *props.Slot
	Volume *props.Slot
}

func baseOf(s *props.Slot) int64 {
	if s == nil {
		return 0
	}
	return s.Base()
}

// Entity is anything that can sit in the containment graph. Every entity
// can hold others; rooms, bags, tables and bodies differ only in flags.
//
// Parent, Children, LinkedRoom and LinkedFrom are IDs, never pointers:
// the parent does not own the child and the graph is resolved through the
// world's arena.
type Entity struct {
	ID    string
	Kind  string
	Props *props.Table
	Raw   Raw

	Parent   string
	Children []string
	// Sub is the sublocation this entity occupies within Parent.
	Sub string

	// Cache is the running total contributed by everything beneath this
	// entity. It never includes the entity's own raw values.
	Cache Aggregate

	Sublocations *sublocation.Registry

	LinkedRoom string
	LinkedFrom []string
}

func New(id, kind string) *Entity {
	return &Entity{
		ID:           id,
		Kind:         kind,
		Props:        props.NewTable(),
		Sublocations: sublocation.NewRegistry(),
	}
}

func (e *Entity) EntityID() string            { return e.ID }
func (e *Entity) Sublocation() string         { return e.Sub }
func (e *Entity) SetSublocation(name string)  { e.Sub = name }
func (e *Entity) RawLight() int64             { return baseOf(e.Raw.Light) }
func (e *Entity) SelfWeight() int64           { return baseOf(e.Raw.Weight) }
func (e *Entity) SelfVolume() int64           { return baseOf(e.Raw.Volume) }
func (e *Entity) MaxWeight() int64            { return e.Props.Int(props.MaxWeight) }
func (e *Entity) MaxVolume() int64            { return e.Props.Int(props.MaxVolume) }
func (e *Entity) Rigid() bool                 { return e.Props.Bool(props.Rigid) }
func (e *Entity) Closed() bool                { return e.Props.Bool(props.Closed) }
func (e *Entity) Transparent() bool           { return e.Props.Bool(props.Transparent) }
func (e *Entity) Attached() bool              { return e.Props.Bool(props.Attached) }
func (e *Entity) ReduceWeightPct() int64      { return ClampPct(e.Props.Int(props.ReduceWeightPct)) }
func (e *Entity) ReduceVolumePct() int64      { return ClampPct(e.Props.Int(props.ReduceVolumePct)) }
func (e *Entity) HasParent() bool             { return e.Parent != "" }
func (e *Entity) IsLinked() bool              { return e.LinkedRoom != "" }
func (e *Entity) HasChild(id string) bool     { return indexOf(e.Children, id) >= 0 }
func (e *Entity) IsLinkedFrom(id string) bool { return indexOf(e.LinkedFrom, id) >= 0 }
func (e *Entity) AddLinkedFrom(id string)     { e.LinkedFrom = addUnique(e.LinkedFrom, id) }
func (e *Entity) RemoveLinkedFrom(id string)  { e.LinkedFrom = remove(e.LinkedFrom, id) }
func (e *Entity) AddChild(id string)          { e.Children = addUnique(e.Children, id) }
func (e *Entity) RemoveChild(id string)       { e.Children = remove(e.Children, id) }

// ShortDesc is the name used when the entity is listed.
func (e *Entity) ShortDesc() string {
	if s := e.Props.String(props.Short); s != "" {
		return s
	}
	if s := e.Props.String(props.Name); s != "" {
		return s
	}
	return e.Kind
}

// ClampPct maps a missing or zero reduction percentage to 100.
func ClampPct(p int64) int64 {
	if p <= 0 {
		return 100
	}
	return p
}

func indexOf(xs []string, id string) int {
	for i, x := range xs {
		if x == id {
			return i
		}
	}
	return -1
}

func addUnique(xs []string, id string) []string {
	if indexOf(xs, id) >= 0 {
		return xs
	}
	return append(xs, id)
}

func remove(xs []string, id string) []string {
	i := indexOf(xs, id)
	if i < 0 {
		return xs
	}
	return append(xs[:i], xs[i+1:]...)
}
