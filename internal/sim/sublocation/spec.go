package sublocation

import (
	"errors"
	"fmt"
	"sort"
)

// ErrBadSpec reports a persisted or requested describer that cannot be built.
var ErrBadSpec = errors.New("bad sublocation spec")

// Spec is the persisted form of a describer.
type Spec struct {
	Kind   string            `json:"kind,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

const (
	KindDefault  = ""
	KindSurface  = "surface"
	KindWorn     = "worn"
	KindGated    = "gated_open"
	KindAnchored = "anchored"
)

// SpecOf returns the persisted form of d, or false if d is not one of the
// describers Build knows how to recreate.
func SpecOf(d Describer) (Spec, bool) {
	switch v := d.(type) {
	case nil:
		return Spec{}, true
	case Generic:
		return Spec{}, true
	case Surface:
		if v.Preposition == "" {
			return Spec{Kind: KindSurface}, true
		}
		return Spec{Kind: KindSurface, Params: map[string]string{"preposition": v.Preposition}}, true
	case Worn:
		return Spec{Kind: KindWorn}, true
	case Gated:
		if _, ok := v.When.(Open); !ok || v.Inner != nil {
			return Spec{}, false
		}
		if v.Reason == "" {
			return Spec{Kind: KindGated}, true
		}
		return Spec{Kind: KindGated, Params: map[string]string{"reason": v.Reason}}, true
	case Anchored:
		if v.Inner != nil {
			return Spec{}, false
		}
		return Spec{Kind: KindAnchored, Params: map[string]string{"anchor": v.Anchor}}, true
	}
	return Spec{}, false
}

// Build recreates a describer from its persisted form. A nil describer
// (with no error) means the generic one.
func Build(s Spec, anchors AnchorCheck) (Describer, error) {
	switch s.Kind {
	case KindDefault, "default":
		return nil, nil
	case KindSurface:
		return Surface{Preposition: s.Params["preposition"]}, nil
	case KindWorn:
		return Worn{}, nil
	case KindGated:
		return Gated{When: Open{}, Reason: s.Params["reason"]}, nil
	case KindAnchored:
		anchor := s.Params["anchor"]
		if anchor == "" {
			return nil, fmt.Errorf("anchored sublocation: missing anchor: %w", ErrBadSpec)
		}
		return Anchored{Anchor: anchor, Anchors: anchors}, nil
	}
	return nil, fmt.Errorf("unknown sublocation kind %q: %w", s.Kind, ErrBadSpec)
}

// Entry is one registered sublocation in persisted form.
type Entry struct {
	Name string
	Spec Spec
	Tags []string
}

// Export lists the registry in registration order. Names whose describer
// cannot be persisted are left out and reported in dropped.
func (r *Registry) Export() (out []Entry, dropped []string) {
	for _, name := range r.order {
		e := r.by[name]
		spec, ok := SpecOf(e.describer)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		out = append(out, Entry{Name: name, Spec: spec, Tags: append([]string(nil), e.tags...)})
	}
	sort.Strings(dropped)
	return out, dropped
}

// Import registers entries into r.
func (r *Registry) Import(entries []Entry, anchors AnchorCheck) error {
	for _, e := range entries {
		d, err := Build(e.Spec, anchors)
		if err != nil {
			return fmt.Errorf("sublocation %q: %w", e.Name, err)
		}
		r.Add(e.Name, d, e.Tags...)
	}
	return nil
}
