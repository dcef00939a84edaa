package sublocation

import (
	"fmt"
	"strings"
)

// Generic is the fallback renderer and access resolver.
type Generic struct{}

func (Generic) Render(name string, c Container, _ Entity) Rendered {
	occ := OccupantsOf(c.Occupants(), name)
	if len(occ) == 0 {
		return Fragment("")
	}
	label := name
	if label == Default {
		if c.Attached() {
			label = "on " + c.ShortDesc()
		} else {
			label = "in " + c.ShortDesc()
		}
	}
	return Fragment(capitalize(label) + ": " + listOccupants(occ) + ".")
}

func (Generic) CheckAccess(_ string, c Container, _ AccessKind, _ Entity) Access {
	if c.Closed() && !c.Attached() {
		return DenyBecause(capitalize(c.ShortDesc()) + " is closed.")
	}
	return Allow
}

// Surface renders occupants as lying on a named part of the container.
type Surface struct {
	Preposition string
}

func (s Surface) Render(name string, c Container, _ Entity) Rendered {
	occ := OccupantsOf(c.Occupants(), name)
	if len(occ) == 0 {
		return Fragment("")
	}
	prep := s.Preposition
	if prep == "" {
		prep = "on"
	}
	return Fragment(fmt.Sprintf("%s the %s of %s: %s.", capitalize(prep), name, c.ShortDesc(), listOccupants(occ)))
}

func (Surface) CheckAccess(string, Container, AccessKind, Entity) Access { return Allow }

// Worn is the describer for worn/wielded slots on a body. Only the wearer
// may put things into or take things out of the slot.
type Worn struct{}

func (Worn) Render(name string, c Container, viewer Entity) Rendered {
	occ := OccupantsOf(c.Occupants(), name)
	if len(occ) == 0 {
		return Fragment("")
	}
	who := capitalize(c.ShortDesc()) + " is"
	if viewer != nil && viewer.EntityID() == c.EntityID() {
		who = "You are"
	}
	return Fragment(fmt.Sprintf("%s wearing %s (%s).", who, listOccupants(occ), name))
}

func (Worn) CheckAccess(name string, c Container, kind AccessKind, actor Entity) Access {
	if kind == AccessLook {
		return Allow
	}
	if actor == nil || actor.EntityID() != c.EntityID() {
		return DenyBecause(fmt.Sprintf("You cannot reach what is %s by someone else.", name))
	}
	return Allow
}

// Gated hides and locks a sublocation while When does not hold.
type Gated struct {
	Inner  Describer
	When   Predicate
	Reason string
}

func (g Gated) inner() Describer {
	if g.Inner == nil {
		return Generic{}
	}
	return g.Inner
}

func (g Gated) Render(name string, c Container, viewer Entity) Rendered {
	if g.When != nil && !g.When.Holds(c, viewer) {
		return Unavailable
	}
	return g.inner().Render(name, c, viewer)
}

func (g Gated) CheckAccess(name string, c Container, kind AccessKind, actor Entity) Access {
	if g.When != nil && !g.When.Holds(c, actor) {
		if g.Reason == "" {
			return Deny
		}
		return DenyBecause(g.Reason)
	}
	return g.inner().CheckAccess(name, c, kind, actor)
}

// AnchorCheck reports whether an anchoring entity still exists.
type AnchorCheck interface {
	Exists(id string) bool
}

// Anchored ties a sublocation to another entity (a shelf bolted to a wall,
// a saddle on a mount). Once the anchor is gone the sublocation is invalid.
type Anchored struct {
	Anchor  string
	Anchors AnchorCheck
	Inner   Describer
}

func (a Anchored) gone() bool {
	return a.Anchors == nil || !a.Anchors.Exists(a.Anchor)
}

func (a Anchored) Render(name string, c Container, viewer Entity) Rendered {
	if a.gone() {
		return Invalid
	}
	if a.Inner == nil {
		return Generic{}.Render(name, c, viewer)
	}
	return a.Inner.Render(name, c, viewer)
}

func (a Anchored) CheckAccess(name string, c Container, kind AccessKind, actor Entity) Access {
	if a.gone() {
		return DenyBecause("There is no " + name + " there anymore.")
	}
	if a.Inner == nil {
		return Generic{}.CheckAccess(name, c, kind, actor)
	}
	return a.Inner.CheckAccess(name, c, kind, actor)
}

// Open holds while the container is open or its contents are attached.
type Open struct{}

func (Open) Holds(c Container, _ Entity) bool { return !c.Closed() || c.Attached() }

// Holder holds when the actor is the container itself.
type Holder struct{}

func (Holder) Holds(c Container, actor Entity) bool {
	return actor != nil && actor.EntityID() == c.EntityID()
}

func listOccupants(occ []Occupant) string {
	names := make([]string, 0, len(occ))
	for _, o := range occ {
		names = append(names, o.ShortDesc())
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
