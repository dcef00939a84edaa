// Package sublocation keeps the named attachment points of a container
// ("worn", "tabletop", "left hand") together with the describer that is
// responsible for rendering and guarding each one.
package sublocation

import (
	"sort"
	"strings"
)

// Default is the unnamed sublocation every occupant falls back to.
const Default = ""

type Entity interface {
	EntityID() string
}

type Occupant interface {
	Entity
	Sublocation() string
	SetSublocation(name string)
	ShortDesc() string
}

// Container is the view of the holder handed to describers.
type Container interface {
	Entity
	ShortDesc() string
	Closed() bool
	Attached() bool
	Occupants() []Occupant
}

type Status uint8

const (
	StatusFragment Status = iota
	StatusUnavailable
	StatusInvalid
)

// Rendered is a describer's answer for one sublocation.
type Rendered struct {
	Status Status
	Text   string
}

func Fragment(text string) Rendered { return Rendered{Status: StatusFragment, Text: text} }

var (
	Unavailable = Rendered{Status: StatusUnavailable}
	Invalid     = Rendered{Status: StatusInvalid}
)

type AccessKind string

const (
	AccessLook AccessKind = "look"
	AccessPut  AccessKind = "put"
	AccessGet  AccessKind = "get"
)

type Access struct {
	Allowed bool
	Reason  string
}

var (
	Allow = Access{Allowed: true}
	Deny  = Access{}
)

func DenyBecause(reason string) Access { return Access{Reason: reason} }

// Describer renders and guards the sublocations it is responsible for.
type Describer interface {
	Render(name string, c Container, viewer Entity) Rendered
	CheckAccess(name string, c Container, kind AccessKind, actor Entity) Access
}

// Predicate is a yes/no condition over a container and an actor.
type Predicate interface {
	Holds(c Container, actor Entity) bool
}

type entry struct {
	describer Describer
	tags      []string
}

type Registry struct {
	order []string
	by    map[string]entry
	tags  map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{by: map[string]entry{}, tags: map[string][]string{}}
}

// Add registers name. A nil describer means the generic renderer and
// resolver answer for it. Re-adding a name replaces its describer and
// merges the tags.
func (r *Registry) Add(name string, d Describer, tags ...string) {
	if name == Default {
		return
	}
	e, exists := r.by[name]
	if !exists {
		r.order = append(r.order, name)
	}
	e.describer = d
	for _, tag := range tags {
		if tag == "" || containsString(e.tags, tag) {
			continue
		}
		e.tags = append(e.tags, tag)
		r.tags[tag] = append(r.tags[tag], name)
	}
	r.by[name] = e
}

// Remove drops name, moves its occupants to the default sublocation and
// purges it from the tag index. It reports whether name was registered.
func (r *Registry) Remove(name string, occupants []Occupant) bool {
	e, ok := r.by[name]
	if !ok {
		return false
	}
	delete(r.by, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for _, tag := range e.tags {
		names := removeString(r.tags[tag], name)
		if len(names) == 0 {
			delete(r.tags, tag)
			continue
		}
		r.tags[tag] = names
	}
	for _, o := range occupants {
		if o.Sublocation() == name {
			o.SetSublocation(Default)
		}
	}
	return true
}

func (r *Registry) Has(name string) bool {
	if name == Default {
		return true
	}
	_, ok := r.by[name]
	return ok
}

func (r *Registry) Len() int { return len(r.order) }

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Describer(name string) Describer { return r.by[name].describer }

func (r *Registry) TagsOf(name string) []string {
	return append([]string(nil), r.by[name].tags...)
}

func (r *Registry) ByTag(tag string) []string {
	return append([]string(nil), r.tags[tag]...)
}

func (r *Registry) Tags() []string {
	out := make([]string, 0, len(r.tags))
	for t := range r.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// OccupantsOf filters occupants assigned to name.
func OccupantsOf(occupants []Occupant, name string) []Occupant {
	var out []Occupant
	for _, o := range occupants {
		if o.Sublocation() == name {
			out = append(out, o)
		}
	}
	return out
}

type Section struct {
	Name string
	Text string
}

// Render asks each requested, registered sublocation for its fragment.
// With no names, every registered sublocation is rendered in order.
// The default sublocation is only rendered when named explicitly.
// Unavailable answers are skipped; Invalid answers are skipped and the
// sublocation is removed afterwards. The removed names are returned.
func (r *Registry) Render(c Container, viewer Entity, names ...string) ([]Section, []string) {
	if len(names) == 0 {
		names = r.Names()
	}
	var out []Section
	var invalid []string
	for _, name := range names {
		e, ok := r.by[name]
		if !ok && name != Default {
			continue
		}
		var res Rendered
		if e.describer != nil {
			res = e.describer.Render(name, c, viewer)
		} else {
			res = Generic{}.Render(name, c, viewer)
		}
		switch res.Status {
		case StatusUnavailable:
			continue
		case StatusInvalid:
			invalid = append(invalid, name)
			continue
		}
		if strings.TrimSpace(res.Text) == "" {
			continue
		}
		out = append(out, Section{Name: name, Text: res.Text})
	}
	var removed []string
	if len(invalid) > 0 {
		occupants := c.Occupants()
		for _, name := range invalid {
			if r.Remove(name, occupants) {
				removed = append(removed, name)
			}
		}
	}
	return out, removed
}

// CheckAccess routes to the responsible describer, or the generic
// resolver for the default sublocation and describer-less names.
func (r *Registry) CheckAccess(c Container, name string, kind AccessKind, actor Entity) Access {
	if name != Default {
		e, ok := r.by[name]
		if !ok {
			return DenyBecause("There is no " + name + " there.")
		}
		if e.describer != nil {
			return e.describer.CheckAccess(name, c, kind, actor)
		}
	}
	return Generic{}.CheckAccess(name, c, kind, actor)
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func removeString(xs []string, s string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
