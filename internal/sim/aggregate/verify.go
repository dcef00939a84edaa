package aggregate

import "mudcore.ai/internal/sim/world/kernel/model"

// Drift is a container whose cache disagrees with its children.
type Drift struct {
	ID       string
	Cached   model.Aggregate
	Expected model.Aggregate
}

func (d Drift) Delta() model.Aggregate { return d.Expected.Sub(d.Cached) }

// Expected sums the current contributions of c's children.
func (en *Engine) Expected(c *model.Entity) model.Aggregate {
	var sum model.Aggregate
	for _, id := range c.Children {
		if ch := en.g.Entity(id); ch != nil {
			sum = sum.Add(en.Contribution(ch))
		}
	}
	return sum
}

// Verify checks every listed container against its children. It only
// reads; nothing is repaired.
func (en *Engine) Verify(ids []string) []Drift {
	var out []Drift
	for _, id := range ids {
		c := en.g.Entity(id)
		if c == nil {
			continue
		}
		exp := en.Expected(c)
		if exp != c.Cache {
			out = append(out, Drift{ID: id, Cached: c.Cache, Expected: exp})
		}
	}
	return out
}

// Rebuild recomputes every listed container's cache from scratch, children
// (and linked rooms) before their holders. It is meant for bulk loads,
// where caches cannot be trusted and incremental deltas would double count.
func (en *Engine) Rebuild(ids []string) {
	done := make(map[string]bool, len(ids))
	for _, id := range ids {
		en.rebuild(en.g.Entity(id), done)
	}
}

func (en *Engine) rebuild(c *model.Entity, done map[string]bool) {
	if c == nil || done[c.ID] {
		return
	}
	done[c.ID] = true
	var sum model.Aggregate
	for _, id := range c.Children {
		ch := en.g.Entity(id)
		if ch == nil {
			continue
		}
		en.rebuild(ch, done)
		if ch.LinkedRoom != "" {
			en.rebuild(en.g.Entity(ch.LinkedRoom), done)
		}
		sum = sum.Add(en.Contribution(ch))
	}
	c.Cache = sum
}
