// Package props holds the per-entity property table.
//
// Every key maps to an Entry that is either Stored (a plain value written
// through Set) or Computed (a value produced by a Getter from a raw base).
// Computed entries have no public write path: Set rejects them, and only
// the holder of the *Slot returned at registration can change the base.
package props

import (
	"errors"
	"fmt"
	"sort"
)

type Key string

const (
	Light  Key = "light"
	Weight Key = "weight"
	Volume Key = "volume"

	MaxWeight Key = "max_weight"
	MaxVolume Key = "max_volume"

	Rigid       Key = "rigid"
	Closed      Key = "closed"
	Transparent Key = "transparent"
	Attached    Key = "attached"

	ReduceWeightPct Key = "reduce_weight_pct"
	ReduceVolumePct Key = "reduce_volume_pct"

	Name  Key = "name"
	Short Key = "short"
)

var (
	ErrComputed = errors.New("props: key is computed")
	ErrLocked   = errors.New("props: table is locked")
)

// Getter produces the current value of a computed key from its raw base.
type Getter interface {
	Compute(key Key, base int64) int64
}

type entryKind uint8

const (
	kindStored entryKind = iota + 1
	kindComputed
)

// Entry is one row of a Table.
type Entry struct {
	kind   entryKind
	stored any
	base   int64
	via    Getter
}

func (e Entry) IsComputed() bool { return e.kind == kindComputed }

// Slot is the write capability for one computed key.
type Slot struct {
	t   *Table
	key Key
}

func (s *Slot) Key() Key { return s.key }

func (s *Slot) Base() int64 { return s.t.entries[s.key].base }

// Rebase replaces the raw base and returns the previous one.
func (s *Slot) Rebase(v int64) (old int64) {
	e := s.t.entries[s.key]
	old = e.base
	e.base = v
	s.t.entries[s.key] = e
	return old
}

type Table struct {
	entries map[Key]Entry
	locked  bool
}

func NewTable() *Table {
	return &Table{entries: map[Key]Entry{}}
}

// Compute registers key as computed and returns its write capability.
// Registration is only possible before Lock.
func (t *Table) Compute(key Key, base int64, via Getter) (*Slot, error) {
	if t.locked {
		return nil, fmt.Errorf("compute %s: %w", key, ErrLocked)
	}
	if via == nil {
		return nil, fmt.Errorf("compute %s: nil getter", key)
	}
	t.entries[key] = Entry{kind: kindComputed, base: base, via: via}
	return &Slot{t: t, key: key}, nil
}

// Lock freezes computed registration. Stored keys stay writable.
func (t *Table) Lock()        { t.locked = true }
func (t *Table) Locked() bool { return t.locked }

func (t *Table) Has(key Key) bool {
	_, ok := t.entries[key]
	return ok
}

func (t *Table) Entry(key Key) (Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Get returns the stored value or the computed value for key.
func (t *Table) Get(key Key) any {
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	if e.kind == kindComputed {
		return e.via.Compute(key, e.base)
	}
	return e.stored
}

// Set writes a stored value and returns the previous one.
func (t *Table) Set(key Key, v any) (old any, err error) {
	e, ok := t.entries[key]
	if ok && e.kind == kindComputed {
		return nil, fmt.Errorf("set %s: %w", key, ErrComputed)
	}
	if ok {
		old = e.stored
	}
	t.entries[key] = Entry{kind: kindStored, stored: v}
	return old, nil
}

// Delete removes a stored key. Computed keys cannot be deleted.
func (t *Table) Delete(key Key) error {
	if e, ok := t.entries[key]; ok && e.kind == kindComputed {
		return fmt.Errorf("delete %s: %w", key, ErrComputed)
	}
	delete(t.entries, key)
	return nil
}

func (t *Table) Int(key Key) int64 { return AsInt(t.Get(key)) }
func (t *Table) Tri(key Key) Tri   { return AsTri(t.Get(key)) }
func (t *Table) Bool(key Key) bool { return t.Tri(key).Bool() }

func (t *Table) String(key Key) string {
	s, _ := t.Get(key).(string)
	return s
}

// Stored returns a copy of all stored (non-computed) values, for snapshots.
func (t *Table) Stored() map[Key]any {
	out := make(map[Key]any, len(t.entries))
	for k, e := range t.entries {
		if e.kind == kindStored {
			out[k] = e.stored
		}
	}
	return out
}

func (t *Table) Keys() []Key {
	out := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
