package props

import (
	"errors"
	"testing"
)

type doubler struct{}

func (doubler) Compute(_ Key, base int64) int64 { return base * 2 }

func TestComputedKeyRejectsSet(t *testing.T) {
	tab := NewTable()
	slot, err := tab.Compute(Weight, 21, doubler{})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := tab.Int(Weight); got != 42 {
		t.Fatalf("expected computed 42, got %d", got)
	}
	if _, err := tab.Set(Weight, 5); !errors.Is(err, ErrComputed) {
		t.Fatalf("expected ErrComputed, got %v", err)
	}
	if err := tab.Delete(Weight); !errors.Is(err, ErrComputed) {
		t.Fatalf("expected ErrComputed on delete, got %v", err)
	}
	if old := slot.Rebase(10); old != 21 {
		t.Fatalf("expected old base 21, got %d", old)
	}
	if got := tab.Int(Weight); got != 20 {
		t.Fatalf("expected computed 20 after rebase, got %d", got)
	}
}

func TestLockStopsRegistration(t *testing.T) {
	tab := NewTable()
	tab.Lock()
	if _, err := tab.Compute(Light, 1, doubler{}); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, err := tab.Set(Closed, true); err != nil {
		t.Fatalf("stored keys stay writable after lock: %v", err)
	}
	if !tab.Bool(Closed) {
		t.Fatalf("expected closed=true")
	}
}

func TestSetReturnsOldValue(t *testing.T) {
	tab := NewTable()
	if old, _ := tab.Set(MaxVolume, 100); old != nil {
		t.Fatalf("expected nil old value, got %v", old)
	}
	old, _ := tab.Set(MaxVolume, 250)
	if AsInt(old) != 100 {
		t.Fatalf("expected old=100, got %v", old)
	}
	if _, ok := tab.Stored()[MaxVolume]; !ok {
		t.Fatalf("expected max_volume in stored view")
	}
}

func TestAsTri(t *testing.T) {
	cases := []struct {
		in   any
		want Tri
	}{
		{nil, Unset},
		{true, True},
		{false, False},
		{"on", True},
		{"no", False},
		{"maybe", Unset},
		{int64(0), False},
		{1, True},
		{True, True},
	}
	for _, c := range cases {
		if got := AsTri(c.in); got != c.want {
			t.Fatalf("AsTri(%#v) = %v, want %v", c.in, got, c.want)
		}
	}
	if Unset.Bool() {
		t.Fatalf("unset must read as false")
	}
}
