package world

import (
	"errors"
	"testing"

	"mudcore.ai/internal/sim/props"
)

func TestLanternFlagsGateTorchLight(t *testing.T) {
	w := newTestWorld(t, WorldConfig{})
	room := spawn(t, w, "ROOM")
	lantern := spawn(t, w, "LANTERN")
	torch := spawn(t, w, "TORCH")
	move(t, w, torch, lantern, "")
	move(t, w, lantern, room, "")

	if room.Cache.Light != 5 {
		t.Fatalf("transparent lantern should pass light: %+v", room.Cache)
	}
	steps := []struct {
		key  props.Key
		v    any
		want int64
	}{
		{props.Transparent, false, 0},
		{props.Attached, "true", 5},
		{props.Attached, 0.0, 0},
		{props.Closed, false, 5},
	}
	for _, s := range steps {
		if err := w.SetProperty(lantern.ID, s.key, s.v); err != nil {
			t.Fatalf("set %s: %v", s.key, err)
		}
		if room.Cache.Light != s.want {
			t.Fatalf("after %s=%v: light %d, want %d", s.key, s.v, room.Cache.Light, s.want)
		}
		mustVerify(t, w, string(s.key))
	}
	if got := lantern.Props.Tri(props.Attached); got != props.False {
		t.Fatalf("attached stored as %v", got)
	}
}

func TestComputedKeysRejectSet(t *testing.T) {
	w := newTestWorld(t, WorldConfig{})
	room := spawn(t, w, "ROOM")
	torch := spawn(t, w, "TORCH")
	move(t, w, torch, room, "")

	if err := w.SetProperty(torch.ID, props.Light, 9); !errors.Is(err, props.ErrComputed) {
		t.Fatalf("expected ErrComputed, got %v", err)
	}
	if err := w.SetRaw(torch.ID, props.Light, 8); err != nil {
		t.Fatalf("set raw: %v", err)
	}
	if room.Cache.Light != 8 || torch.Props.Get(props.Light) != int64(8) {
		t.Fatalf("raw light not propagated: %+v", room.Cache)
	}
	if err := w.SetRaw(torch.ID, props.Closed, 1); err == nil {
		t.Fatalf("closed is not a raw key")
	}
	totals, _, _, err := w.Totals(room.ID)
	if err != nil || totals.Light != 8 {
		t.Fatalf("room totals: %+v %v", totals, err)
	}
}

func TestReductionChangeRescalesEnvironment(t *testing.T) {
	w := newTestWorld(t, WorldConfig{})
	room := spawn(t, w, "ROOM")
	bag := spawn(t, w, "BAG")
	cloak := spawn(t, w, "CLOAK")
	move(t, w, cloak, bag, "")
	move(t, w, bag, room, "")
	if room.Cache.Weight != 3400 {
		t.Fatalf("bag at 50%%: %d", room.Cache.Weight)
	}

	if err := w.SetProperty(bag.ID, props.ReduceWeightPct, 100); err != nil {
		t.Fatalf("set pct: %v", err)
	}
	if room.Cache.Weight != 1700 {
		t.Fatalf("bag at 100%%: %d", room.Cache.Weight)
	}
	// 0 is clamped to 100.
	if err := w.SetProperty(bag.ID, props.ReduceWeightPct, 0); err != nil {
		t.Fatalf("set pct: %v", err)
	}
	if room.Cache.Weight != 1700 {
		t.Fatalf("bag at 0%%: %d", room.Cache.Weight)
	}
	mustVerify(t, w, "rescaled")
}

func TestUntrackedPropertyLeavesAggregates(t *testing.T) {
	w := newTestWorld(t, WorldConfig{})
	aud := &auditSink{}
	w.SetAuditLogger(aud)
	room := spawn(t, w, "ROOM")
	bag := spawn(t, w, "BAG")
	move(t, w, bag, room, "")
	before := room.Cache

	if err := w.SetProperty(bag.ID, props.Name, "a patched bag"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if room.Cache != before || bag.ShortDesc() != "a patched bag" {
		t.Fatalf("name change: %+v %q", room.Cache, bag.ShortDesc())
	}
	if aud.actions()[AuditSet] != 1 {
		t.Fatalf("audit: %+v", aud.entries)
	}
}
