package aggregate

import (
	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// view is the subset of an entity's state that decides its totals and its
// contribution. OnPropertyChanged evaluates it twice, once per side of a
// write, so every trigger uses the same rules as the getters.
type view struct {
	rawLight   int64
	selfWeight int64
	selfVolume int64
	maxVolume  int64

	rigid       bool
	closed      bool
	transparent bool
	attached    bool

	weightPct int64
	volumePct int64

	inner model.Aggregate
}

func (en *Engine) view(e *model.Entity) view {
	return view{
		rawLight:    e.RawLight(),
		selfWeight:  e.SelfWeight(),
		selfVolume:  e.SelfVolume(),
		maxVolume:   e.MaxVolume(),
		rigid:       e.Rigid(),
		closed:      e.Closed(),
		transparent: e.Transparent(),
		attached:    e.Attached(),
		weightPct:   e.ReduceWeightPct(),
		volumePct:   e.ReduceVolumePct(),
		inner:       en.Interior(e),
	}
}

func (v *view) set(key props.Key, val any) {
	switch key {
	case props.Light:
		v.rawLight = props.AsInt(val)
	case props.Weight:
		v.selfWeight = props.AsInt(val)
	case props.Volume:
		v.selfVolume = props.AsInt(val)
	case props.MaxVolume:
		v.maxVolume = props.AsInt(val)
	case props.Rigid:
		v.rigid = props.AsTri(val).Bool()
	case props.Closed:
		v.closed = props.AsTri(val).Bool()
	case props.Transparent:
		v.transparent = props.AsTri(val).Bool()
	case props.Attached:
		v.attached = props.AsTri(val).Bool()
	case props.ReduceWeightPct:
		v.weightPct = model.ClampPct(props.AsInt(val))
	case props.ReduceVolumePct:
		v.volumePct = model.ClampPct(props.AsInt(val))
	}
}

// passesLight is the light-blocking rule: a closed container blocks the
// light of its contents unless it is transparent or its contents are
// attached to the outside.
func (v view) passesLight() bool {
	return !v.closed || v.transparent || v.attached
}

func (v view) totals() model.Aggregate {
	t := model.Aggregate{
		Light:  v.rawLight,
		Weight: v.selfWeight + v.inner.Weight,
		Volume: v.selfVolume + v.inner.Volume,
	}
	if v.passesLight() {
		t.Light += v.inner.Light
	}
	if v.rigid {
		t.Volume = v.maxVolume
	}
	return t
}

func (v view) contribution() model.Aggregate {
	t := v.totals()
	c := model.Aggregate{
		Light:  t.Light,
		Weight: scale(t.Weight, v.weightPct),
		Volume: t.Volume,
	}
	if !v.rigid {
		c.Volume = scale(t.Volume, v.volumePct)
	}
	return c
}

func scale(x, pct int64) int64 {
	return x * 100 / model.ClampPct(pct)
}

// Interior is what e holds: its own cache, or its linked room's cache.
func (en *Engine) Interior(e *model.Entity) model.Aggregate {
	if r := en.room(e); r != nil {
		return r.Cache
	}
	return e.Cache
}

// Totals is what e's getters report: its own values plus what it holds,
// with contents' light gated and a rigid container reporting its capacity.
func (en *Engine) Totals(e *model.Entity) model.Aggregate { return en.view(e).totals() }

// Contribution is what e's environment caches for e: Totals with e's own
// reduction percentages applied to weight and (unless rigid) volume.
func (en *Engine) Contribution(e *model.Entity) model.Aggregate {
	return en.view(e).contribution()
}

func (en *Engine) Light(e *model.Entity) int64  { return en.Totals(e).Light }
func (en *Engine) Weight(e *model.Entity) int64 { return en.Totals(e).Weight }
func (en *Engine) Volume(e *model.Entity) int64 { return en.Totals(e).Volume }

// PassesLight reports whether e currently lets its contents' light out.
func (en *Engine) PassesLight(e *model.Entity) bool { return en.view(e).passesLight() }
