package world

import (
	"fmt"

	"mudcore.ai/internal/sim/aggregate"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// Totals returns id's computed totals, its interior cache and what it
// contributes to its environment.
func (w *World) Totals(id string) (totals, cache, contribution model.Aggregate, err error) {
	e := w.Entity(id)
	if e == nil {
		return totals, cache, contribution, fmt.Errorf("totals %q: %w", id, ErrUnknownEntity)
	}
	return w.eng.Totals(e), e.Cache, w.eng.Contribution(e), nil
}

// Verify recomputes every cache from scratch and returns the mismatches.
func (w *World) Verify() []aggregate.Drift {
	return w.eng.Verify(w.IDs())
}

// Rebuild recomputes every cache from scratch and stores the result.
func (w *World) Rebuild() {
	w.eng.Rebuild(w.IDs())
}

// verifyPass runs on the loop goroutine every VerifyEveryTicks ticks.
func (w *World) verifyPass(tick uint64) []aggregate.Drift {
	drift := w.Verify()
	if len(drift) == 0 {
		return nil
	}
	w.log.Printf("tick %d: aggregate drift in %d containers", tick, len(drift))
	for _, d := range drift {
		cached, expected := triple(d.Cached), triple(d.Expected)
		w.audit(AuditEntry{Action: AuditDrift, Entity: d.ID, Cached: &cached, Expected: &expected})
	}
	if w.driftRecorder != nil {
		w.driftRecorder.RecordDrift(tick, drift)
	}
	if w.cfg.RepairDrift {
		w.Rebuild()
		w.audit(AuditEntry{Action: AuditRebuild, New: len(drift)})
	}
	return drift
}

func triple(a model.Aggregate) [3]int64 {
	return [3]int64{a.Light, a.Weight, a.Volume}
}
