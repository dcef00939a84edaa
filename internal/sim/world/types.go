package world

import (
	"errors"

	"mudcore.ai/internal/sim/aggregate"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrUnknownKind   = errors.New("unknown entity kind")
	ErrCycle         = errors.New("entity cannot contain itself")
	ErrNoSublocation = errors.New("no such sublocation")
	ErrCapacity      = errors.New("destination cannot hold that much")
	ErrOccupied      = errors.New("entity still holds other entities")
	ErrNoPermission  = errors.New("access denied")
	ErrNotComputed   = errors.New("not a computed key")
)

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// DriftRecorder receives the mismatches found by a verify pass.
type DriftRecorder interface {
	RecordDrift(tick uint64, drift []aggregate.Drift)
}

type AuditEntry struct {
	Tick        uint64    `json:"tick"`
	Action      string    `json:"action"` // e.g. "MOVE"
	Entity      string    `json:"entity"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Sublocation string    `json:"sublocation,omitempty"`
	Key         string    `json:"key,omitempty"`
	Old         any       `json:"old,omitempty"`
	New         any       `json:"new,omitempty"`
	Cached      *[3]int64 `json:"cached,omitempty"`
	Expected    *[3]int64 `json:"expected,omitempty"`
}

const (
	AuditMove      = "MOVE"
	AuditSpawn     = "SPAWN"
	AuditDestroy   = "DESTROY"
	AuditSet       = "SET"
	AuditLink      = "LINK"
	AuditUnlink    = "UNLINK"
	AuditSubAdd    = "SUBLOCATION_ADD"
	AuditSubRemove = "SUBLOCATION_REMOVE"
	AuditDrift     = "DRIFT"
	AuditRebuild   = "REBUILD"
)

// DriftRecorders fans a verify report out to several recorders.
type DriftRecorders []DriftRecorder

func (rs DriftRecorders) RecordDrift(tick uint64, drift []aggregate.Drift) {
	for _, r := range rs {
		if r != nil {
			r.RecordDrift(tick, drift)
		}
	}
}
