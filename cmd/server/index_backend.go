package main

import (
	"context"
	"fmt"
	"path/filepath"

	"mudcore.ai/internal/persistence/indexdb"
	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/tuning"
	"mudcore.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	world.DriftRecorder
	Close() error
	Flush(ctx context.Context) error
	Stats() indexdb.Stats
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func indexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func openRuntimeIndex(worldDir, backend string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		idx, err := indexdb.OpenSQLite(indexPath(worldDir))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported MUD_INDEX_BACKEND: %s", backend)
	}
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
