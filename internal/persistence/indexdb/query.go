package indexdb

import (
	"context"
	"database/sql"
	"fmt"

	"mudcore.ai/internal/sim/world/kernel/model"
)

type SnapshotInfo struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	WorldID    string `json:"world_id"`
	Entities   int    `json:"entities"`
	Containers int    `json:"containers"`
	Linked     int    `json:"linked"`
	Digest     string `json:"catalog_digest"`
	Checksum   string `json:"checksum,omitempty"`
}

type DriftRow struct {
	Tick     uint64          `json:"tick"`
	Entity   string          `json:"entity"`
	Cached   model.Aggregate `json:"cached"`
	Expected model.Aggregate `json:"expected"`
}

// Reader runs the admin queries against an index file.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// Snapshots lists recorded snapshots, newest first.
func (r *Reader) Snapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick,path,world_id,entities,containers,linked,catalog_digest,checksum FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotInfo
	for rows.Next() {
		var s SnapshotInfo
		var tick int64
		if err := rows.Scan(&tick, &s.Path, &s.WorldID, &s.Entities, &s.Containers, &s.Linked, &s.Digest, &s.Checksum); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Drift lists drift rows at or after sinceTick, newest first. An empty
// entity matches every container.
func (r *Reader) Drift(ctx context.Context, entity string, sinceTick uint64, limit int) ([]DriftRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick,entity,cached_light,cached_weight,cached_volume,expected_light,expected_weight,expected_volume
		   FROM drift WHERE tick >= ? AND (? = '' OR entity = ?) ORDER BY tick DESC, entity LIMIT ?`,
		int64(sinceTick), entity, entity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DriftRow
	for rows.Next() {
		var d DriftRow
		var tick int64
		if err := rows.Scan(&tick, &d.Entity,
			&d.Cached.Light, &d.Cached.Weight, &d.Cached.Volume,
			&d.Expected.Light, &d.Expected.Weight, &d.Expected.Volume); err != nil {
			return nil, err
		}
		d.Tick = uint64(tick)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AuditCount reports how many audit rows mention entity.
func (r *Reader) AuditCount(ctx context.Context, entity string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits WHERE entity = ?`, entity).Scan(&n)
	return n, err
}
