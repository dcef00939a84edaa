package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/aggregate"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/tuning"
	"mudcore.ai/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable copy of what the world reports:
// audits, snapshot metadata and drift. Writes are queued and applied by a
// single writer goroutine; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropDrift    atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqSnapshot
	reqDrift
	reqFlush
)

type req struct {
	kind reqKind

	audit    world.AuditEntry
	snapshot snapshotRow
	drift    driftBatch
	done     chan struct{}
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	WorldID    string
	Entities   int
	Containers int
	Linked     int
	Digest     string
}

type driftBatch struct {
	Tick  uint64
	Drift []aggregate.Drift
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Moves can burst; keep the sim from stalling on the indexer.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			entity TEXT NOT NULL,
			from_id TEXT,
			to_id TEXT,
			sublocation TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_entity_tick ON audits(entity, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			entities INTEGER NOT NULL,
			containers INTEGER NOT NULL,
			linked INTEGER NOT NULL,
			catalog_digest TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS drift (
			tick INTEGER NOT NULL,
			entity TEXT NOT NULL,
			cached_light INTEGER NOT NULL,
			cached_weight INTEGER NOT NULL,
			cached_volume INTEGER NOT NULL,
			expected_light INTEGER NOT NULL,
			expected_weight INTEGER NOT NULL,
			expected_volume INTEGER NOT NULL,
			PRIMARY KEY (tick, entity)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drift_entity_tick ON drift(entity, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		WorldID:  snap.Header.WorldID,
		Entities: len(snap.Entities),
		Digest:   snap.CatalogDigest,
	}
	for _, e := range snap.Entities {
		if len(e.Children) > 0 {
			r.Containers++
		}
		if e.LinkedRoom != "" {
			r.Linked++
		}
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// RecordDrift implements world.DriftRecorder.
func (s *SQLiteIndex) RecordDrift(tick uint64, drift []aggregate.Drift) {
	if s == nil || s.closed.Load() || len(drift) == 0 {
		return
	}
	b := driftBatch{Tick: tick, Drift: append([]aggregate.Drift(nil), drift...)}
	select {
	case s.ch <- req{kind: reqDrift, drift: b}:
	default:
		s.dropDrift.Add(1)
	}
}

// Flush waits until every request queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
	DropDriftTotal    uint64
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropDriftTotal:    s.dropDrift.Load(),
	}
}

// UpsertCatalogs records the catalog and tuning the server started with.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, catalogs.EntitiesFile)); err == nil {
			rows = append(rows, kv{name: "entities", digest: cats.Entities.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,action,entity,from_id,to_id,sublocation,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,world_id,entities,containers,linked,catalog_digest,checksum) VALUES(?,?,?,?,?,?,?,?)`)
	insertDrift, _ := s.db.Prepare(`INSERT OR REPLACE INTO drift(tick,entity,cached_light,cached_weight,cached_volume,expected_light,expected_weight,expected_volume) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAudit, insertSnapshot, insertDrift} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			exec(insertAudit, int64(a.Tick), seq, a.Action, a.Entity, a.From, a.To, a.Sublocation, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			// The file is complete by the time it is recorded; a missing file indexes with no checksum.
			sum, _ := snapshot.Checksum(sn.Path)
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.WorldID, sn.Entities, sn.Containers, sn.Linked, sn.Digest, sum)

		case reqDrift:
			for _, d := range r.drift.Drift {
				if !exec(insertDrift, int64(r.drift.Tick), d.ID,
					d.Cached.Light, d.Cached.Weight, d.Cached.Volume,
					d.Expected.Light, d.Expected.Weight, d.Expected.Volume) {
					break
				}
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
