package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	persistlog "mudcore.ai/internal/persistence/log"
	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "verify":
			verifyCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// snapshotFlags are shared by the commands that work on a snapshot file.
type snapshotFlags struct {
	dataDir  *string
	worldID  *string
	snapPath *string
}

func addSnapshotFlags(fs *flag.FlagSet) snapshotFlags {
	return snapshotFlags{
		dataDir:  fs.String("data", "./data", "runtime data directory"),
		worldID:  fs.String("world", "", "world id"),
		snapPath: fs.String("snapshot", "", "snapshot path (optional; defaults to latest for -world)"),
	}
}

func (f snapshotFlags) worldDir() string {
	return filepath.Join(*f.dataDir, "worlds", *f.worldID)
}

func (f snapshotFlags) resolve() string {
	if p := strings.TrimSpace(*f.snapPath); p != "" {
		return p
	}
	if strings.TrimSpace(*f.worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
		os.Exit(2)
	}
	p := latestSnapshot(f.worldDir())
	if p == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}
	return p
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	sf := addSnapshotFlags(fs)
	full := fs.Bool("entities", false, "print every entity")
	_ = fs.Parse(args)

	path := sf.resolve()
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	sum := summarize(snap)
	if sum.Checksum, err = snapshot.Checksum(path); err != nil {
		fmt.Fprintln(os.Stderr, "checksum:", err)
	}
	printJSON(sum)
	if *full {
		for _, e := range snap.Entities {
			printJSON(e)
		}
	}
}

type snapshotSummary struct {
	WorldID       string         `json:"world_id"`
	Tick          uint64         `json:"tick"`
	CatalogDigest string         `json:"catalog_digest,omitempty"`
	Checksum      string         `json:"checksum,omitempty"`
	Entities      int            `json:"entities"`
	Roots         []string       `json:"roots"`
	Containers    int            `json:"containers"`
	Linked        int            `json:"linked"`
	Kinds         map[string]int `json:"kinds"`
	MaxDepth      int            `json:"max_depth"`
}

func summarize(snap snapshot.SnapshotV1) snapshotSummary {
	s := snapshotSummary{
		WorldID:       snap.Header.WorldID,
		Tick:          snap.Header.Tick,
		CatalogDigest: snap.CatalogDigest,
		Entities:      len(snap.Entities),
		Kinds:         map[string]int{},
	}
	parent := make(map[string]string, len(snap.Entities))
	for _, e := range snap.Entities {
		parent[e.ID] = e.Parent
		s.Kinds[e.Kind]++
		if e.Parent == "" {
			s.Roots = append(s.Roots, e.ID)
		}
		if len(e.Children) > 0 {
			s.Containers++
		}
		if e.LinkedRoom != "" {
			s.Linked++
		}
	}
	for id := range parent {
		d := 0
		for p := parent[id]; p != "" && d <= len(parent); p = parent[p] {
			d++
		}
		if d > s.MaxDepth {
			s.MaxDepth = d
		}
	}
	return s
}

func verifyCmd(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	sf := addSnapshotFlags(fs)
	configDir := fs.String("configs", "./configs", "config directory")
	_ = fs.Parse(args)

	path := sf.resolve()
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	stale, err := loadWorld(snap, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	for _, id := range stale {
		fmt.Println("stale cache:", id)
	}
	fmt.Printf("verify: snapshot=%s tick=%d entities=%d stale=%d\n", filepath.Base(path), snap.Header.Tick, len(snap.Entities), len(stale))
	if len(stale) > 0 {
		os.Exit(3)
	}
}

// loadWorld imports snap into a throwaway world. Import verifies every
// cache and reports the ones it had to rebuild.
func loadWorld(snap snapshot.SnapshotV1, cats *catalogs.Catalogs) ([]string, error) {
	w, err := world.New(world.WorldConfig{ID: snap.Header.WorldID, TickRateHz: 1}, cats, nil)
	if err != nil {
		return nil, err
	}
	return w.ImportSnapshot(snap)
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	entity := fs.String("entity", "", "only entries touching this entity")
	action := fs.String("action", "", "only this action (MOVE, SET, ...)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	recs, err := readAudit(filepath.Join(*dataDir, "worlds", *worldID), auditFilter{
		Entity: *entity,
		Action: strings.ToUpper(*action),
		Since:  *sinceTick,
		To:     *toTick,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		printJSON(r.Entry)
	}
}

func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	sf := addSnapshotFlags(fs)
	configDir := fs.String("configs", "./configs", "config directory")
	entity := fs.String("entity", "", "only roll back moves of this entity (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "rollback moves since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "rollback moves up to tick (inclusive, optional; defaults to snapshot tick)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*sf.worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	snapshotToLoad := sf.resolve()
	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	endTick := *toTick
	if endTick == 0 || endTick > snap.Header.Tick {
		endTick = snap.Header.Tick
	}
	recs, err := readAudit(sf.worldDir(), auditFilter{Entity: *entity, Action: world.AuditMove, Since: *sinceTick, To: endTick})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped := applyRollback(&snap, recs)

	// Import re-derives every cache the moved entities touched.
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	w, err := world.New(world.WorldConfig{ID: snap.Header.WorldID, TickRateHz: 1}, cats, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	rebuilt, err := w.ImportSnapshot(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import rolled back snapshot:", err)
		os.Exit(1)
	}
	out := w.ExportSnapshot(snap.Header.Tick)

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(sf.worldDir(), "snapshots", fmt.Sprintf("%d.rollback.snap.zst", snap.Header.Tick))
	}
	if err := snapshot.WriteSnapshot(*outPath, out); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s tick=%d since=%d to=%d entries=%d applied=%d skipped=%d rebuilt=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Tick, *sinceTick, endTick, len(recs), applied, skipped, len(rebuilt), *outPath)
}

type auditFilter struct {
	Entity string
	Action string
	Since  uint64
	To     uint64 // 0: no upper bound
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if e.Tick < f.Since || (f.To != 0 && e.Tick > f.To) {
		return false
	}
	if f.Entity != "" && e.Entity != f.Entity && e.From != f.Entity && e.To != f.Entity {
		return false
	}
	return true
}

type auditRec struct {
	Seq   uint64
	Entry world.AuditEntry
}

// readAudit returns the matching audit entries in write order.
func readAudit(worldDir string, f auditFilter) ([]auditRec, error) {
	paths, err := persistlog.Files(filepath.Join(worldDir, "audit"), "audit")
	if err != nil {
		return nil, err
	}
	out := make([]auditRec, 0, 1024)
	var seq uint64
	for _, path := range paths {
		err := persistlog.ReadJSONL(path, func(line json.RawMessage) error {
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			seq++
			if f.match(e) {
				out = append(out, auditRec{Seq: seq, Entry: e})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return out, nil
}

// applyRollback undoes MOVE entries newest first by putting each entity
// back where the entry says it came from. Caches are left alone; the
// caller re-derives them.
func applyRollback(snap *snapshot.SnapshotV1, recs []auditRec) (applied, skipped int) {
	if snap == nil || len(recs) == 0 {
		return 0, 0
	}
	sorted := append([]auditRec(nil), recs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Entry.Tick != sorted[j].Entry.Tick {
			return sorted[i].Entry.Tick > sorted[j].Entry.Tick
		}
		return sorted[i].Seq > sorted[j].Seq
	})

	byID := make(map[string]*snapshot.EntityV1, len(snap.Entities))
	for i := range snap.Entities {
		byID[snap.Entities[i].ID] = &snap.Entities[i]
	}

	for _, r := range sorted {
		e := byID[r.Entry.Entity]
		if e == nil || r.Entry.Action != world.AuditMove || e.Parent != r.Entry.To {
			skipped++
			continue
		}
		var from *snapshot.EntityV1
		if r.Entry.From != "" {
			if from = byID[r.Entry.From]; from == nil {
				skipped++
				continue
			}
		}
		oldSub, _ := r.Entry.Old.(string)
		if from != nil && from.ID == e.Parent {
			e.Sublocation = oldSub
			applied++
			continue
		}
		if cur := byID[e.Parent]; cur != nil {
			cur.Children = removeID(cur.Children, e.ID)
		}
		e.Parent, e.Sublocation = "", ""
		if from != nil {
			e.Parent = from.ID
			e.Sublocation = oldSub
			from.Children = append(from.Children, e.ID)
		}
		applied++
	}
	return applied, skipped
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
