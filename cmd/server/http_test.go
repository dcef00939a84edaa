package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"mudcore.ai/internal/persistence/indexdb"
	"mudcore.ai/internal/persistence/snapshot"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/world"
)

func newRunningWorld(t *testing.T) *world.World {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "srv", TickRateHz: 50}, cats, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	room, err := w.Spawn("ROOM")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	bag, _ := w.Spawn("BAG")
	if err := w.Move(bag.ID, room.ID, ""); err != nil {
		t.Fatalf("move: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	return w
}

func TestAdminState(t *testing.T) {
	w := newRunningWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{EnableAdmin: true})

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("state: %d %s", rr.Code, rr.Body.String())
	}
	var st worldState
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.WorldID != "srv" || st.Entities != 2 || st.Containers != 1 {
		t.Fatalf("state: %+v", st)
	}
}

func TestAdminRejectsRemoteCallers(t *testing.T) {
	w := newRunningWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{EnableAdmin: true})

	for _, path := range []string{"/admin/v1/state", "/admin/v1/verify", "/admin/v1/observer/bootstrap"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, rr.Code)
		}
	}
}

func TestAdminDisabled(t *testing.T) {
	w := newRunningWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{})

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with admin disabled, got %d", rr.Code)
	}
}

func TestAdminVerifyAndSnapshot(t *testing.T) {
	w := newRunningWorld(t)
	sink := make(chan snapshot.SnapshotV1, 1)
	_ = w.Do(context.Background(), func(w *world.World) error {
		w.SetSnapshotSink(sink)
		return nil
	})
	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{EnableAdmin: true})

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/verify", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	var got struct {
		Drift []json.RawMessage `json:"drift"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil || len(got.Drift) != 0 {
		t.Fatalf("verify: %s %v", rr.Body.String(), err)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot: %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST snapshot: %d %s", rr.Code, rr.Body.String())
	}
	select {
	case snap := <-sink:
		if len(snap.Entities) != 2 {
			t.Fatalf("snapshot entities: %d", len(snap.Entities))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot delivered")
	}
}

func TestMetricsIncludeIndexStats(t *testing.T) {
	w := newRunningWorld(t)
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()
	mux := newMux(w, idx, log.New(io.Discard, "", 0), muxOptions{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`mudcore_world_tick{world="srv"}`,
		`mudcore_world_entities{world="srv",role="all"} 2`,
		`mudcore_index_queue_capacity{world="srv"} 65536`,
		`mudcore_index_dropped_total{world="srv",kind="drift"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	for _, tick := range []uint64{9, 120, 30} {
		path := filepath.Join(dir, "snapshots", strconv.FormatUint(tick, 10)+".snap.zst")
		if err := snapshot.WriteSnapshot(path, snapshot.SnapshotV1{Header: snapshot.Header{Version: 1, Tick: tick}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := filepath.Base(latestSnapshot(dir)); got != "120.snap.zst" {
		t.Fatalf("latest: %s", got)
	}
	if latestSnapshot(filepath.Join(dir, "missing")) != "" {
		t.Fatalf("missing dir should yield no snapshot")
	}
}
