package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mudcore.ai/internal/observerproto"
	"mudcore.ai/internal/sim/catalogs"
	"mudcore.ai/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, context.Context) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "obs", TickRateHz: 50}, cats, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	return w, ctx
}

func spawnIn(t *testing.T, ctx context.Context, w *world.World, kind, dest string) string {
	t.Helper()
	var id string
	err := w.Do(ctx, func(w *world.World) error {
		e, err := w.Spawn(kind)
		if err != nil {
			return err
		}
		id = e.ID
		if dest == "" {
			return nil
		}
		return w.Move(e.ID, dest, "")
	})
	if err != nil {
		t.Fatalf("spawn %s: %v", kind, err)
	}
	return id
}

func TestBootstrapListsRoots(t *testing.T) {
	w, ctx := startWorld(t)
	room := spawnIn(t, ctx, w, "ROOM", "")
	spawnIn(t, ctx, w, "COIN", room)

	srv := httptest.NewServer(NewServer(w, nil).BootstrapHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.WorldID != "obs" || boot.Entities != 2 || len(boot.Roots) != 1 || boot.Roots[0] != room {
		t.Fatalf("bootstrap: %+v", boot)
	}
	if len(boot.Kinds) == 0 || boot.WorldParams.TickRateHz != 50 {
		t.Fatalf("bootstrap params: %+v", boot)
	}
}

func TestWatchStreamsChangedTotals(t *testing.T) {
	w, ctx := startWorld(t)
	room := spawnIn(t, ctx, w, "ROOM", "")

	srv := httptest.NewServer(NewServer(w, nil).WSHandler())
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, IDs: []string{room, "OBJ999"}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	read := func() observerproto.TotalsMsg {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var msg observerproto.TotalsMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	first := read()
	if len(first.Entities) != 1 || first.Entities[0].ID != room || first.Entities[0].Cache.Light != 0 {
		t.Fatalf("first sample: %+v", first)
	}
	if len(first.Gone) != 1 || first.Gone[0] != "OBJ999" {
		t.Fatalf("gone: %v", first.Gone)
	}

	spawnIn(t, ctx, w, "TORCH", room)
	next := read()
	if next.Entities[0].Cache.Light != 5 || next.Entities[0].Children != 1 {
		t.Fatalf("after torch: %+v", next.Entities[0])
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := IsLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
