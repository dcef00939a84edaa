package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"time"

	"mudcore.ai/internal/protocol"
	"mudcore.ai/internal/sim/world"
	"mudcore.ai/internal/transport/observer"
	"mudcore.ai/internal/transport/ws"
)

type muxOptions struct {
	EnableAdmin bool
	EnablePprof bool
}

func newMux(w *world.World, idx runtimeIndex, logger *log.Logger, opts muxOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx))

	if opts.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", loopbackOnly(stateHandler(w)))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			tick, err := w.RequestSnapshot(ctx)
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
		}))
		mux.HandleFunc("/admin/v1/verify", loopbackOnly(verifyHandler(w)))

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (MUD_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	return mux
}

type worldState struct {
	WorldID    string `json:"world_id"`
	Tick       uint64 `json:"tick"`
	Entities   int    `json:"entities"`
	Containers int    `json:"containers"`
	Linked     int    `json:"linked"`
}

func collectState(ctx context.Context, w *world.World) (worldState, error) {
	st := worldState{WorldID: w.ID()}
	err := w.Do(ctx, func(w *world.World) error {
		st.Tick = w.CurrentTick()
		for _, id := range w.IDs() {
			e := w.Entity(id)
			st.Entities++
			if len(e.Children) > 0 {
				st.Containers++
			}
			if e.IsLinked() {
				st.Linked++
			}
		}
		return nil
	})
	return st, err
}

func stateHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := collectState(ctx, w)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, st)
	}
}

func verifyHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		var resp protocol.Response
		err := w.Do(ctx, func(w *world.World) error {
			resp = ws.Dispatch(w, protocol.Request{Type: protocol.TypeVerify})
			return nil
		})
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"tick": resp.Tick, "drift": resp.Drift})
	}
}

func metricsHandler(w *world.World, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		id := w.ID()

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		st, err := collectState(ctx, w)
		if err != nil {
			st.Tick = w.CurrentTick()
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP mudcore_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE mudcore_world_tick gauge\n")
		fmt.Fprintf(rw, "mudcore_world_tick{world=%q} %d\n", id, st.Tick)

		if err == nil {
			fmt.Fprintf(rw, "# HELP mudcore_world_entities Live entities by role.\n")
			fmt.Fprintf(rw, "# TYPE mudcore_world_entities gauge\n")
			fmt.Fprintf(rw, "mudcore_world_entities{world=%q,role=%q} %d\n", id, "all", st.Entities)
			fmt.Fprintf(rw, "mudcore_world_entities{world=%q,role=%q} %d\n", id, "container", st.Containers)
			fmt.Fprintf(rw, "mudcore_world_entities{world=%q,role=%q} %d\n", id, "linked", st.Linked)
		}

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP mudcore_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE mudcore_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "mudcore_index_queue_depth{world=%q} %d\n", id, s.QueueDepth)
		fmt.Fprintf(rw, "mudcore_index_queue_capacity{world=%q} %d\n", id, s.QueueCapacity)
		fmt.Fprintf(rw, "# HELP mudcore_index_dropped_total Index records dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE mudcore_index_dropped_total counter\n")
		fmt.Fprintf(rw, "mudcore_index_dropped_total{world=%q,kind=%q} %d\n", id, "audit", s.DropAuditTotal)
		fmt.Fprintf(rw, "mudcore_index_dropped_total{world=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)
		fmt.Fprintf(rw, "mudcore_index_dropped_total{world=%q,kind=%q} %d\n", id, "drift", s.DropDriftTotal)
	}
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
