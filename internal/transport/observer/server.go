package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mudcore.ai/internal/observerproto"
	"mudcore.ai/internal/protocol"
	"mudcore.ai/internal/sim/world"
)

const maxWatched = 256

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			WorldParams: observerproto.WorldParams{
				TickRateHz:         cfg.TickRateHz,
				VerifyEveryTicks:   cfg.VerifyEveryTicks,
				SnapshotEveryTicks: cfg.SnapshotEveryTicks,
				RepairDrift:        cfg.RepairDrift,
			},
			Kinds: s.world.Kinds(),
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		err := s.world.Do(ctx, func(w *world.World) error {
			resp.Tick = w.CurrentTick()
			ids := w.IDs()
			resp.Entities = len(ids)
			for _, id := range ids {
				if w.Entity(id).Parent == "" {
					resp.Roots = append(resp.Roots, id)
				}
			}
			return nil
		})
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		subs := make(chan observerproto.SubscribeMsg, 1)
		subs <- sub

		// Reader loop: allow SUBSCRIBE updates.
		go func() {
			defer cancel()
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				sub, ok := parseSubscribe(msg)
				if !ok {
					continue
				}
				select {
				case <-subs:
				default:
				}
				subs <- sub
			}
		}()

		s.stream(ctx, conn, subs)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

// stream samples the watched entities on the world loop and writes a
// TOTALS message whenever the sample differs from the previous one.
func (s *Server) stream(ctx context.Context, conn *websocket.Conn, subs <-chan observerproto.SubscribeMsg) {
	tickDur := time.Second / time.Duration(s.world.Config().TickRateHz)
	var (
		ids    []string
		ticker *time.Ticker
		last   []byte
	)
	tickC := func() <-chan time.Time {
		if ticker == nil {
			return nil
		}
		return ticker.C
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-subs:
			ids = sub.IDs
			if ticker != nil {
				ticker.Stop()
			}
			ticker = time.NewTicker(time.Duration(sub.EveryTicks) * tickDur)
			last = nil
		case <-tickC():
		}

		msg, err := s.sample(ctx, ids)
		if err != nil {
			s.logf("observer sample: %v", err)
			return
		}
		key, err := json.Marshal([]any{msg.Entities, msg.Gone})
		if err != nil {
			return
		}
		if string(key) == string(last) {
			continue
		}
		last = key
		out, err := json.Marshal(msg)
		if err != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

func (s *Server) sample(ctx context.Context, ids []string) (observerproto.TotalsMsg, error) {
	msg := observerproto.TotalsMsg{Type: "TOTALS", ProtocolVersion: observerproto.Version}
	err := s.world.Do(ctx, func(w *world.World) error {
		msg.Tick = w.CurrentTick()
		for _, id := range ids {
			totals, cache, _, err := w.Totals(id)
			if err != nil {
				msg.Gone = append(msg.Gone, id)
				continue
			}
			e := w.Entity(id)
			msg.Entities = append(msg.Entities, observerproto.EntityState{
				ID:       id,
				Parent:   e.Parent,
				Children: len(e.Children),
				Totals:   protocol.Totals{Light: totals.Light, Weight: totals.Weight, Volume: totals.Volume},
				Cache:    protocol.Totals{Light: cache.Light, Weight: cache.Weight, Volume: cache.Volume},
			})
		}
		return nil
	})
	return msg, err
}

func parseSubscribe(b []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	if sub.EveryTicks <= 0 {
		sub.EveryTicks = 1
	}
	if sub.EveryTicks > 600 {
		sub.EveryTicks = 600
	}
	if len(sub.IDs) > maxWatched {
		sub.IDs = sub.IDs[:maxWatched]
	}
	return sub, true
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// IsLoopbackRemote reports whether an http.Request.RemoteAddr is a loopback address.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
