package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mudcore.ai/internal/protocol"
	"mudcore.ai/internal/sim/sublocation"
	"mudcore.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	// RequestTimeout bounds how long one request may wait for the world loop.
	RequestTimeout time.Duration
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		RequestTimeout: 2 * time.Second,
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, 32)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logf("read: %v", err)
				}
				return
			}
			b, err := json.Marshal(s.Handle(ctx, msg))
			if err != nil {
				s.logf("encode: %v", err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Handle answers one raw request. Everything that touches the world runs
// on the world loop goroutine.
func (s *Server) Handle(ctx context.Context, msg []byte) protocol.Response {
	tick := s.world.CurrentTick()
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", tick, protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError("", tick, protocol.ErrProtoVersion, "bad protocol_version")
	}
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.NewError("", tick, protocol.ErrProtoBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	// Whoever claims the request first decides its fate: the loop runs it,
	// or Handle gives up on it and the loop later drops it unrun.
	var claimed atomic.Bool
	done := make(chan struct{})
	var resp protocol.Response
	err = s.world.Do(ctx, func(w *world.World) error {
		if !claimed.CompareAndSwap(false, true) {
			return errAbandoned
		}
		defer close(done)
		resp = Dispatch(w, req)
		return nil
	})
	if err != nil {
		if claimed.CompareAndSwap(false, true) {
			return protocol.NewError(req.ReqID, tick, protocol.ErrWorldBusy, err.Error())
		}
		<-done
	}
	return resp
}

var errAbandoned = errors.New("request abandoned after timeout")

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// errorCode maps world and props errors onto wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, world.ErrUnknownEntity), errors.Is(err, world.ErrUnknownKind):
		return protocol.ErrUnknownEntity
	case errors.Is(err, world.ErrNoSublocation):
		return protocol.ErrNoSublocation
	case errors.Is(err, world.ErrCycle):
		return protocol.ErrCycle
	case errors.Is(err, world.ErrCapacity):
		return protocol.ErrCapacity
	case errors.Is(err, world.ErrOccupied):
		return protocol.ErrOccupied
	case errors.Is(err, world.ErrNoPermission):
		return protocol.ErrNoPermission
	case errors.Is(err, world.ErrNotComputed), errors.Is(err, sublocation.ErrBadSpec):
		return protocol.ErrBadRequest
	}
	return protocol.ErrInternal
}
