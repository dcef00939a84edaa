package world

import (
	"context"
	"errors"
	"time"
)

var errStopped = errors.New("world stopped")

type request struct {
	fn   func(w *World) error
	resp chan error
}

// Do runs fn on the world loop goroutine and waits for it. It is safe to
// call from other goroutines (e.g. websocket handlers).
func (w *World) Do(ctx context.Context, fn func(w *World) error) error {
	if w == nil || fn == nil {
		return errors.New("world not available")
	}
	select {
	case <-w.stop:
		return errStopped
	default:
	}
	resp := make(chan error, 1)
	select {
	case w.reqs <- request{fn: fn, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return errStopped
	}

	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return errStopped
	}
}

// Run owns the world until ctx is done or Stop is called. Requests from
// Do are served between ticks.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.reqs:
			req.resp <- req.fn(w)
		case <-ticker.C:
			w.StepOnce()
		}
	}
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// StepOnce advances one tick: the periodic verify pass and snapshot run
// here. Tests call it directly instead of running the loop.
func (w *World) StepOnce() {
	tick := w.tick.Load()
	if n := uint64(w.cfg.VerifyEveryTicks); n > 0 && tick > 0 && tick%n == 0 {
		w.verifyPass(tick)
	}
	if n := uint64(w.cfg.SnapshotEveryTicks); n > 0 && tick > 0 && tick%n == 0 && w.snapshotSink != nil {
		snap := w.ExportSnapshot(tick)
		select {
		case w.snapshotSink <- snap:
		default:
			w.log.Printf("tick %d: snapshot sink backpressure, skipped", tick)
		}
	}
	w.tick.Add(1)
}
