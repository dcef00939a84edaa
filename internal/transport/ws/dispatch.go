package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"mudcore.ai/internal/protocol"
	"mudcore.ai/internal/sim/props"
	"mudcore.ai/internal/sim/sublocation"
	"mudcore.ai/internal/sim/world"
	"mudcore.ai/internal/sim/world/kernel/model"
)

// Dispatch executes req against w. It must run on the world loop goroutine.
func Dispatch(w *world.World, req protocol.Request) protocol.Response {
	tick := w.CurrentTick()
	fail := func(err error) protocol.Response {
		return protocol.NewError(req.ReqID, tick, errorCode(err), err.Error())
	}
	bad := func(format string, args ...any) protocol.Response {
		return protocol.NewError(req.ReqID, tick, protocol.ErrBadRequest, fmt.Sprintf(format, args...))
	}
	if req.ID == "" && req.Type != protocol.TypeSpawn && req.Type != protocol.TypeVerify {
		return bad("%s needs id", req.Type)
	}

	resp := protocol.NewResult(req.ReqID, tick)
	resp.ID = req.ID

	switch req.Type {
	case protocol.TypeQuery:
		totals, cache, contribution, err := w.Totals(req.ID)
		if err != nil {
			return fail(err)
		}
		e := w.Entity(req.ID)
		resp.Totals = wireTotals(totals)
		resp.Cache = wireTotals(cache)
		resp.Contribution = wireTotals(contribution)
		resp.Parent = e.Parent
		resp.Children = append([]string(nil), e.Children...)
		resp.Sublocations = e.Sublocations.Names()
		resp.LinkedRoom = e.LinkedRoom

	case protocol.TypeLook:
		secs, err := w.Render(req.ID, req.Actor, req.Names...)
		if err != nil {
			return fail(err)
		}
		for _, s := range secs {
			resp.Sections = append(resp.Sections, protocol.Section{Name: s.Name, Text: s.Text})
		}

	case protocol.TypeAccess:
		kind := sublocation.AccessKind(req.Access)
		switch kind {
		case sublocation.AccessLook, sublocation.AccessPut, sublocation.AccessGet:
		default:
			return bad("unknown access %q", req.Access)
		}
		acc, err := w.CheckAccess(req.ID, req.Sublocation, kind, req.Actor)
		if err != nil {
			return fail(err)
		}
		allowed := acc.Allowed
		resp.Allowed = &allowed
		resp.Reason = acc.Reason

	case protocol.TypeMove:
		var err error
		if req.Actor != "" {
			err = w.MoveBy(req.Actor, req.ID, req.Dest, req.Sublocation)
		} else {
			err = w.Move(req.ID, req.Dest, req.Sublocation)
		}
		if err != nil {
			return fail(err)
		}

	case protocol.TypeSet:
		if req.Key == "" {
			return bad("SET needs key")
		}
		var v any
		if err := json.Unmarshal(req.Value, &v); err != nil {
			return bad("SET value: %v", err)
		}
		if err := w.SetProperty(req.ID, props.Key(req.Key), v); err != nil {
			if errors.Is(err, props.ErrComputed) {
				return protocol.NewError(req.ReqID, tick, protocol.ErrReadOnly, err.Error())
			}
			return fail(err)
		}

	case protocol.TypeSpawn:
		e, err := w.Spawn(req.Kind)
		if err != nil {
			return fail(err)
		}
		if req.Dest != "" {
			if err := w.Move(e.ID, req.Dest, req.Sublocation); err != nil {
				_ = w.Destroy(e.ID)
				return fail(err)
			}
		}
		resp.ID = e.ID

	case protocol.TypeDestroy:
		if err := w.Destroy(req.ID); err != nil {
			return fail(err)
		}

	case protocol.TypeSetRaw:
		key := props.Key(req.Key)
		var v int64
		if err := json.Unmarshal(req.Value, &v); err != nil {
			return bad("SET_RAW value: %v", err)
		}
		if v < 0 && key != props.Light {
			return bad("SET_RAW %s must not be negative", key)
		}
		if err := w.SetRaw(req.ID, key, v); err != nil {
			return fail(err)
		}

	case protocol.TypeLink:
		if req.Room == "" {
			return bad("LINK needs room")
		}
		if err := w.Link(req.ID, req.Room); err != nil {
			return fail(err)
		}
		resp.LinkedRoom = req.Room

	case protocol.TypeUnlink:
		if err := w.Unlink(req.ID); err != nil {
			return fail(err)
		}

	case protocol.TypeSublocAdd:
		if req.Sublocation == "" {
			return bad("SUBLOC_ADD needs sublocation")
		}
		spec := sublocation.Spec{Kind: req.SubKind, Params: req.Params}
		if err := w.AddSublocation(req.ID, req.Sublocation, spec, req.Tags...); err != nil {
			return fail(err)
		}
		resp.Sublocations = w.Entity(req.ID).Sublocations.Names()

	case protocol.TypeSublocRemove:
		if req.Sublocation == "" {
			return bad("SUBLOC_REMOVE needs sublocation")
		}
		if err := w.RemoveSublocation(req.ID, req.Sublocation); err != nil {
			return fail(err)
		}
		resp.Sublocations = w.Entity(req.ID).Sublocations.Names()

	case protocol.TypeTag:
		if req.Tag == "" {
			return bad("TAG needs tag")
		}
		names, err := w.SublocationsByTag(req.ID, req.Tag)
		if err != nil {
			return fail(err)
		}
		resp.Sublocations = names

	case protocol.TypeVerify:
		for _, d := range w.Verify() {
			resp.Drift = append(resp.Drift, protocol.DriftEntry{
				ID:       d.ID,
				Cached:   *wireTotals(d.Cached),
				Expected: *wireTotals(d.Expected),
			})
		}

	default:
		return protocol.NewError(req.ReqID, tick, protocol.ErrProtoBadRequest, fmt.Sprintf("unknown type %q", req.Type))
	}
	return resp
}

func wireTotals(a model.Aggregate) *protocol.Totals {
	return &protocol.Totals{Light: a.Light, Weight: a.Weight, Volume: a.Volume}
}
