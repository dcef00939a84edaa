package protocol

import "encoding/json"

// Request (client -> server). One shape for every request type; fields a
// type does not use are left empty.
type Request struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`

	// The entity acted on. Every type but SPAWN and VERIFY needs it.
	ID string `json:"id,omitempty"`
	// LOOK viewer, ACCESS/MOVE actor.
	Actor string `json:"actor,omitempty"`

	// LOOK: sublocation names to render (empty: all).
	Names []string `json:"names,omitempty"`

	// ACCESS / MOVE: sublocation on the target container ("" is default).
	// SUBLOC_ADD / SUBLOC_REMOVE: the sublocation registered or dropped.
	Sublocation string `json:"sublocation,omitempty"`
	// ACCESS: "look", "put" or "get".
	Access string `json:"access,omitempty"`

	// MOVE: destination container ("" detaches).
	Dest string `json:"dest,omitempty"`

	// SET, SET_RAW (light, weight or volume; integer value)
	Key   string          `json:"key,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	// SPAWN: catalog kind, optional destination in Dest.
	Kind string `json:"kind,omitempty"`

	// LINK: the room the entity becomes a doorway onto.
	Room string `json:"room,omitempty"`

	// SUBLOC_ADD: describer kind ("", "surface", "worn", "gated_open",
	// "anchored"), its params and tags.
	SubKind string            `json:"sub_kind,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Tags    []string          `json:"tags,omitempty"`

	// TAG
	Tag string `json:"tag,omitempty"`
}

type Totals struct {
	Light  int64 `json:"light"`
	Weight int64 `json:"weight"`
	Volume int64 `json:"volume"`
}

type Section struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type DriftEntry struct {
	ID       string `json:"id"`
	Cached   Totals `json:"cached"`
	Expected Totals `json:"expected"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response (server -> client).
type Response struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Tick            uint64 `json:"tick"`

	ID string `json:"id,omitempty"`

	// QUERY
	Totals       *Totals  `json:"totals,omitempty"`
	Cache        *Totals  `json:"cache,omitempty"`
	Contribution *Totals  `json:"contribution,omitempty"`
	Parent       string   `json:"parent,omitempty"`
	Children     []string `json:"children,omitempty"`
	Sublocations []string `json:"sublocations,omitempty"` // also TAG, SUBLOC_ADD, SUBLOC_REMOVE
	LinkedRoom   string   `json:"linked_room,omitempty"`

	// LOOK
	Sections []Section `json:"sections,omitempty"`

	// ACCESS
	Allowed *bool  `json:"allowed,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// VERIFY
	Drift []DriftEntry `json:"drift,omitempty"`

	Error *Error `json:"error,omitempty"`
}

func NewResult(reqID string, tick uint64) Response {
	return Response{Type: TypeResult, ProtocolVersion: Version, ReqID: reqID, Tick: tick}
}

func NewError(reqID string, tick uint64, code, msg string) Response {
	return Response{
		Type:            TypeError,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Tick:            tick,
		Error:           &Error{Code: code, Message: msg},
	}
}
