package observerproto

import "mudcore.ai/internal/protocol"

// Version is the observer protocol version (separate from the client WS protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to change the watch list.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	IDs             []string `json:"ids"`

	// EveryTicks is how often the watched entities are sampled.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Kinds           []string    `json:"kinds"`
	Roots           []string    `json:"roots"`
	Entities        int         `json:"entities"`
}

type WorldParams struct {
	TickRateHz         int  `json:"tick_rate_hz"`
	VerifyEveryTicks   int  `json:"verify_every_ticks"`
	SnapshotEveryTicks int  `json:"snapshot_every_ticks"`
	RepairDrift        bool `json:"repair_drift"`
}

// Server -> Client. Sent when any watched entity changed since the last sample.
type TotalsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Entities []EntityState `json:"entities"`
	// Gone lists watched IDs that no longer exist.
	Gone []string `json:"gone,omitempty"`
}

type EntityState struct {
	ID       string          `json:"id"`
	Parent   string          `json:"parent,omitempty"`
	Children int             `json:"children"`
	Totals   protocol.Totals `json:"totals"`
	Cache    protocol.Totals `json:"cache"`
}
