package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Containment layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrUnknownEntity = "E_UNKNOWN_ENTITY"
	ErrNoSublocation = "E_NO_SUBLOCATION"
	ErrCycle         = "E_CYCLE"
	ErrCapacity      = "E_CAPACITY"
	ErrOccupied      = "E_OCCUPIED"
	ErrReadOnly      = "E_READ_ONLY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrUnknownEntity:   {},
	ErrNoSublocation:   {},
	ErrCycle:           {},
	ErrCapacity:        {},
	ErrOccupied:        {},
	ErrReadOnly:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
