package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeQuery  = "QUERY"
	TypeLook   = "LOOK"
	TypeAccess = "ACCESS"
	TypeMove   = "MOVE"
	TypeSet    = "SET"
	TypeSpawn  = "SPAWN"
	TypeVerify = "VERIFY"

	TypeDestroy      = "DESTROY"
	TypeSetRaw       = "SET_RAW"
	TypeLink         = "LINK"
	TypeUnlink       = "UNLINK"
	TypeSublocAdd    = "SUBLOC_ADD"
	TypeSublocRemove = "SUBLOC_REMOVE"
	TypeTag          = "TAG"

	TypeResult = "RESULT"
	TypeError  = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
