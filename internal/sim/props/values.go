package props

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Tri is a tri-state boolean. Unset reads as false.
type Tri int8

const (
	Unset Tri = iota
	False
	True
)

func TriOf(b bool) Tri {
	if b {
		return True
	}
	return False
}

func (t Tri) Bool() bool { return t == True }

func (t Tri) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unset"
	}
}

// AsInt coerces the numeric shapes that reach the table (Go ints, JSON
// numbers, decimal strings) to int64. Anything else is 0.
func AsInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int64(f)
		}
		return i
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

// AsTri coerces booleans, Tri values, numbers and "true"/"false" strings.
func AsTri(v any) Tri {
	switch b := v.(type) {
	case nil:
		return Unset
	case Tri:
		return b
	case bool:
		return TriOf(b)
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "on":
			return True
		case "false", "0", "no", "off":
			return False
		}
		return Unset
	default:
		return TriOf(AsInt(v) != 0)
	}
}
