package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const EntitiesFile = "entities.json"

type Catalogs struct {
	Entities EntityCatalog
}

type EntityCatalog struct {
	Kinds  []string
	Defs   map[string]EntityDef
	Digest string
}

// EntityDef is the template an entity is spawned from.
type EntityDef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Short string `json:"short,omitempty"`

	Light  int64 `json:"light,omitempty"`
	Weight int64 `json:"weight,omitempty"`
	Volume int64 `json:"volume,omitempty"`

	MaxWeight int64 `json:"max_weight,omitempty"`
	MaxVolume int64 `json:"max_volume,omitempty"`

	// Flags are tri-state: absent means unset.
	Rigid       *bool `json:"rigid,omitempty"`
	Closed      *bool `json:"closed,omitempty"`
	Transparent *bool `json:"transparent,omitempty"`
	Attached    *bool `json:"attached,omitempty"`

	ReduceWeightPct int64 `json:"reduce_weight_pct,omitempty"`
	ReduceVolumePct int64 `json:"reduce_volume_pct,omitempty"`

	Sublocations []SublocationDef `json:"sublocations,omitempty"`
}

type SublocationDef struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind,omitempty"` // "", "surface", "worn", "gated_open", "anchored"
	Params map[string]string `json:"params,omitempty"`
	Tags   []string          `json:"tags,omitempty"`
}

const entitiesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["entities"],
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
          "name": {"type": "string", "minLength": 1},
          "short": {"type": "string"},
          "light": {"type": "integer"},
          "weight": {"type": "integer", "minimum": 0},
          "volume": {"type": "integer", "minimum": 0},
          "max_weight": {"type": "integer", "minimum": 0},
          "max_volume": {"type": "integer", "minimum": 0},
          "rigid": {"type": "boolean"},
          "closed": {"type": "boolean"},
          "transparent": {"type": "boolean"},
          "attached": {"type": "boolean"},
          "reduce_weight_pct": {"type": "integer", "minimum": 0, "maximum": 100},
          "reduce_volume_pct": {"type": "integer", "minimum": 0, "maximum": 100},
          "sublocations": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "kind": {"enum": ["", "surface", "worn", "gated_open", "anchored"]},
                "params": {"type": "object", "additionalProperties": {"type": "string"}},
                "tags": {"type": "array", "items": {"type": "string"}}
              },
              "additionalProperties": false
            }
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var schema = jsonschema.MustCompileString("entities.schema.json", entitiesSchema)

// Load reads <dir>/entities.json.
func Load(dir string) (*Catalogs, error) {
	raw, err := os.ReadFile(filepath.Join(dir, EntitiesFile))
	if err != nil {
		return nil, err
	}
	ents, err := ParseEntities(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EntitiesFile, err)
	}
	return &Catalogs{Entities: ents}, nil
}

// ParseEntities validates raw against the entity schema and indexes it.
func ParseEntities(raw []byte) (EntityCatalog, error) {
	var out EntityCatalog
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out, err
	}
	if err := schema.Validate(doc); err != nil {
		return out, err
	}

	var file struct {
		Entities []EntityDef `json:"entities"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return out, err
	}
	out.Defs = make(map[string]EntityDef, len(file.Entities))
	for _, d := range file.Entities {
		if _, dup := out.Defs[d.ID]; dup {
			return out, fmt.Errorf("duplicate entity id %q", d.ID)
		}
		seen := map[string]bool{}
		for _, s := range d.Sublocations {
			if seen[s.Name] {
				return out, fmt.Errorf("entity %s: duplicate sublocation %q", d.ID, s.Name)
			}
			seen[s.Name] = true
			if s.Kind == "anchored" && strings.TrimSpace(s.Params["anchor"]) == "" {
				return out, fmt.Errorf("entity %s: anchored sublocation %q needs params.anchor", d.ID, s.Name)
			}
		}
		out.Defs[d.ID] = d
		out.Kinds = append(out.Kinds, d.ID)
	}
	sort.Strings(out.Kinds)

	digest, err := digestOf(out.Kinds, out.Defs)
	if err != nil {
		return out, err
	}
	out.Digest = digest
	return out, nil
}

func digestOf(kinds []string, defs map[string]EntityDef) (string, error) {
	var buf bytes.Buffer
	for _, k := range kinds {
		b, err := json.Marshal(defs[k])
		if err != nil {
			return "", err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func (c *Catalogs) Entity(kind string) (EntityDef, bool) {
	if c == nil {
		return EntityDef{}, false
	}
	d, ok := c.Entities.Defs[kind]
	return d, ok
}
