package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	VerifyEveryTicks   int `json:"verify_every_ticks,omitempty"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	CatalogDigest string `json:"catalog_digest,omitempty"`

	Entities []EntityV1 `json:"entities"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextEntity uint64 `json:"next_entity"`
}

// EntityV1 is one node of the containment graph. Stored properties are
// split by value type so gob needs no interface registration.
type EntityV1 struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`

	Parent      string   `json:"parent,omitempty"`
	Children    []string `json:"children,omitempty"`
	Sublocation string   `json:"sublocation,omitempty"`

	// Raw values of the computed keys: light, weight, volume.
	Base  [3]int64 `json:"base"`
	Cache [3]int64 `json:"cache"`

	Ints    map[string]int64  `json:"ints,omitempty"`
	Flags   map[string]int8   `json:"flags,omitempty"`
	Strings map[string]string `json:"strings,omitempty"`

	Sublocations []SublocationV1 `json:"sublocations,omitempty"`

	LinkedRoom string   `json:"linked_room,omitempty"`
	LinkedFrom []string `json:"linked_from,omitempty"`
}

type SublocationV1 struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind,omitempty"`
	Params map[string]string `json:"params,omitempty"`
	Tags   []string          `json:"tags,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tools that only peek; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// Checksum is the BLAKE3 hex digest of the compressed snapshot file. The
// index records it so a copied or mirrored snapshot can be checked.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
