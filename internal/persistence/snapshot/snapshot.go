package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"

	"piverse.ai/internal/sim/behavior"
)

const Version = 1

const fileSuffix = ".snap.zst"

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Segment string `json:"segment"`
}

// SnapshotV1 is the runtime state of a world. Everything derivable from the
// segment (shelters, food sources, collectible placement) is regenerated on
// import; only what mutates is stored.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate int `json:"tick_rate_hz"`

	Creatures []CreatureV1   `json:"creatures"`
	Collected []string       `json:"collected"`
	Harvested []HarvestV1    `json:"harvested"`
	Behavior  behavior.State `json:"behavior"`

	Counters CountersV1 `json:"counters"`
}

type CreatureV1 struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Z  float64 `json:"z"`
}

type HarvestV1 struct {
	FoodID string    `json:"food_id"`
	At     time.Time `json:"at"`
}

type CountersV1 struct {
	NextPlayer uint64 `json:"next_player"`
}

// Path is where the snapshot for tick lives under dir.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", tick, fileSuffix))
}

// Latest returns the highest-tick snapshot under dir, or "" if none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, fileSuffix), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// Write stores snap as a zstd stream: one JSON header line, then gob.
func Write(path string, snap SnapshotV1) (err error) {
	errb := oops.In("snapshot").With("path", path).With("tick", snap.Header.Tick)
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errb.Wrapf(err, "mkdir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errb.Wrapf(err, "open")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errb.Wrapf(cerr, "close")
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return errb.Wrapf(err, "zstd writer")
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return errb.Wrapf(err, "write header")
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return errb.Wrapf(err, "write header")
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return errb.Wrapf(err, "gob encode")
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return errb.Wrapf(err, "flush")
	}
	if err := enc.Close(); err != nil {
		return errb.Wrapf(err, "zstd close")
	}
	return nil
}

func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	errb := oops.In("snapshot").With("path", path)
	br, closeFn, err := open(path)
	if err != nil {
		return snap, errb.Wrapf(err, "open")
	}
	defer closeFn()

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, errb.Wrapf(err, "read header")
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, errb.Wrapf(err, "gob decode")
	}
	if snap.Header.Version != Version {
		return snap, errb.Code("E_SNAPSHOT_VERSION").Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	errb := oops.In("snapshot").With("path", path)
	br, closeFn, err := open(path)
	if err != nil {
		return h, errb.Wrapf(err, "open")
	}
	defer closeFn()

	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, errb.Wrapf(err, "read header")
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, errb.Wrapf(err, "decode header")
	}
	return h, nil
}

func open(path string) (*bufio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return bufio.NewReaderSize(dec, 256*1024), func() {
		dec.Close()
		_ = f.Close()
	}, nil
}
