// Package archive keeps one snapshot per elapsed season of world time.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"

	"piverse.ai/internal/persistence/snapshot"
	"piverse.ai/internal/sim/gen"
)

type SeasonArchiveMeta struct {
	Period      uint64 `json:"period"`
	Season      int    `json:"season"`
	Tick        uint64 `json:"tick"`
	Segment     string `json:"segment"`
	Snapshot    string `json:"snapshot"`
	CreatedAt   string `json:"created_at"`
	SeasonTicks uint64 `json:"season_length_ticks"`
}

// SeasonTicks is the season length in ticks at rate Hz.
func SeasonTicks(rate int) uint64 {
	if rate <= 0 {
		return 0
	}
	return uint64(gen.SeasonSeconds) * uint64(rate)
}

// Period is the count of whole seasons elapsed before tick.
func Period(tick uint64, rate int) uint64 {
	n := SeasonTicks(rate)
	if n == 0 {
		return 0
	}
	return tick / n
}

// ArchiveSeasonSnapshot copies the first snapshot seen in each season period
// into worldDir/archives/period_<NNNN>/ with a meta.json. Later snapshots in
// an already archived period are skipped.
func ArchiveSeasonSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1) (meta SeasonArchiveMeta, archivedPath string, archived bool, err error) {
	seasonTicks := SeasonTicks(snap.TickRate)
	if seasonTicks == 0 {
		return meta, "", false, nil
	}
	errb := oops.In("archive").With("snapshot", snapshotPath)
	period := Period(snap.Header.Tick, snap.TickRate)
	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("period_%04d", period))
	if _, err := os.Stat(filepath.Join(archiveDir, "meta.json")); err == nil {
		return meta, "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return meta, "", false, errb.Wrapf(err, "mkdir")
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return meta, "", false, errb.Wrapf(err, "copy")
	}

	meta = SeasonArchiveMeta{
		Period:      period,
		Season:      int(period % 4),
		Tick:        snap.Header.Tick,
		Segment:     snap.Header.Segment,
		Snapshot:    filepath.Base(dst),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		SeasonTicks: seasonTicks,
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return meta, "", false, errb.Wrapf(err, "encode meta")
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return meta, "", false, errb.Wrapf(err, "write meta")
	}
	return meta, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
