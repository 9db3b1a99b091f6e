package world

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"piverse.ai/internal/persistence/snapshot"
)

func (w *World) ExportSnapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    tick,
			Segment: w.cfg.Segment,
		},
		TickRate:  w.tune.TickRateHz,
		Creatures: make([]snapshot.CreatureV1, 0, len(w.creatures)),
		Behavior:  w.sim.Snapshot(),
		Counters:  snapshot.CountersV1{NextPlayer: w.nextPlayer},
	}
	for _, c := range w.creatures {
		snap.Creatures = append(snap.Creatures, snapshot.CreatureV1{ID: c.ID, X: c.X, Z: c.Z})
	}
	for _, c := range w.collectibles {
		if c.Collected {
			snap.Collected = append(snap.Collected, c.ID)
		}
	}
	for _, f := range w.food {
		if !f.LastHarvested.IsZero() {
			snap.Harvested = append(snap.Harvested, snapshot.HarvestV1{FoodID: f.ID, At: f.LastHarvested})
		}
	}
	return snap
}

// ImportSnapshot restores runtime state over a freshly generated world of
// the same segment. The next step runs tick snap.Header.Tick+1.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	errb := oops.In("world").With("world_id", w.cfg.ID).With("tick", snap.Header.Tick)
	if snap.Header.Segment != w.cfg.Segment {
		return errb.Code("E_SEGMENT_MISMATCH").Errorf("snapshot segment %q does not match %q", snap.Header.Segment, w.cfg.Segment)
	}
	if err := w.sim.Restore(snap.Behavior); err != nil {
		return errb.Wrapf(err, "restore behavior")
	}

	pos := make(map[string]snapshot.CreatureV1, len(snap.Creatures))
	for _, c := range snap.Creatures {
		pos[c.ID] = c
	}
	for i := range w.creatures {
		if c, ok := pos[w.creatures[i].ID]; ok {
			w.creatures[i].X, w.creatures[i].Z = c.X, c.Z
		}
	}
	collected := make(map[string]bool, len(snap.Collected))
	for _, id := range snap.Collected {
		collected[id] = true
	}
	for i := range w.collectibles {
		if collected[w.collectibles[i].ID] {
			w.collectibles[i].Collected = true
			w.collectibles[i].Discovered = true
		}
	}
	for _, h := range snap.Harvested {
		if f := w.foodByID(h.FoodID); f != nil {
			f.LastHarvested = h.At
		}
	}

	w.nextPlayer = snap.Counters.NextPlayer
	w.tick.Store(snap.Header.Tick + 1)
	every := uint64(w.tune.WeatherEveryTicks)
	w.systemWeather(snap.Header.Tick - snap.Header.Tick%every)
	return nil
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)
	req := adminSnapshotReq{Resp: resp}

	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}

	errStr := ""
	if w.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else {
		snap := w.ExportSnapshot(snapTick)
		select {
		case w.snapshotSink <- snap:
		default:
			errStr = "snapshot sink backpressure"
		}
	}

	resp := adminSnapshotResp{Tick: snapTick, Err: errStr}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}
