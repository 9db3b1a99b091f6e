package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piverse.ai/internal/persistence/snapshot"
	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/world"
)

func openTest(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestQueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	s.RecordEvent(behavior.Event{ID: "event-1"})
	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	assert.Equal(t, uint64(1), st.DropEventTotal)
	assert.Equal(t, uint64(1), st.DropTickTotal)
	assert.Equal(t, uint64(1), st.DropSnapshotTotal)
	assert.Equal(t, 1, st.QueueDepth)
	assert.Equal(t, 1, st.QueueCapacity)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := OpenSQLite(" ")
	require.Error(t, err)
}

func TestEventsByCreatureNewestFirst(t *testing.T) {
	s := openTest(t)
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	for i, id := range []string{"event-a", "event-b", "event-c"} {
		s.RecordEvent(behavior.Event{
			ID:         id,
			CreatureID: "creature-0",
			TargetID:   "creature-1",
			Type:       behavior.Hunting,
			Outcome:    behavior.Success,
			Location:   behavior.Location{X: float64(i), Z: 2},
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		})
	}
	s.RecordEvent(behavior.Event{ID: "event-x", CreatureID: "creature-9", Timestamp: base})

	ctx := context.Background()
	require.NoError(t, s.Flush(ctx))

	got, err := s.EventsByCreature(ctx, "creature-0", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "event-c", got[0].ID)
	assert.Equal(t, "event-a", got[2].ID)
	assert.Equal(t, behavior.Hunting, got[0].Type)
	assert.Equal(t, 2.0, got[0].Location.X)

	got, err = s.EventsByCreature(ctx, "creature-0", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.EventsByCreature(ctx, "creature-404", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordSnapshotAndTicks(t *testing.T) {
	s := openTest(t)
	s.RecordSnapshot("/data/3000.snap.zst", snapshot.SnapshotV1{
		Header:    snapshot.Header{Tick: 3000, Segment: "3141592653"},
		Creatures: make([]snapshot.CreatureV1, 10),
		Collected: []string{"a", "b"},
		Behavior:  behavior.State{Behaviors: make([]behavior.Behavior, 20)},
	})
	s.RecordSnapshot("/data/6000.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Tick: 6000, Segment: "3141592653"}})
	require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: 5, Digest: "d", Joins: []world.RecordedJoin{{PlayerID: "P000001"}}}))

	ctx := context.Background()
	require.NoError(t, s.Flush(ctx))

	rows, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(6000), rows[0].Tick)
	assert.Equal(t, "/data/3000.snap.zst", rows[1].Path)
	assert.Equal(t, 10, rows[1].Creatures)
	assert.Equal(t, 20, rows[1].Behaviors)
	assert.Equal(t, 2, rows[1].Collected)

	var joins int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT joins FROM ticks WHERE tick = 5`).Scan(&joins))
	assert.Equal(t, 1, joins)
}

func TestWritesAfterCloseAreIgnored(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s.RecordEvent(behavior.Event{ID: "late"})
	require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: 1}))
	assert.Error(t, s.Flush(context.Background()))
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.sqlite")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	s.RecordEvent(behavior.Event{ID: "event-1", CreatureID: "creature-3", Timestamp: time.Unix(10, 0)})
	require.NoError(t, s.Close())

	s = openTestAt(t, path)
	got, err := s.EventsByCreature(context.Background(), "creature-3", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "event-1", got[0].ID)
}

func openTestAt(t *testing.T, path string) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
