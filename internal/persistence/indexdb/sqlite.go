package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"piverse.ai/internal/persistence/snapshot"
	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/world"
)

const defaultQueryLimit = 50

// SQLiteIndex is a read model over behavior events, ticks and snapshots.
// Writes are queued to one goroutine and dropped when it falls behind.
type SQLiteIndex struct {
	db     *sql.DB
	logger *log.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEvent    atomic.Uint64
	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqTick
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	event    behavior.Event
	tick     world.TickLogEntry
	snapshot SnapshotRow
	done     chan struct{}
}

type SnapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	Segment    string `json:"segment"`
	Creatures  int    `json:"creatures"`
	Behaviors  int    `json:"behaviors"`
	Events     int    `json:"events"`
	Patterns   int    `json:"patterns"`
	Collected  int    `json:"collected"`
	RecordedAt string `json:"recorded_at"`
}

type QueueStats struct {
	DropEventTotal    uint64 `json:"drop_event_total"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	errb := oops.In("indexdb").With("path", path)
	if strings.TrimSpace(path) == "" {
		return nil, errb.Code("E_INDEX_PATH").Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errb.Wrapf(err, "mkdir")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errb.Wrapf(err, "open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, errb.Wrapf(err, "pragmas")
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errb.Wrapf(err, "schema")
	}

	s := &SQLiteIndex{
		db:     db,
		logger: log.Default().WithPrefix("indexdb"),
		// Interaction bursts scale with population squared; keep a deep buffer.
		ch: make(chan req, 262144),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			creature_id TEXT NOT NULL,
			target_id TEXT,
			type TEXT NOT NULL,
			outcome TEXT NOT NULL,
			x REAL NOT NULL,
			z REAL NOT NULL,
			ts INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_creature_ts ON events(creature_id, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_ts ON events(type, ts);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			pickups INTEGER NOT NULL,
			harvests INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			segment TEXT NOT NULL,
			creatures INTEGER NOT NULL,
			behaviors INTEGER NOT NULL,
			events INTEGER NOT NULL,
			patterns INTEGER NOT NULL,
			collected INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordEvent queues a behavior event. It satisfies behavior.EventSink.
func (s *SQLiteIndex) RecordEvent(e behavior.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEvent, event: e}:
	default:
		// Drop if the indexer falls behind; the JSONL journal remains the source of truth.
		s.dropEvent.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SnapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Segment:    snap.Header.Segment,
		Creatures:  len(snap.Creatures),
		Behaviors:  len(snap.Behavior.Behaviors),
		Events:     len(snap.Behavior.Events),
		Patterns:   len(snap.Behavior.Patterns),
		Collected:  len(snap.Collected),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Flush waits until everything queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return oops.In("indexdb").Code("E_INDEX_CLOSED").Errorf("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		DropEventTotal:    s.dropEvent.Load(),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
	}
}

// EventsByCreature returns up to limit events recorded for creatureID,
// newest first. limit <= 0 means 50.
func (s *SQLiteIndex) EventsByCreature(ctx context.Context, creatureID string, limit int) ([]behavior.Event, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	errb := oops.In("indexdb").With("creature_id", creatureID)
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_json FROM events WHERE creature_id = ? ORDER BY ts DESC, rowid DESC LIMIT ?`,
		creatureID, limit)
	if err != nil {
		return nil, errb.Wrapf(err, "query events")
	}
	defer rows.Close()

	var out []behavior.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errb.Wrapf(err, "scan event")
		}
		var e behavior.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, errb.Wrapf(err, "decode event")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errb.Wrapf(err, "iterate events")
	}
	return out, nil
}

// Snapshots lists recorded snapshots, newest first.
func (s *SQLiteIndex) Snapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick,path,segment,creatures,behaviors,events,patterns,collected,recorded_at FROM snapshots ORDER BY tick DESC`)
	if err != nil {
		return nil, oops.In("indexdb").Wrapf(err, "query snapshots")
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var tick int64
		if err := rows.Scan(&tick, &r.Path, &r.Segment, &r.Creatures, &r.Behaviors, &r.Events, &r.Patterns, &r.Collected, &r.RecordedAt); err != nil {
			return nil, oops.In("indexdb").Wrapf(err, "scan snapshot")
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(id,creature_id,target_id,type,outcome,x,z,ts,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,actions,pickups,harvests) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,segment,creatures,behaviors,events,patterns,collected,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, insertTick, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.logger.Warn("commit failed", "err", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.logger.Warn("index write failed", "err", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback(err)
			return
		}
		opCount++
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEvent:
			e := r.event
			raw, _ := json.Marshal(e)
			exec(insertEvent,
				e.ID,
				e.CreatureID,
				e.TargetID,
				e.Type.String(),
				e.Outcome.String(),
				e.Location.X,
				e.Location.Z,
				e.Timestamp.UnixNano(),
				string(raw),
			)
		case reqTick:
			t := r.tick
			exec(insertTick,
				int64(t.Tick),
				t.Digest,
				len(t.Joins),
				len(t.Leaves),
				len(t.Actions),
				len(t.Pickups),
				len(t.Harvests),
			)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot,
				int64(sn.Tick),
				sn.Path,
				sn.Segment,
				sn.Creatures,
				sn.Behaviors,
				sn.Events,
				sn.Patterns,
				sn.Collected,
				sn.RecordedAt,
			)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
