package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"piverse.ai/internal/errutil"
	"piverse.ai/internal/observability"
	"piverse.ai/internal/persistence/archive"
	"piverse.ai/internal/persistence/indexdb"
	persistlog "piverse.ai/internal/persistence/log"
	"piverse.ai/internal/persistence/snapshot"
	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/terrain/chunks"
	"piverse.ai/internal/sim/tuning"
	"piverse.ai/internal/sim/world"
	"piverse.ai/internal/transport/ws"
)

type serveConfig struct {
	addr        string
	metricsAddr string
	dataDir     string
	worldID     string
	index       bool
	admin       bool
	resume      bool
}

func newServeCmd(g *globalFlags) *cobra.Command {
	cfg := &serveConfig{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authoritative world server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, seg, err := g.loadTuning()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runServe(ctx, t, seg, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.addr, "addr", ":8080", "HTTP listen address")
	f.StringVar(&cfg.metricsAddr, "metrics-addr", "", "separate listener for /metrics and /healthz (main mux when empty)")
	f.StringVar(&cfg.dataDir, "data", "./data", "runtime data directory")
	f.StringVar(&cfg.worldID, "world", "world_1", "world id")
	f.BoolVar(&cfg.index, "index", true, "maintain the SQLite read model")
	f.BoolVar(&cfg.admin, "admin", true, "serve loopback-only /admin/v1 endpoints")
	f.BoolVar(&cfg.resume, "resume", true, "restore the latest snapshot on start")
	return cmd
}

func runServe(ctx context.Context, t tuning.Tuning, seg string, cfg *serveConfig) error {
	logger := log.Default().WithPrefix("server")
	errb := oops.In("server").With("world_id", cfg.worldID)

	worldDir := filepath.Join(cfg.dataDir, "worlds", cfg.worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return errb.Wrapf(err, "mkdir %s", snapDir)
	}
	if seg == "" {
		logger.Warn("empty digit segment; content will be degenerate", "start", t.Segment.Start)
	}

	reg := observability.NewRegistry()

	pool, err := chunks.NewPool(chunks.PoolConfig{
		Workers:      t.Terrain.Workers,
		Mode:         t.HeightmapMode(),
		Simplex:      t.SimplexParams(),
		CacheMaxCost: t.Terrain.CacheMaxCost,
	}, chunks.WithMetrics(chunks.NewMetrics(reg)))
	if err != nil {
		return err
	}
	pool.Start(ctx)
	defer pool.Wait()
	defer pool.Close()

	var idx *indexdb.SQLiteIndex
	if cfg.index {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return err
		}
		defer idx.Close()
		observability.RegisterIndex(reg, idx)
	}

	journal := persistlog.NewEventJournal(worldDir)
	defer journal.Close()
	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()

	var sink behavior.EventSink = journal
	if idx != nil {
		sink = multiEventSink{journal, idx}
	}
	w, err := world.New(world.WorldConfig{
		ID:        cfg.worldID,
		Segment:   seg,
		Tuning:    t,
		Pool:      pool,
		EventSink: sink,
		Logger:    log.Default().WithPrefix("world"),
	})
	if err != nil {
		return err
	}

	if cfg.resume {
		if path := snapshot.Latest(snapDir); path != "" {
			snap, err := snapshot.Read(path)
			if err != nil {
				return err
			}
			if err := w.ImportSnapshot(snap); err != nil {
				return errb.With("path", path).Wrapf(err, "restore snapshot")
			}
			logger.Info("restored snapshot", "path", path, "tick", snap.Header.Tick)
		}
	}

	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
	}

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(snapDir, snap.Header.Tick)
				if err := snapshot.Write(path, snap); err != nil {
					errutil.LogError(logger, "snapshot write", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
				if meta, dst, ok, err := archive.ArchiveSeasonSnapshot(worldDir, path, snap); err != nil {
					errutil.LogError(logger, "archive season snapshot", err)
				} else if ok {
					logger.Info("archived season snapshot", "period", meta.Period, "season", meta.Season, "path", dst)
				}
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			errutil.LogError(logger, "world stopped", err)
		}
	}()

	validator, err := protocol.NewValidator()
	if err != nil {
		return err
	}
	observability.RegisterWorld(reg, w)
	obs := observability.NewServer(cfg.metricsAddr, reg, func() bool { return ctx.Err() == nil })

	mux := http.NewServeMux()
	if cfg.metricsAddr == "" {
		obs.Routes(mux)
	} else {
		errCh, err := obs.Start()
		if err != nil {
			return err
		}
		go func() {
			for err := range errCh {
				errutil.LogError(logger, "metrics server", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = obs.Stop(sctx)
		}()
	}

	wsSrv := ws.NewServer(w, validator,
		ws.WithPool(pool),
		ws.WithMetrics(observability.NewSessionMetrics(reg)),
	)
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/v1/heightmap", wsSrv.HeightmapHandler())
	if cfg.admin {
		mountAdmin(mux, w)
	} else {
		logger.Info("admin endpoints disabled")
	}

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("listening", "addr", cfg.addr, "segment", seg, "mode", t.HeightmapMode())
	serveErr := srv.ListenAndServe()
	if serveErr == http.ErrServerClosed {
		serveErr = nil
	}
	if serveErr != nil {
		// Unblock the world and snapshot goroutines waiting on ctx.
		w.Stop()
	}
	<-worldDone
	if serveErr != nil {
		return errb.Wrapf(serveErr, "listen")
	}
	<-snapDone
	if idx != nil {
		fctx, fcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer fcancel()
		if err := idx.Flush(fctx); err != nil {
			errutil.LogError(logger, "index flush", err)
		}
	}
	return nil
}

// mountAdmin adds the loopback-only state and snapshot endpoints.
func mountAdmin(mux *http.ServeMux, w *world.World) {
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID string               `json:"world_id"`
			Params  protocol.WorldParams `json:"world_params"`
			Metrics world.WorldMetrics   `json:"metrics"`
		}{w.ID(), w.Params(), w.Metrics()})
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := w.RequestSnapshot(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiEventSink []behavior.EventSink

func (m multiEventSink) RecordEvent(e behavior.Event) {
	for _, s := range m {
		s.RecordEvent(e)
	}
}
