package main

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"piverse.ai/internal/protocol"
)

type botConfig struct {
	url       string
	name      string
	mode      string
	moveEvery uint64
	step      float64
	maxObs    int
}

type botStats struct {
	PlayerID string
	Mode     string
	Obs      int
	Moves    int
	Pickups  int
	Chunks   int
}

func newBotCmd() *cobra.Command {
	cfg := &botConfig{}
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Connect a wandering test client to a server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			st, err := runBot(ctx, cfg, log.Default().WithPrefix("bot"))
			if err != nil {
				return err
			}
			cmd.Printf("player=%s obs=%d moves=%d pickups=%d chunks=%d\n", st.PlayerID, st.Obs, st.Moves, st.Pickups, st.Chunks)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.url, "url", "ws://localhost:8080/v1/ws", "session websocket url")
	f.StringVar(&cfg.name, "name", "bot", "player name")
	f.StringVar(&cfg.mode, "mode", "", "exploration or survival (server default when empty)")
	f.Uint64Var(&cfg.moveEvery, "move-every", 5, "ticks between random steps")
	f.Float64Var(&cfg.step, "step", 2, "largest step per axis")
	f.IntVar(&cfg.maxObs, "max-obs", 0, "disconnect after this many observations (0 runs until interrupted)")
	return cmd
}

func runBot(ctx context.Context, cfg *botConfig, logger *log.Logger) (botStats, error) {
	var st botStats
	errb := oops.In("bot").With("url", cfg.url)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.url, nil)
	if err != nil {
		return st, errb.Wrapf(err, "dial")
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      cfg.name,
		MaxQueue:        8,
		GameMode:        cfg.mode,
	}
	if err := conn.WriteJSON(hello); err != nil {
		return st, errb.Wrapf(err, "send HELLO")
	}

	every := cfg.moveEvery
	if every == 0 {
		every = 1
	}
	for cfg.maxObs <= 0 || st.Obs < cfg.maxObs {
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return st, nil
			}
			return st, errb.Wrapf(err, "read")
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			st.PlayerID = w.PlayerID
			st.Mode = w.WorldParams.GameMode
			logger.Info("welcome", "player", w.PlayerID, "segment", w.WorldParams.Segment,
				"tick_rate", w.WorldParams.TickRateHz, "mode", w.WorldParams.GameMode)

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Warn("server error", "code", e.Code, "message", e.Message)
				if e.Code == protocol.ErrBadVersion {
					return st, errb.Code(e.Code).Errorf("%s", e.Message)
				}
			}

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			st.Obs++
			st.Chunks += len(obs.Chunks)
			for _, ev := range obs.Events {
				if ev["type"] == "PICKUP" {
					st.Pickups++
					logger.Info("pickup", "collectible", ev["collectible_id"], "score", obs.Self.Score)
				}
			}
			if obs.Tick%every == 0 {
				mv := protocol.MoveMsg{
					Type:            protocol.TypeMove,
					ProtocolVersion: protocol.Version,
					DX:              (rand.Float64()*2 - 1) * cfg.step,
					DZ:              (rand.Float64()*2 - 1) * cfg.step,
				}
				if err := conn.WriteJSON(mv); err != nil {
					return st, errb.Wrapf(err, "send MOVE")
				}
				st.Moves++
			}
		}
	}
	return st, nil
}
