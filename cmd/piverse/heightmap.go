package main

import (
	"encoding/json"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/terrain/chunks"
	"piverse.ai/internal/sim/terrain/heightmap"
	"piverse.ai/internal/sim/tuning"
)

type heightmapConfig struct {
	cx, cz int
	res    int
	mode   string
	digits int
}

func newHeightmapCmd(g *globalFlags) *cobra.Command {
	cfg := &heightmapConfig{}
	cmd := &cobra.Command{
		Use:   "heightmap",
		Short: "Print one chunk heightmap as a worker-channel message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, seg, err := g.loadTuning()
			if err != nil {
				return err
			}
			return runHeightmap(cmd.OutOrStdout(), t, seg, cfg)
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.cx, "cx", 0, "chunk x")
	f.IntVar(&cfg.cz, "cz", 0, "chunk z")
	f.IntVar(&cfg.res, "res", 0, "samples per side (tuning near_res when 0)")
	f.StringVar(&cfg.mode, "mode", "", "sine or simplex (tuning terrain.mode when empty)")
	f.IntVar(&cfg.digits, "digits", 0, "print the size×size direct digit grid instead")
	return cmd
}

func runHeightmap(w io.Writer, t tuning.Tuning, seg string, cfg *heightmapConfig) error {
	errb := oops.In("cli")
	enc := json.NewEncoder(w)
	if cfg.digits > 0 {
		if err := enc.Encode(heightmap.FromDigits(seg, cfg.digits)); err != nil {
			return errb.Wrapf(err, "encode")
		}
		return nil
	}

	mode := t.HeightmapMode()
	if cfg.mode != "" {
		m, ok := heightmap.ParseMode(cfg.mode)
		if !ok {
			return errb.With("mode", cfg.mode).Errorf("mode must be sine or simplex")
		}
		mode = m
	}
	res := cfg.res
	if res <= 0 {
		res = t.Terrain.NearRes
	}
	key := chunks.Key{CX: cfg.cx, CZ: cfg.cz, Res: res}
	hm := heightmap.Generate(heightmap.Request{
		Segment: seg, CX: cfg.cx, CZ: cfg.cz, Res: res,
		Mode: mode, Simplex: t.SimplexParams(),
	})
	msg := protocol.HeightmapMsg{
		Type:   protocol.TypeHeightmap,
		Key:    key.String(),
		Width:  hm.Width,
		Height: hm.Height,
		Data:   hm.Data,
	}
	if err := enc.Encode(msg); err != nil {
		return errb.Wrapf(err, "encode")
	}
	return nil
}
