package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"piverse.ai/internal/sim/tuning"
)

type globalFlags struct {
	logLevel   string
	logFormat  string
	tuningPath string
	digits     string
}

func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "piverse",
		Short: "πVerse world server and tools",
		Long: `πVerse derives a whole world from a segment of the digits of π:
creatures, weather, shelters, food, collectibles and chunked terrain.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return configureLogging(g.logLevel, g.logFormat)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "text", "text or json")
	pf.StringVar(&g.tuningPath, "tuning", "", "tuning.yaml path (defaults when empty)")
	pf.StringVar(&g.digits, "segment", "", "explicit digit segment, overrides tuning")

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newGenCmd(g))
	cmd.AddCommand(newHeightmapCmd(g))
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newBotCmd())
	return cmd
}

func configureLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return oops.In("cli").With("level", level).Wrapf(err, "log-level")
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)
	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(log.TextFormatter)
	case "json":
		log.SetFormatter(log.JSONFormatter)
	default:
		return oops.In("cli").With("format", format).Errorf("log-format must be text or json")
	}
	return nil
}

// loadTuning reads the tuning file and applies the --segment override.
func (g *globalFlags) loadTuning() (tuning.Tuning, string, error) {
	t, err := tuning.Load(g.tuningPath)
	if err != nil {
		return t, "", err
	}
	if d := strings.TrimSpace(g.digits); d != "" {
		t.Segment.Digits = d
		if err := t.Validate(); err != nil {
			return t, "", err
		}
	}
	seg, err := t.Segment.Resolve()
	if err != nil {
		return t, "", err
	}
	return t, seg, nil
}
