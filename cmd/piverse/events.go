package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"piverse.ai/internal/persistence/indexdb"
	persistlog "piverse.ai/internal/persistence/log"
	"piverse.ai/internal/sim/behavior"
)

type eventsConfig struct {
	index    string
	creature string
	limit    int
}

func newEventsCmd() *cobra.Command {
	cfg := &eventsConfig{}
	cmd := &cobra.Command{
		Use:   "events [journal file or directory ...]",
		Short: "Print recorded behavior events as JSON lines",
		Long: `Reads behavior events either from the compressed JSONL journal
(files or the events/ directory of a world) or, with --index, from the
SQLite read model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.index != "" {
				return runEventsIndex(cmd.Context(), cmd.OutOrStdout(), cfg)
			}
			if len(args) == 0 {
				return oops.In("cli").Errorf("need a journal path or --index")
			}
			return runEventsJournal(cmd.OutOrStdout(), args, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.index, "index", "", "SQLite index path")
	f.StringVar(&cfg.creature, "creature", "", "only events initiated by this creature")
	f.IntVar(&cfg.limit, "limit", 50, "maximum events from the index")
	return cmd
}

func runEventsIndex(ctx context.Context, w io.Writer, cfg *eventsConfig) error {
	if cfg.creature == "" {
		return oops.In("cli").Errorf("--index needs --creature")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	idx, err := indexdb.OpenSQLite(cfg.index)
	if err != nil {
		return err
	}
	defer idx.Close()
	evs, err := idx.EventsByCreature(ctx, cfg.creature, cfg.limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, e := range evs {
		if err := enc.Encode(e); err != nil {
			return oops.In("cli").Wrapf(err, "encode")
		}
	}
	return nil
}

func runEventsJournal(w io.Writer, args []string, cfg *eventsConfig) error {
	files, err := journalFiles(args)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(raw json.RawMessage) error {
			if cfg.creature != "" {
				var e behavior.Event
				if err := json.Unmarshal(raw, &e); err != nil {
					return oops.In("cli").With("path", path).Wrapf(err, "decode event")
				}
				if e.CreatureID != cfg.creature {
					return nil
				}
			}
			return enc.Encode(raw)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// journalFiles expands directories to their .jsonl.zst files in name order,
// which is chronological for hourly files.
func journalFiles(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		st, err := os.Stat(a)
		if err != nil {
			return nil, oops.In("cli").With("path", a).Wrapf(err, "stat")
		}
		if !st.IsDir() {
			out = append(out, a)
			continue
		}
		ents, err := os.ReadDir(a)
		if err != nil {
			return nil, oops.In("cli").With("path", a).Wrapf(err, "read dir")
		}
		var names []string
		for _, e := range ents {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl.zst") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(a, n))
		}
	}
	return out, nil
}
