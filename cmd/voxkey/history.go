package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxkey/internal/app"
	"github.com/MrWong99/voxkey/internal/config"
	"github.com/MrWong99/voxkey/pkg/history"
	"github.com/MrWong99/voxkey/pkg/history/postgres"
)

const historyConnectTimeout = 10 * time.Second

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "Show recent transcripts from the history database",
	Long: `Show the most recent dictation outcomes recorded in history.dsn.
With a query, only successful transcripts matching it are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, _, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.History.Enabled() {
			return errors.New("history.dsn is not configured")
		}
		store, err := openHistory(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		var entries []history.Entry
		if len(args) == 1 {
			entries, err = store.Search(cmd.Context(), args[0], historyLimit)
		} else {
			entries, err = store.Recent(cmd.Context(), historyLimit)
		}
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), entries)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of transcripts")
}

// openHistory connects to the transcript database. It returns nil without
// error when history is disabled.
func openHistory(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if !cfg.History.Enabled() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, historyConnectTimeout)
	defer cancel()
	store, err := postgres.NewStore(ctx, cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// historyOptions returns the service options recording into store.
func historyOptions(store *postgres.Store) []app.Option {
	if store == nil {
		return nil
	}
	return []app.Option{app.WithHistory(store)}
}

func printHistory(w io.Writer, entries []history.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tVARIANT\tTRANSCRIPT")
	for _, e := range entries {
		text := e.Text
		if e.ErrorKind != "" {
			text = "(" + e.ErrorKind + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Duration.Round(100*time.Millisecond),
			e.Variant,
			strings.ReplaceAll(text, "\n", " "),
		)
	}
	return tw.Flush()
}
