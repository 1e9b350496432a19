package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing and summarizing past pipeline runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		src, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{
			Source: model.Source(src),
			Limit:  limit,
			Offset: offset,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		src, _ := cmd.Flags().GetString("source")
		filter := store.RunFilter{
			Source: model.Source(src),
			Limit:  10000, // high limit for stats
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		stats := computeRunStats(runs)
		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("source", "", "filter by source (linkedin, indeed, platsbanken, google_places)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsStatsCmd.Flags().String("source", "", "filter by source")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Failed     int
	Fetched    int
	Processed  int
	Valid      int
	Discarded  int
	Errors     int
	AvgDurSecs float64
}

// computeRunStats aggregates per-run statistics into totals.
func computeRunStats(runs []model.RunSummary) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		if r.Error != "" {
			s.Failed++
		}
		s.Fetched += r.Stats.Fetched
		s.Processed += r.Stats.Processed
		s.Valid += r.Stats.Valid
		s.Discarded += r.Stats.Discarded
		s.Errors += r.Stats.Errors

		if r.CompletedAt.After(r.StartedAt) {
			totalDur += r.CompletedAt.Sub(r.StartedAt)
			durCount++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tQUERY\tFETCHED\tVALID\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t-----\t-------\t-----\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()

		query := r.Query
		if len(query) > 30 {
			query = query[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.RunID),
			r.Source,
			query,
			r.Stats.Fetched,
			r.Stats.Valid,
			r.Stats.Errors,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Failed runs:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Items fetched:\t%d\n", s.Fetched)
	_, _ = fmt.Fprintf(w, "Items processed:\t%d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "  Valid:\t%d\n", s.Valid)
	_, _ = fmt.Fprintf(w, "  Discarded:\t%d\n", s.Discarded)
	_, _ = fmt.Fprintf(w, "  Errors:\t%d\n", s.Errors)
	if s.Processed > 0 {
		_, _ = fmt.Fprintf(w, "Valid rate:\t%.1f%%\n", 100*float64(s.Valid)/float64(s.Processed))
	}
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
