package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"video-transcriber/infrastructure/ledger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded transcription runs",
	Long: `List recent runs from the history database, newest first.
Pass a run id to list the outcome of every video in that run.

Runs are recorded when history is enabled in the config file or
transcribe is called with --history.

Examples:
  video-transcriber history
  video-transcriber history --limit 5
  video-transcriber history 0f8c2b9e-6d1a-4c35-9a57-1d2e3f4a5b6c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	store, err := ledger.Open(c.History.Database)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	if len(args) == 1 {
		return RunHistoryShowWithDependencies(cmd.Context(), store, args[0], os.Stdout)
	}
	return RunHistoryWithDependencies(cmd.Context(), store, historyLimit, os.Stdout)
}

// RunHistoryWithDependencies lists recent runs (for testing)
func RunHistoryWithDependencies(ctx context.Context, store *ledger.Store, limit int, out OutputWriter) error {
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Source", "Written", "Failed", "Time", ""})
	for _, r := range runs {
		status := ""
		if r.Aborted {
			status = "aborted"
		}
		t.AppendRow(table.Row{
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%s %s", r.SourceKind, r.SourceID),
			r.Written,
			r.Failed,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			status,
		})
	}
	t.Render()
	return nil
}

// RunHistoryShowWithDependencies lists the videos of one run (for testing)
func RunHistoryShowWithDependencies(ctx context.Context, store *ledger.Store, runID string, out OutputWriter) error {
	run, cause, err := store.Run(ctx, runID)
	if err != nil {
		return err
	}
	videos, err := store.Videos(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s: %s %s, started %s\n", run.RunID, run.SourceKind, run.SourceID,
		run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.Aborted {
		fmt.Fprintf(out, "Aborted: %s\n", cause)
	}
	if len(videos) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Video", "State", "Output / Error", "Time"})
	for i, v := range videos {
		detail := v.OutputPath
		if v.Cause != "" {
			detail = fmt.Sprintf("%s: %s", v.Kind, v.Cause)
		}
		t.AppendRow(table.Row{i + 1, v.Name, v.State, detail, v.Duration.Round(time.Second)})
	}
	t.Render()
	return nil
}
