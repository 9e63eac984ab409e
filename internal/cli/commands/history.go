package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"replicasync/internal/journal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scan and record runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	j, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(out, "%s  %-6s  %-7s  %-16s  %4d dirs  %4d diffs  %s\n",
			run.ID.String()[:8],
			run.Command,
			run.Status,
			humanize.Time(run.StartedAt),
			run.Directories,
			run.Differences,
			run.Duration().Round(time.Millisecond),
		)
		if run.Error != "" {
			fmt.Fprintf(out, "          error: %s\n", run.Error)
		}
	}
	return nil
}
