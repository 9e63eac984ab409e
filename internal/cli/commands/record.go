package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"replicasync/internal/detect"
)

var (
	recordDirs      []string
	recordNoJournal bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Store the current state of all replicas in the archive",
	Long: `Walk all replicas and overwrite the archive with what is on disk now. Run it
after the replicas were brought in sync so the next 'scan' only reports new
changes.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringArrayVarP(&recordDirs, "dir", "d", nil, "start the walk at this replica-relative directory (repeatable)")
	recordCmd.Flags().BoolVar(&recordNoJournal, "no-journal", false, "do not record this run in the journal")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	return recordRun(ctx, "record", s.roots, recordNoJournal, func() (int, int, error) {
		written, err := detect.RecordState(ctx, s.store, searchFor(recordDirs), s.options(nil))
		if err != nil {
			return written, 0, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d directories\n", written)
		return written, 0, nil
	})
}
