package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"replicasync/internal/detect"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and check that every replica root exists",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Archive: %s\n", s.store.Directory())
	fmt.Fprintf(out, "Replicas: %d\n", s.roots.Len())
	for i, root := range s.roots {
		fmt.Fprintf(out, "  [%d] %s\n", i, root)
	}

	if err := detect.CheckAllRootsExist(s.roots); err != nil {
		return err
	}
	fmt.Fprintln(out, "All replica roots exist")
	return nil
}
