// Copyright 2024 Replicasync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"replicasync/internal/detect"
	"replicasync/internal/state"
)

var (
	scanDirs      []string
	scanNoJournal bool
	scanVerbose   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Report paths that changed since the replicas were last recorded",
	Long: `Walk all replicas breadth-first and compare every path with the state stored
in the archive by the last 'record'. The archive is not modified.

Examples:
  replicasync scan
  replicasync scan --dir photos/2024
  replicasync scan -r /mnt/laptop -r /mnt/backup`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringArrayVarP(&scanDirs, "dir", "d", nil, "start the walk at this replica-relative directory (repeatable)")
	scanCmd.Flags().BoolVar(&scanNoJournal, "no-journal", false, "do not record this run in the journal")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "print every directory as it is scanned")
	rootCmd.AddCommand(scanCmd)
}

func searchFor(dirs []string) *detect.SearchDirectories {
	if len(dirs) == 0 {
		return detect.SearchFromRoot()
	}
	return detect.NewSearchDirectories(dirs...)
}

func progressTo(w io.Writer, enabled bool) detect.ProgressCallback {
	if !enabled {
		return nil
	}
	return func(dir string) {
		if dir == "" {
			dir = "."
		}
		fmt.Fprintf(w, "Scanning %s\n", dir)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return recordRun(ctx, "scan", s.roots, scanNoJournal, func() (int, int, error) {
		result, err := detect.FindUpdates(ctx, s.store, searchFor(scanDirs), s.options(progressTo(out, scanVerbose)))
		if err != nil {
			return 0, 0, err
		}
		printDifferences(out, result)
		return result.Visited, len(result.Differences), nil
	})
}

func printDifferences(w io.Writer, result *detect.Result[state.Entry]) {
	if len(result.Differences) == 0 {
		fmt.Fprintf(w, "All in sync (%d directories scanned)\n", result.Visited)
		return
	}
	fmt.Fprintf(w, "%s (%d directories scanned)\n", english.Plural(len(result.Differences), "difference", ""), result.Visited)
	for _, d := range result.Differences {
		fmt.Fprintf(w, "\n%s\n", d.Path)
		for i, e := range d.Current {
			marker := " "
			if d.Previous == nil || !e.Equal(d.Previous[i]) {
				marker = "*"
			}
			fmt.Fprintf(w, "  %s[%d] %s\n", marker, i, describeEntry(e))
		}
	}
}
