package commands

import (
	"fmt"
	"os"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"replicasync/internal/archive"
	"replicasync/internal/common"
	"replicasync/internal/detect"
	"replicasync/internal/state"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the archive files",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archive files",
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

var archiveShowCmd = &cobra.Command{
	Use:   "show [dir]",
	Short: "Show the rows archived for a replica-relative directory",
	Long: `Show the rows archived for a replica-relative directory (default: the roots).

Rows are keyed by path hash. Hashes that match a path currently found in any
replica are printed with that path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArchiveShow,
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	rootCmd.AddCommand(archiveCmd)
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	store, err := archive.New(cfg.ArchiveDir)
	if err != nil {
		return err
	}
	hashes, err := store.Hashes()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Archive: %s (%d files)\n", store.Directory(), len(hashes))
	for _, h := range hashes {
		f := store.ForHashedDirectory(h)
		info, err := os.Stat(f.Path())
		if err != nil {
			// removed since listing
			continue
		}
		fmt.Fprintf(out, "  %-20d %10s  %s\n", h, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
	return nil
}

func runArchiveShow(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	dir := ""
	if len(args) > 0 {
		dir = common.NormalizePath(args[0])
	}
	if !common.IsWithin(dir) {
		return fmt.Errorf("%w: %s is outside the replicas", common.ErrInvalidPath, args[0])
	}

	f := s.store.ForDirectory(dir)
	defer f.Close()
	entries, err := archive.Read[state.Entry](f, s.roots.Len())
	if err != nil {
		return err
	}
	// release the lock before probing replicas
	if err := f.Close(); err != nil {
		return err
	}

	labels := make(map[archive.HashedPath]string)
	if detect.CheckAllRootsExist(s.roots) == nil {
		current := make(map[string]archive.Row[state.Entry])
		if err := detect.ScanDirectoryContents(dir, current, s.roots, nil, state.FromRoots); err == nil {
			for path := range current {
				labels[archive.Hash(path)] = path
			}
		}
	}
	labels[archive.Hash(dir)] = dir

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s for %q: %d rows\n", f, dir, entries.Len())

	rows := make(map[archive.HashedPath]archive.Row[state.Entry], entries.Len())
	for h, row := range entries.All() {
		rows[h] = row
	}
	keys := lo.Keys(rows)
	slices.Sort(keys)
	for _, h := range keys {
		label, ok := labels[h]
		if !ok {
			label = fmt.Sprintf("#%d", h)
		}
		fmt.Fprintf(out, "\n%s\n", label)
		for i, e := range rows[h] {
			fmt.Fprintf(out, "  [%d] %s\n", i, describeEntry(e))
		}
	}
	return nil
}
