package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"replicasync/internal/archive"
	"replicasync/internal/detect"
	"replicasync/internal/filter"
	"replicasync/internal/journal"
	"replicasync/internal/replica"
	"replicasync/internal/state"
)

// session bundles what every replica command needs.
type session struct {
	roots replica.Roots
	rules *filter.Rules
	store *archive.Archive
}

func openSession() (*session, error) {
	roots, err := cfg.ReplicaRoots()
	if err != nil {
		return nil, fmt.Errorf("invalid roots: %w", err)
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	store, err := archive.New(cfg.ArchiveDir)
	if err != nil {
		return nil, err
	}
	return &session{roots: roots, rules: rules, store: store}, nil
}

func (s *session) options(progress detect.ProgressCallback) detect.Options[state.Entry] {
	return detect.Options[state.Entry]{
		Roots:     s.roots,
		Rules:     s.rules,
		Probe:     state.FromRoots,
		Progress:  progress,
		LockRetry: cfg.LockRetryPolicy(),
	}
}

// recordRun runs fn and stores its outcome in the journal. Journal failures
// are reported but never fail the command.
func recordRun(ctx context.Context, command string, roots replica.Roots, noJournal bool, fn func() (dirs, diffs int, err error)) error {
	if noJournal {
		_, _, err := fn()
		return err
	}

	j, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run journal unavailable: %v\n", err)
		_, _, err := fn()
		return err
	}
	defer j.Close()

	run, err := j.Start(ctx, command, roots)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	dirs, diffs, runErr := fn()

	if run != nil {
		if err := j.Finish(ctx, run, dirs, diffs, runErr); err != nil {
			log.Warnf("Failed to finish run %s: %v", run.ID, err)
		}
	}
	return runErr
}

// describeEntry renders one replica's state for terminal output.
func describeEntry(e state.Entry) string {
	switch e.Kind {
	case state.KindEmpty:
		return "(absent)"
	case state.KindFile:
		return fmt.Sprintf("file %s %s, modified %s",
			e.Mode, humanize.IBytes(uint64(e.Size)), humanize.Time(time.Unix(0, e.ModTime)))
	case state.KindDirectory:
		return fmt.Sprintf("dir  %s", e.Mode)
	case state.KindSymlink:
		return fmt.Sprintf("link -> %s", e.Target)
	default:
		return e.Kind.String()
	}
}
