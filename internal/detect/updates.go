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

// Package detect finds paths whose state differs between replicas, or has
// changed since the archive last recorded them.
//
// The walk is breadth-first over replica-relative directories. For each
// directory it locks and reads that directory's archive file, scans the
// children in every replica, and compares each current row with the archived
// one. Directories that exist in any replica are queued for the next level.
package detect

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"replicasync/internal/archive"
	"replicasync/internal/common"
	"replicasync/internal/filter"
	"replicasync/internal/replica"
	"replicasync/internal/util"
)

// DirState is an entry state that also knows whether it is a directory.
type DirState[E any] interface {
	archive.EntryState[E]
	IsDir() bool
}

// SearchDirectories is the queue of directories still to visit.
type SearchDirectories struct {
	Directories []string
}

// SearchFromRoot starts a walk at the replica roots.
func SearchFromRoot() *SearchDirectories {
	return &SearchDirectories{Directories: []string{""}}
}

// NewSearchDirectories starts a walk at the given replica-relative directories.
func NewSearchDirectories(dirs ...string) *SearchDirectories {
	return &SearchDirectories{Directories: lo.Uniq(lo.Map(dirs, func(d string, _ int) string {
		return common.NormalizePath(d)
	}))}
}

// validate rejects start directories that escape the replica roots.
func (s *SearchDirectories) validate() error {
	for _, dir := range s.Directories {
		if !common.IsWithin(dir) {
			return fmt.Errorf("%w: %q is outside the replica roots", common.ErrInvalidPath, dir)
		}
	}
	return nil
}

func (s *SearchDirectories) pop() (string, bool) {
	if len(s.Directories) == 0 {
		return "", false
	}
	dir := s.Directories[0]
	s.Directories = s.Directories[1:]
	return dir, true
}

// Difference is a path whose current row differs from the archived one.
// Previous is nil when the archive has no row for the path.
type Difference[E archive.EntryState[E]] struct {
	Path     string
	Current  archive.Row[E]
	Previous archive.Row[E]
}

// Result summarizes a walk.
type Result[E archive.EntryState[E]] struct {
	Differences []Difference[E]
	Visited     int
}

// ProgressCallback is told about each directory as the walk reaches it.
type ProgressCallback func(dir string)

// Options carries what a walk needs besides the archive.
type Options[E DirState[E]] struct {
	Roots     replica.Roots
	Rules     *filter.Rules
	Probe     Prober[E]
	Progress  ProgressCallback
	LockRetry util.LockRetry
}

func (o *Options[E]) validate() error {
	if err := o.Roots.Validate(); err != nil {
		return err
	}
	if o.Probe == nil {
		return fmt.Errorf("detect: no prober configured")
	}
	return nil
}

// FindUpdates walks the replicas and returns every path that changed since
// the archive last recorded it, in walk order. The archive is not modified.
func FindUpdates[E DirState[E]](
	ctx context.Context,
	store *archive.Archive,
	search *SearchDirectories,
	opts Options[E],
) (*Result[E], error) {
	result := &Result[E]{}
	// a directory missing from some replica gets a row from its parent's scan
	// and another from its own
	reported := make(map[string]struct{})
	err := walk(ctx, search, opts, func(dir string, current map[string]archive.Row[E]) error {
		previous, err := readArchived(ctx, store, dir, opts)
		if err != nil {
			return err
		}
		for _, path := range slices.Sorted(maps.Keys(current)) {
			row := current[path]
			prev, ok := previous.Get(path)
			if ok && RowsIdentical(row, prev) {
				continue
			}
			if !ok && row.AllEmpty() {
				continue
			}
			if _, dup := reported[path]; dup {
				continue
			}
			reported[path] = struct{}{}
			log.Debugf("Difference at %s", path)
			result.Differences = append(result.Differences, Difference[E]{
				Path:     path,
				Current:  row,
				Previous: prev,
			})
		}
		result.Visited++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordState walks the replicas like FindUpdates and stores the current
// state of every visited directory in the archive, so the next FindUpdates
// reports only what changed afterwards. It returns the number of directories
// written.
func RecordState[E DirState[E]](
	ctx context.Context,
	store *archive.Archive,
	search *SearchDirectories,
	opts Options[E],
) (int, error) {
	written := 0
	err := walk(ctx, search, opts, func(dir string, current map[string]archive.Row[E]) error {
		entries := archive.NewEntries[E](opts.Roots.Len())
		for path, row := range current {
			if err := entries.Insert(path, row); err != nil {
				return err
			}
		}
		f := store.ForDirectory(dir)
		defer f.Close()

		err := util.Retry(ctx, func() error {
			return archive.Write(f, entries)
		}, util.LockRetryOptions(ctx, opts.LockRetry)...)
		if err != nil {
			return err
		}
		written++
		return nil
	})
	return written, err
}

// readArchived loads the archived rows of dir and releases the lock again.
func readArchived[E DirState[E]](ctx context.Context, store *archive.Archive, dir string, opts Options[E]) (*archive.Entries[E], error) {
	f := store.ForDirectory(dir)
	defer f.Close()

	return util.RetryWithResult(ctx, func() (*archive.Entries[E], error) {
		return archive.Read[E](f, opts.Roots.Len())
	}, util.LockRetryOptions(ctx, opts.LockRetry)...)
}

type visitFunc[E DirState[E]] func(dir string, current map[string]archive.Row[E]) error

func walk[E DirState[E]](ctx context.Context, search *SearchDirectories, opts Options[E], visit visitFunc[E]) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if err := search.validate(); err != nil {
		return err
	}
	if err := CheckAllRootsExist(opts.Roots); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir, ok := search.pop()
		if !ok {
			return nil
		}
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}

		if opts.Progress != nil {
			opts.Progress(dir)
		}
		log.Debugf("Scanning directory %q", dir)

		current := make(map[string]archive.Row[E])
		if err := ScanDirectoryContents(dir, current, opts.Roots, opts.Rules, opts.Probe); err != nil {
			return err
		}
		if err := visit(dir, current); err != nil {
			return fmt.Errorf("directory %q: %w", dir, err)
		}

		for _, path := range slices.Sorted(maps.Keys(current)) {
			if path == dir {
				continue
			}
			if lo.SomeBy(current[path], func(e E) bool { return e.IsDir() }) {
				search.Directories = append(search.Directories, path)
			}
		}
	}
}
