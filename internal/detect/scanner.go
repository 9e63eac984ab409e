package detect

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"replicasync/internal/archive"
	"replicasync/internal/common"
	"replicasync/internal/filter"
	"replicasync/internal/replica"
)

// Prober builds the row for a replica-relative path by probing every root.
type Prober[E archive.EntryState[E]] func(roots replica.Roots, rel string) archive.Row[E]

// ScanDirectoryContents adds a row to current for every direct child of dir
// found in any replica, skipping ignored paths. A path already in current is
// not probed again. When dir is not a directory in every replica, a row for
// dir itself is added too.
func ScanDirectoryContents[E archive.EntryState[E]](
	dir string,
	current map[string]archive.Row[E],
	roots replica.Roots,
	rules *filter.Rules,
	probe Prober[E],
) error {
	dir = common.NormalizePath(dir)
	presentInAll := true

	for i := range roots {
		absDir := roots.Join(i, dir)
		info, err := os.Stat(absDir)
		if err != nil || !info.IsDir() {
			presentInAll = false
			log.Infof("%s isn't a directory", absDir)
			continue
		}

		children, err := os.ReadDir(absDir)
		if err != nil {
			return fmt.Errorf("%w: failed to read directory %s: %w", common.ErrIO, absDir, err)
		}
		for _, child := range children {
			rel := common.JoinPath(dir, child.Name())
			if rules.IsIgnored(rel) {
				log.Infof("Ignoring entry %s", rel)
				continue
			}
			if _, ok := current[rel]; ok {
				continue
			}
			log.Tracef("Adding entry %s", rel)
			current[rel] = probe(roots, rel)
		}
	}

	if !presentInAll {
		if _, ok := current[dir]; !ok {
			current[dir] = probe(roots, dir)
		}
	}
	return nil
}
