package detect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"replicasync/internal/archive"
	"replicasync/internal/common"
	"replicasync/internal/replica"
)

// RootMissingError reports a configured replica root that is not on disk.
type RootMissingError struct {
	Root string
}

func (e *RootMissingError) Error() string {
	return fmt.Sprintf("%s: %s", common.ErrRootMissing, e.Root)
}

func (e *RootMissingError) Is(target error) bool {
	return target == common.ErrRootMissing
}

// CheckAllRootsExist fails on the first root that does not exist.
func CheckAllRootsExist(roots replica.Roots) error {
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &RootMissingError{Root: root}
			}
			return fmt.Errorf("%w: stat root %s: %w", common.ErrIO, root, err)
		}
	}
	return nil
}

// RowsIdentical checks that a path has the same state in every replica slot of
// both rows. Rows of different width are never identical.
func RowsIdentical[E archive.EntryState[E]](a, b archive.Row[E]) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
