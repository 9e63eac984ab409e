// Package replica describes the fixed set of replica roots a sync session works on.
package replica

import (
	"fmt"
	"path/filepath"

	"github.com/samber/lo"

	"replicasync/internal/common"
)

// Index is a position in a Roots list. It stays stable for a whole session.
type Index = int

// Roots is the ordered list of replica root directories. Every row of
// per-replica state is aligned to this order and has exactly Len() slots.
type Roots []string

// NewRoots resolves every path to an absolute one and validates the result.
func NewRoots(paths ...string) (Roots, error) {
	roots := make(Roots, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %q: %w", p, err)
		}
		roots[i] = abs
	}
	if err := roots.Validate(); err != nil {
		return nil, err
	}
	return roots, nil
}

// Validate checks the replica count and rejects duplicate or relative roots.
func (r Roots) Validate() error {
	if len(r) < 2 {
		return fmt.Errorf("%w: got %d", common.ErrTooFewRoots, len(r))
	}
	for _, root := range r {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("%w: root %q is not absolute", common.ErrInvalidPath, root)
		}
	}
	if dups := lo.FindDuplicates(r); len(dups) > 0 {
		return fmt.Errorf("%w: %s", common.ErrDuplicateRoot, dups[0])
	}
	return nil
}

// Len returns the replica count N.
func (r Roots) Len() int {
	return len(r)
}

// Join returns the absolute path of rel inside replica i.
func (r Roots) Join(i Index, rel string) string {
	return filepath.Join(r[i], rel)
}
