package archive

import (
	"path/filepath"

	"github.com/cespare/xxhash"
)

// HashedPath is the 64-bit digest of a replica-relative path. It names archive
// files and keys the rows inside them. Collisions are not detected.
type HashedPath = uint64

// Hash returns the digest of path. Paths are cleaned first so "a/" and "a"
// share a key; otherwise the digest depends only on the path bytes and is
// stable across processes.
func Hash(path string) HashedPath {
	return xxhash.Sum64String(filepath.Clean(path))
}
