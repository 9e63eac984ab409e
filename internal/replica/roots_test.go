package replica

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replicasync/internal/common"
)

func TestNewRoots(t *testing.T) {
	t.Parallel()

	t.Run("resolves relative roots", func(t *testing.T) {
		t.Parallel()
		roots, err := NewRoots("a", "b")
		require.NoError(t, err)
		require.Equal(t, 2, roots.Len())
		for _, r := range roots {
			assert.True(t, filepath.IsAbs(r), "root %q should be absolute", r)
		}
	})

	t.Run("rejects a single root", func(t *testing.T) {
		t.Parallel()
		_, err := NewRoots("/tmp/a")
		assert.ErrorIs(t, err, common.ErrTooFewRoots)
	})

	t.Run("rejects duplicates after resolution", func(t *testing.T) {
		t.Parallel()
		_, err := NewRoots("/tmp/a", "/tmp/a/", "/tmp/b")
		assert.ErrorIs(t, err, common.ErrDuplicateRoot)
	})
}

func TestRootsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Roots{"/a", "/b", "/c"}.Validate())
	assert.ErrorIs(t, Roots{"/a", "b"}.Validate(), common.ErrInvalidPath)
	assert.ErrorIs(t, Roots{}.Validate(), common.ErrTooFewRoots)
}

func TestRootsJoin(t *testing.T) {
	t.Parallel()

	roots := Roots{"/a", "/b"}
	assert.Equal(t, "/b/docs/x.txt", roots.Join(1, "docs/x.txt"))
	assert.Equal(t, "/a", roots.Join(0, ""))
}
