package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replicasync/internal/common"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	run, err := j.Start(ctx, "scan", []string{"/a", "/b"})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)

	got, err := j.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.True(t, got.FinishedAt.IsZero())
	assert.Zero(t, got.Duration())

	require.NoError(t, j.Finish(ctx, run, 4, 2, nil))

	got, err = j.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "scan", got.Command)
	assert.Equal(t, []string{"/a", "/b"}, got.Roots)
	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, 4, got.Directories)
	assert.Equal(t, 2, got.Differences)
	assert.False(t, got.FinishedAt.IsZero())
	assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
}

func TestJournalFailedRun(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	run, err := j.Start(ctx, "record", []string{"/a", "/b"})
	require.NoError(t, err)
	require.NoError(t, j.Finish(ctx, run, 1, 0, errors.New("root does not exist: /b")))

	got, err := j.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "root does not exist: /b", got.Error)
}

func TestJournalRecent(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	var ids []uuid.UUID
	for _, cmd := range []string{"scan", "record", "scan"} {
		run, err := j.Start(ctx, cmd, []string{"/a", "/b"})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestJournalGetMissing(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJournalReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, path)
	require.NoError(t, err)
	run, err := j.Start(ctx, "scan", []string{"/a", "/b"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(ctx, path)
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, path, j.Path())

	got, err := j.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}
