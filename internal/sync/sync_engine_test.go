package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/openmined/dossier/internal/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, remote Remote, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithLockDir(t.TempDir()),
		WithScanWorkers(4),
		WithUploadWorkers(4),
		WithUploadChunkSize(8),
	}, opts...)
	return NewEngine(remote, opts...)
}

func TestEngineSyncMirrorsDirectory(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	root := t.TempDir()
	writeLocal(t, root, "readme.md", "# hello")
	writeLocal(t, root, "data/rows.csv", "a,b,c\n1,2,3\n")
	writeLocal(t, root, "data/nested/empty", "")

	// outside the prefix, must survive
	putRemote(t, remote, "/other/keep.txt", "keep")
	putRemote(t, remote, "/site/stale.txt", "stale")

	engine := newTestEngine(t, remote)
	var progress []Progress
	report, err := engine.Sync(ctx, root, "site", func(p Progress) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Plan.Count(OpCreate))
	assert.Equal(t, 1, report.Plan.Count(OpDelete))
	assert.Len(t, progress, 4)

	listed, err := remote.ListFiles(ctx, "/site/")
	require.NoError(t, err)
	assert.Equal(t, map[string]digest.Digest{
		"/site/readme.md":         digest.Sum([]byte("# hello")),
		"/site/data/rows.csv":     digest.Sum([]byte("a,b,c\n1,2,3\n")),
		"/site/data/nested/empty": digest.Sum(nil),
	}, listed)
	assert.Equal(t, "a,b,c\n1,2,3\n", readRemote(t, remote, "/site/data/rows.csv"))
	assert.Equal(t, "keep", readRemote(t, remote, "/other/keep.txt"))
}

func TestEngineSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	root := t.TempDir()
	writeLocal(t, root, "a.txt", "a")
	writeLocal(t, root, "b/c.txt", "c")

	engine := newTestEngine(t, remote)
	_, err := engine.Sync(ctx, root, "/p/", nil)
	require.NoError(t, err)

	plan, err := engine.Plan(ctx, root, "/p/")
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 2, plan.Unchanged)

	report, err := engine.Sync(ctx, root, "/p/", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
}

func TestEngineSyncFollowsLocalChanges(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	root := t.TempDir()
	writeLocal(t, root, "a.txt", "first version, long enough for several chunks")
	gone := writeLocal(t, root, "gone.txt", "bye")

	engine := newTestEngine(t, remote)
	_, err := engine.Sync(ctx, root, "/p/", nil)
	require.NoError(t, err)

	writeLocal(t, root, "a.txt", "second")
	require.NoError(t, os.Remove(gone))

	report, err := engine.Sync(ctx, root, "/p/", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Plan.Count(OpReplace))
	assert.Equal(t, 1, report.Plan.Count(OpDelete))

	assert.Equal(t, "second", readRemote(t, remote, "/p/a.txt"))
	listed, err := remote.ListFiles(ctx, "/p/")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestEngineSyncIgnore(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	root := t.TempDir()
	writeLocal(t, root, "keep.txt", "k")
	writeLocal(t, root, "debug.log", "noise")
	putRemote(t, remote, "/p/server.log", "remote only")

	engine := newTestEngine(t, remote, WithIgnore(NewIgnoreList("*.log")))
	_, err := engine.Sync(ctx, root, "/p/", nil)
	require.NoError(t, err)

	listed, err := remote.ListFiles(ctx, "/p/")
	require.NoError(t, err)
	assert.Contains(t, listed, "/p/keep.txt")
	assert.Contains(t, listed, "/p/server.log")
	assert.NotContains(t, listed, "/p/debug.log")
}

func TestEngineSyncRejectsFiles(t *testing.T) {
	file := writeLocal(t, t.TempDir(), "f.txt", "x")
	engine := newTestEngine(t, newTestRemote(t))

	_, err := engine.Sync(context.Background(), file, "/p/", nil)
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = engine.Sync(context.Background(), filepath.Join(t.TempDir(), "missing"), "/p/", nil)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestEngineSyncRejectsBadPrefix(t *testing.T) {
	engine := newTestEngine(t, newTestRemote(t))
	_, err := engine.Sync(context.Background(), t.TempDir(), "/a/../b", nil)
	require.Error(t, err)
}

func TestEngineSyncLock(t *testing.T) {
	lockDir := t.TempDir()
	root := t.TempDir()
	engine := newTestEngine(t, newTestRemote(t), WithLockDir(lockDir))

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	held := flock.New(engine.lockPath(abs))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	_, err = engine.Sync(context.Background(), root, "/p/", nil)
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)

	require.NoError(t, held.Unlock())
	_, err = engine.Sync(context.Background(), root, "/p/", nil)
	assert.NoError(t, err)
}

func TestNormalizeUploadPath(t *testing.T) {
	p, err := NormalizeUploadPath("a.txt", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "/docs/a.txt", p)

	p, err = NormalizeUploadPath("a.txt", "/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/b.txt", p)

	p, err = NormalizeUploadPath(filepath.Join("tmp", "report.pdf"), "docs/")
	require.NoError(t, err)
	assert.Equal(t, "/docs/report.pdf", p)

	p, err = NormalizeUploadPath("report.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "/report.pdf", p)

	_, err = NormalizeUploadPath("a.txt", "/docs/../a.txt")
	assert.Error(t, err)
	_, err = NormalizeUploadPath("..", "/docs/")
	assert.Error(t, err)
}
