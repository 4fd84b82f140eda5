package sync

import (
	"context"
	"io"
	"os"
	"path/filepath"
	gosync "sync"
	"testing"

	"github.com/openmined/dossier/internal/db"
	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestRemote(t *testing.T) *files.Service {
	t.Helper()
	sqlDB, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "remote.db")))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	st, err := store.NewSqliteStore(sqlDB)
	require.NoError(t, err)
	return files.NewService(st)
}

func writeLocal(t *testing.T, root string, rel string, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func readRemote(t *testing.T, svc *files.Service, path string) string {
	t.Helper()
	r, _, err := svc.ReadFile(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func putRemote(t *testing.T, svc *files.Service, path string, content string) digest.Digest {
	t.Helper()
	d, err := svc.WriteChunk(context.Background(), &files.Chunk{Path: path, Data: []byte(content), Start: true, Final: true})
	require.NoError(t, err)
	require.NotNil(t, d)
	return *d
}

// flakyRemote reports a wrong digest for the first `corrupt` finalized uploads
type flakyRemote struct {
	Remote
	mu      gosync.Mutex
	corrupt int
	chunks  int
	finals  int
	deletes int
}

func (f *flakyRemote) WriteChunk(ctx context.Context, chunk *files.Chunk) (*digest.Digest, error) {
	d, err := f.Remote.WriteChunk(ctx, chunk)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks++
	if err != nil || !chunk.Final {
		return d, err
	}
	f.finals++
	if f.corrupt > 0 {
		f.corrupt--
		bad := digest.Sum([]byte("not the content"))
		return &bad, nil
	}
	return d, nil
}

func (f *flakyRemote) DeleteFile(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	f.deletes++
	f.mu.Unlock()
	return f.Remote.DeleteFile(ctx, path)
}

func (f *flakyRemote) calls() (chunks, finals, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks, f.finals, f.deletes
}
