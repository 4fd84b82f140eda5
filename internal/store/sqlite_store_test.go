package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openmined/dossier/internal/db"
	"github.com/openmined/dossier/internal/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	sqlDB, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "store.db")))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	st, err := NewSqliteStore(sqlDB)
	require.NoError(t, err)
	return st
}

func readAll(t *testing.T, h FileHandle) []byte {
	t.Helper()
	r, err := h.Contents(context.Background())
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func writeFile(t *testing.T, st Store, path string, data []byte, finalize bool) FileHandle {
	t.Helper()
	ctx := context.Background()
	h, err := st.Create(ctx, path)
	require.NoError(t, err)
	require.NoError(t, h.Append(ctx, data))
	if finalize {
		require.NoError(t, h.UpdateMetadata(ctx, Metadata{Digest: digest.Sum(data)}))
	}
	return h
}

func TestSqliteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	h, err := st.Create(ctx, "/site/index.html")
	require.NoError(t, err)
	assert.Equal(t, "/site/index.html", h.Path())
	assert.Equal(t, "index.html", h.Name())

	require.NoError(t, h.Append(ctx, []byte("<html>")))
	require.NoError(t, h.Append(ctx, []byte("</html>")))

	loaded, err := st.Load(ctx, "/site/index.html")
	require.NoError(t, err)
	assert.Equal(t, []byte("<html></html>"), readAll(t, loaded))

	size, err := loaded.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), size)
}

func TestSqliteStoreLargeAppendSpansBlocks(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	data := bytes.Repeat([]byte("0123456789abcdef"), (maxBlockSize*2+100)/16)
	h := writeFile(t, st, "/big.bin", data, false)
	assert.Equal(t, data, readAll(t, h))

	var blocks int
	require.NoError(t, st.db.GetContext(ctx, &blocks, "SELECT COUNT(*) FROM file_blocks"))
	assert.Equal(t, 3, blocks)
}

func TestSqliteStoreEmptyFile(t *testing.T) {
	st := newTestStore(t)
	h := writeFile(t, st, "/empty", nil, true)
	assert.Empty(t, readAll(t, h))

	md, err := h.Metadata(context.Background())
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, digest.Sum(nil), md.Digest)
}

func TestSqliteStoreCreateErrors(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Create(ctx, "/a.txt")
	require.NoError(t, err)

	_, err = st.Create(ctx, "/a.txt")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = st.Create(ctx, "a.txt")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = st.Create(ctx, "/dir/")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSqliteStoreLoadMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Load(context.Background(), "/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSqliteStoreDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	h := writeFile(t, st, "/gone.txt", []byte("bye"), true)

	deleted, err := st.Delete(ctx, "/gone.txt")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = st.Delete(ctx, "/gone.txt")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = st.Load(ctx, "/gone.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// the old handle must notice
	assert.ErrorIs(t, h.Append(ctx, []byte("x")), ErrDeleted)
	assert.ErrorIs(t, h.UpdateMetadata(ctx, Metadata{}), ErrDeleted)
	assert.ErrorIs(t, h.Truncate(ctx, 0, TruncateRemoveEnd), ErrDeleted)
	_, err = h.Metadata(ctx)
	assert.ErrorIs(t, err, ErrDeleted)
	_, err = h.Contents(ctx)
	assert.ErrorIs(t, err, ErrDeleted)

	var blocks int
	require.NoError(t, st.db.GetContext(ctx, &blocks, "SELECT COUNT(*) FROM file_blocks"))
	assert.Zero(t, blocks)
}

func TestSqliteStoreMetadataClearedOnWrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	h := writeFile(t, st, "/doc.md", []byte("v1"), true)

	md, err := h.Metadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, digest.Sum([]byte("v1")), md.Digest)

	require.NoError(t, h.Append(ctx, []byte("more")))
	md, err = h.Metadata(ctx)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestSqliteStoreTruncate(t *testing.T) {
	ctx := context.Background()
	chunks := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}
	full := bytes.Join(chunks, nil)

	tests := []struct {
		name   string
		length int64
		mode   TruncateMode
		want   []byte
	}{
		{name: "remove end to zero", length: 0, mode: TruncateRemoveEnd, want: []byte{}},
		{name: "remove end mid block", length: 6, mode: TruncateRemoveEnd, want: full[:6]},
		{name: "remove end on boundary", length: 8, mode: TruncateRemoveEnd, want: full[:8]},
		{name: "remove start mid block", length: 6, mode: TruncateRemoveStart, want: full[6:]},
		{name: "remove start on boundary", length: 4, mode: TruncateRemoveStart, want: full[8:]},
		{name: "remove start to zero", length: 0, mode: TruncateRemoveStart, want: []byte{}},
		{name: "longer than file", length: 100, mode: TruncateRemoveEnd, want: full},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			h, err := st.Create(ctx, "/t.bin")
			require.NoError(t, err)
			for _, c := range chunks {
				require.NoError(t, h.Append(ctx, c))
			}

			require.NoError(t, h.Truncate(ctx, tt.length, tt.mode))
			got := readAll(t, h)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}

			size, err := h.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), size)

			// appends continue after the kept bytes
			require.NoError(t, h.Append(ctx, []byte("z")))
			assert.Equal(t, append(append([]byte{}, tt.want...), 'z'), readAll(t, h))
		})
	}

	t.Run("negative length", func(t *testing.T) {
		st := newTestStore(t)
		h := writeFile(t, st, "/n.bin", []byte("abc"), false)
		assert.Error(t, h.Truncate(ctx, -1, TruncateRemoveEnd))
	})
}

func TestSqliteStoreListRecursive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	writeFile(t, st, "/site/index.html", []byte("index"), true)
	writeFile(t, st, "/site/css/main.css", []byte("css"), true)
	writeFile(t, st, "/site/partial.bin", []byte("partial"), false)
	writeFile(t, st, "/site2/other.txt", []byte("other"), true)
	writeFile(t, st, "/sitefile.txt", []byte("sibling"), true)

	records, err := st.ListRecursive(ctx, "/site/")
	require.NoError(t, err)
	assert.Equal(t, []FileRecord{
		{Path: "/site/css/main.css", Digest: digest.Sum([]byte("css"))},
		{Path: "/site/index.html", Digest: digest.Sum([]byte("index"))},
	}, records)

	records, err = st.ListRecursive(ctx, "/")
	require.NoError(t, err)
	assert.Len(t, records, 4)

	records, err = st.ListRecursive(ctx, "/nothing/")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = st.ListRecursive(ctx, "/site")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSqliteStoreList(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	writeFile(t, st, "/site/index.html", []byte("index"), true)
	writeFile(t, st, "/site/about.html", []byte("about"), false)
	writeFile(t, st, "/site/css/main.css", []byte("css"), true)

	infos, err := st.List(ctx, "/site/")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "about.html", infos[0].Name)
	assert.Nil(t, infos[0].Digest)
	assert.Equal(t, "index.html", infos[1].Name)
	require.NotNil(t, infos[1].Digest)
	assert.Equal(t, digest.Sum([]byte("index")), *infos[1].Digest)
	assert.Equal(t, int64(5), infos[1].Size)
	assert.WithinDuration(t, time.Now(), infos[1].UpdatedAt, time.Minute)
}

func TestSqliteStoreConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/concurrent/%d.txt", i)
			h, err := st.Create(ctx, path)
			if !assert.NoError(t, err) {
				return
			}
			for j := range 10 {
				assert.NoError(t, h.Append(ctx, []byte(fmt.Sprintf("%d-%d;", i, j))))
			}
		}(i)
	}
	wg.Wait()

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, count)

	h, err := st.Load(ctx, "/concurrent/3.txt")
	require.NoError(t, err)
	assert.Equal(t, "3-0;3-1;3-2;3-3;3-4;3-5;3-6;3-7;3-8;3-9;", string(readAll(t, h)))
}

func TestCompactor(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	writeFile(t, st, "/a", bytes.Repeat([]byte("x"), 4096), true)
	_, err := st.Delete(ctx, "/a")
	require.NoError(t, err)

	c := NewCompactor(st.db, time.Hour)
	assert.NoError(t, c.Compact(ctx))

	// disabled compactor returns immediately
	assert.NoError(t, NewCompactor(st.db, 0).Start(ctx))

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan error)
	go func() { done <- c.Start(cctx) }()
	cancel()
	assert.NoError(t, <-done)
}
