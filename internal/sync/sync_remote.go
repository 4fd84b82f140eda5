package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/files"
)

// Remote is the store-side half of a sync
type Remote interface {
	// ListFiles maps every finalized file under prefix to its digest
	ListFiles(ctx context.Context, prefix string) (map[string]digest.Digest, error)
	// WriteChunk returns the recorded digest once a Final chunk is written
	WriteChunk(ctx context.Context, chunk *files.Chunk) (*digest.Digest, error)
	DeleteFile(ctx context.Context, path string) (bool, error)
}

var _ Remote = (*files.Service)(nil)

// RemoteIndex is a point-in-time snapshot of the remote files under a prefix.
// The planner consumes it by removing every path it visits.
type RemoteIndex struct {
	prefix string
	files  map[string]digest.Digest
}

// FetchRemoteIndex snapshots the remote tree under prefix
func FetchRemoteIndex(ctx context.Context, remote Remote, prefix string) (*RemoteIndex, error) {
	listed, err := remote.ListFiles(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list remote %s: %w", prefix, err)
	}
	return NewRemoteIndex(prefix, listed), nil
}

// NewRemoteIndex copies files so the caller's map is never mutated
func NewRemoteIndex(prefix string, files map[string]digest.Digest) *RemoteIndex {
	idx := &RemoteIndex{
		prefix: prefix,
		files:  make(map[string]digest.Digest, len(files)),
	}
	for path, d := range files {
		idx.files[path] = d
	}
	return idx
}

func (i *RemoteIndex) Prefix() string {
	return i.prefix
}

// Take removes path from the index and returns its digest
func (i *RemoteIndex) Take(path string) (digest.Digest, bool) {
	d, ok := i.files[path]
	if ok {
		delete(i.files, path)
	}
	return d, ok
}

// Remaining lists the paths that were never taken, sorted
func (i *RemoteIndex) Remaining() []string {
	paths := make([]string, 0, len(i.files))
	for path := range i.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (i *RemoteIndex) Digest(path string) (digest.Digest, bool) {
	d, ok := i.files[path]
	return d, ok
}

func (i *RemoteIndex) Len() int {
	return len(i.files)
}
