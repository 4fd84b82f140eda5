// Package store defines the content store contract and its SQLite implementation.
// Files are addressed by absolute "/"-separated paths and carry an optional
// digest recorded once their contents are complete.
package store

import (
	"context"
	"io"
	"time"

	"github.com/openmined/dossier/internal/digest"
)

// FileRecord pairs a path with the digest of its content
type FileRecord struct {
	Path   string        `json:"path"`
	Digest digest.Digest `json:"digest"`
}

// FileInfo describes a stored file. Digest is nil until the file is finalized.
type FileInfo struct {
	Path      string         `db:"path" json:"path"`
	Name      string         `db:"name" json:"name"`
	Size      int64          `db:"size" json:"size"`
	Digest    *digest.Digest `db:"-" json:"digest,omitempty"`
	UpdatedAt time.Time      `db:"-" json:"updatedAt"`
}

// Metadata is recorded on a file after a complete write
type Metadata struct {
	Digest digest.Digest
}

// TruncateMode selects which end of a file is discarded by Truncate
type TruncateMode int

const (
	// TruncateRemoveEnd keeps the first n bytes
	TruncateRemoveEnd TruncateMode = iota
	// TruncateRemoveStart keeps the last n bytes
	TruncateRemoveStart
)

func (m TruncateMode) String() string {
	switch m {
	case TruncateRemoveEnd:
		return "remove-end"
	case TruncateRemoveStart:
		return "remove-start"
	default:
		return "unknown"
	}
}

// Store is safe for concurrent use
type Store interface {
	// ListRecursive returns every file under prefix that has metadata, sorted by path
	ListRecursive(ctx context.Context, prefix string) ([]FileRecord, error)
	// List returns the direct children of dir, with or without metadata
	List(ctx context.Context, dir string) ([]*FileInfo, error)
	// Load returns ErrNotFound when nothing is stored at path
	Load(ctx context.Context, path string) (FileHandle, error)
	// Create returns ErrAlreadyExists when path is taken
	Create(ctx context.Context, path string) (FileHandle, error)
	// Delete reports whether a file was removed
	Delete(ctx context.Context, path string) (bool, error)
}

// FileHandle operations return ErrDeleted once the file is gone.
// Append and Truncate clear the recorded metadata.
type FileHandle interface {
	Path() string
	Name() string
	Append(ctx context.Context, data []byte) error
	Truncate(ctx context.Context, length int64, mode TruncateMode) error
	UpdateMetadata(ctx context.Context, md Metadata) error
	// Metadata is nil for files that were never finalized
	Metadata(ctx context.Context) (*Metadata, error)
	Size(ctx context.Context) (int64, error)
	Contents(ctx context.Context) (io.ReadCloser, error)
}
