// Package files implements the chunked write, list and delete operations that
// sync clients perform against a content store.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/store"
)

// MaxChunkSize bounds the body of a single chunk upload
const MaxChunkSize = 16 << 20

// Chunk is one piece of a sequential file upload
type Chunk struct {
	Path string
	Data []byte
	// Start marks the first chunk: existing content is discarded
	Start bool
	// Final marks the last chunk: the stored content is hashed and recorded
	Final bool
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) Store() store.Store {
	return s.store
}

// WriteChunk appends a chunk and, on the final chunk, returns the digest the
// store recorded for the complete file
func (s *Service) WriteChunk(ctx context.Context, chunk *Chunk) (*digest.Digest, error) {
	file, err := s.openForChunk(ctx, chunk)
	if err != nil {
		return nil, err
	}

	if err := file.Append(ctx, chunk.Data); err != nil {
		return nil, err
	}

	if !chunk.Final {
		return nil, nil
	}

	contents, err := file.Contents(ctx)
	if err != nil {
		return nil, err
	}
	defer contents.Close()

	sum, size, err := digest.SumReader(contents)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", chunk.Path, err)
	}

	if err := file.UpdateMetadata(ctx, store.Metadata{Digest: sum}); err != nil {
		return nil, err
	}

	slog.Debug("file written", "path", chunk.Path, "size", size, "digest", sum)
	return &sum, nil
}

func (s *Service) openForChunk(ctx context.Context, chunk *Chunk) (store.FileHandle, error) {
	file, err := s.store.Load(ctx, chunk.Path)
	switch {
	case err == nil:
		if chunk.Start {
			if err := file.Truncate(ctx, 0, store.TruncateRemoveStart); err != nil {
				return nil, err
			}
		}
		return file, nil

	case errors.Is(err, store.ErrNotFound) && chunk.Start:
		file, err = s.store.Create(ctx, chunk.Path)
		if errors.Is(err, store.ErrAlreadyExists) {
			// lost a race with another writer, take the file over
			return s.openForChunk(ctx, chunk)
		}
		return file, err

	case errors.Is(err, store.ErrNotFound):
		// a continuation chunk for a file that no longer exists
		return nil, fmt.Errorf("%w: %s", store.ErrDeleted, chunk.Path)

	default:
		return nil, err
	}
}

// ListFiles maps every finalized file under prefix to its digest
func (s *Service) ListFiles(ctx context.Context, prefix string) (map[string]digest.Digest, error) {
	records, err := s.store.ListRecursive(ctx, prefix)
	if err != nil {
		return nil, err
	}

	files := make(map[string]digest.Digest, len(records))
	for _, rec := range records {
		files[rec.Path] = rec.Digest
	}
	return files, nil
}

// DeleteFile reports whether a file was removed
func (s *Service) DeleteFile(ctx context.Context, path string) (bool, error) {
	return s.store.Delete(ctx, path)
}

// ReadFile opens a file's contents along with its size
func (s *Service) ReadFile(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	file, err := s.store.Load(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	size, err := file.Size(ctx)
	if err != nil {
		return nil, 0, err
	}
	contents, err := file.Contents(ctx)
	if err != nil {
		return nil, 0, err
	}
	return contents, size, nil
}
