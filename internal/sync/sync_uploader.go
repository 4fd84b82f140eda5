package sync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/store"
)

const (
	DefaultChunkSize       = 1024 * 1024
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 250 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

type UploadResult struct {
	Path     string
	Digest   digest.Digest
	Size     int64
	Attempts int
}

type UploaderOption func(*Uploader)

// WithChunkSize sets the size of each chunk sent to the remote
func WithChunkSize(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// WithMaxAttempts bounds how many times a file is sent when verification fails
func WithMaxAttempts(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.maxAttempts = n
		}
	}
}

// WithBackoff sets the exponential backoff between verification retries
func WithBackoff(initial, max time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.initialInterval = initial
		u.maxInterval = max
	}
}

// Uploader streams a local file to the remote in chunks and verifies the stored digest
type Uploader struct {
	remote          Remote
	chunkSize       int
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
}

func NewUploader(remote Remote, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		remote:          remote,
		chunkSize:       DefaultChunkSize,
		maxAttempts:     DefaultMaxAttempts,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends localPath to remotePath. When expected is nil the digest is computed
// while streaming. Only verification mismatches are retried; every attempt restarts
// the file from its first byte.
func (u *Uploader) Upload(ctx context.Context, localPath string, remotePath string, expected *digest.Digest) (*UploadResult, error) {
	if err := store.ValidatePath(remotePath); err != nil {
		return nil, fmt.Errorf("upload %q: %w", remotePath, err)
	}

	var (
		attempts int
		result   *UploadResult
	)

	operation := func() error {
		attempts++
		res, err := u.transfer(ctx, localPath, remotePath, expected)
		if errors.Is(err, ErrVerificationMismatch) {
			return err
		} else if err != nil {
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("upload verification failed", "path", remotePath, "attempt", attempts, "retryIn", wait, "error", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(u.newBackOff(), uint64(u.maxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if errors.Is(err, ErrVerificationMismatch) {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, remotePath, attempts, err)
		}
		return nil, err
	}

	result.Attempts = attempts
	return result, nil
}

func (u *Uploader) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.initialInterval
	b.MaxInterval = u.maxInterval
	// attempts are bounded by WithMaxRetries
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// transfer performs one full pass over the file
func (u *Uploader) transfer(ctx context.Context, localPath string, remotePath string, expected *digest.Digest) (*UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	var hasher *digest.Hasher
	if expected == nil {
		hasher = digest.New()
	}

	reader := bufio.NewReaderSize(f, u.chunkSize)
	buf := make([]byte, u.chunkSize)
	start := true
	var size int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := io.ReadFull(reader, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("read %s: %w", localPath, err)
		}

		final := n < len(buf)
		if !final {
			if _, err := reader.Peek(1); err == io.EOF {
				final = true
			} else if err != nil {
				return nil, fmt.Errorf("read %s: %w", localPath, err)
			}
		}

		data := buf[:n]
		if hasher != nil {
			hasher.Write(data)
		}

		stored, err := u.remote.WriteChunk(ctx, &files.Chunk{
			Path:  remotePath,
			Data:  data,
			Start: start,
			Final: final,
		})
		if err != nil {
			return nil, fmt.Errorf("write chunk %s: %w", remotePath, err)
		}
		size += int64(n)
		start = false

		if !final {
			continue
		}

		var want digest.Digest
		if expected != nil {
			want = *expected
		} else {
			want = hasher.Sum()
		}

		if stored == nil {
			return nil, fmt.Errorf("%w: %s has no digest after final chunk", ErrVerificationMismatch, remotePath)
		}
		if *stored != want {
			return nil, fmt.Errorf("%w: %s stored %s, sent %s", ErrVerificationMismatch, remotePath, stored, want)
		}

		return &UploadResult{Path: remotePath, Digest: want, Size: size}, nil
	}
}
