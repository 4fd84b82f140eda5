package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/goccy/go-json"
	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	manifestName = ".dossier-manifest.json"
	metaDigest   = "digest"
	uploadLimit  = 4
)

// Manifest maps every backed up store path to its digest
type Manifest struct {
	CreatedAt time.Time                `json:"createdAt"`
	Prefix    string                   `json:"prefix"`
	Files     map[string]digest.Digest `json:"files"`
}

type Report struct {
	Uploaded  int
	Deleted   int
	Unchanged int
	Skipped   int
	Bytes     int64
	Took      time.Duration
}

// S3Backup mirrors finalized store files into a bucket.
// Only files whose digest changed since the last run are uploaded.
type S3Backup struct {
	client S3API
	config *S3Config
	files  *files.Service
}

func New(client S3API, cfg *S3Config, svc *files.Service) *S3Backup {
	return &S3Backup{
		client: client,
		config: cfg,
		files:  svc,
	}
}

// Run backs up every finalized file under prefix
func (b *S3Backup) Run(ctx context.Context, prefix string) (*Report, error) {
	start := time.Now()

	manifest, err := b.readManifest(ctx)
	if err != nil {
		return nil, err
	}

	current, err := b.files.ListFiles(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	var (
		report   Report
		toUpload []string
		toDelete []string
	)
	for path, d := range current {
		if prev, ok := manifest.Files[path]; ok && prev == d {
			report.Unchanged++
			continue
		}
		toUpload = append(toUpload, path)
	}
	for path := range manifest.Files {
		if _, ok := current[path]; !ok && strings.HasPrefix(path, prefix) {
			toDelete = append(toDelete, path)
		}
	}
	sort.Strings(toUpload)
	sort.Strings(toDelete)

	var mu gosync.Mutex
	vanished := make(map[string]bool)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(uploadLimit)
	for _, path := range toUpload {
		eg.Go(func() error {
			n, err := b.upload(egCtx, path, current[path])
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDeleted) {
				// removed since listing, the next run deletes or retries it
				slog.Warn("backup skipped vanished file", "path", path, "error", err)
				mu.Lock()
				vanished[path] = true
				report.Skipped++
				mu.Unlock()
				return nil
			} else if err != nil {
				return err
			}
			mu.Lock()
			report.Uploaded++
			report.Bytes += n
			mu.Unlock()
			return nil
		})
	}
	for _, path := range toDelete {
		eg.Go(func() error {
			if _, err := b.client.DeleteObject(egCtx, &s3.DeleteObjectInput{
				Bucket: aws.String(b.config.BucketName),
				Key:    aws.String(b.objectKey(path)),
			}); err != nil {
				return fmt.Errorf("delete object %s: %w", path, err)
			}
			mu.Lock()
			report.Deleted++
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// files outside prefix keep their previous entries
	next := make(map[string]digest.Digest, len(manifest.Files))
	for path, d := range manifest.Files {
		if !strings.HasPrefix(path, prefix) {
			next[path] = d
		}
	}
	for path, d := range current {
		if vanished[path] {
			// keep the object already in the bucket tracked so a later run removes it
			if prev, ok := manifest.Files[path]; ok {
				next[path] = prev
			}
			continue
		}
		next[path] = d
	}
	if err := b.writeManifest(ctx, &Manifest{CreatedAt: time.Now().UTC(), Prefix: prefix, Files: next}); err != nil {
		return nil, err
	}

	report.Took = time.Since(start)
	slog.Info("backup done",
		"bucket", b.config.BucketName,
		"prefix", prefix,
		"uploaded", report.Uploaded,
		"deleted", report.Deleted,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"took", report.Took,
	)
	return &report, nil
}

// Start runs a backup of the whole store on every interval tick
func (b *S3Backup) Start(ctx context.Context) error {
	if b.config.Interval <= 0 {
		slog.Debug("periodic backup disabled")
		return nil
	}

	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("backup scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := b.Run(ctx, "/"); err != nil {
				slog.Error("backup error", "error", err)
			}
		}
	}
}

// ===================================================================================================

func (b *S3Backup) upload(ctx context.Context, path string, d digest.Digest) (int64, error) {
	contents, _, err := b.files.ReadFile(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	defer contents.Close()

	// the SDK needs a seekable body to sign plain http requests
	data, err := io.ReadAll(contents)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.config.BucketName),
		Key:           aws.String(b.objectKey(path)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      map[string]string{metaDigest: d.String()},
	})
	if err != nil {
		return 0, fmt.Errorf("put object %s: %w", path, err)
	}
	return int64(len(data)), nil
}

func (b *S3Backup) readManifest(ctx context.Context) (*Manifest, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.BucketName),
		Key:    aws.String(b.manifestKey()),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return &Manifest{Files: make(map[string]digest.Digest)}, nil
	} else if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	defer resp.Body.Close()

	var manifest Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Files == nil {
		manifest.Files = make(map[string]digest.Digest)
	}
	return &manifest, nil
}

func (b *S3Backup) writeManifest(ctx context.Context, manifest *Manifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.config.BucketName),
		Key:           aws.String(b.manifestKey()),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}
	return nil
}

func (b *S3Backup) objectKey(path string) string {
	return b.config.keyPrefix() + strings.TrimPrefix(path, "/")
}

func (b *S3Backup) manifestKey() string {
	return b.config.keyPrefix() + manifestName
}
