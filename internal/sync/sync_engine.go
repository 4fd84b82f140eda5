package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/store"
)

type Options struct {
	ScanWorkers     int
	UploadWorkers   int
	ChunkSize       int
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	Ignore          *IgnoreList
	ContinueOnError bool
	// LockDir holds the per-root lock files. Defaults to os.TempDir().
	LockDir string
}

type Option func(*Options)

func WithScanWorkers(n int) Option {
	return func(o *Options) { o.ScanWorkers = n }
}

func WithUploadWorkers(n int) Option {
	return func(o *Options) { o.UploadWorkers = n }
}

func WithUploadChunkSize(n int) Option {
	return func(o *Options) { o.ChunkSize = n }
}

func WithUploadMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

func WithRetryBackoff(initial, max time.Duration) Option {
	return func(o *Options) {
		o.InitialBackoff = initial
		o.MaxBackoff = max
	}
}

func WithIgnore(ignore *IgnoreList) Option {
	return func(o *Options) { o.Ignore = ignore }
}

func WithContinueOnError(enabled bool) Option {
	return func(o *Options) { o.ContinueOnError = enabled }
}

func WithLockDir(dir string) Option {
	return func(o *Options) { o.LockDir = dir }
}

// Engine makes a remote prefix mirror a local directory
type Engine struct {
	remote   Remote
	opts     Options
	scanner  *Scanner
	planner  *Planner
	executor *Executor
}

func NewEngine(remote Remote, opts ...Option) *Engine {
	o := Options{
		ChunkSize:      DefaultChunkSize,
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialInterval,
		MaxBackoff:     DefaultMaxInterval,
		LockDir:        os.TempDir(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	uploader := NewUploader(remote,
		WithChunkSize(o.ChunkSize),
		WithMaxAttempts(o.MaxAttempts),
		WithBackoff(o.InitialBackoff, o.MaxBackoff),
	)

	return &Engine{
		remote:   remote,
		opts:     o,
		scanner:  NewScanner(o.ScanWorkers, o.Ignore),
		planner:  NewPlanner(o.Ignore),
		executor: NewExecutor(remote, uploader, o.UploadWorkers, o.ContinueOnError),
	}
}

// Plan computes the operations a sync of root into prefix would perform, without applying them
func (e *Engine) Plan(ctx context.Context, root string, prefix string) (*Plan, error) {
	root, prefix, err := e.resolve(root, prefix)
	if err != nil {
		return nil, err
	}
	return e.plan(ctx, root, prefix)
}

// Sync mirrors root into prefix. Only one sync per local root runs at a time.
// The returned report is non-nil whenever planning succeeded.
func (e *Engine) Sync(ctx context.Context, root string, prefix string, progress ProgressFunc) (*Report, error) {
	root, prefix, err := e.resolve(root, prefix)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := slog.With("run", runID, "root", root, "prefix", prefix)

	lock := flock.New(e.lockPath(root))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrSyncAlreadyRunning, root)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("release sync lock", "error", err)
		}
	}()

	start := time.Now()
	plan, err := e.plan(ctx, root, prefix)
	if err != nil {
		return nil, err
	}
	log.Info("sync planned",
		"scanned", plan.Scanned,
		"unchanged", plan.Unchanged,
		"create", plan.Count(OpCreate),
		"replace", plan.Count(OpReplace),
		"delete", plan.Count(OpDelete),
	)

	report := e.executor.Execute(ctx, plan.Ops, progress)
	report.RunID = runID
	report.Plan = plan
	report.Duration = time.Since(start)

	log.Info("sync finished",
		"completed", report.Completed,
		"failed", len(report.Failed),
		"uploaded", report.Uploaded,
		"took", report.Duration,
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := report.Err(); err != nil {
		return report, fmt.Errorf("sync %s: %w", root, err)
	}
	return report, nil
}

func (e *Engine) plan(ctx context.Context, root string, prefix string) (*Plan, error) {
	index, err := FetchRemoteIndex(ctx, e.remote, prefix)
	if err != nil {
		return nil, err
	}

	// planning stops the scan on its first error
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	plan, err := e.planner.Plan(scanCtx, e.scanner.Scan(scanCtx, root, prefix), index)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return plan, nil
}

func (e *Engine) resolve(root string, prefix string) (string, string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %s does not exist", ErrNotDirectory, abs)
		}
		return "", "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	prefix = store.NormalizeDir(prefix)
	if err := store.ValidateDir(prefix); err != nil {
		return "", "", fmt.Errorf("prefix %q: %w", prefix, err)
	}
	return abs, prefix, nil
}

func (e *Engine) lockPath(root string) string {
	sum := digest.Sum([]byte(root)).String()
	return filepath.Join(e.opts.LockDir, "dossier-"+sum[:16]+".lock")
}

// NormalizeUploadPath turns a user supplied remote path into a valid file path.
// A remote path ending in "/" names a directory and receives the local file name.
func NormalizeUploadPath(localPath, remotePath string) (string, error) {
	if remotePath == "" || remotePath[0] != '/' {
		remotePath = store.Separator + remotePath
	}
	if strings.HasSuffix(remotePath, store.Separator) {
		remotePath += filepath.Base(localPath)
	}
	if err := store.ValidatePath(remotePath); err != nil {
		return "", fmt.Errorf("remote path %q: %w", remotePath, err)
	}
	return remotePath, nil
}
