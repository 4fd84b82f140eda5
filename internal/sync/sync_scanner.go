package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	gosync "sync"
	"unicode/utf8"

	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/queue"
	"github.com/openmined/dossier/internal/store"
)

// LocalFile is a hashed regular file found under the sync root
type LocalFile struct {
	Record    store.FileRecord
	LocalPath string
	Size      int64
}

// ScanResult carries either a file or the error that ended the scan for one worker
type ScanResult struct {
	File *LocalFile
	Err  error
}

// DefaultScanWorkers is the scanner fan-out when none is configured
func DefaultScanWorkers() int {
	return 2 * runtime.NumCPU()
}

// Scanner walks a local directory tree in parallel and hashes every regular file
type Scanner struct {
	workers int
	ignore  *IgnoreList
	hash    func(localPath string) (*LocalFile, error)
}

func NewScanner(workers int, ignore *IgnoreList) *Scanner {
	if workers <= 0 {
		workers = DefaultScanWorkers()
	}
	return &Scanner{workers: workers, ignore: ignore, hash: hashFile}
}

type dirJob struct {
	local  string // OS path of the directory
	remote string // remote directory path, with trailing separator
	rel    string // slash path relative to the scan root, "" for the root
}

// Scan streams one result per regular file under root, in no particular order.
// The channel is closed once every directory has been visited, or once ctx is done.
// remotePrefix must be a valid directory path.
func (s *Scanner) Scan(ctx context.Context, root string, remotePrefix string) <-chan ScanResult {
	out := make(chan ScanResult, s.workers)

	stack := queue.NewWorkStack(dirJob{local: root, remote: remotePrefix})
	stop := context.AfterFunc(ctx, stack.Close)

	var wg gosync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, stack, out)
		}()
	}

	go func() {
		wg.Wait()
		stop()
		close(out)
	}()

	return out
}

func (s *Scanner) worker(ctx context.Context, stack *queue.WorkStack[dirJob], out chan<- ScanResult) {
	for {
		job, ok := stack.Pop()
		if !ok {
			return
		}
		err := s.scanDir(ctx, job, stack, out)
		stack.Done()
		if err != nil {
			if ctx.Err() == nil {
				select {
				case out <- ScanResult{Err: err}:
				case <-ctx.Done():
				}
			}
			return
		}
	}
}

func (s *Scanner) scanDir(ctx context.Context, job dirJob, stack *queue.WorkStack[dirJob], out chan<- ScanResult) error {
	entries, err := os.ReadDir(job.local)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", job.local, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		localPath := filepath.Join(job.local, name)
		if !utf8.ValidString(name) {
			slog.Warn("skipping entry with non utf-8 name", "path", localPath)
			continue
		}
		rel := path.Join(job.rel, name)

		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			info, err := os.Stat(localPath)
			if err != nil {
				slog.Warn("skipping unresolvable symlink", "path", localPath, "error", err)
				continue
			}
			if !info.Mode().IsRegular() {
				slog.Debug("skipping symlink to non-regular file", "path", localPath)
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if s.ignore.ShouldIgnore(rel + "/") {
				slog.Debug("ignored", "path", rel+"/")
				continue
			}
			stack.Push(dirJob{
				local:  localPath,
				remote: job.remote + name + store.Separator,
				rel:    rel,
			})
		case mode.IsRegular():
			if s.ignore.ShouldIgnore(rel) {
				slog.Debug("ignored", "path", rel)
				continue
			}
			file, err := s.hash(localPath)
			if err != nil {
				return err
			}
			file.Record.Path = job.remote + name
			select {
			case out <- ScanResult{File: file}:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			slog.Debug("skipping special file", "path", localPath, "mode", mode.String())
		}
	}

	return nil
}

func hashFile(localPath string) (*LocalFile, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	d, n, err := digest.SumReader(f)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", localPath, err)
	}

	return &LocalFile{
		Record:    store.FileRecord{Digest: d},
		LocalPath: localPath,
		Size:      n,
	}, nil
}
