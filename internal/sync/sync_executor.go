package sync

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Progress is reported once per finished operation
type Progress struct {
	Op        Operation
	Completed int
	Total     int
	Err       error
}

// ProgressFunc is called from a single goroutine, in completion order
type ProgressFunc func(Progress)

// Report summarizes an executed plan
type Report struct {
	RunID     string
	Plan      *Plan
	Total     int
	Completed int
	Succeeded int
	Failed    []*OpError
	Uploaded  int64
	Retries   int
	Duration  time.Duration
	Cancelled bool
}

func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d operations failed: %w", len(r.Failed), r.Total, r.Failed[0])
}

// Executor applies planned operations with a fixed pool of workers
type Executor struct {
	uploader        *Uploader
	remote          Remote
	workers         int
	continueOnError bool
}

func NewExecutor(remote Remote, uploader *Uploader, workers int, continueOnError bool) *Executor {
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}
	return &Executor{
		uploader:        uploader,
		remote:          remote,
		workers:         workers,
		continueOnError: continueOnError,
	}
}

type opResult struct {
	op     Operation
	upload *UploadResult
	err    error
}

// Execute runs every operation at most once. Unless continueOnError is set,
// the first failure cancels the operations that have not started yet.
func (e *Executor) Execute(ctx context.Context, ops []Operation, progress ProgressFunc) *Report {
	start := time.Now()
	report := &Report{Total: len(ops)}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(chan Operation, len(ops))
	for _, op := range ops {
		pending <- op
	}
	close(pending)

	results := make(chan opResult, e.workers)

	var eg errgroup.Group
	for range e.workers {
		eg.Go(func() error {
			for {
				// a cancelled run leaves the rest of the queue untouched
				if runCtx.Err() != nil {
					return nil
				}
				op, ok := <-pending
				if !ok {
					return nil
				}
				res := e.apply(runCtx, op)
				if res.err != nil && !e.continueOnError {
					cancel()
				}
				results <- res
			}
		})
	}

	go func() {
		_ = eg.Wait()
		close(results)
	}()

	for res := range results {
		report.Completed++
		if res.err != nil {
			report.Failed = append(report.Failed, &OpError{Op: res.op, Err: res.err})
		} else {
			report.Succeeded++
			if res.upload != nil {
				report.Uploaded += res.upload.Size
				report.Retries += res.upload.Attempts - 1
			}
		}

		if progress != nil {
			progress(Progress{
				Op:        res.op,
				Completed: report.Completed,
				Total:     report.Total,
				Err:       res.err,
			})
		}
	}

	report.Cancelled = report.Completed < report.Total
	report.Duration = time.Since(start)
	return report
}

func (e *Executor) apply(ctx context.Context, op Operation) opResult {
	res := opResult{op: op}

	switch op := op.(type) {
	case *CreateOp:
		res.upload, res.err = e.uploader.Upload(ctx, op.LocalPath, op.Record.Path, &op.Record.Digest)
	case *ReplaceOp:
		res.upload, res.err = e.uploader.Upload(ctx, op.LocalPath, op.Record.Path, &op.Record.Digest)
	case *DeleteOp:
		var deleted bool
		deleted, res.err = e.remote.DeleteFile(ctx, op.Path)
		if res.err == nil && !deleted {
			slog.Debug("remote file already gone", "path", op.Path)
		}
	default:
		res.err = fmt.Errorf("unknown operation %T", op)
	}

	if res.err != nil {
		slog.Error("sync op failed", "op", op.Type(), "path", op.RemotePath(), "error", res.err)
	} else {
		slog.Info("sync op", "op", op.Type(), "path", op.RemotePath())
	}
	return res
}
