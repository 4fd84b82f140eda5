package sync

import (
	"context"
	"strings"
)

// Plan is the ordered list of operations that brings the remote tree in line with the local one
type Plan struct {
	Prefix    string
	Ops       []Operation
	Scanned   int
	Unchanged int
	// Bytes is the total size of every file to upload
	Bytes int64
}

// Count returns the number of planned operations of type t
func (p *Plan) Count(t OpType) int {
	n := 0
	for _, op := range p.Ops {
		if op.Type() == t {
			n++
		}
	}
	return n
}

func (p *Plan) Empty() bool {
	return len(p.Ops) == 0
}

// Planner diffs a scan against a remote index
type Planner struct {
	ignore *IgnoreList
}

func NewPlanner(ignore *IgnoreList) *Planner {
	return &Planner{ignore: ignore}
}

// Plan consumes results until the channel closes and diffs them against index.
// The first scan error aborts planning, and no deletions are planned in that case.
// Remote paths excluded by the ignore list are never deleted.
func (p *Planner) Plan(ctx context.Context, results <-chan ScanResult, index *RemoteIndex) (*Plan, error) {
	plan := &Plan{Prefix: index.Prefix()}

	for {
		var (
			res ScanResult
			ok  bool
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok = <-results:
		}
		if !ok {
			break
		}
		if res.Err != nil {
			return nil, res.Err
		}

		file := res.File
		plan.Scanned++
		previous, exists := index.Take(file.Record.Path)
		switch {
		case exists && previous == file.Record.Digest:
			plan.Unchanged++
		case exists:
			plan.Ops = append(plan.Ops, &ReplaceOp{
				Record:    file.Record,
				LocalPath: file.LocalPath,
				Size:      file.Size,
				Previous:  previous,
			})
			plan.Bytes += file.Size
		default:
			plan.Ops = append(plan.Ops, &CreateOp{
				Record:    file.Record,
				LocalPath: file.LocalPath,
				Size:      file.Size,
			})
			plan.Bytes += file.Size
		}
	}

	// the scan completed, so anything left in the index has no local counterpart
	for _, remotePath := range index.Remaining() {
		if p.ignore.ShouldIgnore(strings.TrimPrefix(remotePath, index.Prefix())) {
			continue
		}
		previous, _ := index.Take(remotePath)
		plan.Ops = append(plan.Ops, &DeleteOp{Path: remotePath, Previous: previous})
	}

	return plan, nil
}
