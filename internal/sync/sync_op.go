package sync

import (
	"fmt"

	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/store"
)

type OpType string

const (
	OpCreate  OpType = "CREATE"
	OpReplace OpType = "REPLACE"
	OpDelete  OpType = "DELETE"
)

// Operation is one planned change to the remote tree.
// The set of implementations is closed: *CreateOp, *ReplaceOp and *DeleteOp.
type Operation interface {
	Type() OpType
	RemotePath() string
	isOperation()
}

// CreateOp uploads a file that has no remote counterpart
type CreateOp struct {
	Record    store.FileRecord
	LocalPath string
	Size      int64
}

// ReplaceOp uploads a file whose remote digest differs
type ReplaceOp struct {
	Record    store.FileRecord
	LocalPath string
	Size      int64
	Previous  digest.Digest
}

// DeleteOp removes a remote file with no local counterpart
type DeleteOp struct {
	Path     string
	Previous digest.Digest
}

func (op *CreateOp) Type() OpType       { return OpCreate }
func (op *CreateOp) RemotePath() string { return op.Record.Path }
func (op *CreateOp) isOperation()       {}

func (op *ReplaceOp) Type() OpType       { return OpReplace }
func (op *ReplaceOp) RemotePath() string { return op.Record.Path }
func (op *ReplaceOp) isOperation()       {}

func (op *DeleteOp) Type() OpType       { return OpDelete }
func (op *DeleteOp) RemotePath() string { return op.Path }
func (op *DeleteOp) isOperation()       {}

// OpError is the failure of a single operation
type OpError struct {
	Op  Operation
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op.Type(), e.Op.RemotePath(), e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
