package sync

import "errors"

var (
	ErrVerificationMismatch = errors.New("stored digest does not match the uploaded content")
	ErrRetriesExhausted     = errors.New("upload retries exhausted")
	ErrSyncAlreadyRunning   = errors.New("sync already running")
	ErrNotDirectory         = errors.New("sync can only be used with directories")
)
