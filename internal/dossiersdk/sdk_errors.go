package dossiersdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
	"github.com/openmined/dossier/internal/store"
)

var ErrNoServerURL = errors.New("sdk: server url missing")

const (
	CodeInvalidRequest  = "E_INVALID_REQUEST"
	CodeRateLimited     = "E_RATE_LIMITED"
	CodeInternalError   = "E_INTERNAL_ERROR"
	CodeFileNotFound    = "E_FILE_NOT_FOUND"
	CodeFileInvalidPath = "E_FILE_INVALID_PATH"
	CodeFileExists      = "E_FILE_EXISTS"
	CodeFileDeleted     = "E_FILE_DELETED"
	CodeFileWriteFailed = "E_FILE_WRITE_FAILED"
	CodeFileListFailed  = "E_FILE_LIST_FAILED"
)

// APIError is the error envelope returned by the server
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// Unwrap exposes the store error a code stands for, so callers can use errors.Is
// the same way against a local store or a remote one.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeFileInvalidPath:
		return store.ErrInvalidPath
	case CodeFileNotFound:
		return store.ErrNotFound
	case CodeFileExists:
		return store.ErrAlreadyExists
	case CodeFileDeleted:
		return store.ErrDeleted
	}
	return nil
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok && err.Code != "" {
			return fmt.Errorf("%s: %w", operation, err)
		}
		return fmt.Errorf("api error: %s status %d", operation, resp.StatusCode)
	}

	return nil
}
