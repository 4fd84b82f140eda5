package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// File errors
	CodeFileNotFound    = "E_FILE_NOT_FOUND"    // the file does not exist
	CodeFileInvalidPath = "E_FILE_INVALID_PATH" // the path or one of its names is malformed
	CodeFileExists      = "E_FILE_EXISTS"       // a file already exists at the path
	CodeFileDeleted     = "E_FILE_DELETED"      // the file was deleted while being written
	CodeFileWriteFailed = "E_FILE_WRITE_FAILED" // a failure while appending or finalizing a chunk
	CodeFileListFailed  = "E_FILE_LIST_FAILED"  // a failure while listing files
)
