package store

import "errors"

var (
	ErrNotFound      = errors.New("file not found")
	ErrInvalidName   = errors.New("names must not be empty or contain '/'")
	ErrInvalidPath   = errors.New("paths must start with a leading '/' and contain no empty, '.' or '..' segments")
	ErrAlreadyExists = errors.New("a file already exists at the path provided")
	ErrDeleted       = errors.New("the file was deleted during the operation")
)

// IsClientError reports whether err was caused by the caller's input rather than the store
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDeleted)
}
