package store

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const Separator = "/"

// ValidatePath checks a file path
func ValidatePath(path string) error {
	_, _, err := SplitPath(path)
	return err
}

// ValidateDir checks a directory prefix. Directory prefixes end with "/".
func ValidateDir(dir string) error {
	if err := validateSegments(dir); err != nil {
		return err
	}
	if !strings.HasSuffix(dir, Separator) {
		return fmt.Errorf("%w: directory %q must end with '/'", ErrInvalidPath, dir)
	}
	return nil
}

// ValidateName checks a single path segment
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.Contains(name, Separator):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case !utf8.ValidString(name), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// SplitPath splits a file path into its directory (with trailing "/") and name
func SplitPath(path string) (dir, name string, err error) {
	if err := validateSegments(path); err != nil {
		return "", "", err
	}

	idx := strings.LastIndex(path, Separator)
	dir, name = path[:idx+1], path[idx+1:]
	if name == "" {
		return "", "", fmt.Errorf("%w: %q has no file name", ErrInvalidName, path)
	}
	return dir, name, nil
}

// NormalizeDir adds the leading and trailing separators a directory prefix needs
func NormalizeDir(dir string) string {
	if !strings.HasPrefix(dir, Separator) {
		dir = Separator + dir
	}
	if !strings.HasSuffix(dir, Separator) {
		dir += Separator
	}
	return dir
}

func validateSegments(path string) error {
	if !strings.HasPrefix(path, Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if !utf8.ValidString(path) || strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: %q is not valid utf-8", ErrInvalidPath, path)
	}

	segments := strings.Split(path[1:], Separator)
	for i, seg := range segments {
		switch seg {
		case "":
			// a trailing separator marks a directory
			if i == len(segments)-1 {
				continue
			}
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		case ".", "..":
			return fmt.Errorf("%w: %q has a relative segment", ErrInvalidPath, path)
		}
	}
	return nil
}
