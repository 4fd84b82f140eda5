package utils

import (
	"mime"
	"path"
	"strings"
)

const defaultContentType = "application/octet-stream"

// plain text formats the system mime table tends to miss or map to downloads
var textTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".yaml": "text/plain; charset=utf-8",
	".yml":  "text/plain; charset=utf-8",
	".toml": "text/plain; charset=utf-8",
	".log":  "text/plain; charset=utf-8",
}

// DetectContentType guesses a media type from the extension of a stored path
func DetectContentType(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return defaultContentType
	}
	if ct, ok := textTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultContentType
}
