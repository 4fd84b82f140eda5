package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

var ErrInvalidEscape = errors.New("invalid escaped path")

// DecodePath decodes every escaped segment of a request path. '+' decodes to a
// space, and a segment that decodes to something containing '/' is rejected.
func DecodePath(escaped string) (string, error) {
	segments := strings.Split(escaped, "/")
	for i, seg := range segments {
		decoded, err := url.QueryUnescape(seg)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidEscape, err)
		}
		if strings.Contains(decoded, "/") {
			return "", fmt.Errorf("%w: / is invalid in a path segment", ErrInvalidEscape)
		}
		segments[i] = decoded
	}

	decoded := strings.Join(segments, "/")
	if !utf8.ValidString(decoded) {
		return "", fmt.Errorf("%w: not utf-8", ErrInvalidEscape)
	}
	return decoded, nil
}
