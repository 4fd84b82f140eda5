package digest

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ParseETags reads an If-None-Match style list of quoted digests.
// Entries that don't decode to a digest are ignored. A field without a quoted
// value invalidates the whole header and an empty set is returned.
func ParseETags(header string) mapset.Set[Digest] {
	tags := mapset.NewThreadUnsafeSet[Digest]()
	if strings.TrimSpace(header) == "" {
		return tags
	}

	for _, field := range strings.Split(header, ",") {
		parts := strings.Split(field, `"`)
		if len(parts) < 2 {
			return mapset.NewThreadUnsafeSet[Digest]()
		}
		if d, err := Parse(parts[1]); err == nil {
			tags.Add(d)
		}
	}

	return tags
}

// MatchesETags reports whether d is listed in an If-None-Match header
func MatchesETags(header string, d Digest) bool {
	return ParseETags(header).Contains(d)
}
