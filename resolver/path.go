package resolver

import (
	"strings"

	"github.com/zerbitx/mockserver/store"
)

// MatchWildcard returns the first of wildcards, already ordered by preference, whose segments line
// up with the request segments. A wildcard segment stands for exactly one non-empty segment.
func MatchWildcard(wildcards []string, segments []string) (string, bool) {
	if len(segments) == 0 {
		return "", false
	}

	for _, dir := range wildcards {
		dirSegments := strings.Split(dir, "/")
		if len(dirSegments) != len(segments) {
			continue
		}
		if matchSegments(dirSegments, segments) {
			return dir, true
		}
	}

	return "", false
}

func matchSegments(dirSegments, segments []string) bool {
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			return false
		}
		if dirSegments[i] != segments[i] && dirSegments[i] != store.WildcardMarker {
			return false
		}
	}

	return true
}
