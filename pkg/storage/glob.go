package storage

import (
	"path"
	"strings"
)

// ListPrefix returns the literal part of pattern before its first wildcard.
// Object stores list by prefix; MatchGlob filters the rest.
func ListPrefix(pattern string) string {
	if idx := strings.IndexAny(pattern, "*?["); idx >= 0 {
		return pattern[:idx]
	}
	return pattern
}

// MatchGlob reports whether a relative object path matches pattern.
// "*" and "" match everything, including nested keys such as
// "2022/11/29/file.TSYSO". Other patterns use path.Match semantics,
// except that a single leading "*" may span directory separators.
func MatchGlob(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	if ok, err := path.Match(pattern, name); err == nil && ok {
		return true
	}

	if strings.HasPrefix(pattern, "*") && !strings.ContainsAny(pattern[1:], "*?[") {
		return strings.HasSuffix(name, pattern[1:])
	}

	return false
}
