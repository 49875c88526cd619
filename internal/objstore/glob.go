package objstore

import (
	"path"
	"strings"
)

// MatchPattern reports whether a slash-separated relative path matches a glob
// pattern. Within a segment the usual path.Match syntax applies (*, ?, [...]);
// a bare ** segment matches any number of path segments, including zero.
func MatchPattern(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, parts []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for len(pat) > 0 && pat[0] == "**" {
				pat = pat[1:]
			}
			if len(pat) == 0 {
				return true
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(pat, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], parts[0])
		if err != nil || !ok {
			return false
		}
		pat = pat[1:]
		parts = parts[1:]
	}
	return len(parts) == 0
}
