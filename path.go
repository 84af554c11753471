package nebulite

import "strings"

// translatePath rewrites spec.md's `a.b[2].c` bracket-index syntax into the
// dotted-numeric form gjson/sjson expect (`a.b.2.c`). Paths with no bracket
// already pass through unchanged.
func translatePath(path string) string {
	if !strings.ContainsAny(path, "[]") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch c {
		case '[':
			if b.Len() > 0 {
				b.WriteByte('.')
			}
		case ']':
			// no-op; the following '.' (if any) is written by the next segment
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// splitLeadingKey splits a composite "<link>:<inner_path>" key (spec.md
// §4.2) into its link and inner-path halves. Missing ":" means "whole
// document", returned as an empty inner path.
func splitLeadingKey(key string) (link string, inner string) {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return key, ""
	}
	return key[:idx], key[idx+1:]
}

// pathPrefix reports whether candidate is path or a strict descendant of
// path using dotted-segment boundaries (so "a.bc" is not a descendant of
// "a.b").
func pathPrefix(path, candidate string) bool {
	if candidate == path {
		return true
	}
	return strings.HasPrefix(candidate, path+".")
}
