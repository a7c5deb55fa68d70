package storage

import "strings"

// Intersect reports whether two resource name expressions can name a
// common resource. Expressions are '/'-separated; a '*' chunk matches
// exactly one chunk, a '**' chunk matches any number of chunks,
// including none. Both sides may carry wildcards.
func Intersect(a, b string) bool {
	return intersect(split(a), split(b))
}

func split(expr string) []string {
	return strings.Split(strings.TrimPrefix(expr, "/"), "/")
}

func intersect(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) > 0 && a[0] == "**":
		if intersect(a[1:], b) {
			return true
		}
		return len(b) > 0 && intersect(a, b[1:])
	case len(b) > 0 && b[0] == "**":
		return intersect(b, a)
	case len(a) == 0 || len(b) == 0:
		return false
	default:
		return chunkIntersect(a[0], b[0]) && intersect(a[1:], b[1:])
	}
}

// chunkIntersect matches two single chunks, either of which may be the
// single-chunk wildcard.
func chunkIntersect(a, b string) bool {
	return a == "*" || b == "*" || a == b
}
