// Package attrpath extracts values from JSON-like dynamic data using
// dotted paths. A path segment of the form prefix[*].suffix maps over an
// array: prefix is resolved to an array and suffix is extracted from every
// element, dropping elements where the suffix is absent.
package attrpath

import "strings"

const wildcard = "[*]"

// Resolve extracts the values at path from v and returns them in order.
// An empty result means no data exists at this path. Absent fields are
// distinguished from fields holding empty or falsy values: only genuinely
// missing segments yield nothing.
func Resolve(v any, path string) []any {
	if path == "" {
		return nil
	}

	i := strings.Index(path, wildcard)
	if i < 0 {
		val, ok := lookup(v, path)
		if !ok {
			return nil
		}
		return []any{val}
	}

	prefix := strings.TrimSuffix(path[:i], ".")
	suffix := strings.TrimPrefix(path[i+len(wildcard):], ".")

	base := v
	if prefix != "" {
		b, ok := lookup(v, prefix)
		if !ok {
			return nil
		}
		base = b
	}

	arr, ok := base.([]any)
	if !ok {
		return nil
	}

	var out []any
	for _, elem := range arr {
		if suffix == "" {
			out = append(out, elem)
			continue
		}
		out = append(out, Resolve(elem, suffix)...)
	}
	return out
}

// lookup walks a dotted path of object keys. The second return reports
// whether every segment was present, so a missing field is never confused
// with a present-but-nil one.
func lookup(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := obj[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
