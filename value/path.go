package value

import (
	"strconv"
	"strings"
)

// ValidPath reports whether path is a well-formed field path: one or
// more non-empty segments separated by dots.
func ValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}

// Lookup resolves a dotted field path against v. Mapping segments
// select by key; numeric segments index into sequences. A missing key,
// an out-of-range index, or a segment applied to an incompatible kind
// resolves to (Null, false) rather than an error.
func (v Value) Lookup(path string) (Value, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch cur.kind {
		case KindMapping:
			next, ok := cur.Get(seg)
			if !ok {
				return Null, false
			}
			cur = next
		case KindSequence:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return Null, false
			}
			next, ok := cur.Index(i)
			if !ok {
				return Null, false
			}
			cur = next
		default:
			return Null, false
		}
	}
	return cur, true
}

// Project returns a mapping restricted to the given field paths.
// Absent paths are omitted. Nested paths are materialized under their
// full dotted key, matching how they were requested.
func (v Value) Project(paths []string) Value {
	var entries []Entry
	for _, p := range paths {
		if val, ok := v.Lookup(p); ok {
			entries = append(entries, Entry{Key: p, Value: val})
		}
	}
	return Mapping(entries...)
}
