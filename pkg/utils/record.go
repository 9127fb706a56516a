package utils

import (
	"strings"

	"github.com/oarkflow/convert"
)

type Record = map[string]any

// IsBlank reports whether a raw source value carries no usable content:
// nil, an empty string, or a string of only whitespace.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := convert.ToString(v)
	if !ok {
		return false
	}
	return strings.TrimSpace(s) == ""
}

// String coerces a raw value to a trimmed string. Blank values yield "".
func String(v any) string {
	if v == nil {
		return ""
	}
	s, ok := convert.ToString(v)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Prune removes empty leaves and branches from a document, bottom-up. A value
// is empty when it is nil, an empty string, an empty slice, or an empty map.
// Maps and slices are pruned recursively before the emptiness check, so a
// branch whose children all prune away is itself dropped.
func Prune(v any) any {
	switch val := v.(type) {
	case Record:
		out := make(Record, len(val))
		for k, child := range val {
			pruned := Prune(child)
			if !isEmpty(pruned) {
				out[k] = pruned
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, child := range val {
			pruned := Prune(child)
			if !isEmpty(pruned) {
				out = append(out, pruned)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []Record:
		items := make([]any, len(val))
		for i, r := range val {
			items[i] = r
		}
		return Prune(items)
	default:
		return v
	}
}

// PruneRecord prunes a document and always returns a non-nil Record.
func PruneRecord(rec Record) Record {
	pruned := Prune(rec)
	if pruned == nil {
		return Record{}
	}
	return pruned.(Record)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case Record:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}
