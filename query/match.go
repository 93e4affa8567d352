package query

import (
	"strings"

	"github.com/cyberpath/sentinel/document"
	"github.com/cyberpath/sentinel/value"
)

// Matches reports whether doc satisfies every filter. Comparisons are
// type-aware; a filter over a missing field or an incompatible type
// does not match.
func Matches(doc *document.Document, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(doc.Data, f) {
			return false
		}
	}
	return true
}

func matchFilter(data value.Value, f Filter) bool {
	field, present := data.Lookup(f.Field)

	switch f.Op {
	case Exists:
		want, ok := f.Value.AsBool()
		if !ok {
			want = true
		}
		return present == want
	case Equal:
		return present && value.Equal(field, f.Value)
	case NotEqual:
		return present && !value.Equal(field, f.Value)
	}
	if !present {
		return false
	}

	switch f.Op {
	case Greater:
		return value.Comparable(field, f.Value) && value.Compare(field, f.Value) > 0
	case GreaterOrEqual:
		return value.Comparable(field, f.Value) && value.Compare(field, f.Value) >= 0
	case Less:
		return value.Comparable(field, f.Value) && value.Compare(field, f.Value) < 0
	case LessOrEqual:
		return value.Comparable(field, f.Value) && value.Compare(field, f.Value) <= 0
	case In:
		for _, item := range f.Value.Items() {
			if value.Equal(field, item) {
				return true
			}
		}
		return false
	case Contains:
		return matchContains(field, f.Value)
	case StartsWith:
		return matchString(field, f.Value, strings.HasPrefix)
	case EndsWith:
		return matchString(field, f.Value, strings.HasSuffix)
	default:
		return false
	}
}

// matchContains matches a string field containing a substring, or a
// sequence field with a string item containing the substring.
func matchContains(field, arg value.Value) bool {
	sub, ok := arg.AsString()
	if !ok {
		return false
	}
	if s, ok := field.AsString(); ok {
		return strings.Contains(s, sub)
	}
	for _, item := range field.Items() {
		if s, ok := item.AsString(); ok && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func matchString(field, arg value.Value, pred func(s, arg string) bool) bool {
	s, ok := field.AsString()
	if !ok {
		return false
	}
	a, ok := arg.AsString()
	if !ok {
		return false
	}
	return pred(s, a)
}
