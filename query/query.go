// Package query implements the declarative filter/sort/paginate/
// project layer evaluated against a collection snapshot.
package query

import (
	"github.com/cyberpath/sentinel/errors"
	"github.com/cyberpath/sentinel/value"
)

// Operator is a filter comparison operator.
type Operator string

const (
	Equal          Operator = "eq"
	NotEqual       Operator = "neq"
	Greater        Operator = "gt"
	GreaterOrEqual Operator = "gte"
	Less           Operator = "lt"
	LessOrEqual    Operator = "lte"
	In             Operator = "in"
	Contains       Operator = "contains"
	StartsWith     Operator = "starts_with"
	EndsWith       Operator = "ends_with"
	Exists         Operator = "exists"
)

// Direction orders a sort key.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Filter is a single predicate over a document field path.
type Filter struct {
	Field string
	Op    Operator
	Value value.Value
}

// SortKey orders results by one field path.
type SortKey struct {
	Field     string
	Direction Direction
}

// Query is a filter/sort/paginate/project request. A Limit of -1
// means unlimited.
type Query struct {
	Filters    []Filter
	Sort       []SortKey
	Limit      int
	Offset     int
	Projection []string
}

// Validate checks the query for malformed field paths and pagination
// arguments.
func (q *Query) Validate() error {
	for _, f := range q.Filters {
		if !value.ValidPath(f.Field) {
			return errors.Invalid("malformed filter field path %q", f.Field)
		}
		if !knownOperator(f.Op) {
			return errors.Invalid("unknown filter operator %q", f.Op)
		}
	}
	for _, s := range q.Sort {
		if !value.ValidPath(s.Field) {
			return errors.Invalid("malformed sort field path %q", s.Field)
		}
	}
	for _, p := range q.Projection {
		if !value.ValidPath(p) {
			return errors.Invalid("malformed projection field path %q", p)
		}
	}
	if q.Limit < -1 {
		return errors.Invalid("limit must not be negative, got %d", q.Limit)
	}
	if q.Offset < 0 {
		return errors.Invalid("offset must not be negative, got %d", q.Offset)
	}
	return nil
}

func knownOperator(op Operator) bool {
	switch op {
	case Equal, NotEqual, Greater, GreaterOrEqual, Less, LessOrEqual,
		In, Contains, StartsWith, EndsWith, Exists:
		return true
	default:
		return false
	}
}

// Builder constructs queries fluently.
type Builder struct {
	q Query
}

// New returns an empty query builder.
func New() *Builder {
	return &Builder{q: Query{Limit: -1}}
}

// Filter adds a predicate; all predicates must hold (logical AND).
func (b *Builder) Filter(field string, op Operator, v value.Value) *Builder {
	b.q.Filters = append(b.q.Filters, Filter{Field: field, Op: op, Value: v})
	return b
}

// Sort appends a sort key. Keys apply in the order given.
func (b *Builder) Sort(field string, dir Direction) *Builder {
	b.q.Sort = append(b.q.Sort, SortKey{Field: field, Direction: dir})
	return b
}

// Limit caps the number of returned documents.
func (b *Builder) Limit(n int) *Builder {
	b.q.Limit = n
	return b
}

// Offset skips the first n documents of the sorted result.
func (b *Builder) Offset(n int) *Builder {
	b.q.Offset = n
	return b
}

// Projection restricts result data to the given field paths.
func (b *Builder) Projection(fields ...string) *Builder {
	b.q.Projection = append(b.q.Projection, fields...)
	return b
}

// Build returns the assembled query.
func (b *Builder) Build() Query { return b.q }
