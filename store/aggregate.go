package store

import (
	"context"

	"github.com/cyberpath/sentinel/errors"
	"github.com/cyberpath/sentinel/query"
	"github.com/cyberpath/sentinel/value"
)

// AggregationKind selects the reducer applied to the filtered set.
type AggregationKind string

const (
	Count   AggregationKind = "count"
	Sum     AggregationKind = "sum"
	Average AggregationKind = "avg"
	Min     AggregationKind = "min"
	Max     AggregationKind = "max"
)

// Aggregation names a reducer and, for the numeric reducers, the field
// it targets. Count needs no field.
type Aggregation struct {
	Kind  AggregationKind
	Field string
}

func (a Aggregation) validate() error {
	switch a.Kind {
	case Count:
		return nil
	case Sum, Average, Min, Max:
		if !value.ValidPath(a.Field) {
			return errors.Invalid("aggregation %s requires a field path, got %q", a.Kind, a.Field)
		}
		return nil
	default:
		return errors.Invalid("unknown aggregation %q", a.Kind)
	}
}

// Aggregate reduces the documents matching filters to a scalar.
// Documents whose field is missing or non-numeric are skipped by the
// numeric reducers. Sum of an empty set is 0; avg, min, and max of an
// empty set fail with an empty-aggregation error.
func (c *Collection) Aggregate(ctx context.Context, filters []query.Filter, a Aggregation) (float64, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}
	docs, err := c.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	c.store.emit(eventRead, c.name)

	var nums []float64
	matched := 0
	for _, doc := range docs {
		if !query.Matches(doc, filters) {
			continue
		}
		matched++
		if a.Kind == Count {
			continue
		}
		field, ok := doc.Data.Lookup(a.Field)
		if !ok {
			continue
		}
		n, ok := field.AsFloat()
		if !ok {
			continue
		}
		nums = append(nums, n)
	}

	switch a.Kind {
	case Count:
		return float64(matched), nil
	case Sum:
		var total float64
		for _, n := range nums {
			total += n
		}
		return total, nil
	case Average:
		if len(nums) == 0 {
			return 0, errors.EmptyAggregation(c.name)
		}
		var total float64
		for _, n := range nums {
			total += n
		}
		return total / float64(len(nums)), nil
	case Min:
		if len(nums) == 0 {
			return 0, errors.EmptyAggregation(c.name)
		}
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min, nil
	default:
		if len(nums) == 0 {
			return 0, errors.EmptyAggregation(c.name)
		}
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max, nil
	}
}
