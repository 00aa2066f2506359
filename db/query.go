package db

import (
	"strings"

	"github.com/tansudb/tansu/core"
)

// Range restricts a field to an interval. A nil bound is open. Bounds are
// inclusive unless the matching exclusive flag is set.
type Range struct {
	Min          any
	Max          any
	MinExclusive bool
	MaxExclusive bool
}

// Filter is an immutable, stateless predicate over document payload fields
// plus an optional key-prefix restriction. The zero value matches every
// document. Filters are reusable across snapshots.
type Filter struct {
	// KeyPrefix restricts results to keys beginning with this prefix and
	// prunes the scan to matching shard subtrees.
	KeyPrefix string

	// Eq requires exact field values.
	Eq map[string]any

	// Prefix requires string fields to begin with the given prefixes.
	Prefix map[string]string

	// Ranges requires fields to fall within the given intervals.
	Ranges map[string]Range
}

// All matches every document in a snapshot.
func All() Filter { return Filter{} }

// Matches evaluates the field predicates against a document. The key-prefix
// restriction is handled by the scan, not here.
func (f Filter) Matches(doc core.Document) bool {
	for field, want := range f.Eq {
		got, ok := doc.Fields[field]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}

	for field, prefix := range f.Prefix {
		got, ok := doc.Fields[field].(string)
		if !ok || !strings.HasPrefix(got, prefix) {
			return false
		}
	}

	for field, rng := range f.Ranges {
		got, ok := doc.Fields[field]
		if !ok {
			return false
		}
		if rng.Min != nil {
			cmp, comparable := compareValues(got, rng.Min)
			if !comparable || cmp < 0 || (cmp == 0 && rng.MinExclusive) {
				return false
			}
		}
		if rng.Max != nil {
			cmp, comparable := compareValues(got, rng.Max)
			if !comparable || cmp > 0 || (cmp == 0 && rng.MaxExclusive) {
				return false
			}
		}
	}

	return true
}

func valuesEqual(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return a == b
}

// compareValues orders two field values when they are mutually comparable:
// both numeric or both strings. Codecs decode numbers inconsistently (JSON
// yields float64, YAML yields int), so numerics compare as float64.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
