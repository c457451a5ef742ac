// Package dataset builds canonical dataset queries and memoizes the entity
// collections they return.
package dataset

import (
	"slices"
	"strconv"
	"strings"

	"toolatlas/pkg/catalogapi"
)

// Query is the full parameter set of one dataset request.
type Query struct {
	Filters catalogapi.Filters `json:"filters,omitempty"`
	Search  string             `json:"search,omitempty"`
	YearMin *int               `json:"year_min,omitempty"`
	YearMax *int               `json:"year_max,omitempty"`
	Limit   int                `json:"limit,omitempty"`
	Offset  int                `json:"offset,omitempty"`
}

// Key returns the canonical cache key for the query. Pagination only
// participates when set so that unpaged queries keep the BuildKey form.
func (q Query) Key() string {
	key := BuildKey(q.Filters, q.Search, q.YearMin, q.YearMax)
	if q.Limit > 0 {
		key += "&limit=" + strconv.Itoa(q.Limit)
	}
	if q.Offset > 0 {
		key += "&offset=" + strconv.Itoa(q.Offset)
	}
	return key
}

// Clone returns a copy that shares no mutable state with q.
func (q Query) Clone() Query {
	out := q
	out.Filters = q.Filters.Clone()
	if q.YearMin != nil {
		v := *q.YearMin
		out.YearMin = &v
	}
	if q.YearMax != nil {
		v := *q.YearMax
		out.YearMax = &v
	}
	return out
}

// BuildKey serializes a filter state deterministically: fields in the fixed
// catalogapi.FilterFields order, values trimmed, de-duplicated and sorted,
// empty fields omitted, followed by the search text and the year bounds.
func BuildKey(filters catalogapi.Filters, search string, yearMin, yearMax *int) string {
	parts := make([]string, 0, len(filters)+3)
	for _, field := range catalogapi.FilterFields() {
		values := CanonicalValues(filters[field])
		if len(values) == 0 {
			continue
		}
		parts = append(parts, string(field)+"="+strings.Join(values, ","))
	}
	parts = append(parts,
		"q="+strings.TrimSpace(search),
		"yearMin="+formatBound(yearMin),
		"yearMax="+formatBound(yearMax),
	)
	return strings.Join(parts, "&")
}

// CanonicalValues trims, drops empties, de-duplicates and sorts filter values.
func CanonicalValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ParseYearBound converts a year input into a bound. Input that does not
// parse as an integer means no bound.
func ParseYearBound(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &year
}

func formatBound(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
