// Package aggregate computes every chart series, KPI and table row over a
// scope. All functions are pure and recompute from scratch.
package aggregate

import (
	"sort"
	"strconv"

	"toolatlas/internal/facet"
	"toolatlas/pkg/catalogapi"
)

// Count is one bar or slice.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// YearCount is one point of the release-year histogram.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// KPIs are the headline numbers. UnattributedEntities counts entities whose
// parent organization is unknown; they are excluded from ParentOrganizations.
type KPIs struct {
	Entities             int `json:"entities"`
	ParentOrganizations  int `json:"parent_organizations"`
	UnattributedEntities int `json:"unattributed_entities"`
}

// Summary holds every aggregate for one scope.
type Summary struct {
	Scope               catalogapi.ScopeKind `json:"scope"`
	Services            []Count              `json:"services"`
	ContentTypes        []Count              `json:"content_types"`
	FunctionalTypes     []Count              `json:"functional_types"`
	StructuralTypes     []Count              `json:"structural_types"`
	ParentOrganizations []Count              `json:"parent_organizations"`
	Licenses            []Count              `json:"licenses"`
	Active              []Count              `json:"active"`
	HasAPI              []Count              `json:"has_api"`
	Years               []YearCount          `json:"years"`
	KPIs                KPIs                 `json:"kpis"`
}

// Series returns the grouped counts for a dimension. Release years are
// rendered with their year as the label.
func (s Summary) Series(dimension catalogapi.Dimension) []Count {
	switch dimension {
	case catalogapi.DimensionService:
		return s.Services
	case catalogapi.DimensionContentType:
		return s.ContentTypes
	case catalogapi.DimensionFunctionalType:
		return s.FunctionalTypes
	case catalogapi.DimensionStructuralType:
		return s.StructuralTypes
	case catalogapi.DimensionParentOrganization:
		return s.ParentOrganizations
	case catalogapi.DimensionLicense:
		return s.Licenses
	case catalogapi.DimensionActiveStatus:
		return s.Active
	case catalogapi.DimensionHasAPI:
		return s.HasAPI
	case catalogapi.DimensionReleaseYear:
		out := make([]Count, len(s.Years))
		for i, y := range s.Years {
			out[i] = Count{Label: strconv.Itoa(y.Year), Count: y.Count}
		}
		return out
	default:
		return nil
	}
}

// Summarize computes all aggregates over scope.
func Summarize(scope catalogapi.Scope) Summary {
	entities := scope.Entities
	parents := GroupedCounts(entities, catalogapi.DimensionParentOrganization)
	kpis := KPIs{Entities: len(entities)}
	filteredParents := make([]Count, 0, len(parents))
	for _, c := range parents {
		if c.Label == facet.Unknown {
			kpis.UnattributedEntities = c.Count
			continue
		}
		filteredParents = append(filteredParents, c)
	}
	kpis.ParentOrganizations = len(filteredParents)

	return Summary{
		Scope:               scope.Kind,
		Services:            GroupedCounts(entities, catalogapi.DimensionService),
		ContentTypes:        GroupedCounts(entities, catalogapi.DimensionContentType),
		FunctionalTypes:     GroupedCounts(entities, catalogapi.DimensionFunctionalType),
		StructuralTypes:     GroupedCounts(entities, catalogapi.DimensionStructuralType),
		ParentOrganizations: filteredParents,
		Licenses:            GroupedCounts(entities, catalogapi.DimensionLicense),
		Active:              BooleanSplit(entities, catalogapi.DimensionActiveStatus),
		HasAPI:              BooleanSplit(entities, catalogapi.DimensionHasAPI),
		Years:               YearHistogram(entities),
		KPIs:                kpis,
	}
}

// GroupedCounts counts entities per facet value, sorted by count descending.
// Ties keep the order in which values were first seen.
func GroupedCounts(entities []catalogapi.Entity, dimension catalogapi.Dimension) []Count {
	index := make(map[string]int)
	out := []Count{}
	for _, e := range entities {
		seen := make(map[string]struct{})
		for _, value := range facet.Values(e, dimension) {
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			i, ok := index[value]
			if !ok {
				i = len(out)
				index[value] = i
				out = append(out, Count{Label: value})
			}
			out[i].Count++
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out
}

// BooleanSplit counts the true and false labels of a two-valued dimension.
// Unknown values are excluded and empty buckets omitted.
func BooleanSplit(entities []catalogapi.Entity, dimension catalogapi.Dimension) []Count {
	var whenTrue, whenFalse string
	switch dimension {
	case catalogapi.DimensionActiveStatus:
		whenTrue, whenFalse = facet.LabelActive, facet.LabelInactive
	case catalogapi.DimensionHasAPI:
		whenTrue, whenFalse = facet.LabelHasAPI, facet.LabelNoAPI
	default:
		return nil
	}
	var trues, falses int
	for _, e := range entities {
		for _, value := range facet.Values(e, dimension) {
			switch value {
			case whenTrue:
				trues++
			case whenFalse:
				falses++
			}
		}
	}
	out := []Count{}
	if trues > 0 {
		out = append(out, Count{Label: whenTrue, Count: trues})
	}
	if falses > 0 {
		out = append(out, Count{Label: whenFalse, Count: falses})
	}
	return out
}

// YearHistogram counts entities per extractable release year in ascending year order.
func YearHistogram(entities []catalogapi.Entity) []YearCount {
	counts := make(map[int]int)
	for _, e := range entities {
		if year, ok := facet.YearFromFreeText(e.ReleaseDate); ok {
			counts[year]++
		}
	}
	out := make([]YearCount, 0, len(counts))
	for year, count := range counts {
		out = append(out, YearCount{Year: year, Count: count})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Year < out[b].Year })
	return out
}
