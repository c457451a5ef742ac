package aggregate

import (
	"toolatlas/internal/facet"
	"toolatlas/pkg/catalogapi"
)

// Row is one line of the backing table, with normalized facet values.
type Row struct {
	Name               string   `json:"name"`
	ParentOrganization string   `json:"parent_organization"`
	License            string   `json:"license"`
	FunctionalType     []string `json:"functional_type"`
	StructuralType     []string `json:"structural_type"`
	Services           []string `json:"services"`
	ContentTypes       []string `json:"content_types"`
	ReleaseYear        int      `json:"release_year,omitempty"`
	Active             string   `json:"active,omitempty"`
	HasAPI             string   `json:"has_api,omitempty"`
}

// Table returns one row per entity in scope order.
func Table(scope catalogapi.Scope) []Row {
	rows := make([]Row, 0, len(scope.Entities))
	for _, e := range scope.Entities {
		row := Row{
			Name:               e.Name,
			ParentOrganization: facet.ParentOrganization(e),
			License:            facet.NormalizeLicense(e.License),
			FunctionalType:     facet.Values(e, catalogapi.DimensionFunctionalType),
			StructuralType:     facet.Values(e, catalogapi.DimensionStructuralType),
			Services:           facet.Values(e, catalogapi.DimensionService),
			ContentTypes:       facet.Values(e, catalogapi.DimensionContentType),
			Active:             first(facet.Values(e, catalogapi.DimensionActiveStatus)),
			HasAPI:             first(facet.Values(e, catalogapi.DimensionHasAPI)),
		}
		if year, ok := facet.YearFromFreeText(e.ReleaseDate); ok {
			row.ReleaseYear = year
		}
		rows = append(rows, row)
	}
	return rows
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
