package catalogapi

import (
	"fmt"
	"strings"
)

// Dimension names a facet axis an entity can be classified along.
type Dimension string

const (
	DimensionService            Dimension = "service"
	DimensionContentType        Dimension = "content-type"
	DimensionFunctionalType     Dimension = "functional-type"
	DimensionStructuralType     Dimension = "structural-type"
	DimensionParentOrganization Dimension = "parent-organization"
	DimensionLicense            Dimension = "license"
	DimensionReleaseYear        Dimension = "release-year"
	DimensionActiveStatus       Dimension = "active-status"
	DimensionHasAPI             Dimension = "has-api"
)

var dimensions = []Dimension{
	DimensionService,
	DimensionContentType,
	DimensionFunctionalType,
	DimensionStructuralType,
	DimensionParentOrganization,
	DimensionLicense,
	DimensionReleaseYear,
	DimensionActiveStatus,
	DimensionHasAPI,
}

// Dimensions returns every facet dimension in canonical order.
func Dimensions() []Dimension {
	return append([]Dimension(nil), dimensions...)
}

// ParseDimension resolves a dimension identifier, ignoring case and surrounding space.
func ParseDimension(raw string) (Dimension, error) {
	candidate := Dimension(strings.ToLower(strings.TrimSpace(raw)))
	for _, d := range dimensions {
		if d == candidate {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown facet dimension %q", raw)
}

// Valid reports whether d is one of the fixed dimensions.
func (d Dimension) Valid() bool {
	for _, candidate := range dimensions {
		if candidate == d {
			return true
		}
	}
	return false
}

// MultiValued reports whether entities may carry several values for d.
func (d Dimension) MultiValued() bool {
	return d == DimensionService || d == DimensionContentType
}

func (d Dimension) String() string { return string(d) }
