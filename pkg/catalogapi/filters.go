package catalogapi

import (
	"fmt"
	"strings"
)

// FilterField identifies an upstream filter parameter. Values are the raw
// distinct field values offered by the options query.
type FilterField string

const (
	FieldParentOrganization FilterField = "parent_org"
	FieldLicense            FilterField = "license"
	FieldFunctionalType     FilterField = "functional_type"
	FieldStructuralType     FilterField = "structural_type"
	FieldServices           FilterField = "services"
	FieldContentTypes       FilterField = "content_types"
	FieldActive             FilterField = "active"
	FieldHasAPI             FilterField = "has_api"
)

var filterFields = []FilterField{
	FieldParentOrganization,
	FieldLicense,
	FieldFunctionalType,
	FieldStructuralType,
	FieldServices,
	FieldContentTypes,
	FieldActive,
	FieldHasAPI,
}

// FilterFields returns the filterable fields in the fixed order used for cache keys.
func FilterFields() []FilterField {
	return append([]FilterField(nil), filterFields...)
}

// ParseFilterField resolves a filter field name.
func ParseFilterField(raw string) (FilterField, error) {
	candidate := FilterField(strings.ToLower(strings.TrimSpace(raw)))
	for _, f := range filterFields {
		if f == candidate {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter field %q", raw)
}

// Filters holds the independent multi-select filter state, one value list per field.
type Filters map[FilterField][]string

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for field, values := range f {
		out[field] = append([]string(nil), values...)
	}
	return out
}

// Toggle adds value to field when absent and removes it when present.
func (f Filters) Toggle(field FilterField, value string) {
	values := f[field]
	for i, existing := range values {
		if existing == value {
			f[field] = append(values[:i:i], values[i+1:]...)
			if len(f[field]) == 0 {
				delete(f, field)
			}
			return
		}
	}
	f[field] = append(values, value)
}

// FilterOptions lists, per field, every distinct raw value available for the filter UI.
type FilterOptions map[FilterField][]string
