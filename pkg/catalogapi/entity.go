package catalogapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Entity is one infrastructure tool as returned by the dataset query. Name is
// the identity key. Every categorical field keeps its raw text; normalization
// happens in the facet layer. Fields the schema does not name are kept in
// Extensions and survive a JSON round trip.
type Entity struct {
	Name               string
	ParentOrganization string
	License            string
	FunctionalType     string
	StructuralType     string
	Active             string
	HasAPI             string
	ReleaseDate        string
	Services           string
	ContentTypes       string
	Extensions         map[string]any
}

type entityField struct {
	key    string
	filter FilterField
	ref    func(*Entity) *string
}

var entityFields = []entityField{
	{key: "name", ref: func(e *Entity) *string { return &e.Name }},
	{key: "parent_org", filter: FieldParentOrganization, ref: func(e *Entity) *string { return &e.ParentOrganization }},
	{key: "license", filter: FieldLicense, ref: func(e *Entity) *string { return &e.License }},
	{key: "functional_type", filter: FieldFunctionalType, ref: func(e *Entity) *string { return &e.FunctionalType }},
	{key: "structural_type", filter: FieldStructuralType, ref: func(e *Entity) *string { return &e.StructuralType }},
	{key: "active", filter: FieldActive, ref: func(e *Entity) *string { return &e.Active }},
	{key: "has_api", filter: FieldHasAPI, ref: func(e *Entity) *string { return &e.HasAPI }},
	{key: "release_date", ref: func(e *Entity) *string { return &e.ReleaseDate }},
	{key: "services", filter: FieldServices, ref: func(e *Entity) *string { return &e.Services }},
	{key: "content_types", filter: FieldContentTypes, ref: func(e *Entity) *string { return &e.ContentTypes }},
}

// Field returns the raw text stored for a filter field.
func (e Entity) Field(field FilterField) string {
	for _, f := range entityFields {
		if f.filter != "" && f.filter == field {
			return *f.ref(&e)
		}
	}
	return ""
}

// UnmarshalJSON decodes an upstream record. Scalars of any JSON kind are kept
// as text and string arrays are comma-joined, matching the delimiter-joined
// storage used by the catalog.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	*e = Entity{}
	for _, f := range entityFields {
		value, ok := raw[f.key]
		if !ok {
			continue
		}
		text, err := textValue(value)
		if err != nil {
			return fmt.Errorf("decode entity field %s: %w", f.key, err)
		}
		*f.ref(e) = text
		delete(raw, f.key)
	}
	if len(raw) == 0 {
		return nil
	}
	e.Extensions = make(map[string]any, len(raw))
	for key, value := range raw {
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return fmt.Errorf("decode entity extension %s: %w", key, err)
		}
		e.Extensions[key] = decoded
	}
	return nil
}

// MarshalJSON emits named fields under their schema keys and merges
// extensions alongside them. Named fields win on key collisions.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(entityFields)+len(e.Extensions))
	for key, value := range e.Extensions {
		out[key] = value
	}
	for _, f := range entityFields {
		value := *f.ref(&e)
		if value == "" && f.key != "name" {
			delete(out, f.key)
			continue
		}
		out[f.key] = value
	}
	return json.Marshal(out)
}

func textValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ","), nil
	case '{':
		return "", fmt.Errorf("object value not supported")
	default:
		// numbers and booleans keep their literal spelling
		return string(trimmed), nil
	}
}
