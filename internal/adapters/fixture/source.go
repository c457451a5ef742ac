// Package fixture serves the catalog from a local YAML or JSON file. It
// applies the upstream filter semantics in process so the explorer can run
// without network access.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"toolatlas/internal/dataset"
	"toolatlas/internal/drill"
	"toolatlas/internal/facet"
	"toolatlas/pkg/catalogapi"
)

type document struct {
	Tools         []map[string]any `yaml:"tools"`
	Organizations []map[string]any `yaml:"organizations"`
}

// Source is an immutable in-memory catalog.
type Source struct {
	entities      []catalogapi.Entity
	organizations []catalogapi.OrganizationSummary
}

// Load reads a fixture file.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	src, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return src, nil
}

// Parse decodes a fixture document. JSON documents are accepted as YAML.
// A bare list is read as the tools list.
func Parse(data []byte) (*Source, error) {
	var doc document
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&doc.Tools); err != nil {
			return nil, fmt.Errorf("decode fixture tools: %w", err)
		}
	case yaml.MappingNode:
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode fixture: %w", err)
		}
	case 0:
	default:
		return nil, fmt.Errorf("decode fixture: unexpected top-level %s", kindName(root.Kind))
	}

	entities := make([]catalogapi.Entity, 0, len(doc.Tools))
	for i, raw := range doc.Tools {
		var e catalogapi.Entity
		if err := reencode(raw, &e); err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}
		entities = append(entities, e)
	}
	orgs := make([]catalogapi.OrganizationSummary, 0, len(doc.Organizations))
	for i, raw := range doc.Organizations {
		org, err := organizationFrom(raw)
		if err != nil {
			return nil, fmt.Errorf("organization %d: %w", i, err)
		}
		orgs = append(orgs, org)
	}
	return New(entities, orgs), nil
}

// New builds a source from decoded records. Without organization records,
// organizations are derived from the tools' parent organizations.
func New(entities []catalogapi.Entity, organizations []catalogapi.OrganizationSummary) *Source {
	if len(organizations) == 0 {
		organizations = deriveOrganizations(entities)
	}
	return &Source{entities: entities, organizations: organizations}
}

// Entities returns every tool in file order.
func (s *Source) Entities() []catalogapi.Entity {
	return append([]catalogapi.Entity(nil), s.entities...)
}

// FetchEntities implements dataset.Fetcher.
func (s *Source) FetchEntities(ctx context.Context, q dataset.Query) ([]catalogapi.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]catalogapi.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if Matches(e, q) {
			out = append(out, e)
		}
	}
	return paginate(out, q.Offset, q.Limit), nil
}

// FetchOptions lists distinct raw values per filter field, sorted without
// regard to case.
func (s *Source) FetchOptions(ctx context.Context) (catalogapi.FilterOptions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(catalogapi.FilterOptions, len(catalogapi.FilterFields()))
	for _, field := range catalogapi.FilterFields() {
		seen := make(map[string]struct{})
		values := []string{}
		for _, e := range s.entities {
			for _, v := range fieldValues(e, field) {
				key := strings.ToLower(v)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				values = append(values, v)
			}
		}
		sort.SliceStable(values, func(i, j int) bool {
			return strings.ToLower(values[i]) < strings.ToLower(values[j])
		})
		out[field] = values
	}
	return out, nil
}

// PreviewOrganizations returns organizations tagged with any of the preview's
// tools whose name contains the search text.
func (s *Source) PreviewOrganizations(ctx context.Context, p drill.Preview) (catalogapi.OrganizationPage, error) {
	if err := ctx.Err(); err != nil {
		return catalogapi.OrganizationPage{}, err
	}
	wanted := make(map[string]struct{}, len(p.Tools))
	for _, t := range p.Tools {
		wanted[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	search := strings.ToLower(strings.TrimSpace(p.Search))
	var matched []catalogapi.OrganizationSummary
	for _, org := range s.organizations {
		if search != "" && !strings.Contains(strings.ToLower(org.Name), search) {
			continue
		}
		for _, t := range org.Tools {
			if _, ok := wanted[strings.ToLower(t)]; ok {
				matched = append(matched, org)
				break
			}
		}
	}
	page, size := p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = drill.DefaultPreviewPageSize
	}
	results := paginate(matched, (page-1)*size, size)
	if results == nil {
		results = []catalogapi.OrganizationSummary{}
	}
	return catalogapi.OrganizationPage{Results: results, Total: len(matched), Page: page, PageSize: size}, nil
}

// Matches applies the query's field filters, search text and year range to e.
// Values within a field are alternatives; fields combine conjunctively.
func Matches(e catalogapi.Entity, q dataset.Query) bool {
	for field, selected := range q.Filters {
		selected = dataset.CanonicalValues(selected)
		if len(selected) == 0 {
			continue
		}
		if !anyEqualFold(fieldValues(e, field), selected) {
			return false
		}
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		haystack := strings.ToLower(strings.Join([]string{e.Name, e.ParentOrganization, e.FunctionalType, e.Services}, "\n"))
		if !strings.Contains(haystack, search) {
			return false
		}
	}
	if q.YearMin != nil || q.YearMax != nil {
		year, ok := facet.YearFromFreeText(e.ReleaseDate)
		if !ok {
			return false
		}
		if q.YearMin != nil && year < *q.YearMin {
			return false
		}
		if q.YearMax != nil && year > *q.YearMax {
			return false
		}
	}
	return true
}

func fieldValues(e catalogapi.Entity, field catalogapi.FilterField) []string {
	raw := e.Field(field)
	switch field {
	case catalogapi.FieldServices, catalogapi.FieldContentTypes,
		catalogapi.FieldFunctionalType, catalogapi.FieldStructuralType:
		return facet.SplitTokens(raw)
	default:
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}
}

func anyEqualFold(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		if limit > 0 || offset > 0 {
			return items[:0]
		}
		return items
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func deriveOrganizations(entities []catalogapi.Entity) []catalogapi.OrganizationSummary {
	index := make(map[string]int)
	var out []catalogapi.OrganizationSummary
	for _, e := range entities {
		parent := facet.ParentOrganization(e)
		if parent == facet.Unknown {
			continue
		}
		i, ok := index[parent]
		if !ok {
			i = len(out)
			index[parent] = i
			out = append(out, catalogapi.OrganizationSummary{Name: parent})
		}
		out[i].Tools = append(out[i].Tools, e.Name)
	}
	return out
}

func organizationFrom(raw map[string]any) (catalogapi.OrganizationSummary, error) {
	org := catalogapi.OrganizationSummary{}
	for key, value := range raw {
		switch key {
		case "name":
			org.Name = strings.TrimSpace(fmt.Sprint(value))
		case "country":
			org.Country = strings.TrimSpace(fmt.Sprint(value))
		case "website":
			org.Website = strings.TrimSpace(fmt.Sprint(value))
		case "tools":
			switch v := value.(type) {
			case []any:
				for _, t := range v {
					if s := strings.TrimSpace(fmt.Sprint(t)); s != "" {
						org.Tools = append(org.Tools, s)
					}
				}
			case string:
				org.Tools = facet.SplitTokens(v)
			default:
				return org, fmt.Errorf("tools must be a list or a comma-joined string")
			}
		default:
			if org.Extensions == nil {
				org.Extensions = make(map[string]any)
			}
			org.Extensions[key] = value
		}
	}
	if org.Name == "" {
		return org, fmt.Errorf("organization name required")
	}
	return org, nil
}

// reencode routes a YAML-decoded record through the JSON decoder so both
// formats share one set of field rules.
func reencode(raw map[string]any, e *catalogapi.Entity) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, e)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return fmt.Sprintf("kind %d", k)
	}
}
