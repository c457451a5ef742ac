package catalogapi

// ScopeKind tells which subset an aggregation read from.
type ScopeKind string

const (
	ScopeCollection ScopeKind = "collection"
	ScopeSelection  ScopeKind = "selection"
)

// Scope is the entity subset every aggregate, KPI and table row is computed over.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	Entities []Entity  `json:"entities"`
}

// Names returns the entity names in scope order.
func (s Scope) Names() []string {
	names := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		names[i] = e.Name
	}
	return names
}

// NameSet is an insertion-ordered set of entity names.
type NameSet struct {
	order []string
	index map[string]struct{}
}

// NewNameSet builds a set from names, keeping the first occurrence of each.
func NewNameSet(names ...string) NameSet {
	var s NameSet
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add inserts name; it returns false when the name was already present.
func (s *NameSet) Add(name string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

// Has reports membership.
func (s NameSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s NameSet) Len() int { return len(s.order) }

func (s NameSet) Empty() bool { return len(s.order) == 0 }

// Names returns a copy of the members in insertion order.
func (s NameSet) Names() []string {
	return append([]string(nil), s.order...)
}

// Intersect keeps the members of s that are also in other, in s's order.
func (s NameSet) Intersect(other NameSet) NameSet {
	var out NameSet
	for _, name := range s.order {
		if other.Has(name) {
			out.Add(name)
		}
	}
	return out
}

// OrganizationSummary is one row of the organization preview returned by the
// external organizations collection.
type OrganizationSummary struct {
	Name       string         `json:"name"`
	Country    string         `json:"country,omitempty"`
	Website    string         `json:"website,omitempty"`
	Tools      []string       `json:"tools,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// OrganizationPage is a page of organization summaries.
type OrganizationPage struct {
	Results  []OrganizationSummary `json:"results"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}
