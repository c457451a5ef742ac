// Package selection implements the single-pick crossfilter: one facet value at
// a time narrows the filtered collection to a derived subset, and that subset
// is re-validated whenever the collection is replaced.
package selection

import (
	"toolatlas/internal/facet"
	"toolatlas/pkg/catalogapi"
)

// Outcome reports what a Toggle did.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomePicked
	OutcomeCleared
)

func (o Outcome) String() string {
	switch o {
	case OutcomePicked:
		return "picked"
	case OutcomeCleared:
		return "cleared"
	default:
		return "rejected"
	}
}

// Machine holds the active pick and the subset derived from it. The zero value
// is ready to use. Machine is not safe for concurrent use; callers serialize
// transitions.
type Machine struct {
	selection catalogapi.Selection
	subset    catalogapi.NameSet
}

// Toggle applies a click on (dimension, value). Clicking the active pick clears
// it. A non-selectable value, or one no entity in collection carries, is
// ignored. Anything else replaces the pick wholesale.
func (m *Machine) Toggle(dimension catalogapi.Dimension, value string, collection []catalogapi.Entity) Outcome {
	if m.selection.Matches(dimension, value) {
		m.Clear()
		return OutcomeCleared
	}
	if !dimension.Valid() || !facet.Selectable(dimension, value) {
		return OutcomeRejected
	}
	picked := catalogapi.Picked(dimension, value)
	derived := Derive(collection, picked)
	if derived.Empty() {
		return OutcomeRejected
	}
	m.selection = picked
	m.subset = derived
	return OutcomePicked
}

// Reconcile re-derives the subset against a replacement collection. When no
// entity still carries the picked value, the pick is cleared and Reconcile
// returns true.
func (m *Machine) Reconcile(collection []catalogapi.Entity) bool {
	if !m.selection.IsPicked() {
		return false
	}
	derived := Derive(collection, m.selection)
	if derived.Empty() {
		m.Clear()
		return true
	}
	m.subset = derived
	return false
}

// Clear drops the pick and the derived subset together.
func (m *Machine) Clear() {
	m.selection = catalogapi.None()
	m.subset = catalogapi.NameSet{}
}

// Selection returns the active pick.
func (m *Machine) Selection() catalogapi.Selection { return m.selection }

// Subset returns the derived entity names.
func (m *Machine) Subset() catalogapi.NameSet { return m.subset }

// Highlighted returns the value highlighted on dimension, if any. Highlights
// follow the pick, so clearing the pick clears every dimension at once.
func (m *Machine) Highlighted(dimension catalogapi.Dimension) (string, bool) {
	if d, v, ok := m.selection.Pick(); ok && d == dimension {
		return v, true
	}
	return "", false
}

// Scope resolves the entities aggregates read from: the selection subset when
// it is non-empty, the collection otherwise.
func (m *Machine) Scope(collection []catalogapi.Entity) catalogapi.Scope {
	return ResolveScope(collection, m.subset)
}

// Derive returns the names of the entities in collection that carry the picked
// value. None yields an empty set.
func Derive(collection []catalogapi.Entity, sel catalogapi.Selection) catalogapi.NameSet {
	var out catalogapi.NameSet
	dimension, value, ok := sel.Pick()
	if !ok {
		return out
	}
	for _, e := range collection {
		if facet.Contains(e, dimension, value) {
			out.Add(e.Name)
		}
	}
	return out
}

// ResolveScope keeps collection order when narrowing to subset.
func ResolveScope(collection []catalogapi.Entity, subset catalogapi.NameSet) catalogapi.Scope {
	if subset.Empty() {
		return catalogapi.Scope{Kind: catalogapi.ScopeCollection, Entities: collection}
	}
	entities := make([]catalogapi.Entity, 0, subset.Len())
	seen := make(map[string]struct{}, subset.Len())
	for _, e := range collection {
		if !subset.Has(e.Name) {
			continue
		}
		if _, dup := seen[e.Name]; dup {
			continue
		}
		seen[e.Name] = struct{}{}
		entities = append(entities, e)
	}
	return catalogapi.Scope{Kind: catalogapi.ScopeSelection, Entities: entities}
}
