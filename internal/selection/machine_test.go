package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/internal/facet"
	"toolatlas/pkg/catalogapi"
)

func sampleCollection() []catalogapi.Entity {
	return []catalogapi.Entity{
		{Name: "A", Services: "Encoding,QC", ParentOrganization: "Acme", HasAPI: "yes"},
		{Name: "B", Services: "QC", ParentOrganization: "Beta", HasAPI: "no"},
		{Name: "C", ParentOrganization: "", ReleaseDate: "Released March 2019"},
	}
}

func TestTogglePickDerivesSubset(t *testing.T) {
	var m Machine
	collection := sampleCollection()

	outcome := m.Toggle(catalogapi.DimensionService, "QC", collection)
	require.Equal(t, OutcomePicked, outcome)
	assert.Equal(t, []string{"A", "B"}, m.Subset().Names())

	scope := m.Scope(collection)
	assert.Equal(t, catalogapi.ScopeSelection, scope.Kind)
	assert.Equal(t, []string{"A", "B"}, scope.Names())
}

func TestToggleTwiceRoundTrips(t *testing.T) {
	var m Machine
	collection := sampleCollection()
	m.Toggle(catalogapi.DimensionService, "QC", collection)
	outcome := m.Toggle(catalogapi.DimensionService, "QC", collection)

	assert.Equal(t, OutcomeCleared, outcome)
	assert.False(t, m.Selection().IsPicked())
	assert.True(t, m.Subset().Empty())
	assert.Equal(t, catalogapi.ScopeCollection, m.Scope(collection).Kind)
}

func TestToggleReplacesPick(t *testing.T) {
	var m Machine
	collection := sampleCollection()
	m.Toggle(catalogapi.DimensionService, "QC", collection)
	m.Toggle(catalogapi.DimensionHasAPI, facet.LabelNoAPI, collection)

	assert.True(t, m.Selection().Matches(catalogapi.DimensionHasAPI, facet.LabelNoAPI))
	assert.Equal(t, []string{"B"}, m.Subset().Names())
	_, ok := m.Highlighted(catalogapi.DimensionService)
	assert.False(t, ok)
	value, ok := m.Highlighted(catalogapi.DimensionHasAPI)
	assert.True(t, ok)
	assert.Equal(t, facet.LabelNoAPI, value)
}

func TestToggleRejectsUnknownParent(t *testing.T) {
	var m Machine
	collection := sampleCollection()
	m.Toggle(catalogapi.DimensionService, "QC", collection)

	for _, value := range []string{"", "Unknown", "  "} {
		assert.Equal(t, OutcomeRejected, m.Toggle(catalogapi.DimensionParentOrganization, value, collection))
	}
	assert.Equal(t, OutcomeRejected, m.Toggle(catalogapi.Dimension("colour"), "red", collection))
	assert.True(t, m.Selection().Matches(catalogapi.DimensionService, "QC"))
}

func TestReleaseYearPickComparesExtractedYear(t *testing.T) {
	var m Machine
	m.Toggle(catalogapi.DimensionReleaseYear, "2019", sampleCollection())
	assert.Equal(t, []string{"C"}, m.Subset().Names())
}

func TestReconcileNarrowsSubset(t *testing.T) {
	var m Machine
	m.Toggle(catalogapi.DimensionService, "QC", sampleCollection())

	narrowed := []catalogapi.Entity{
		{Name: "B", Services: "QC"},
		{Name: "D", Services: "Encoding"},
	}
	cleared := m.Reconcile(narrowed)

	assert.False(t, cleared)
	assert.True(t, m.Selection().Matches(catalogapi.DimensionService, "QC"))
	assert.Equal(t, []string{"B"}, m.Subset().Names())
}

func TestReconcileClearsWhenNothingSurvives(t *testing.T) {
	var m Machine
	m.Toggle(catalogapi.DimensionService, "QC", sampleCollection())

	replacement := []catalogapi.Entity{{Name: "Z", Services: "Encoding"}}
	cleared := m.Reconcile(replacement)

	assert.True(t, cleared)
	assert.False(t, m.Selection().IsPicked())
	for _, d := range catalogapi.Dimensions() {
		_, ok := m.Highlighted(d)
		assert.False(t, ok, d.String())
	}
	scope := m.Scope(replacement)
	assert.Equal(t, catalogapi.ScopeCollection, scope.Kind)
	assert.Equal(t, []string{"Z"}, scope.Names())
}

func TestReconcileClearsWhenSurvivorsLoseValue(t *testing.T) {
	var m Machine
	require.Equal(t, OutcomePicked, m.Toggle(catalogapi.DimensionService, "QC", []catalogapi.Entity{{Name: "A", Services: "QC"}}))

	replacement := []catalogapi.Entity{{Name: "A", Services: "Encoding"}}
	cleared := m.Reconcile(replacement)

	assert.True(t, cleared)
	assert.False(t, m.Selection().IsPicked())
	assert.True(t, m.Subset().Empty())
	_, ok := m.Highlighted(catalogapi.DimensionService)
	assert.False(t, ok)
	assert.Equal(t, catalogapi.ScopeCollection, m.Scope(replacement).Kind)
}

func TestToggleRejectsValueNobodyCarries(t *testing.T) {
	var m Machine
	collection := sampleCollection()

	assert.Equal(t, OutcomeRejected, m.Toggle(catalogapi.DimensionService, "Captioning", collection))
	assert.False(t, m.Selection().IsPicked())
	assert.True(t, m.Subset().Empty())

	m.Toggle(catalogapi.DimensionService, "QC", collection)
	assert.Equal(t, OutcomeRejected, m.Toggle(catalogapi.DimensionService, "Captioning", collection))
	assert.True(t, m.Selection().Matches(catalogapi.DimensionService, "QC"))
	assert.Equal(t, []string{"A", "B"}, m.Subset().Names())
}

func TestReconcileWithoutPick(t *testing.T) {
	var m Machine
	assert.False(t, m.Reconcile(sampleCollection()))
}

func TestDeriveNone(t *testing.T) {
	assert.True(t, Derive(sampleCollection(), catalogapi.None()).Empty())
}

func TestResolveScopeDropsDuplicateNames(t *testing.T) {
	collection := []catalogapi.Entity{{Name: "A"}, {Name: "A"}, {Name: "B"}}
	scope := ResolveScope(collection, catalogapi.NewNameSet("A"))
	assert.Equal(t, []string{"A"}, scope.Names())
}
