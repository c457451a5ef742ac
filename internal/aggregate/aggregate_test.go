package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/internal/selection"
	"toolatlas/pkg/catalogapi"
)

func threeTools() []catalogapi.Entity {
	return []catalogapi.Entity{
		{Name: "A", Services: "Encoding,QC", ParentOrganization: "Acme", License: "Open Source, MIT", Active: "true", ReleaseDate: "2019-04-01"},
		{Name: "B", Services: "QC", ParentOrganization: "Beta", License: "Annual SaaS", Active: "no", ReleaseDate: "Released March 2017"},
		{Name: "C", ParentOrganization: "", License: "", Active: "maybe", ReleaseDate: "TBD"},
	}
}

func collectionScope(entities []catalogapi.Entity) catalogapi.Scope {
	return catalogapi.Scope{Kind: catalogapi.ScopeCollection, Entities: entities}
}

func TestGroupedServiceCounts(t *testing.T) {
	got := GroupedCounts(threeTools(), catalogapi.DimensionService)
	assert.Equal(t, []Count{{"QC", 2}, {"Encoding", 1}}, got)
}

func TestGroupedCountsTieKeepsFirstSeen(t *testing.T) {
	entities := []catalogapi.Entity{
		{Name: "1", Services: "Zeta,Alpha"},
		{Name: "2", Services: "Mid"},
	}
	got := GroupedCounts(entities, catalogapi.DimensionService)
	assert.Equal(t, []Count{{"Zeta", 1}, {"Alpha", 1}, {"Mid", 1}}, got)
}

func TestGroupedCountsOncePerEntity(t *testing.T) {
	entities := []catalogapi.Entity{{Name: "1", Services: "QC, QC,QC"}}
	assert.Equal(t, []Count{{"QC", 1}}, GroupedCounts(entities, catalogapi.DimensionService))
}

func TestSummarizeCollection(t *testing.T) {
	s := Summarize(collectionScope(threeTools()))

	assert.Equal(t, catalogapi.ScopeCollection, s.Scope)
	assert.Equal(t, []Count{{"Acme", 1}, {"Beta", 1}}, s.ParentOrganizations)
	assert.Equal(t, KPIs{Entities: 3, ParentOrganizations: 2, UnattributedEntities: 1}, s.KPIs)
	assert.Equal(t, []Count{{"Open-Source", 1}, {"Subscription", 1}, {"Unknown", 1}}, s.Licenses)
	assert.Equal(t, []Count{{"Active", 1}, {"Inactive", 1}}, s.Active)
	assert.Empty(t, s.HasAPI)
	assert.Equal(t, []YearCount{{2017, 1}, {2019, 1}}, s.Years)
	assert.Equal(t, []Count{{"Unknown", 3}}, s.FunctionalTypes)
}

func TestSummarizeFollowsSelectionScope(t *testing.T) {
	collection := threeTools()
	var m selection.Machine
	require.Equal(t, selection.OutcomePicked, m.Toggle(catalogapi.DimensionService, "QC", collection))

	s := Summarize(m.Scope(collection))

	assert.Equal(t, catalogapi.ScopeSelection, s.Scope)
	assert.Equal(t, []Count{{"Acme", 1}, {"Beta", 1}}, s.ParentOrganizations)
	assert.Equal(t, KPIs{Entities: 2, ParentOrganizations: 2}, s.KPIs)
	assert.Equal(t, []Count{{"Open-Source", 1}, {"Subscription", 1}}, s.Licenses)
	assert.Equal(t, []YearCount{{2017, 1}, {2019, 1}}, s.Years)
}

func TestBooleanSplitOmitsEmptyBuckets(t *testing.T) {
	entities := []catalogapi.Entity{{HasAPI: "N"}, {HasAPI: "no"}, {HasAPI: ""}}
	assert.Equal(t, []Count{{"No API", 2}}, BooleanSplit(entities, catalogapi.DimensionHasAPI))
	assert.Nil(t, BooleanSplit(entities, catalogapi.DimensionLicense))
}

func TestSeriesReleaseYearLabels(t *testing.T) {
	s := Summarize(collectionScope(threeTools()))
	assert.Equal(t, []Count{{"2017", 1}, {"2019", 1}}, s.Series(catalogapi.DimensionReleaseYear))
	assert.Equal(t, s.Services, s.Series(catalogapi.DimensionService))
}

func TestTable(t *testing.T) {
	rows := Table(collectionScope(threeTools()))
	require.Len(t, rows, 3)
	assert.Equal(t, Row{
		Name:               "A",
		ParentOrganization: "Acme",
		License:            "Open-Source",
		FunctionalType:     []string{"Unknown"},
		StructuralType:     []string{"Unknown"},
		Services:           []string{"Encoding", "QC"},
		ContentTypes:       nil,
		ReleaseYear:        2019,
		Active:             "Active",
	}, rows[0])
	assert.Equal(t, "Unknown", rows[2].ParentOrganization)
	assert.Zero(t, rows[2].ReleaseYear)
	assert.Empty(t, rows[2].Active)
}
