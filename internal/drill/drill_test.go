package drill

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/pkg/catalogapi"
)

func entities(n int) []catalogapi.Entity {
	out := make([]catalogapi.Entity, n)
	for i := range out {
		out[i] = catalogapi.Entity{Name: fmt.Sprintf("tool-%03d", i)}
	}
	return out
}

func TestFilterExpressionCapsCollectionScope(t *testing.T) {
	expr := FilterExpression(catalogapi.Scope{Kind: catalogapi.ScopeCollection, Entities: entities(150)})

	assert.Equal(t, Param, expr.Param)
	assert.Len(t, expr.Names, MaxCollectionNames)
	assert.True(t, expr.Truncated)
	assert.Len(t, strings.Split(expr.Value, ","), MaxCollectionNames)
	assert.Equal(t, "tool-000", expr.Names[0])
	assert.Equal(t, "tool-099", expr.Names[99])
}

func TestFilterExpressionSelectionScopeUncapped(t *testing.T) {
	expr := FilterExpression(catalogapi.Scope{Kind: catalogapi.ScopeSelection, Entities: entities(150)})
	assert.Len(t, expr.Names, 150)
	assert.False(t, expr.Truncated)
}

func TestFilterExpressionSkipsBlankAndDuplicateNames(t *testing.T) {
	scope := catalogapi.Scope{Kind: catalogapi.ScopeSelection, Entities: []catalogapi.Entity{
		{Name: "A"}, {Name: " "}, {Name: "B"}, {Name: "A"},
	}}
	expr := FilterExpression(scope)
	assert.Equal(t, "A,B", expr.Value)
	assert.False(t, expr.Empty())
	assert.True(t, FilterExpression(catalogapi.Scope{}).Empty())
}

func TestTarget(t *testing.T) {
	scope := catalogapi.Scope{Kind: catalogapi.ScopeSelection, Entities: []catalogapi.Entity{{Name: "Tool A"}, {Name: "B&C"}}}
	target, err := Target("https://atlas.example.com/organizations?view=list", scope)
	require.NoError(t, err)

	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "/organizations", u.Path)
	assert.Equal(t, "list", u.Query().Get("view"))
	assert.Equal(t, "Tool A,B&C", u.Query().Get(Param))

	_, err = Target("://bad", scope)
	assert.Error(t, err)
}

func TestPreviewRequest(t *testing.T) {
	scope := catalogapi.Scope{Kind: catalogapi.ScopeSelection, Entities: []catalogapi.Entity{{Name: "A"}, {Name: "B"}}}
	p := PreviewRequest(scope, "  acme ", 0, 0)

	assert.Equal(t, Preview{Tools: []string{"A", "B"}, Search: "acme", Page: 1, PageSize: DefaultPreviewPageSize}, p)
	v := p.Values()
	assert.Equal(t, "A,B", v.Get(Param))
	assert.Equal(t, "acme", v.Get("search"))
	assert.Equal(t, "1", v.Get("page"))
	assert.Equal(t, "10", v.Get("page_size"))
}
