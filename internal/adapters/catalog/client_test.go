package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/internal/dataset"
	"toolatlas/internal/drill"
	"toolatlas/pkg/catalogapi"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/api/")
	require.NoError(t, err)
	return c
}

func TestFetchEntitiesBareList(t *testing.T) {
	var got url.Values
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tools", r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte(`[{"name":"A","services":["QC","Encoding"],"has_api":true,"homepage":"https://a"}, 7]`))
	})
	year := 2010
	entities, err := c.FetchEntities(context.Background(), dataset.Query{
		Filters: catalogapi.Filters{catalogapi.FieldServices: {"QC", "Encoding"}},
		Search:  " enc ",
		YearMin: &year,
		Limit:   50,
		Offset:  100,
	})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "QC,Encoding", entities[0].Services)
	assert.Equal(t, "true", entities[0].HasAPI)
	assert.Equal(t, "https://a", entities[0].Extensions["homepage"])

	assert.Equal(t, "Encoding,QC", got.Get("services"))
	assert.Equal(t, "enc", got.Get("search"))
	assert.Equal(t, "2010", got.Get("year_min"))
	assert.Empty(t, got.Get("year_max"))
	assert.Equal(t, "3", got.Get("page"))
	assert.Equal(t, "50", got.Get("page_size"))
}

func TestFetchEntitiesEnvelopes(t *testing.T) {
	for _, key := range []string{"results", "data", "items", "tools"} {
		t.Run(key, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"count":1,"` + key + `":[{"name":"A"}]}`))
			})
			entities, err := c.FetchEntities(context.Background(), dataset.Query{})
			require.NoError(t, err)
			assert.Equal(t, "A", entities[0].Name)
		})
	}
}

func TestFetchEntitiesErrors(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("search") {
		case "status":
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		case "object":
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
		default:
			_, _ = w.Write([]byte(`{not json`))
		}
	})
	ctx := context.Background()

	_, err := c.FetchEntities(ctx, dataset.Query{Search: "status"})
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "maintenance", statusErr.Body)

	_, err = c.FetchEntities(ctx, dataset.Query{Search: "object"})
	assert.ErrorContains(t, err, "no entity list")

	_, err = c.FetchEntities(ctx, dataset.Query{Search: "garbage"})
	assert.ErrorContains(t, err, "malformed")
}

func TestFetchOptions(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tools/options", r.URL.Path)
		_, _ = w.Write([]byte(`{"options":{"license":["MIT"," ","Apache"],"services":"QC","parent_org":[{"x":1},"Acme"]}}`))
	})
	opts, err := c.FetchOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"MIT", "Apache"}, opts[catalogapi.FieldLicense])
	assert.Equal(t, []string{}, opts[catalogapi.FieldServices])
	assert.Equal(t, []string{"Acme"}, opts[catalogapi.FieldParentOrganization])
	assert.Len(t, opts, len(catalogapi.FilterFields()))
}

func TestParseOptionsMalformed(t *testing.T) {
	for _, body := range []string{``, `nope`, `[1,2]`, `{"options":null}`} {
		opts := ParseOptions([]byte(body))
		for _, field := range catalogapi.FilterFields() {
			assert.Equal(t, []string{}, opts[field], body)
		}
	}
}

func TestFetchOptionsTransportFailure(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.FetchOptions(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestPreviewOrganizations(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/organizations", r.URL.Path)
		assert.Equal(t, "A,B", r.URL.Query().Get("tools"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"total":12,"results":[{"name":"Acme","country":"US","tools":"A, B","tier":2}]}`))
	})
	page, err := c.PreviewOrganizations(context.Background(), drill.Preview{Tools: []string{"A", "B"}, Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Results, 1)
	org := page.Results[0]
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, []string{"A", "B"}, org.Tools)
	assert.Equal(t, float64(2), org.Extensions["tier"])
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("/relative")
	assert.Error(t, err)
}
