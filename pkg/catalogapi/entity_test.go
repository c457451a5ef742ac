package catalogapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityUnmarshalKeepsExtensions(t *testing.T) {
	payload := `{
		"name": "Flow Packager",
		"parent_org": "Acme Media",
		"active": true,
		"has_api": 0,
		"services": ["Packaging", "DRM"],
		"release_date": null,
		"hq_city": "Oslo",
		"employees": 40
	}`
	var e Entity
	require.NoError(t, json.Unmarshal([]byte(payload), &e))
	assert.Equal(t, "Flow Packager", e.Name)
	assert.Equal(t, "Acme Media", e.ParentOrganization)
	assert.Equal(t, "true", e.Active)
	assert.Equal(t, "0", e.HasAPI)
	assert.Equal(t, "Packaging,DRM", e.Services)
	assert.Empty(t, e.ReleaseDate)
	assert.Equal(t, map[string]any{"hq_city": "Oslo", "employees": float64(40)}, e.Extensions)
}

func TestEntityMarshalMergesExtensions(t *testing.T) {
	e := Entity{
		Name:       "Ingest",
		License:    "Open Source",
		Extensions: map[string]any{"hq_city": "Oslo", "license": "shadowed"},
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Ingest", decoded["name"])
	assert.Equal(t, "Open Source", decoded["license"])
	assert.Equal(t, "Oslo", decoded["hq_city"])
	assert.NotContains(t, decoded, "services")
}

func TestEntityUnmarshalRejectsObjectField(t *testing.T) {
	var e Entity
	err := json.Unmarshal([]byte(`{"name":{"first":"x"}}`), &e)
	require.Error(t, err)
}

func TestEntityField(t *testing.T) {
	e := Entity{Services: "QC", HasAPI: "yes", Name: "x"}
	assert.Equal(t, "QC", e.Field(FieldServices))
	assert.Equal(t, "yes", e.Field(FieldHasAPI))
	assert.Empty(t, e.Field(FilterField("name")))
}
