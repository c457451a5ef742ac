package catalogapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionZeroValueIsNone(t *testing.T) {
	var s Selection
	assert.False(t, s.IsPicked())
	assert.Equal(t, None(), s)
	_, _, ok := s.Pick()
	assert.False(t, ok)
	assert.Equal(t, "none", s.String())
}

func TestSelectionMatches(t *testing.T) {
	s := Picked(DimensionService, "QC")
	assert.True(t, s.Matches(DimensionService, "QC"))
	assert.False(t, s.Matches(DimensionContentType, "QC"))
	assert.False(t, None().Matches("", ""))
}

func TestSelectionJSON(t *testing.T) {
	data, err := json.Marshal(None())
	require.NoError(t, err)
	assert.JSONEq(t, "null", string(data))

	data, err = json.Marshal(Picked(DimensionLicense, "Free"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"dimension":"license","value":"Free"}`, string(data))

	var s Selection
	require.NoError(t, json.Unmarshal(data, &s))
	assert.True(t, s.Matches(DimensionLicense, "Free"))

	require.NoError(t, json.Unmarshal([]byte("null"), &s))
	assert.False(t, s.IsPicked())

	require.Error(t, json.Unmarshal([]byte(`{"dimension":"colour","value":"red"}`), &s))
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension(" Has-API ")
	require.NoError(t, err)
	assert.Equal(t, DimensionHasAPI, d)
	_, err = ParseDimension("bogus")
	require.Error(t, err)
	assert.Len(t, Dimensions(), 9)
	assert.True(t, DimensionService.MultiValued())
	assert.False(t, DimensionLicense.MultiValued())
}

func TestNameSet(t *testing.T) {
	s := NewNameSet("b", "a", "b", "c")
	assert.Equal(t, []string{"b", "a", "c"}, s.Names())
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has("a"))

	narrowed := s.Intersect(NewNameSet("c", "b", "z"))
	assert.Equal(t, []string{"b", "c"}, narrowed.Names())

	var empty NameSet
	assert.True(t, empty.Empty())
	assert.False(t, empty.Has("a"))
}

func TestFiltersToggle(t *testing.T) {
	f := Filters{}
	f.Toggle(FieldServices, "QC")
	f.Toggle(FieldServices, "Encoding")
	assert.Equal(t, []string{"QC", "Encoding"}, f[FieldServices])

	clone := f.Clone()
	f.Toggle(FieldServices, "QC")
	assert.Equal(t, []string{"Encoding"}, f[FieldServices])
	assert.Equal(t, []string{"QC", "Encoding"}, clone[FieldServices])

	f.Toggle(FieldServices, "Encoding")
	assert.NotContains(t, f, FieldServices)

	_, err := ParseFilterField("nope")
	require.Error(t, err)
}
