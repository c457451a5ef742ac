package catalogapi

import (
	"encoding/json"
	"fmt"
)

// Selection is the crossfilter pick: either None (the zero value) or exactly
// one Picked(dimension, value). Holding a single struct rather than a list
// keeps multiple simultaneous picks unrepresentable.
type Selection struct {
	picked    bool
	dimension Dimension
	value     string
}

// None returns the empty selection.
func None() Selection { return Selection{} }

// Picked returns a selection holding the given facet value.
func Picked(dimension Dimension, value string) Selection {
	return Selection{picked: true, dimension: dimension, value: value}
}

// IsPicked reports whether a facet value is selected.
func (s Selection) IsPicked() bool { return s.picked }

// Pick returns the selected dimension and value; ok is false for None.
func (s Selection) Pick() (dimension Dimension, value string, ok bool) {
	return s.dimension, s.value, s.picked
}

// Dimension returns the picked dimension or the empty string.
func (s Selection) Dimension() Dimension { return s.dimension }

// Value returns the picked value or the empty string.
func (s Selection) Value() string { return s.value }

// Matches reports whether the selection holds exactly (dimension, value).
func (s Selection) Matches(dimension Dimension, value string) bool {
	return s.picked && s.dimension == dimension && s.value == value
}

func (s Selection) String() string {
	if !s.picked {
		return "none"
	}
	return fmt.Sprintf("%s=%s", s.dimension, s.value)
}

type selectionJSON struct {
	Dimension Dimension `json:"dimension"`
	Value     string    `json:"value"`
}

// MarshalJSON encodes None as null.
func (s Selection) MarshalJSON() ([]byte, error) {
	if !s.picked {
		return []byte("null"), nil
	}
	return json.Marshal(selectionJSON{Dimension: s.dimension, Value: s.value})
}

// UnmarshalJSON decodes null as None.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var payload *selectionJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload == nil {
		*s = None()
		return nil
	}
	dimension, err := ParseDimension(string(payload.Dimension))
	if err != nil {
		return err
	}
	*s = Picked(dimension, payload.Value)
	return nil
}
