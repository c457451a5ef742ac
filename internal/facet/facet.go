// Package facet turns raw entity fields into canonical facet values. Every
// function is pure.
package facet

import (
	"strconv"
	"strings"
	"unicode"

	"toolatlas/pkg/catalogapi"
)

// Canonical labels produced by the extractors.
const (
	Unknown       = "Unknown"
	LabelActive   = "Active"
	LabelInactive = "Inactive"
	LabelHasAPI   = "Has API"
	LabelNoAPI    = "No API"
)

// License categories.
const (
	LicenseOpenSource   = "Open-Source"
	LicenseSubscription = "Subscription"
	LicenseFree         = "Free"
	LicensePermanent    = "Permanent"
)

// Release years outside this range are rejected as noise.
const (
	MinYear = 1900
	MaxYear = 2100
)

// Tristate is the result of boolean normalization.
type Tristate int

const (
	TristateUnknown Tristate = iota
	TristateTrue
	TristateFalse
)

// SplitTokens splits a comma-joined field, trimming each token and dropping
// empties. Order is preserved and duplicates are kept.
func SplitTokens(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			out = append(out, token)
		}
	}
	return out
}

// NormalizeBoolean maps common truthy and falsy spellings; anything else is unknown.
func NormalizeBoolean(raw string) Tristate {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y":
		return TristateTrue
	case "false", "0", "no", "n":
		return TristateFalse
	default:
		return TristateUnknown
	}
}

// NormalizeLicense classifies free-text license descriptions by keyword
// priority. Unrecognized text is title-cased.
func NormalizeLicense(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unknown
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "open") && strings.Contains(lower, "source"):
		return LicenseOpenSource
	case containsAny(lower, "subscription", "saas", "monthly", "annual"):
		return LicenseSubscription
	case containsAny(lower, "free", "freemium"):
		return LicenseFree
	case containsAny(lower, "permanent", "perpetual", "one-time", "onetime"):
		return LicensePermanent
	default:
		return titleCase(trimmed)
	}
}

// YearFromFreeText returns the first run of exactly four digits when it falls
// within [MinYear, MaxYear]. Full dates are not parsed.
func YearFromFreeText(raw string) (int, bool) {
	runes := []rune(raw)
	for i := 0; i < len(runes); {
		if !isDigit(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isDigit(runes[j]) {
			j++
		}
		if j-i == 4 {
			year, err := strconv.Atoi(string(runes[i:j]))
			if err != nil || year < MinYear || year > MaxYear {
				return 0, false
			}
			return year, true
		}
		i = j
	}
	return 0, false
}

// Values extracts the canonical facet values an entity carries for a dimension.
func Values(e catalogapi.Entity, dimension catalogapi.Dimension) []string {
	switch dimension {
	case catalogapi.DimensionService:
		return SplitTokens(e.Services)
	case catalogapi.DimensionContentType:
		return SplitTokens(e.ContentTypes)
	case catalogapi.DimensionFunctionalType:
		return tokensOrUnknown(e.FunctionalType)
	case catalogapi.DimensionStructuralType:
		return tokensOrUnknown(e.StructuralType)
	case catalogapi.DimensionParentOrganization:
		return []string{ParentOrganization(e)}
	case catalogapi.DimensionLicense:
		return []string{NormalizeLicense(e.License)}
	case catalogapi.DimensionReleaseYear:
		if year, ok := YearFromFreeText(e.ReleaseDate); ok {
			return []string{strconv.Itoa(year)}
		}
		return nil
	case catalogapi.DimensionActiveStatus:
		return booleanLabel(e.Active, LabelActive, LabelInactive)
	case catalogapi.DimensionHasAPI:
		return booleanLabel(e.HasAPI, LabelHasAPI, LabelNoAPI)
	default:
		return nil
	}
}

// Contains reports whether the entity carries value on dimension.
func Contains(e catalogapi.Entity, dimension catalogapi.Dimension, value string) bool {
	for _, candidate := range Values(e, dimension) {
		if candidate == value {
			return true
		}
	}
	return false
}

// ParentOrganization returns the trimmed parent organization or Unknown.
func ParentOrganization(e catalogapi.Entity) string {
	if parent := strings.TrimSpace(e.ParentOrganization); parent != "" {
		return parent
	}
	return Unknown
}

// Selectable reports whether a facet value may be picked. Entities without a
// parent organization are counted but cannot be selected.
func Selectable(dimension catalogapi.Dimension, value string) bool {
	if dimension != catalogapi.DimensionParentOrganization {
		return true
	}
	trimmed := strings.TrimSpace(value)
	return trimmed != "" && trimmed != Unknown
}

func tokensOrUnknown(raw string) []string {
	if tokens := SplitTokens(raw); len(tokens) > 0 {
		return tokens
	}
	return []string{Unknown}
}

func booleanLabel(raw, whenTrue, whenFalse string) []string {
	switch NormalizeBoolean(raw) {
	case TristateTrue:
		return []string{whenTrue}
	case TristateFalse:
		return []string{whenFalse}
	default:
		return nil
	}
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	out := []rune(s)
	boundary := true
	for i, r := range out {
		if boundary && unicode.IsLetter(r) {
			out[i] = unicode.ToUpper(r)
		}
		boundary = unicode.IsSpace(r) || r == '-' || r == '/'
	}
	return string(out)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
