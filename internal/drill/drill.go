// Package drill turns a scope into the outbound filter handed to the
// organizations view. Nothing here navigates or performs I/O.
package drill

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"toolatlas/pkg/catalogapi"
)

const (
	// Param is the external query parameter carrying the tool names.
	Param = "tools"
	// MaxCollectionNames bounds the names emitted for an unpicked scope.
	MaxCollectionNames = 100

	DefaultPreviewPageSize = 10
)

// Expression is the value bound to Param.
type Expression struct {
	Param     string   `json:"param"`
	Value     string   `json:"value"`
	Names     []string `json:"names"`
	Truncated bool     `json:"truncated"`
}

// Empty reports whether the expression names no tools.
func (e Expression) Empty() bool { return len(e.Names) == 0 }

// FilterExpression joins the scope's entity names with commas. A collection
// scope is capped at MaxCollectionNames; a selection scope never is.
func FilterExpression(scope catalogapi.Scope) Expression {
	names := catalogapi.NewNameSet()
	for _, e := range scope.Entities {
		if name := strings.TrimSpace(e.Name); name != "" {
			names.Add(name)
		}
	}
	list := names.Names()
	truncated := false
	if scope.Kind != catalogapi.ScopeSelection && len(list) > MaxCollectionNames {
		list = list[:MaxCollectionNames]
		truncated = true
	}
	return Expression{
		Param:     Param,
		Value:     strings.Join(list, ","),
		Names:     list,
		Truncated: truncated,
	}
}

// Target appends the expression for scope to base, keeping any query
// parameters base already carries.
func Target(base string, scope catalogapi.Scope) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse drill base %q: %w", base, err)
	}
	expr := FilterExpression(scope)
	q := u.Query()
	q.Set(expr.Param, expr.Value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Preview is a request for one page of organizations tagged with any of the
// scope's tools.
type Preview struct {
	Tools    []string
	Search   string
	Page     int
	PageSize int
}

// PreviewRequest builds the organization preview for scope. Page numbering
// starts at 1.
func PreviewRequest(scope catalogapi.Scope, search string, page, pageSize int) Preview {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPreviewPageSize
	}
	return Preview{
		Tools:    FilterExpression(scope).Names,
		Search:   strings.TrimSpace(search),
		Page:     page,
		PageSize: pageSize,
	}
}

// Values encodes the preview as query parameters.
func (p Preview) Values() url.Values {
	v := url.Values{}
	v.Set(Param, strings.Join(p.Tools, ","))
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("page_size", strconv.Itoa(p.PageSize))
	return v
}
