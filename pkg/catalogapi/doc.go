// Package catalogapi defines the stable types shared between the crossfilter
// engine, its transports and external callers: the typed entity schema, facet
// dimensions, filter fields, the single-pick selection and aggregation scopes.
//
// The package must not import anything under toolatlas/internal.
package catalogapi
