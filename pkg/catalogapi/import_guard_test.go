package catalogapi

import (
	"testing"

	"toolatlas/testutil"
)

// The public API types must not depend on module internals.
func TestCatalogAPIImportsNoInternals(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "pkg/catalogapi is public")
}
