package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportPredicates(t *testing.T) {
	cases := []struct {
		in       string
		internal bool
		adapter  bool
	}{
		{"toolatlas/internal/adapters/catalog", true, true},
		{"toolatlas/internal/infra/blob/s3", true, true},
		{"toolatlas/internal/blob", true, true},
		{"toolatlas/internal/blobstore", true, false},
		{"toolatlas/internal/aggregate", true, false},
		{"toolatlas/pkg/catalogapi", false, false},
		{"toolatlas/cmd/toolatlas", false, true},
		{"github.com/other/internal/x", true, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.internal, InternalImportForbidden(c.in), "internal %s", c.in)
		assert.Equal(t, c.adapter, AdapterImportForbidden(c.in), "adapter %s", c.in)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
	}
	write("a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"toolatlas/internal/config\"\n)\n")
	write("a_test.go", "package tmp\nimport \"toolatlas/internal/adapters/catalog\"\n")
	write("notes.txt", "import \"toolatlas/internal/infra\"")

	viols, err := directImportViolations(dir, AdapterImportForbidden)
	require.NoError(t, err)
	assert.Equal(t, []string{"toolatlas/internal/config (in a.go)"}, viols)

	_, err = directImportViolations(filepath.Join(dir, "missing"), AdapterImportForbidden)
	assert.Error(t, err)
}

func TestTransitiveViolationsUseLoader(t *testing.T) {
	orig := loadDeps
	t.Cleanup(func() { loadDeps = orig })

	loadDeps = func(string) ([]string, error) {
		return []string{"fmt", "toolatlas/internal/facet", "toolatlas/internal/infra/persistence/sqlite"}, nil
	}
	viols, err := transitiveDependencyViolations("toolatlas/internal/aggregate", AdapterImportForbidden)
	require.NoError(t, err)
	assert.Equal(t, []string{"toolatlas/internal/infra/persistence/sqlite"}, viols)

	loadDeps = func(string) ([]string, error) { return nil, fmt.Errorf("no module") }
	_, err = transitiveDependencyViolations("x", AdapterImportForbidden)
	assert.Error(t, err)
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	r := &recordingFatal{}
	failIfViolations(r, "forbidden", "engine purity", nil)
	assert.Empty(t, r.msg)
	failIfViolations(r, "forbidden", "engine purity", []string{"a", "b"})
	assert.Equal(t, "forbidden (engine purity):\na\nb", r.msg)
}

// The engine packages compute over plain values and never reach transport,
// storage or configuration code.
func TestEnginePackagesStayPure(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the module dependency graph")
	}
	for _, pkg := range []string{
		"toolatlas/internal/facet",
		"toolatlas/internal/selection",
		"toolatlas/internal/aggregate",
		"toolatlas/internal/drill",
		"toolatlas/internal/dataset",
	} {
		AssertNoTransitiveDependency(t, pkg, AdapterImportForbidden, pkg+" is an engine package")
	}
}
