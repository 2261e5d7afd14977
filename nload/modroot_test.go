package nload

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muir/ncompose"
)

func TestFindModule(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/store/store.go": "package store\n",
	})
	m, err := FindModule(filepath.Join(dir, "internal", "store"))
	require.NoError(t, err)
	assert.Equal(t, testModule, m.Path)

	root, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, root, m.Root)

	p, err := m.ImportPath(filepath.Join(dir, "internal", "store"))
	require.NoError(t, err)
	assert.Equal(t, testModule+"/internal/store", p)

	p, err = m.ImportPath(dir)
	require.NoError(t, err)
	assert.Equal(t, testModule, p)

	_, err = m.ImportPath(filepath.Dir(dir))
	assert.Error(t, err)
}

func TestFindModuleMissing(t *testing.T) {
	_, err := FindModule(t.TempDir())
	if err == nil {
		t.Skip("temporary directory is inside a module")
	}
	assert.Contains(t, err.Error(), "no go.mod")
}

func TestClassifyLocation(t *testing.T) {
	dir := writeProject(t, map[string]string{})
	m, err := FindModule(dir)
	require.NoError(t, err)
	in := func(name string) ncompose.Location {
		return ncompose.Location{File: filepath.Join(m.Root, name), Line: 1}
	}
	assert.Equal(t, ncompose.SourceLocation, m.ClassifyLocation(in("app.go")))
	assert.Equal(t, ncompose.GeneratedLocation, m.ClassifyLocation(in("wire_gen.go")))
	assert.Equal(t, ncompose.ExternalLocation, m.ClassifyLocation(ncompose.Location{
		File: filepath.Join(filepath.Dir(m.Root), "elsewhere", "lib.go"),
		Line: 1,
	}))
	assert.Equal(t, ncompose.SourceLocation, m.ClassifyLocation(ncompose.Location{File: "relative.go", Line: 1}))

	m.MarkGenerated(in("mocks.go").File)
	assert.Equal(t, ncompose.GeneratedLocation, m.ClassifyLocation(in("mocks.go")))

	var none *Module
	assert.Equal(t, ncompose.GeneratedLocation, none.ClassifyLocation(in("x_gen.go")))

	sorted := ncompose.SortLocations([]ncompose.Location{
		{File: filepath.Join(filepath.Dir(m.Root), "other", "lib.go"), Line: 3},
		in("wire_gen.go"),
		in("app.go"),
	}, m)
	require.Len(t, sorted, 3)
	assert.Equal(t, in("app.go"), sorted[0])
	assert.Equal(t, in("wire_gen.go"), sorted[1])
}
