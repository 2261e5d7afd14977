package nload

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"

	"github.com/muir/ncompose"
)

// Module is the Go module a project lives in.  It classifies diagnostic
// locations: files of the module come first, generated files next and
// files outside of the module last.
type Module struct {
	Root string
	Path string

	lock      sync.Mutex
	generated map[string]bool
}

var _ ncompose.LocationClassifier = &Module{}

// FindModule searches dir and its parents for go.mod.
func FindModule(dir string) (*Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "absolute path of %s", dir)
	}
	root := abs
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(root)
		if parent == root {
			return nil, errors.Errorf("no go.mod file above %s", abs)
		}
		root = parent
	}
	goMod := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(goMod)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", goMod)
	}
	mf, err := modfile.ParseLax(goMod, data, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", goMod)
	}
	if mf.Module == nil {
		return nil, errors.Errorf("%s has no module statement", goMod)
	}
	return &Module{
		Root:      root,
		Path:      mf.Module.Mod.Path,
		generated: make(map[string]bool),
	}, nil
}

// ImportPath is the import path of the package in dir.
func (m *Module) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "absolute path of %s", dir)
	}
	rel, ok := m.relative(abs)
	if !ok {
		return "", errors.Errorf("%s is outside of module %s", dir, m.Path)
	}
	if rel == "." {
		return m.Path, nil
	}
	return path.Join(m.Path, filepath.ToSlash(rel)), nil
}

// MarkGenerated records a file whose header says it was generated.
func (m *Module) MarkGenerated(file string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.generated == nil {
		m.generated = make(map[string]bool)
	}
	m.generated[file] = true
}

func (m *Module) ClassifyLocation(loc ncompose.Location) ncompose.LocationClass {
	if m == nil {
		return ncompose.DefaultClassifier{}.ClassifyLocation(loc)
	}
	if filepath.IsAbs(loc.File) {
		if _, ok := m.relative(loc.File); !ok {
			return ncompose.ExternalLocation
		}
	}
	m.lock.Lock()
	generated := m.generated[loc.File]
	m.lock.Unlock()
	if generated || ncompose.IsGeneratedFileName(loc.File) {
		return ncompose.GeneratedLocation
	}
	return ncompose.SourceLocation
}

func (m *Module) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(m.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
