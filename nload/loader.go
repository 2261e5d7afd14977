package nload

import (
	"context"
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
)

// Package is one loaded package with its files split between type
// declarations and configuration.
type Package struct {
	Path  string
	Name  string
	Dir   string
	Fset  *token.FileSet
	Info  *types.Info
	Files []*File
	// Errors are load and type errors.  Configuration files never type
	// check so these are informational.
	Errors []string
}

type File struct {
	Name      string
	Syntax    *ast.File
	Src       []byte
	Config    bool
	Generated bool
}

// ConfigFiles are the files built only with the ncompose tag.
func (p *Package) ConfigFiles() []*File {
	var out []*File
	for _, f := range p.Files {
		if f.Config {
			out = append(out, f)
		}
	}
	return out
}

// TypeFiles are the files of the regular build.
func (p *Package) TypeFiles() []*File {
	var out []*File
	for _, f := range p.Files {
		if !f.Config {
			out = append(out, f)
		}
	}
	return out
}

// LoadFunc loads the packages a Runner works on.
type LoadFunc func(ctx context.Context, cfg *Config) ([]*Package, error)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo

// LoadPackages loads cfg.Patterns with the ncompose build tag.
func LoadPackages(ctx context.Context, cfg *Config) ([]*Package, error) {
	fset := token.NewFileSet()
	pcfg := &packages.Config{
		Context:    ctx,
		Dir:        cfg.Dir,
		Fset:       fset,
		Mode:       loadMode,
		BuildFlags: []string{"-tags=" + strings.Join(cfg.Tags(), ",")},
		// keep object resolution: the classifier relies on it to see
		// shadowed imports when type information is missing
		ParseFile: func(fset *token.FileSet, filename string, src []byte) (*ast.File, error) {
			return parser.ParseFile(fset, filename, src, parser.AllErrors|parser.ParseComments)
		},
	}
	loaded, err := packages.Load(pcfg, cfg.Patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "load packages")
	}
	if len(loaded) == 0 {
		return nil, errors.Errorf("no packages match %s in %s", strings.Join(cfg.Patterns, " "), cfg.Dir)
	}
	out := make([]*Package, 0, len(loaded))
	for _, lp := range loaded {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "load packages")
		}
		p := &Package{
			Path: lp.PkgPath,
			Name: lp.Name,
			Fset: fset,
			Info: lp.TypesInfo,
		}
		for _, e := range lp.Errors {
			p.Errors = append(p.Errors, e.Error())
		}
		for _, syntax := range lp.Syntax {
			name := fset.Position(syntax.Pos()).Filename
			src, err := os.ReadFile(name)
			if err != nil {
				return nil, errors.Wrapf(err, "read %s", name)
			}
			p.Files = append(p.Files, newFile(name, syntax, src))
		}
		if len(p.Files) > 0 {
			p.Dir = filepath.Dir(p.Files[0].Name)
		}
		sort.Slice(p.Files, func(i, j int) bool { return p.Files[i].Name < p.Files[j].Name })
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ParseDir parses the Go files of one directory without consulting the
// go command.  Test files are skipped.
func ParseDir(dir, pkgPath string) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	p := &Package{
		Path: pkgPath,
		Dir:  dir,
		Fset: token.NewFileSet(),
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		full := filepath.Join(dir, name)
		src, err := os.ReadFile(full)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", full)
		}
		syntax, err := parser.ParseFile(p.Fset, full, src, parser.ParseComments)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", full)
		}
		if p.Name == "" {
			p.Name = syntax.Name.Name
		}
		p.Files = append(p.Files, newFile(full, syntax, src))
	}
	return p, nil
}

func newFile(name string, syntax *ast.File, src []byte) *File {
	return &File{
		Name:      name,
		Syntax:    syntax,
		Src:       src,
		Config:    IsConfigFile(syntax),
		Generated: ast.IsGenerated(syntax),
	}
}

// IsConfigFile reports whether the build constraint of f requires the
// ncompose tag.
func IsConfigFile(f *ast.File) bool {
	for _, g := range f.Comments {
		if g.Pos() >= f.Package {
			break
		}
		for _, c := range g.List {
			if !constraint.IsGoBuild(c.Text) {
				continue
			}
			expr, err := constraint.Parse(c.Text)
			if err != nil {
				return false
			}
			with := expr.Eval(func(tag string) bool { return tag == BuildTag })
			without := expr.Eval(func(string) bool { return false })
			return with && !without
		}
	}
	return false
}
