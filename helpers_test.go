package ncompose

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/muir/ncompose/ntypes"
)

const testPkg = "example.com/app"

const configHeader = `package app

import "github.com/muir/ncompose/di"

`

// testProject is one package: declarations loaded into a Universe and
// configuration processed against them.
type testProject struct {
	t     *testing.T
	u     *ntypes.Universe
	fset  *token.FileSet
	diags *Diagnostics
}

func newTestProject(t *testing.T, declarations string) *testProject {
	p := &testProject{
		t:     t,
		u:     ntypes.NewUniverse(),
		fset:  token.NewFileSet(),
		diags: &Diagnostics{},
	}
	f := p.parse("types.go", "package app\n\n"+declarations)
	l := ntypes.NewLoader(p.u, p.fset)
	l.Add(testPkg, f)
	require.NoError(t, l.Complete())
	return p
}

func (p *testProject) parse(name, src string) *ast.File {
	f, err := parser.ParseFile(p.fset, name, src, parser.ParseComments)
	require.NoError(p.t, err, src)
	return f
}

func (p *testProject) lookup(name string) *ntypes.Type {
	t, ok := p.u.Lookup(testPkg, name)
	require.True(p.t, ok, name)
	return t
}

func (p *testProject) ptr(name string) *ntypes.Type {
	return p.u.PointerTo(p.lookup(name))
}

// setups runs the processor and returns the setups before finalization.
func (p *testProject) setups(config string) ([]*Setup, error) {
	src := configHeader + config
	f := p.parse("config.go", src)
	b := NewSetupBuilder(p.diags)
	proc := &Processor{Types: p.u, Fset: p.fset, Reporter: p.diags}
	err := proc.ProcessFile(testPkg, f, []byte(src), b)
	return b.Setups(), err
}

// compose runs the whole pipeline.
func (p *testProject) compose(config string, opts Options) ([]*DependencyGraph, error) {
	opts.Reporter = p.diags
	g := NewGenerator(p.u, opts)
	src := configHeader + config
	f := p.parse("config.go", src)
	if err := g.ProcessFile(p.fset, nil, testPkg, f, []byte(src)); err != nil {
		return nil, err
	}
	return g.Compose()
}

func graphOf(t *testing.T, graphs []*DependencyGraph, setup string) *DependencyGraph {
	for _, g := range graphs {
		if g.Setup.Name == setup {
			return g
		}
	}
	require.FailNow(t, "no graph", "setup %s", setup)
	return nil
}

func findSetupNamed(t *testing.T, setups []*Setup, name string) *Setup {
	s := findSetup(setups, name)
	require.NotNil(t, s, name)
	return s
}

func edgeTypes(v *Vertex) []string {
	out := make([]string, len(v.Edges))
	for i, e := range v.Edges {
		out[i] = e.To.Type.String()
	}
	return out
}
