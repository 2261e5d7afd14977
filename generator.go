package ncompose

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/pkg/errors"
)

// Options configure a Generator.
type Options struct {
	// Reporter receives every diagnostic.  It may be nil.
	Reporter Reporter
	// Cache is shared between generators to skip files whose text has
	// already been processed with the same TypeService.  It may be nil.
	Cache *SetupCache
	// Usage collects the bindings used by the resolved graphs.  A new
	// registry is made when it is nil.
	Usage *UsageRegistry
	// MaxVariants overrides the MaxVariants hint when positive.
	MaxVariants int
	// SeverityOfNotImplementedContract, when set, applies to setups
	// without a hint of their own.
	SeverityOfNotImplementedContract *Severity
}

// Generator runs the pipeline: ProcessFile for every file holding
// configuration, then Compose.
type Generator struct {
	types  TypeService
	opts   Options
	setups []*Setup
}

func NewGenerator(ts TypeService, opts Options) *Generator {
	if opts.Usage == nil {
		opts.Usage = NewUsageRegistry()
	}
	return &Generator{types: ts, opts: opts}
}

// ProcessFile extracts the setups of one file.  The returned error wraps
// ErrHandled when a chain had to be abandoned; the setups of the other
// chains are kept.
func (g *Generator) ProcessFile(fset *token.FileSet, info *types.Info, pkg string, file *ast.File, src []byte) error {
	build := func(r Reporter) ([]*Setup, error) {
		p := &Processor{Types: g.types, Fset: fset, Info: info, Reporter: r}
		b := NewSetupBuilder(r)
		err := p.ProcessFile(pkg, file, src, b)
		return b.Setups(), err
	}
	var setups []*Setup
	var err error
	if g.opts.Cache != nil {
		key := []byte(pkg + "\x00" + fset.Position(file.Pos()).Filename + "\x00")
		var cached bool
		setups, cached, err = g.opts.Cache.Load(append(key, src...), g.opts.Reporter, build)
		debugf("process %s: %d setups, cached %v", pkg, len(setups), cached)
	} else {
		setups, err = build(g.opts.Reporter)
	}
	g.setups = append(g.setups, setups...)
	return err
}

// Setups returns the setups extracted so far, not finalized.
func (g *Generator) Setups() []*Setup { return g.setups }

// Usage is the registry filled by Compose.
func (g *Generator) Usage() *UsageRegistry { return g.opts.Usage }

// Compose finalizes, validates and resolves every setup with roots.
// Setups that fail are left out of the result; the error is the first
// failure and wraps ErrHandled.
func (g *Generator) Compose() ([]*DependencyGraph, error) {
	r := g.opts.Reporter
	finals, firstErr := FinalizeAll(g.setups, g.types, r)
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	var graphs []*DependencyGraph
	var resolved []*ValidationContext
	for _, s := range finals {
		vc := g.validationContext(s, finals)
		if !runValidators(vc, SetupValidators) {
			fail(errors.Wrapf(ErrHandled, "setup %s is not valid", s))
			continue
		}
		if len(s.Roots) == 0 {
			continue
		}
		graph, err := Resolve(s, ResolveOptions{
			Types:       g.types,
			Reporter:    r,
			Usage:       g.opts.Usage,
			MaxVariants: g.opts.MaxVariants,
			Settings:    &vc.Settings,
		})
		if err != nil {
			fail(err)
			continue
		}
		vc.Graph = graph
		graphs = append(graphs, graph)
		resolved = append(resolved, vc)
	}
	for _, vc := range resolved {
		ValidateUnused(vc)
	}
	return graphs, firstErr
}

func (g *Generator) validationContext(s *Setup, all []*Setup) *ValidationContext {
	settings, err := s.Hints.Settings()
	if err != nil {
		reportf(g.opts.Reporter, NotSupportedSyntax, Warning, locs(s.Location),
			"setup %s: %s", s, err)
	}
	if g.opts.SeverityOfNotImplementedContract != nil {
		if _, set := s.Hints.Get("SeverityOfNotImplementedContract"); !set {
			settings.SeverityOfNotImplementedContract = *g.opts.SeverityOfNotImplementedContract
		}
	}
	return &ValidationContext{
		Setup:    s,
		All:      all,
		Types:    g.types,
		Reporter: g.opts.Reporter,
		Settings: settings,
		Usage:    g.opts.Usage,
	}
}
