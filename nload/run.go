package nload

import (
	"context"
	"go/token"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/muir/ncompose"
	"github.com/muir/ncompose/ntypes"
)

// Runner is the host pass: it loads packages, builds the type universe
// from the regular build, processes the configuration files and composes
// the graphs.  Consecutive runs reuse the universe and the setup cache
// while the type declarations are unchanged.
type Runner struct {
	Config  *Config
	Logger  *zap.Logger
	Metrics *Metrics
	Hooks   *Hooks
	// Module classifies locations.  FindModule(Config.Dir) is used when
	// it is nil.
	Module *Module
	// Load defaults to LoadPackages.
	Load LoadFunc

	lock        sync.Mutex
	universe    *ntypes.Universe
	fingerprint string
	cache       *ncompose.SetupCache
	cacheHits   int64
	cacheMisses int64
}

// Result is the outcome of one run.
type Result struct {
	Packages    []*Package
	Setups      []*ncompose.Setup
	Graphs      []*ncompose.DependencyGraph
	Diagnostics *ncompose.Diagnostics
	Usage       *ncompose.UsageRegistry
	// Reused is true when the type universe of the previous run was
	// used again.
	Reused bool
}

// NewRunner builds a Runner, with logger and metrics, from cfg.
func NewRunner(cfg *Config) (*Runner, error) {
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		Config: cfg,
		Logger: logger,
		Hooks:  NewHooks(),
	}
	if cfg.Metrics.Enabled {
		r.Metrics = NewMetrics(cfg.Metrics.Namespace)
	}
	return r, nil
}

// Run does one pass.  Composition problems are reported as diagnostics
// and returned as an error wrapping ncompose.ErrHandled; the result is
// returned even then.  Other errors, such as failing to load packages,
// return no result.  Runs are serialized.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	start := time.Now()
	logger := r.logger()

	if r.Module == nil {
		m, err := FindModule(r.Config.Dir)
		if err != nil {
			logger.Warn("locations will not be classified by module", zap.Error(err))
		} else {
			r.Module = m
		}
	}

	load := r.Load
	if load == nil {
		load = LoadPackages
	}
	pkgs, err := load(ctx, r.Config)
	if err != nil {
		r.Metrics.run(start, true)
		return nil, err
	}
	for _, p := range pkgs {
		for _, e := range p.Errors {
			logger.Debug("package error", zap.String("package", p.Path), zap.String("error", e))
		}
		for _, f := range p.Files {
			if f.Generated && r.Module != nil {
				r.Module.MarkGenerated(f.Name)
			}
		}
	}

	result := &Result{
		Packages:    pkgs,
		Diagnostics: &ncompose.Diagnostics{},
		Usage:       ncompose.NewUsageRegistry(),
	}
	result.Reused = r.universeFor(pkgs)
	reporter := NewReporter(logger, r.Module, r.Metrics, result.Diagnostics)
	g := ncompose.NewGenerator(r.universe, ncompose.Options{
		Reporter:                         reporter,
		Cache:                            r.cache,
		Usage:                            result.Usage,
		MaxVariants:                      r.Config.MaxVariants,
		SeverityOfNotImplementedContract: r.Config.SeverityOfNotImplementedContract,
	})

	var firstErr error
	for _, p := range pkgs {
		for _, f := range p.ConfigFiles() {
			if err := ctx.Err(); err != nil {
				r.Metrics.run(start, true)
				return nil, errors.Wrap(err, "run")
			}
			err := g.ProcessFile(p.Fset, p.Info, p.Path, f.Syntax, f.Src)
			if err != nil {
				if !errors.Is(err, ncompose.ErrHandled) {
					r.Metrics.run(start, true)
					return nil, errors.Wrapf(err, "process %s", f.Name)
				}
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	result.Setups = g.Setups()
	r.Metrics.setups(len(result.Setups))
	r.recordCache()
	logger.Info("configuration processed",
		zap.Int("packages", len(pkgs)),
		zap.Int("setups", len(result.Setups)),
		zap.Bool("reused", result.Reused))

	if err := ctx.Err(); err != nil {
		r.Metrics.run(start, true)
		return nil, errors.Wrap(err, "run")
	}
	graphs, err := g.Compose()
	if err != nil && firstErr == nil {
		firstErr = err
	}
	result.Graphs = graphs

	for _, graph := range graphs {
		r.Metrics.graph(graph)
		logger.Debug("graph resolved",
			zap.String("setup", graph.Setup.Name),
			zap.Int("vertices", len(graph.Vertices)),
			zap.Int("variants", graph.Iterations))
		if err := r.Hooks.Do(ctx, GraphReady, Event{Runner: r, Result: result, Graph: graph}); err != nil {
			r.Metrics.run(start, true)
			return result, errors.Wrapf(err, "graph %s", graph.Setup.Name)
		}
	}
	if err := r.Hooks.Do(ctx, RunFinished, Event{Runner: r, Result: result}); err != nil {
		r.Metrics.run(start, true)
		return result, errors.Wrap(err, "run finished")
	}

	failed := firstErr != nil || result.Diagnostics.HasErrors()
	r.Metrics.run(start, failed)
	logger.Info("run complete",
		zap.Int("graphs", len(graphs)),
		zap.Int("diagnostics", len(result.Diagnostics.All())),
		zap.Bool("failed", failed),
		zap.Duration("elapsed", time.Since(start)))
	return result, firstErr
}

// universeFor builds the type universe from the non-configuration files
// unless they are the same as last time.
func (r *Runner) universeFor(pkgs []*Package) bool {
	fp := fingerprint(pkgs)
	if r.universe != nil && fp == r.fingerprint {
		return true
	}
	u := ntypes.NewUniverse()
	// packages sharing a file set are completed together so that their
	// declarations may refer to each other
	loaders := make(map[*token.FileSet]*ntypes.Loader)
	var order []*ntypes.Loader
	for _, p := range pkgs {
		l, ok := loaders[p.Fset]
		if !ok {
			l = ntypes.NewLoader(u, p.Fset)
			loaders[p.Fset] = l
			order = append(order, l)
		}
		for _, f := range p.TypeFiles() {
			l.Add(p.Path, f.Syntax)
		}
	}
	for _, l := range order {
		if err := l.Complete(); err != nil {
			r.logger().Warn("declarations skipped", zap.Error(err))
		}
	}
	r.universe = u
	r.fingerprint = fp
	// cached setups refer to the types of the old universe
	r.cache = ncompose.NewSetupCache()
	r.cacheHits, r.cacheMisses = 0, 0
	return false
}

func (r *Runner) recordCache() {
	hits, misses := r.cache.Stats()
	r.Metrics.cache(hits-r.cacheHits, misses-r.cacheMisses)
	r.cacheHits, r.cacheMisses = hits, misses
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func fingerprint(pkgs []*Package) string {
	var parts []string
	for _, p := range pkgs {
		for _, f := range p.TypeFiles() {
			parts = append(parts, p.Path+"\x00"+f.Name+"\x00"+ncompose.Checksum(f.Src))
		}
	}
	sort.Strings(parts)
	var all []byte
	for _, s := range parts {
		all = append(all, s...)
		all = append(all, '\n')
	}
	return ncompose.Checksum(all)
}
