package ncompose

import (
	"fmt"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

// ResolveOptions configure Resolve.
type ResolveOptions struct {
	Types    TypeService
	Reporter Reporter
	// Usage records the bindings used by the graph.  It may be nil.
	Usage *UsageRegistry
	// MaxVariants overrides the MaxVariants hint when positive.
	MaxVariants int
	// Settings are the parsed hints of the setup.  When nil the hints
	// are parsed again and a malformed hint is reported as a warning.
	Settings *HintSettings
}

// Resolve builds the construction plan of a finalized setup.  Where more
// than one binding could satisfy an injection, combinations are tried in
// order until one produces a complete graph without construction cycles.
// Failures are reported and the returned error wraps ErrHandled.
func Resolve(setup *Setup, opts ResolveOptions) (*DependencyGraph, error) {
	r := newResolver(setup, opts)
	g, rerr := r.run()
	if rerr == nil {
		r.markUsage(g)
		return g, nil
	}
	err := fatalf(opts.Reporter, rerr.id, rerr.locs, "%s", rerr.msg)
	if ce, ok := err.(*composeError); ok {
		ce.trace = func() string {
			return captureResolveDebugging(func() {
				quiet := opts
				quiet.Reporter = nil
				quiet.Usage = nil
				_, _ = newResolver(setup, quiet).run()
			})
		}
	}
	return nil, err
}

type resolver struct {
	setup    *Setup
	ts       TypeService
	reporter Reporter
	usage    *UsageRegistry
	max      int
	vars     func(*ntypes.Type) bool

	scopes     map[string]*overrideScope
	root       *overrideScope
	affected   map[string]bool
	candidates map[string][]*candidate
	fields     map[string][]injectedField
	ambiguous  []ambiguity
}

type ambiguity struct {
	point point
	inj   Injection
	count int
}

func newResolver(setup *Setup, opts ResolveOptions) *resolver {
	var settings HintSettings
	if opts.Settings != nil {
		settings = *opts.Settings
	} else {
		var err error
		settings, err = setup.Hints.Settings()
		if err != nil {
			reportf(opts.Reporter, NotSupportedSyntax, Warning, locs(setup.Location),
				"setup %s: %s", setup, err)
		}
	}
	max := settings.MaxVariants
	if opts.MaxVariants > 0 {
		max = opts.MaxVariants
	}
	if max <= 0 {
		max = defaultMaxVariants
	}
	root := &overrideScope{}
	return &resolver{
		setup:      setup,
		ts:         opts.Types,
		reporter:   opts.Reporter,
		usage:      opts.Usage,
		max:        max,
		vars:       markerVars(setup.GenericTypeArguments),
		scopes:     map[string]*overrideScope{"": root},
		root:       root,
		affected:   make(map[string]bool),
		candidates: make(map[string][]*candidate),
		fields:     make(map[string][]injectedField),
	}
}

// overrideScope holds the overrides in effect for a subtree of the
// graph.  Deep overrides are inherited through parent, shallow ones
// apply only to the injections made directly within the scope.
type overrideScope struct {
	parent  *overrideScope
	deep    []Override
	shallow []Override
	key     string
}

func overrideKey(o Override) string {
	kind := "L"
	if o.Deep {
		kind = "D"
	}
	return kind + overrideSignature(o) + "=" + o.Value
}

// overrideSignature is the type and tags an override replaces.
func overrideSignature(o Override) string {
	tags := make([]string, len(o.Tags))
	for i, t := range o.Tags {
		tags[i] = t.Key()
	}
	return o.Type.Canonical() + "(" + strings.Join(tags, ",") + ")"
}

// inForce is the deep override of s with the type and tags of o.
func inForce(s *overrideScope, o Override) *Override {
	sig := overrideSignature(o)
	for cur := s; cur != nil; cur = cur.parent {
		for i := range cur.deep {
			if overrideSignature(cur.deep[i]) == sig {
				return &cur.deep[i]
			}
		}
	}
	return nil
}

func (r *resolver) intern(parent *overrideScope, deep, shallow []Override) *overrideScope {
	parts := make([]string, 0, len(deep)+len(shallow))
	for _, o := range deep {
		parts = append(parts, overrideKey(o))
	}
	for _, o := range shallow {
		parts = append(parts, overrideKey(o))
	}
	key := parent.key + "/" + strings.Join(parts, ";")
	if s, ok := r.scopes[key]; ok {
		return s
	}
	s := &overrideScope{parent: parent, deep: deep, shallow: shallow, key: key}
	r.scopes[key] = s
	return s
}

// child is the scope of the dependencies of a request made in s with
// the given overrides.  Deep overrides identical to the ones already in
// force add nothing, so a request that repeats them stays in the same
// scope.
func (r *resolver) child(s *overrideScope, overrides []Override) *overrideScope {
	base := s
	if len(s.shallow) > 0 {
		if len(s.deep) == 0 {
			base = s.parent
		} else {
			base = r.intern(s.parent, s.deep, nil)
		}
	}
	if len(overrides) == 0 {
		return base
	}
	var deep, shallow []Override
	for _, o := range overrides {
		switch {
		case !o.Deep:
			shallow = append(shallow, o)
		case sameOverride(inForce(base, o), o):
		default:
			deep = append(deep, o)
		}
	}
	if len(deep) == 0 && len(shallow) == 0 {
		return base
	}
	return r.intern(base, deep, shallow)
}

func sameOverride(a *Override, b Override) bool {
	return a != nil && overrideKey(*a) == overrideKey(b)
}

func shared(l Lifetime) bool {
	return l == Singleton || l == Scoped || l == PerResolve
}

// sharedPoint moves the request for a shared instance to the root scope
// when no override in force reaches anything the instance is built
// from.  Every consumer then gets the same vertex.
func (r *resolver) sharedPoint(c *candidate, p point) point {
	if c.binding == nil || p.scope == r.root || !shared(lifetimeOf(c.binding, r.setup.DefaultLifetimes, r.ts)) {
		return p
	}
	if r.reaches(c, p) {
		return p
	}
	p.scope = r.root
	return p
}

// reaches reports whether an override in force at p matches an
// injection made while building c or anything it depends on.
func (r *resolver) reaches(c *candidate, p point) bool {
	in := append([]Override(nil), p.scope.shallow...)
	for cur := p.scope; cur != nil; cur = cur.parent {
		in = append(in, cur.deep...)
	}
	if len(in) == 0 {
		return false
	}
	key := c.vertexKey(point{typ: p.typ, tag: p.tag, scope: r.root}) + "@" + p.scope.key
	if v, ok := r.affected[key]; ok {
		return v
	}
	seen := make(map[string]bool)
	var walk func(c *candidate, tag Tag) bool
	walk = func(c *candidate, tag Tag) bool {
		at := point{typ: c.typ, tag: tag, scope: r.root}
		k := c.vertexKey(at)
		if seen[k] {
			return false
		}
		seen[k] = true
		reqs, err := r.requirements(c, at)
		if err != nil {
			return false
		}
		for _, req := range reqs {
			for i := range in {
				if in[i].matches(req.inj.Type, req.inj.Tag) {
					return true
				}
			}
			if req.fixed != nil {
				if walk(req.fixed, req.inj.Tag) {
					return true
				}
				continue
			}
			for _, next := range r.candidatesFor(point{typ: req.inj.Type, tag: req.inj.Tag, scope: r.root}) {
				if walk(next, req.inj.Tag) {
					return true
				}
			}
		}
		return false
	}
	v := walk(c, p.tag)
	r.affected[key] = v
	return v
}

func lookupOverride(own []Override, s *overrideScope, t *ntypes.Type, tag Tag) *Override {
	for i := range own {
		if own[i].matches(t, tag) {
			return &own[i]
		}
	}
	for i := range s.shallow {
		if s.shallow[i].matches(t, tag) {
			return &s.shallow[i]
		}
	}
	for cur := s; cur != nil; cur = cur.parent {
		for i := range cur.deep {
			if cur.deep[i].matches(t, tag) {
				return &cur.deep[i]
			}
		}
	}
	return nil
}

// target is where a requirement leads.
type target struct {
	req      requirement
	point    point
	override *Override
	fixed    *candidate
}

func (r *resolver) targets(c *candidate, p point) ([]target, *resolveError) {
	reqs, err := r.requirements(c, p)
	if err != nil {
		return nil, err
	}
	out := make([]target, len(reqs))
	for i, req := range reqs {
		cs := r.child(p.scope, req.overrides)
		t := target{req: req, point: point{typ: req.inj.Type, tag: req.inj.Tag, scope: cs}}
		if req.fixed != nil {
			t.fixed = req.fixed
		} else {
			t.override = lookupOverride(req.overrides, p.scope, req.inj.Type, req.inj.Tag)
		}
		out[i] = t
	}
	return out, nil
}

func (r *resolver) rootInjection(root *Root) Injection {
	return Injection{Kind: InjectRoot, Type: root.Type, Tag: root.Tag, Target: root.Name, Locations: locs(root.Location)}
}

// discover finds every point reachable from the roots through any
// candidate and remembers those with more than one candidate.
func (r *resolver) discover() {
	type work struct {
		c   *candidate
		p   point
		inj Injection
	}
	seen := make(map[string]bool)
	var queue []work
	addPoint := func(p point, inj Injection) {
		k := "p" + p.key()
		if seen[k] {
			return
		}
		seen[k] = true
		cands := r.candidatesFor(p)
		if len(cands) > 1 {
			debugf("resolve: %d candidates for %s", len(cands), inj)
			r.ambiguous = append(r.ambiguous, ambiguity{point: p, inj: inj, count: len(cands)})
		}
		for _, c := range cands {
			queue = append(queue, work{c: c, p: p})
		}
	}
	for _, root := range r.setup.Roots {
		addPoint(point{typ: root.Type, tag: root.Tag, scope: r.root}, r.rootInjection(root))
	}
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		w.p = r.sharedPoint(w.c, w.p)
		k := "c" + w.c.vertexKey(w.p)
		if seen[k] {
			continue
		}
		seen[k] = true
		targets, err := r.targets(w.c, w.p)
		if err != nil {
			continue
		}
		for _, t := range targets {
			switch {
			case t.override != nil:
			case t.fixed != nil:
				queue = append(queue, work{c: t.fixed, p: t.point})
			default:
				addPoint(t.point, t.req.inj)
			}
		}
	}
}

func (r *resolver) run() (*DependencyGraph, *resolveError) {
	r.discover()
	enumerators := make([]*SafeEnumerator[int], len(r.ambiguous))
	for i, a := range r.ambiguous {
		indices := make([]int, a.count)
		for j := range indices {
			indices[j] = j
		}
		enumerators[i] = SliceEnumerator(indices)
	}
	variator := NewVariator(enumerators...)
	defer variator.Close()
	var first *resolveError
	iterations := 0
	for variator.Next() {
		iterations++
		if iterations > r.max {
			return nil, &resolveError{
				id:   MaxIterationsExceeded,
				msg:  fmt.Sprintf("setup %s: no consistent graph within %d variants", r.setup, r.max),
				locs: locs(r.setup.Location),
			}
		}
		choice := make(map[string]int, len(r.ambiguous))
		for i, idx := range variator.Current() {
			choice[r.ambiguous[i].point.key()] = idx
		}
		g, err := r.build(choice)
		if err == nil {
			g.Iterations = iterations
			debugf("resolve: setup %s resolved with variant %d", r.setup, iterations)
			return g, nil
		}
		debugf("resolve: variant %d of setup %s rejected: %s", iterations, r.setup, err.msg)
		if first == nil {
			first = err
		}
	}
	if len(r.ambiguous) == 0 || first == nil {
		return nil, first
	}
	a := r.ambiguous[0]
	return nil, &resolveError{
		id: CannotBuildGraph,
		msg: fmt.Sprintf("setup %s: none of the %d candidates for %s leads to a consistent graph; first problem: %s",
			r.setup, a.count, a.inj, first.msg),
		locs: append(append([]Location(nil), a.inj.Locations...), first.locs...),
	}
}

type variantBuild struct {
	r      *resolver
	choice map[string]int
	g      *DependencyGraph
	byKey  map[string]*Vertex
	accs   map[*Vertex]*Accumulator
}

func (r *resolver) build(choice map[string]int) (*DependencyGraph, *resolveError) {
	b := &variantBuild{
		r:      r,
		choice: choice,
		g:      &DependencyGraph{Setup: r.setup},
		byKey:  make(map[string]*Vertex),
		accs:   make(map[*Vertex]*Accumulator),
	}
	for _, root := range r.setup.Roots {
		v, err := b.point(point{typ: root.Type, tag: root.Tag, scope: r.root}, r.rootInjection(root))
		if err != nil {
			return nil, err
		}
		b.g.Roots = append(b.g.Roots, ResolvedRoot{Root: root, Vertex: v})
	}
	if cycle := findCycle(b.g.Vertices); cycle != nil {
		id, path := cycleDiagnostic(cycle)
		return nil, &resolveError{
			id:   id,
			msg:  fmt.Sprintf("setup %s: construction cycle %s", r.setup, path),
			locs: cycleLocations(cycle),
		}
	}
	for _, a := range r.ambiguous {
		c := r.candidatesFor(a.point)[choice[a.point.key()]]
		if v, ok := b.byKey[c.vertexKey(r.sharedPoint(c, a.point))]; ok {
			b.g.Variant = append(b.g.Variant, VariantChoice{Injection: a.inj, Chosen: v, Of: a.count})
		}
	}
	b.accumulate()
	return b.g, nil
}

func (b *variantBuild) point(p point, inj Injection) (*Vertex, *resolveError) {
	cands := b.r.candidatesFor(p)
	if len(cands) == 0 {
		return nil, &resolveError{
			id:   CannotResolve,
			msg:  fmt.Sprintf("setup %s: cannot resolve %s", b.r.setup, inj),
			locs: inj.Locations,
		}
	}
	return b.vertex(cands[b.choice[p.key()]], p)
}

func (b *variantBuild) vertex(c *candidate, p point) (*Vertex, *resolveError) {
	p = b.r.sharedPoint(c, p)
	key := c.vertexKey(p)
	if v, ok := b.byKey[key]; ok {
		return v, nil
	}
	v := &Vertex{
		ID:       len(b.g.Vertices) + 1,
		Kind:     c.kind,
		Binding:  c.binding,
		Type:     c.typ,
		Tag:      p.tag,
		Lifetime: Transient,
		key:      key,
	}
	if c.binding != nil {
		v.Lifetime = lifetimeOf(c.binding, b.r.setup.DefaultLifetimes, b.r.ts)
	}
	if c.acc != nil {
		b.accs[v] = c.acc
	}
	b.byKey[key] = v
	b.g.Vertices = append(b.g.Vertices, v)
	targets, err := b.r.targets(c, p)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		var to *Vertex
		switch {
		case t.override != nil:
			to = b.overrideVertex(t)
		case t.fixed != nil:
			to, err = b.vertex(t.fixed, t.point)
		default:
			to, err = b.point(t.point, t.req.inj)
		}
		if err != nil {
			return nil, err
		}
		e := &Edge{From: v, To: to, Injection: t.req.inj, Lazy: t.req.lazy, Position: t.req.position}
		v.Edges = append(v.Edges, e)
		b.g.Edges = append(b.g.Edges, e)
	}
	dumpVertex("resolve", v)
	return v, nil
}

func (b *variantBuild) overrideVertex(t target) *Vertex {
	key := "override|" + overrideKey(*t.override) + "|" + t.point.typ.Canonical() + "|" + t.point.tag.Key()
	if v, ok := b.byKey[key]; ok {
		return v
	}
	o := *t.override
	v := &Vertex{
		ID:       len(b.g.Vertices) + 1,
		Kind:     OverrideVertex,
		Type:     t.point.typ,
		Tag:      t.point.tag,
		Lifetime: Transient,
		Override: &o,
		key:      key,
	}
	b.byKey[key] = v
	b.g.Vertices = append(b.g.Vertices, v)
	return v
}

// accumulate fills accumulators with the instances of the graph that
// match their type and lifetimes.
func (b *variantBuild) accumulate() {
	for _, v := range b.g.Vertices {
		acc, ok := b.accs[v]
		if !ok {
			continue
		}
		for _, w := range b.g.Vertices {
			if w.Kind != BindingVertex && w.Kind != ImplicitVertex {
				continue
			}
			if !b.r.ts.IsSubtype(w.Type, acc.Type) || !acc.accepts(w.Lifetime) {
				continue
			}
			v.Accumulated = append(v.Accumulated, w)
		}
	}
}

// markUsage records the bindings and overrides of the graph under the
// graph's setup and under the setup that declared each binding.
func (r *resolver) markUsage(g *DependencyGraph) {
	if r.usage == nil {
		return
	}
	for _, v := range g.Vertices {
		b := v.Binding
		if b == nil || b.ID == 0 {
			continue
		}
		ids := append([]int{b.ID}, b.OriginalIDs...)
		r.usage.MarkUsed(r.setup.Name, ids...)
		if b.OriginSetup != r.setup.Name {
			r.usage.MarkUsed(b.OriginSetup, ids...)
		}
		if b.Factory == nil {
			continue
		}
		var overrides []Override
		for _, res := range b.Factory.Resolvers {
			overrides = append(overrides, res.Overrides...)
		}
		for _, init := range b.Factory.Initializers {
			overrides = append(overrides, init.Overrides...)
		}
		for _, o := range overrides {
			for _, tag := range tagSet(o.Tags) {
				r.usage.MarkOverridden(r.setup.Name, o.Type, tag)
				if b.OriginSetup != r.setup.Name {
					r.usage.MarkOverridden(b.OriginSetup, o.Type, tag)
				}
			}
		}
	}
}
