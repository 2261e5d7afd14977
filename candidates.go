package ncompose

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

// defaultAttributeKey is the struct tag key that marks injected fields
// when a setup declares no attribute keys of its own:
//
//	Logger Logger `di:""`
//	Store  Store  `di:"tag=primary"`
//	Cache  Cache  `di:"inject,ordinal=1"`
const defaultAttributeKey = "di"

// point is a request for a type and tag within an override scope.
type point struct {
	typ   *ntypes.Type
	tag   Tag
	scope *overrideScope
}

func (p point) key() string {
	return p.typ.Canonical() + "|" + p.tag.Key() + "|" + p.scope.key
}

// candidate is one way to satisfy a point.
type candidate struct {
	kind    VertexKind
	binding *Binding
	typ     *ntypes.Type
	tag     Tag
	// elems are the members of arrays and sequences.
	elems []*candidate
	acc   *Accumulator
}

func (c *candidate) String() string {
	if c.binding != nil {
		return c.kind.String() + " " + c.binding.String()
	}
	return c.kind.String() + " " + c.typ.String()
}

// vertexKey identifies the vertex built for the candidate at p.
func (c *candidate) vertexKey(p point) string {
	id := 0
	if c.binding != nil {
		id = c.binding.ID
	}
	return c.kind.String() + "|" + strconv.Itoa(id) + "|" + c.typ.Canonical() + "|" + p.scope.key + "|" + p.tag.Key()
}

// requirement is one injection a candidate needs.
type requirement struct {
	inj      Injection
	position int
	lazy     bool
	// overrides come from ctx.Override and ctx.Let calls just before
	// the request.
	overrides []Override
	// fixed is the only acceptable candidate, for collection members.
	fixed *candidate
}

// resolveError is a failure while building one variant.
type resolveError struct {
	id   DiagnosticID
	msg  string
	locs []Location
}

func (e *resolveError) Error() string { return string(e.id) + " " + e.msg }

// candidatesFor lists the candidates of a point in order of preference.
func (r *resolver) candidatesFor(p point) []*candidate {
	key := p.typ.Canonical() + "|" + p.tag.Key()
	if c, ok := r.candidates[key]; ok {
		return c
	}
	c := r.findCandidates(p.typ, p.tag)
	r.candidates[key] = c
	return c
}

func (r *resolver) findCandidates(t *ntypes.Type, tag Tag) []*candidate {
	for _, acc := range r.setup.Accumulators {
		if acc.AccType == t {
			return []*candidate{{kind: AccumulatorVertex, typ: t, tag: tag, acc: acc}}
		}
	}
	bindings := r.setup.Bindings
	var out []*candidate
	for i := len(bindings) - 1; i >= 0; i-- {
		if bindings[i].Satisfies(t, tag) {
			out = append(out, bindingCandidate(bindings[i], tag))
		}
	}
	if len(out) > 0 {
		return out
	}
	for i := len(bindings) - 1; i >= 0; i-- {
		if b := r.genericMatch(bindings[i], t, tag, false); b != nil {
			out = append(out, bindingCandidate(b, tag))
		}
	}
	if len(out) > 0 {
		return out
	}
	switch {
	case t.Kind() == ntypes.Slice:
		return []*candidate{{kind: ArrayVertex, typ: t, tag: tag, elems: r.collection(t.Elem())}}
	case t.Kind() == ntypes.FuncKind && len(t.Args()) == 0 && len(t.Results()) == 1:
		return []*candidate{{kind: LazyVertex, typ: t, tag: tag}}
	case t.Kind() == ntypes.Named && t.Pkg() == "iter" && t.Name() == "Seq" && len(t.Args()) == 1:
		return []*candidate{{kind: SeqVertex, typ: t, tag: tag, elems: r.collection(t.Args()[0])}}
	}
	if tag.IsNone() {
		if b := r.implicitBinding(t); b != nil {
			return []*candidate{{kind: ImplicitVertex, binding: b, typ: t, tag: tag}}
		}
	}
	return nil
}

func bindingCandidate(b *Binding, tag Tag) *candidate {
	kind := BindingVertex
	if b.Arg != nil {
		kind = ArgVertex
	}
	return &candidate{kind: kind, binding: b, typ: b.Type(), tag: tag}
}

// genericMatch unifies the generic contracts of b with t.  With anyTag
// the tag is not checked.  The result is a copy of b with the markers
// replaced; it keeps the id of b.
func (r *resolver) genericMatch(b *Binding, t *ntypes.Type, tag Tag, anyTag bool) *Binding {
	for _, c := range b.Contracts {
		if !anyTag && !hasTag(b.contractTags(c), tag) {
			continue
		}
		if !isGenericPattern(c.Type, r.vars) {
			continue
		}
		m := make(map[*ntypes.Type]*ntypes.Type)
		if unify(c.Type, t, r.vars, m) {
			debugf("resolve: %s matches generic binding %s", t, b)
			return r.substituteBinding(b, m)
		}
	}
	return nil
}

// collection is every binding of t, whatever its tag, in declaration
// order.
func (r *resolver) collection(t *ntypes.Type) []*candidate {
	var out []*candidate
	for _, b := range r.setup.Bindings {
		if b.Arg != nil && b.Arg.Kind == BuilderArg {
			continue
		}
		found := false
		for _, c := range b.Contracts {
			if c.Type == t {
				out = append(out, bindingCandidate(b, tagSet(b.contractTags(c))[0]))
				found = true
				break
			}
		}
		if found {
			continue
		}
		if g := r.genericMatch(b, t, NoTag, true); g != nil {
			for _, c := range g.Contracts {
				if c.Type == t {
					out = append(out, bindingCandidate(g, tagSet(g.contractTags(c))[0]))
					break
				}
			}
		}
	}
	return out
}

// implicitBinding constructs t without a binding: t must be a concrete
// type with a NewT constructor or a struct with injected fields.
func (r *resolver) implicitBinding(t *ntypes.Type) *Binding {
	base := t.Deref()
	d := base.Decl()
	if d == nil || d.Opaque || d.Kind == ntypes.InterfaceDecl || base.ContainsMarker() || base.IsGeneric() {
		return nil
	}
	ok := false
	if ctor, has := r.ts.Constructor(base); has && ctor.Result == t {
		ok = true
	} else if d.Kind == ntypes.StructDecl && len(r.injectedFields(t)) > 0 {
		ok = true
	}
	if !ok {
		return nil
	}
	return &Binding{
		Contracts:      []Contract{{Type: t, Kind: ImplicitContract}},
		Implementation: t,
		SourceSetup:    r.setup.Name,
		OriginSetup:    r.setup.Name,
		Synthetic:      "implicit",
		Location:       d.Location,
	}
}

func (r *resolver) substituteBinding(b *Binding, m map[*ntypes.Type]*ntypes.Type) *Binding {
	sub := func(t *ntypes.Type) *ntypes.Type { return r.ts.Substitute(t, m) }
	subOverrides := func(os []Override) []Override {
		if len(os) == 0 {
			return nil
		}
		out := make([]Override, len(os))
		for i, o := range os {
			o.Type = sub(o.Type)
			out[i] = o
		}
		return out
	}
	c := b.copy()
	for i := range c.Contracts {
		c.Contracts[i].Type = sub(c.Contracts[i].Type)
	}
	if c.Implementation != nil {
		c.Implementation = sub(c.Implementation)
	}
	if c.Arg != nil {
		a := *c.Arg
		a.Type = sub(a.Type)
		c.Arg = &a
	}
	if c.Factory != nil {
		f := *c.Factory
		f.Type = sub(f.Type)
		f.Resolvers = make([]Resolver, len(b.Factory.Resolvers))
		for i, res := range b.Factory.Resolvers {
			res.Type = sub(res.Type)
			res.Overrides = subOverrides(res.Overrides)
			f.Resolvers[i] = res
		}
		f.Initializers = make([]Initializer, len(b.Factory.Initializers))
		for i, init := range b.Factory.Initializers {
			init.Type = sub(init.Type)
			init.Overrides = subOverrides(init.Overrides)
			f.Initializers[i] = init
		}
		if f.Member != nil {
			ma := *f.Member
			ma.Owner = sub(ma.Owner)
			mm := *ma.Member
			mm.Type = sub(mm.Type)
			ma.Member = &mm
			if ma.Via != nil {
				via := *ma.Via
				via.Type = sub(via.Type)
				ma.Via = &via
			}
			f.Member = &ma
		}
		c.Factory = &f
	}
	return c
}

// requirements lists what the candidate needs, in injection order.
// Context tags take the tag the candidate was requested with.
func (r *resolver) requirements(c *candidate, p point) ([]requirement, *resolveError) {
	switch c.kind {
	case AccumulatorVertex, OverrideVertex, ArgVertex:
		return nil, nil
	case ArrayVertex, SeqVertex:
		elem := c.typ.Elem()
		if c.kind == SeqVertex {
			elem = c.typ.Args()[0]
		}
		reqs := make([]requirement, len(c.elems))
		for i, e := range c.elems {
			reqs[i] = requirement{
				inj:      Injection{Kind: InjectContract, Type: elem, Tag: e.tag, Target: strconv.Itoa(i)},
				position: i + 1,
				lazy:     c.kind == SeqVertex,
				fixed:    e,
			}
		}
		return reqs, nil
	case LazyVertex:
		return []requirement{{
			inj:      Injection{Kind: InjectContract, Type: c.typ.Results()[0], Tag: p.tag},
			position: 1,
			lazy:     true,
		}}, nil
	}
	b := c.binding
	switch {
	case b.Arg != nil:
		return nil, nil
	case b.Factory != nil:
		return r.factoryRequirements(b.Factory, p.tag)
	default:
		return r.implementationRequirements(b.Implementation, b.Location)
	}
}

func (r *resolver) factoryRequirements(f *Factory, consumerTag Tag) ([]requirement, *resolveError) {
	var reqs []requirement
	for _, res := range f.Resolvers {
		tag := res.Tag
		if tag.Kind == TagContext {
			tag = consumerTag
		}
		reqs = append(reqs, requirement{
			inj: Injection{
				Kind:      InjectResolver,
				Type:      res.Type,
				Tag:       tag,
				Target:    res.Target,
				Locations: locs(res.Location, f.Location),
			},
			position:  res.Position,
			overrides: res.Overrides,
		})
	}
	for _, init := range f.Initializers {
		for _, field := range r.injectedFields(init.Type) {
			reqs = append(reqs, requirement{
				inj: Injection{
					Kind:      InjectInitializer,
					Type:      field.typ,
					Tag:       field.tag,
					Target:    init.Target + "." + field.member.Name,
					Locations: locs(init.Location, field.member.Location),
				},
				position:  init.Position,
				overrides: init.Overrides,
			})
		}
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].position < reqs[j].position })
	return reqs, nil
}

func (r *resolver) implementationRequirements(impl *ntypes.Type, loc Location) ([]requirement, *resolveError) {
	base := impl.Deref()
	d := base.Decl()
	if d == nil || d.Opaque || d.Kind == ntypes.InterfaceDecl {
		return nil, &resolveError{
			id:   NoAccessibleConstructor,
			msg:  "cannot construct " + impl.String() + ": it is not a concrete type that was loaded",
			locs: locs(loc),
		}
	}
	if impl.ContainsMarker() || impl.ContainsTypeParam() {
		return nil, &resolveError{
			id:   NoAccessibleConstructor,
			msg:  "cannot construct " + impl.String() + ": its type arguments are not known",
			locs: locs(loc),
		}
	}
	var reqs []requirement
	if ctor, ok := r.ts.Constructor(base); ok && ctor.Result.Deref() == base {
		for i, param := range ctor.Params {
			tag := NoTag
			if param.HasTag {
				tag = StringTag(param.Tag)
			}
			reqs = append(reqs, requirement{
				inj: Injection{
					Kind:      InjectParameter,
					Type:      param.Type,
					Tag:       tag,
					Target:    param.Name,
					Locations: locs(ctor.Location),
				},
				position: i + 1,
			})
		}
	} else if d.Kind != ntypes.StructDecl {
		return nil, &resolveError{
			id:   NoAccessibleConstructor,
			msg:  "cannot construct " + impl.String() + ": it has no New" + base.Name() + " function",
			locs: locs(loc, d.Location),
		}
	}
	pos := len(reqs)
	for _, field := range r.injectedFields(impl) {
		pos++
		reqs = append(reqs, requirement{
			inj: Injection{
				Kind:      InjectMember,
				Type:      field.typ,
				Tag:       field.tag,
				Target:    field.member.Name,
				Locations: locs(field.member.Location),
			},
			position: pos,
		})
	}
	return reqs, nil
}

type injectedField struct {
	member     *ntypes.Member
	typ        *ntypes.Type
	tag        Tag
	ordinal    int
	hasOrdinal bool
}

// injectedFields lists the fields of a struct that carry one of the
// setup's attribute keys.  Fields with an ordinal come first.
func (r *resolver) injectedFields(t *ntypes.Type) []injectedField {
	key := t.Canonical()
	if f, ok := r.fields[key]; ok {
		return f
	}
	var out []injectedField
	for _, m := range r.ts.Fields(t.Deref()) {
		if f, ok := r.fieldAttributes(m); ok {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].hasOrdinal != out[j].hasOrdinal {
			return out[i].hasOrdinal
		}
		return out[i].ordinal < out[j].ordinal
	})
	r.fields[key] = out
	return out
}

func (r *resolver) fieldAttributes(m *ntypes.Member) (injectedField, bool) {
	st := reflect.StructTag(m.StructTag)
	f := injectedField{member: m, typ: m.Type}
	inject := false
	if v, ok := st.Lookup(defaultAttributeKey); ok && v != "-" {
		inject = true
		for _, part := range strings.Split(v, ",") {
			k, val, _ := strings.Cut(strings.TrimSpace(part), "=")
			switch k {
			case "tag":
				f.tag = StringTag(val)
			case "ordinal":
				if n, err := strconv.Atoi(val); err == nil {
					f.ordinal, f.hasOrdinal = n, true
				}
			case "type":
				if t := r.parseType(m, val); t != nil {
					f.typ = t
				}
			}
		}
	}
	for _, key := range r.setup.TagAttributes {
		if v, ok := st.Lookup(key); ok {
			inject = true
			if v != "" {
				f.tag = StringTag(v)
			}
		}
	}
	for _, key := range r.setup.TypeAttributes {
		if v, ok := st.Lookup(key); ok {
			inject = true
			if t := r.parseType(m, v); t != nil {
				f.typ = t
			}
		}
	}
	for _, key := range r.setup.OrdinalAttributes {
		if v, ok := st.Lookup(key); ok {
			inject = true
			if n, err := strconv.Atoi(v); err == nil {
				f.ordinal, f.hasOrdinal = n, true
			}
		}
	}
	return f, inject
}

// parseType reads a type named in a struct tag, as it would be written
// in the setup's file.
func (r *resolver) parseType(m *ntypes.Member, text string) *ntypes.Type {
	scope := &ntypes.Scope{Package: r.setup.Package, Imports: make(map[string]string)}
	for _, path := range r.setup.Imports {
		scope.Imports[ntypes.DefaultImportName(path)] = path
	}
	t, err := r.ts.ParseType(scope, text)
	if err != nil {
		reportf(r.reporter, TypeCannotBeInferred, Warning, locs(m.Location),
			"field %s: cannot use type %q: %s", m.Name, text, err)
		return nil
	}
	return t
}
