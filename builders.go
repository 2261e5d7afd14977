package ncompose

import (
	"path"
	"sort"

	"github.com/muir/ncompose/ntypes"
)

// subtypes lists the declared concrete types that can stand in for base,
// fully instantiated, deepest first.  Struct types are returned as
// pointers since that is what a builder fills in.
func (st *chainState) subtypes(base *ntypes.Type, filter string, loc Location) ([]*ntypes.Type, error) {
	ts := st.p.Types
	var found []*ntypes.Type
	for _, c := range ts.AllTypes() {
		if c.IsInterface() || c.Decl() == nil {
			continue
		}
		inst, ok, err := st.instantiateFor(c, base, loc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if inst.Decl().Kind == ntypes.StructDecl {
			inst = ts.PointerTo(inst)
		}
		if !matchesFilter(filter, inst) {
			debugf("builders: %s excluded by filter %q", inst, filter)
			continue
		}
		found = append(found, inst)
	}
	depth := make(map[*ntypes.Type]int, len(found))
	for _, t := range found {
		depth[t] = ts.Depth(t)
	}
	sort.SliceStable(found, func(i, j int) bool {
		if depth[found[i]] != depth[found[j]] {
			return depth[found[i]] > depth[found[j]]
		}
		return found[i].String() < found[j].String()
	})
	return found, nil
}

// instantiateFor works out the type arguments that make the declared type
// c a subtype of base.
func (st *chainState) instantiateFor(c, base *ntypes.Type, loc Location) (*ntypes.Type, bool, error) {
	ts := st.p.Types
	if !c.IsGeneric() {
		return c, ts.IsSubtype(c, base), nil
	}
	d := c.Decl()
	vars := typeParamVars(d)
	views := ts.BaseTypes(c)
	if self, err := ts.Instantiate(c, d.TypeParams); err == nil {
		views = append([]*ntypes.Type{self}, views...)
	}
	for _, view := range views {
		m := make(map[*ntypes.Type]*ntypes.Type)
		if !unify(view, base.Deref(), vars, m) {
			continue
		}
		args := make([]*ntypes.Type, len(d.TypeParams))
		for i, tp := range d.TypeParams {
			a, ok := m[tp]
			if !ok {
				return nil, false, fatalf(st.p.Reporter, GenericArgumentMismatch, locs(loc, d.Location),
					"type parameter %s of %s cannot be inferred from %s", tp.Name(), c, base)
			}
			args[i] = a
		}
		inst, err := ts.Instantiate(c, args)
		if err != nil {
			return nil, false, fatalf(st.p.Reporter, GenericArgumentMismatch, locs(loc, d.Location),
				"cannot instantiate %s for %s: %s", c, base, err)
		}
		return inst, true, nil
	}
	return nil, false, nil
}

func matchesFilter(filter string, t *ntypes.Type) bool {
	if filter == "" || filter == "*" {
		return true
	}
	for _, name := range []string{t.String(), t.Deref().String(), t.ShortName()} {
		if ok, _ := path.Match(filter, name); ok {
			return true
		}
	}
	return false
}

// emitBuilder declares a root that fills in an existing instance: the
// instance arrives as a builder argument under a unique tag and a
// synthetic factory injects it and builds it up.
func (st *chainState) emitBuilder(t *ntypes.Type, name string, kind RootKind, loc Location) {
	argTag := UniqueTag()
	rootTag := UniqueTag()
	st.v.VisitContract(MdContract{Type: t, Tags: []Tag{argTag}, Kind: ExplicitContract, Location: loc})
	st.v.VisitArg(MdArg{
		Arg:       Arg{Name: "buildUp", Type: t, Kind: BuilderArg},
		Synthetic: "builder argument",
		Location:  loc,
	})
	st.v.VisitContract(MdContract{Type: t, Tags: []Tag{rootTag}, Kind: ExplicitContract, Location: loc})
	st.v.VisitFactory(MdFactory{
		Factory: &Factory{
			Type:         t,
			ContextName:  "ctx",
			Source:       "var instance " + t.String() + "; ctx.Inject(tag, &instance); ctx.BuildUp(instance); return instance",
			Resolvers:    []Resolver{{Position: 1, Type: t, Tag: argTag, Target: "instance", Location: loc}},
			Initializers: []Initializer{{Position: 2, Type: t, Target: "instance", Location: loc}},
			Location:     loc,
		},
		Synthetic: "builder",
		Location:  loc,
	})
	st.v.VisitRoot(MdRoot{Root: Root{
		Type:       t,
		Tag:        rootTag,
		Name:       name,
		Kind:       kind,
		BuilderArg: &Contract{Type: t, Tags: []Tag{argTag}, Kind: ExplicitContract},
		Location:   loc,
	}})
}
