package ncompose

import (
	"go/ast"
	"go/types"
	"sort"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

type shapeArgs struct {
	st    *chainState
	inv   invocation
	first bool
}

type shapePredicate struct {
	message string
	test    func(a shapeArgs) bool
}

// shape is one recognized form of a configuration call.  The first shape
// whose predicates all pass handles the call.
type shape struct {
	name   string
	tests  []shapePredicate
	handle func(a shapeArgs) error
}

// is builds a predicate.  The message is reported when the call fails the
// test, so it should say what is wrong with the call.
func is(message string, test func(a shapeArgs) bool) shapePredicate {
	return shapePredicate{message: message, test: test}
}

func named(names ...string) shapePredicate {
	return is("is not "+strings.Join(names, " or "), func(a shapeArgs) bool {
		for _, n := range names {
			if a.inv.name == n {
				return true
			}
		}
		return false
	})
}

func typeArgs(min, max int) shapePredicate {
	msg := "has the wrong number of type arguments"
	switch {
	case max == 0:
		msg = "has type arguments"
	case min == max:
		msg = "does not have exactly " + plural(min, "type argument")
	case min > 0:
		msg = "does not have at least " + plural(min, "type argument")
	}
	return is(msg, func(a shapeArgs) bool {
		n := len(a.inv.typeArgs)
		return n >= min && (max < 0 || n <= max)
	})
}

func args(min, max int) shapePredicate {
	msg := "has the wrong number of arguments"
	switch {
	case max == 0:
		msg = "has arguments"
	case min == max:
		msg = "does not have exactly " + plural(min, "argument")
	case max < 0:
		msg = "does not have at least " + plural(min, "argument")
	}
	return is(msg, func(a shapeArgs) bool {
		n := len(a.inv.args)
		return n >= min && (max < 0 || n <= max)
	})
}

func plural(n int, word string) string {
	s := map[int]string{0: "zero", 1: "one", 2: "two", 3: "three"}[n]
	if n == 1 {
		return s + " " + word
	}
	return s + " " + word + "s"
}

var (
	chainStart = is("is not the start of the chain", func(a shapeArgs) bool { return a.first })
	chained    = is("starts the chain", func(a shapeArgs) bool { return !a.first })

	firstArgString = is("first argument is not a string literal", func(a shapeArgs) bool {
		if len(a.inv.args) == 0 {
			return true
		}
		_, ok := stringLit(a.inv.args[0])
		return ok
	})
	allArgsStrings = is("has an argument that is not a string literal", func(a shapeArgs) bool {
		for _, e := range a.inv.args {
			if _, ok := stringLit(e); !ok {
				return false
			}
		}
		return true
	})
	firstArgFunc = is("first argument is not a function literal", func(a shapeArgs) bool {
		if len(a.inv.args) == 0 {
			return false
		}
		_, ok := a.inv.args[0].(*ast.FuncLit)
		return ok
	})
	contextFunc = is("function does not take only a di.Context", func(a shapeArgs) bool {
		if len(a.inv.args) == 0 {
			return false
		}
		lit, ok := a.inv.args[0].(*ast.FuncLit)
		if !ok {
			return false
		}
		return a.st.contextParam(lit) != "" || lit.Type.Params.NumFields() == 0
	})
	plainFunc = is("function takes a di.Context", func(a shapeArgs) bool {
		if len(a.inv.args) == 0 {
			return false
		}
		lit, ok := a.inv.args[0].(*ast.FuncLit)
		if !ok {
			return false
		}
		return a.st.contextParam(lit) == "" && lit.Type.Params.NumFields() > 0
	})
)

var lifetimeNamesList = []string{"Transient", "Singleton", "Scoped", "PerResolve", "PerBlock"}

var shapes = []shape{
	{
		name:   "setup",
		tests:  []shapePredicate{named("Setup"), chainStart, typeArgs(0, 0), args(0, 2), firstArgString},
		handle: handleSetup,
	},
	{
		name:   "depends on",
		tests:  []shapePredicate{named("DependsOn"), chained, typeArgs(0, 0), args(1, -1), allArgsStrings},
		handle: handleDependsOn,
	},
	{
		name:   "hint",
		tests:  []shapePredicate{named("Hint"), chained, typeArgs(0, 0), args(2, 2)},
		handle: handleHint,
	},
	{
		name:   "bind",
		tests:  []shapePredicate{named("Bind"), chained, typeArgs(1, -1)},
		handle: handleBind,
	},
	{
		name:   "simplified bind",
		tests:  []shapePredicate{named("Bind"), chained, typeArgs(0, 0)},
		handle: handleSimplifiedBind,
	},
	{
		name:   "lifetime bind",
		tests:  []shapePredicate{named(lifetimeNamesList...), chained, typeArgs(1, 1)},
		handle: handleLifetimeBind,
	},
	{
		name:   "lifetime factory",
		tests:  []shapePredicate{named(lifetimeNamesList...), chained, typeArgs(0, 0), args(1, -1), firstArgFunc},
		handle: handleLifetimeFactory,
	},
	{
		name:   "as",
		tests:  []shapePredicate{named("As"), chained, typeArgs(0, 0), args(1, 1)},
		handle: handleAs,
	},
	{
		name:   "tags",
		tests:  []shapePredicate{named("Tags"), chained, typeArgs(0, 0), args(1, -1)},
		handle: handleTags,
	},
	{
		name:   "to implementation",
		tests:  []shapePredicate{named("To"), chained, typeArgs(1, 1), args(0, 0)},
		handle: handleToImplementation,
	},
	{
		name:   "to factory",
		tests:  []shapePredicate{named("To"), chained, typeArgs(0, 0), args(1, 1), firstArgFunc, contextFunc},
		handle: handleToFactory,
	},
	{
		name:   "to simple factory",
		tests:  []shapePredicate{named("To"), chained, typeArgs(0, 0), args(1, 1), firstArgFunc, plainFunc},
		handle: handleToFactory,
	},
	{
		name:   "arg",
		tests:  []shapePredicate{named("Arg", "RootArg"), chained, typeArgs(1, 1), args(1, -1), firstArgString},
		handle: handleArg,
	},
	{
		name:   "root",
		tests:  []shapePredicate{named("Root"), chained, typeArgs(1, 1), args(0, 3), firstArgString},
		handle: handleRoot,
	},
	{
		name:   "root bind",
		tests:  []shapePredicate{named("RootBind"), chained, typeArgs(1, 1), args(1, -1), firstArgString},
		handle: handleRootBind,
	},
	{
		name:   "builder",
		tests:  []shapePredicate{named("Builder"), chained, typeArgs(1, 1), args(0, 2), firstArgString},
		handle: handleBuilder,
	},
	{
		name:   "builders",
		tests:  []shapePredicate{named("Builders", "Roots"), chained, typeArgs(1, 1), args(0, 3), firstArgString},
		handle: handleBuilders,
	},
	{
		name:   "default lifetime",
		tests:  []shapePredicate{named("DefaultLifetime"), chained, typeArgs(0, 1), args(1, -1)},
		handle: handleDefaultLifetime,
	},
	{
		name:   "accumulate",
		tests:  []shapePredicate{named("Accumulate"), chained, typeArgs(2, 2)},
		handle: handleAccumulate,
	},
	{
		name:   "generic type argument",
		tests:  []shapePredicate{named("GenericTypeArgument"), chained, typeArgs(1, 1), args(0, 0)},
		handle: handleGenericTypeArgument,
	},
	{
		name:   "attribute",
		tests:  []shapePredicate{named("TypeAttribute", "TagAttribute", "OrdinalAttribute"), chained, typeArgs(0, 0), args(1, 1), allArgsStrings},
		handle: handleAttribute,
	},
	{
		name:   "special type",
		tests:  []shapePredicate{named("SpecialType"), chained, typeArgs(1, 1), args(0, 0)},
		handle: handleSpecialType,
	},
}

// dispatch hands the invocation to the first shape that accepts it.
func (st *chainState) dispatch(inv invocation, first bool) error {
	a := shapeArgs{st: st, inv: inv, first: first}
	var closest *shape
	var closestFailures []string
	for i := range shapes {
		s := &shapes[i]
		// the first predicate checks the name
		if !s.tests[0].test(a) {
			continue
		}
		var failures []string
		for _, p := range s.tests[1:] {
			if !p.test(a) {
				failures = append(failures, p.message)
			}
		}
		if len(failures) == 0 {
			debugf("call %s handled as %s", inv.name, s.name)
			return s.handle(a)
		}
		if closest == nil || len(failures) < len(closestFailures) {
			closest = s
			closestFailures = failures
		}
	}
	if closest == nil {
		return st.unsupported(inv.call, "%s is not a configuration call", inv.name)
	}
	return st.unsupported(inv.call, "%s does not match %s: %s",
		types.ExprString(inv.call.Fun), closest.name, strings.Join(closestFailures, ", "))
}

func handleSetup(a shapeArgs) error {
	st := a.st
	md := MdSetup{
		Name:     "Composition",
		Package:  st.pkg,
		Hints:    commentHints(st.p.Fset, st.file, st.stmtLine),
		Receiver: st.receiver,
		Location: st.location(a.inv.pos),
	}
	if len(a.inv.args) > 0 {
		name, _ := stringLit(a.inv.args[0])
		if name != "" {
			md.Name = name
		}
	}
	if len(a.inv.args) > 1 {
		kind, err := st.parseSetupKind(a.inv.args[1])
		if err != nil {
			return err
		}
		md.Kind = kind
	}
	for _, path := range st.scope.Imports {
		md.Imports = append(md.Imports, path)
	}
	md.Imports = append(md.Imports, st.scope.DotImports...)
	sort.Strings(md.Imports)
	st.setupName = md.Name
	st.v.VisitSetup(md)
	return nil
}

func handleDependsOn(a shapeArgs) error {
	md := MdDependsOn{Location: a.st.location(a.inv.pos)}
	for _, e := range a.inv.args {
		s, _ := stringLit(e)
		md.Names = append(md.Names, s)
	}
	a.st.v.VisitDependsOn(md)
	return nil
}

func handleHint(a shapeArgs) error {
	st := a.st
	key, ok := stringLit(a.inv.args[0])
	if !ok {
		key, ok = st.diName(a.inv.args[0])
	}
	if !ok {
		return st.unsupported(a.inv.args[0], "hint key must be a string or a di hint name")
	}
	value, err := st.requireString(a.inv.args[1], "hint value")
	if err != nil {
		return err
	}
	st.v.VisitHint(MdHint{Key: key, Value: value, Location: st.location(a.inv.pos)})
	return nil
}

func handleBind(a shapeArgs) error {
	st := a.st
	ts, err := st.resolveTypes(a.inv.typeArgs)
	if err != nil {
		return err
	}
	tags, err := st.parseTags(a.inv.args, nil)
	if err != nil {
		return err
	}
	loc := st.location(a.inv.pos)
	for _, t := range ts {
		st.v.VisitContract(MdContract{Type: t, Tags: tags, Kind: ExplicitContract, Location: loc})
	}
	return nil
}

func handleSimplifiedBind(a shapeArgs) error {
	tags, err := a.st.parseTags(a.inv.args, nil)
	if err != nil {
		return err
	}
	if a.st.pending != nil {
		a.st.pending.tags = append(a.st.pending.tags, tags...)
		return nil
	}
	a.st.pending = &pendingBind{tags: tags, location: a.st.location(a.inv.pos)}
	return nil
}

func handleLifetimeBind(a shapeArgs) error {
	st := a.st
	l, _ := ParseLifetime(a.inv.name)
	t, err := st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	tags, err := st.parseTags(a.inv.args, nil)
	if err != nil {
		return err
	}
	loc := st.location(a.inv.pos)
	st.v.VisitLifetime(MdLifetime{Lifetime: l, Location: loc})
	st.emitSimplified(t, tags, loc)
	st.v.VisitImplementation(MdImplementation{Type: t, Location: loc})
	return nil
}

func handleLifetimeFactory(a shapeArgs) error {
	st := a.st
	l, _ := ParseLifetime(a.inv.name)
	lit := a.inv.args[0].(*ast.FuncLit)
	loc := st.location(a.inv.pos)
	f, err := st.analyzeFactory(lit)
	if err != nil {
		return err
	}
	tags, err := st.parseTags(a.inv.args[1:], nil)
	if err != nil {
		return err
	}
	st.v.VisitLifetime(MdLifetime{Lifetime: l, Location: loc})
	st.emitSimplified(f.Type, tags, loc)
	st.v.VisitFactory(MdFactory{Factory: f, Location: loc})
	return nil
}

func handleAs(a shapeArgs) error {
	l, err := a.st.parseLifetime(a.inv.args[0])
	if err != nil {
		return err
	}
	a.st.v.VisitLifetime(MdLifetime{Lifetime: l, Location: a.st.location(a.inv.pos)})
	return nil
}

func handleTags(a shapeArgs) error {
	tags, err := a.st.parseTags(a.inv.args, nil)
	if err != nil {
		return err
	}
	a.st.v.VisitTag(MdTag{Tags: tags, Location: a.st.location(a.inv.pos)})
	return nil
}

func handleToImplementation(a shapeArgs) error {
	st := a.st
	t, err := st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	loc := st.location(a.inv.pos)
	st.flushPending(t)
	st.v.VisitImplementation(MdImplementation{Type: t, Location: loc})
	return nil
}

func handleToFactory(a shapeArgs) error {
	st := a.st
	f, err := st.analyzeFactory(a.inv.args[0].(*ast.FuncLit))
	if err != nil {
		return err
	}
	st.flushPending(f.Type)
	st.v.VisitFactory(MdFactory{Factory: f, Location: st.location(a.inv.pos)})
	return nil
}

// flushPending turns a preceding Bind() into contracts for t.
func (st *chainState) flushPending(t *ntypes.Type) {
	if st.pending == nil {
		return
	}
	p := st.pending
	st.pending = nil
	st.emitSimplified(t, p.tags, p.location)
}

func (st *chainState) emitSimplified(t *ntypes.Type, tags []Tag, loc Location) {
	for _, c := range simplifiedContracts(st.p.Types, t, st.specialTypes) {
		st.v.VisitContract(MdContract{Type: c, Tags: tags, Kind: ImplicitContract, Location: loc})
	}
}

func handleArg(a shapeArgs) error {
	st := a.st
	t, err := st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	name, _ := stringLit(a.inv.args[0])
	tags, err := st.parseTags(a.inv.args[1:], nil)
	if err != nil {
		return err
	}
	kind := ClassArg
	if a.inv.name == "RootArg" {
		kind = RootArg
	}
	loc := st.location(a.inv.pos)
	st.v.VisitContract(MdContract{Type: t, Tags: tags, Kind: ExplicitContract, Location: loc})
	st.v.VisitArg(MdArg{Arg: Arg{Name: name, Type: t, Kind: kind}, Location: loc})
	return nil
}

func handleRoot(a shapeArgs) error {
	st := a.st
	t, err := st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	root := Root{Type: t, Kind: RootPublic, Location: st.location(a.inv.pos)}
	if len(a.inv.args) > 0 {
		root.Name, _ = stringLit(a.inv.args[0])
	}
	if len(a.inv.args) > 1 {
		root.Tag, err = st.parseTag(a.inv.args[1], 0, nil)
		if err != nil {
			return err
		}
	}
	if len(a.inv.args) > 2 {
		root.Kind, err = st.parseRootKind(a.inv.args[2])
		if err != nil {
			return err
		}
	}
	st.v.VisitRoot(MdRoot{Root: root})
	return nil
}

func handleRootBind(a shapeArgs) error {
	st := a.st
	t, err := st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	loc := st.location(a.inv.pos)
	root := Root{Type: t, Kind: RootPublic, Location: loc}
	root.Name, _ = stringLit(a.inv.args[0])
	var tags []Tag
	if len(a.inv.args) > 1 {
		root.Kind, err = st.parseRootKind(a.inv.args[1])
		if err != nil {
			return err
		}
		tags, err = st.parseTags(a.inv.args[2:], nil)
		if err != nil {
			return err
		}
	}
	if len(tags) > 0 {
		root.Tag = tags[0]
	}
	st.v.VisitRoot(MdRoot{Root: root})
	st.v.VisitContract(MdContract{Type: t, Tags: tags, Kind: ExplicitContract, Location: loc})
	return nil
}

func handleBuilder(a shapeArgs) error {
	st := a.st
	t, err := st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	name := "BuildUp"
	if len(a.inv.args) > 0 {
		name, _ = stringLit(a.inv.args[0])
	}
	kind := RootPublic
	if len(a.inv.args) > 1 {
		kind, err = st.parseRootKind(a.inv.args[1])
		if err != nil {
			return err
		}
	}
	st.emitBuilder(t, nameTemplate(name, t), kind, st.location(a.inv.pos))
	return nil
}

func handleBuilders(a shapeArgs) error {
	st := a.st
	base, err := st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	builders := a.inv.name == "Builders"
	template := "Root{type}"
	if builders {
		template = "BuildUp{type}"
	}
	if len(a.inv.args) > 0 {
		template, _ = stringLit(a.inv.args[0])
	}
	kind := RootPublic
	if len(a.inv.args) > 1 {
		kind, err = st.parseRootKind(a.inv.args[1])
		if err != nil {
			return err
		}
	}
	filter := "*"
	if len(a.inv.args) > 2 {
		filter, err = st.requireString(a.inv.args[2], "filter")
		if err != nil {
			return err
		}
	}
	loc := st.location(a.inv.pos)
	subtypes, err := st.subtypes(base, filter, loc)
	if err != nil {
		return err
	}
	for _, t := range subtypes {
		if builders {
			st.emitBuilder(t, nameTemplate(template, t), kind, loc)
			continue
		}
		st.v.VisitRoot(MdRoot{Root: Root{Type: t, Name: nameTemplate(template, t), Kind: kind, Location: loc}})
	}
	return nil
}

func handleDefaultLifetime(a shapeArgs) error {
	st := a.st
	l, err := st.parseLifetime(a.inv.args[0])
	if err != nil {
		return err
	}
	rule := DefaultLifetimeRule{Lifetime: l, Location: st.location(a.inv.pos)}
	if len(a.inv.typeArgs) == 1 {
		rule.Type, err = st.resolveType(a.inv.typeArgs[0])
		if err != nil {
			return err
		}
		rule.Tags, err = st.parseTags(a.inv.args[1:], nil)
		if err != nil {
			return err
		}
	} else if len(a.inv.args) > 1 {
		return st.unsupported(a.inv.args[1], "tags require a type argument")
	}
	st.v.VisitDefaultLifetime(MdDefaultLifetime{Rule: rule})
	return nil
}

func handleAccumulate(a shapeArgs) error {
	st := a.st
	ts, err := st.resolveTypes(a.inv.typeArgs)
	if err != nil {
		return err
	}
	lifetimes, err := st.parseLifetimes(a.inv.args)
	if err != nil {
		return err
	}
	st.v.VisitAccumulator(MdAccumulator{Accumulator: Accumulator{
		Type:      ts[0],
		AccType:   ts[1],
		Lifetimes: lifetimes,
		Location:  st.location(a.inv.pos),
	}})
	return nil
}

func handleGenericTypeArgument(a shapeArgs) error {
	t, err := a.st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	a.st.v.VisitGenericTypeArgument(MdGenericTypeArgument{Type: t, Location: a.st.location(a.inv.pos)})
	return nil
}

func handleAttribute(a shapeArgs) error {
	key, _ := stringLit(a.inv.args[0])
	kind := map[string]AttributeKind{
		"TypeAttribute":    TypeAttribute,
		"TagAttribute":     TagAttribute,
		"OrdinalAttribute": OrdinalAttribute,
	}[a.inv.name]
	a.st.v.VisitAttribute(MdAttribute{Kind: kind, Key: key, Location: a.st.location(a.inv.pos)})
	return nil
}

func handleSpecialType(a shapeArgs) error {
	t, err := a.st.resolveType(a.inv.typeArgs[0])
	if err != nil {
		return err
	}
	a.st.specialTypes = append(a.st.specialTypes, t)
	a.st.v.VisitSpecialType(MdSpecialType{Type: t, Location: a.st.location(a.inv.pos)})
	return nil
}
