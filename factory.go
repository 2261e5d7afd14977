package ncompose

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/muir/ncompose/ntypes"
)

// contextParam returns the name of the di.Context parameter when it is
// the only parameter of lit.  It returns "_" for an unnamed context
// parameter and "" when lit does not take a context.
func (st *chainState) contextParam(lit *ast.FuncLit) string {
	params := lit.Type.Params
	if params == nil || len(params.List) != 1 || len(params.List[0].Names) > 1 {
		return ""
	}
	if !st.isContextType(params.List[0].Type) {
		return ""
	}
	if len(params.List[0].Names) == 0 {
		return "_"
	}
	return params.List[0].Names[0].Name
}

func (st *chainState) isContextType(e ast.Expr) bool {
	name, ok := st.diName(e)
	return ok && name == "Context"
}

// analyzeFactory extracts the type and the requests of a factory literal.
func (st *chainState) analyzeFactory(lit *ast.FuncLit) (*Factory, error) {
	loc := st.location(lit.Pos())
	results := lit.Type.Results
	if results == nil || len(results.List) != 1 || len(results.List[0].Names) > 1 {
		return nil, fatalf(st.p.Reporter, TypeCannotBeInferred, locs(loc),
			"a factory must return exactly one value")
	}
	t, err := st.resolveType(results.List[0].Type)
	if err != nil {
		return nil, err
	}
	if t.Kind() == ntypes.Chan {
		return nil, fatalf(st.p.Reporter, AsyncFactory, locs(loc),
			"factory of %s returns a channel", t)
	}
	var async ast.Node
	ast.Inspect(lit.Body, func(n ast.Node) bool {
		if g, ok := n.(*ast.GoStmt); ok && async == nil {
			async = g
		}
		return async == nil
	})
	if async != nil {
		return nil, fatalf(st.p.Reporter, AsyncFactory, locs(st.location(async.Pos()), loc),
			"factory of %s starts a goroutine", t)
	}
	f := &Factory{
		Type:     t,
		Lambda:   lit,
		Source:   st.source(lit),
		Location: loc,
	}
	ctxName := st.contextParam(lit)
	if ctxName == "" && lit.Type.Params.NumFields() > 0 {
		f.Simple = true
		pos := 0
		for _, field := range lit.Type.Params.List {
			pt, err := st.resolveType(field.Type)
			if err != nil {
				return nil, err
			}
			names := field.Names
			if len(names) == 0 {
				names = []*ast.Ident{{Name: "_", NamePos: field.Pos()}}
			}
			for _, n := range names {
				pos++
				f.Resolvers = append(f.Resolvers, Resolver{
					Position: pos,
					Type:     pt,
					Target:   n.Name,
					Location: st.location(n.Pos()),
				})
			}
		}
		return f, nil
	}
	f.ContextName = ctxName
	w := &factoryWalker{st: st, f: f}
	root := &lexicalScope{names: make(map[string]scopeEntry)}
	if ctxName != "" && ctxName != "_" {
		root.names[ctxName] = scopeEntry{ctx: true, obj: w.defObject(lit.Type.Params.List[0].Names[0])}
	}
	w.walk(lit.Body, root, &overrideFrame{})
	if w.err != nil {
		return nil, w.err
	}
	debugf("factory of %s: %d resolvers, %d initializers", t, len(f.Resolvers), len(f.Initializers))
	return f, nil
}

type scopeEntry struct {
	// ctx is true for an active di.Context
	ctx bool
	typ *ntypes.Type
	obj types.Object
}

type lexicalScope struct {
	parent *lexicalScope
	names  map[string]scopeEntry
}

func (s *lexicalScope) lookup(name string) (scopeEntry, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.names[name]; ok {
			return e, true
		}
	}
	return scopeEntry{}, false
}

func (s *lexicalScope) declare(name string, e scopeEntry) {
	if name == "_" {
		return
	}
	s.names[name] = e
}

// overrideFrame collects ctx.Override and ctx.Let calls until the next
// request of the same function literal.
type overrideFrame struct {
	pending []Override
}

func (fr *overrideFrame) take() []Override {
	o := fr.pending
	fr.pending = nil
	return o
}

type factoryWalker struct {
	st       *chainState
	f        *Factory
	position int
	err      error
}

func (w *factoryWalker) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *factoryWalker) defObject(id *ast.Ident) types.Object {
	if w.st.p.Info == nil || id == nil {
		return nil
	}
	return w.st.p.Info.Defs[id]
}

// isContext reports whether name, used at id, is an active context.
func (w *factoryWalker) isContext(sc *lexicalScope, id *ast.Ident) bool {
	e, ok := sc.lookup(id.Name)
	if !ok || !e.ctx {
		return false
	}
	if info := w.st.p.Info; info != nil && e.obj != nil {
		if used, ok := info.Uses[id]; ok && used != e.obj {
			return false
		}
	}
	return true
}

// walk visits n in lexical order.  Nodes that open a scope get a child
// scope; function literals also get a new override frame.
func (w *factoryWalker) walk(n ast.Node, sc *lexicalScope, fr *overrideFrame) {
	if n == nil || w.err != nil {
		return
	}
	child := func() *lexicalScope {
		return &lexicalScope{parent: sc, names: make(map[string]scopeEntry)}
	}
	switch x := n.(type) {
	case *ast.FuncLit:
		inner := child()
		w.declareParams(inner, x.Type.Params)
		w.declareParams(inner, x.Type.Results)
		w.walk(x.Body, inner, &overrideFrame{})
	case *ast.BlockStmt:
		inner := child()
		for _, s := range x.List {
			w.walk(s, inner, fr)
		}
	case *ast.IfStmt:
		inner := child()
		w.walk(x.Init, inner, fr)
		w.walk(x.Cond, inner, fr)
		w.walk(x.Body, inner, fr)
		w.walk(x.Else, inner, fr)
	case *ast.ForStmt:
		inner := child()
		w.walk(x.Init, inner, fr)
		w.walk(x.Cond, inner, fr)
		w.walk(x.Post, inner, fr)
		w.walk(x.Body, inner, fr)
	case *ast.RangeStmt:
		w.walk(x.X, sc, fr)
		inner := child()
		if x.Tok == token.DEFINE {
			for _, e := range []ast.Expr{x.Key, x.Value} {
				if id, ok := e.(*ast.Ident); ok {
					inner.declare(id.Name, scopeEntry{obj: w.defObject(id)})
				}
			}
		}
		w.walk(x.Body, inner, fr)
	case *ast.SwitchStmt:
		inner := child()
		w.walk(x.Init, inner, fr)
		w.walk(x.Tag, inner, fr)
		w.walk(x.Body, inner, fr)
	case *ast.TypeSwitchStmt:
		inner := child()
		w.walk(x.Init, inner, fr)
		w.walk(x.Assign, inner, fr)
		w.walk(x.Body, inner, fr)
	case *ast.CaseClause:
		inner := child()
		for _, e := range x.List {
			w.walk(e, inner, fr)
		}
		for _, s := range x.Body {
			w.walk(s, inner, fr)
		}
	case *ast.CommClause:
		inner := child()
		w.walk(x.Comm, inner, fr)
		for _, s := range x.Body {
			w.walk(s, inner, fr)
		}
	case *ast.AssignStmt:
		for _, r := range x.Rhs {
			w.walk(r, sc, fr)
		}
		if x.Tok != token.DEFINE {
			for _, l := range x.Lhs {
				w.walk(l, sc, fr)
			}
			return
		}
		for i, l := range x.Lhs {
			id, ok := l.(*ast.Ident)
			if !ok {
				continue
			}
			e := scopeEntry{obj: w.defObject(id)}
			if len(x.Lhs) == len(x.Rhs) {
				e.typ = w.inferType(x.Rhs[i])
			}
			sc.declare(id.Name, e)
		}
	case *ast.DeclStmt:
		gd, ok := x.Decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			return
		}
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			for _, v := range vs.Values {
				w.walk(v, sc, fr)
			}
			var declared *ntypes.Type
			if vs.Type != nil {
				t, err := w.st.resolveType(vs.Type)
				if err != nil {
					w.fail(err)
					return
				}
				declared = t
			}
			for i, id := range vs.Names {
				e := scopeEntry{typ: declared, obj: w.defObject(id)}
				if e.typ == nil && len(vs.Values) == len(vs.Names) {
					e.typ = w.inferType(vs.Values[i])
				}
				sc.declare(id.Name, e)
			}
		}
	case *ast.CallExpr:
		if w.contextCall(x, sc, fr) {
			return
		}
		w.walk(x.Fun, sc, fr)
		for _, a := range x.Args {
			w.walk(a, sc, fr)
		}
	default:
		ast.Inspect(n, func(c ast.Node) bool {
			if c == n {
				return true
			}
			switch c.(type) {
			case ast.Stmt, *ast.FuncLit, *ast.CallExpr:
				w.walk(c, sc, fr)
				return false
			}
			return w.err == nil
		})
	}
}

func (w *factoryWalker) declareParams(sc *lexicalScope, fl *ast.FieldList) {
	if fl == nil {
		return
	}
	for _, field := range fl.List {
		isCtx := w.st.isContextType(field.Type)
		var t *ntypes.Type
		if !isCtx {
			t, _ = w.st.p.Types.Resolve(w.st.scope, field.Type)
		}
		for _, id := range field.Names {
			sc.declare(id.Name, scopeEntry{ctx: isCtx, typ: t, obj: w.defObject(id)})
		}
	}
}

// inferType finds the type of simple initializers: T{}, &T{}, new(T) and
// other variables.  It returns nil when the type is not obvious.
func (w *factoryWalker) inferType(e ast.Expr) *ntypes.Type {
	ts := w.st.p.Types
	switch x := e.(type) {
	case *ast.CompositeLit:
		if x.Type == nil {
			return nil
		}
		t, err := ts.Resolve(w.st.scope, x.Type)
		if err != nil {
			return nil
		}
		return t
	case *ast.UnaryExpr:
		if x.Op != token.AND {
			return nil
		}
		if t := w.inferType(x.X); t != nil {
			return ts.PointerTo(t)
		}
	case *ast.CallExpr:
		if id, ok := x.Fun.(*ast.Ident); ok && id.Name == "new" && len(x.Args) == 1 {
			t, err := ts.Resolve(w.st.scope, x.Args[0])
			if err == nil {
				return ts.PointerTo(t)
			}
		}
	case *ast.BasicLit:
		return w.literalType(x)
	}
	return nil
}

func (w *factoryWalker) literalType(lit *ast.BasicLit) *ntypes.Type {
	name := map[token.Token]string{
		token.STRING: "string",
		token.INT:    "int",
		token.FLOAT:  "float64",
		token.CHAR:   "rune",
		token.IMAG:   "complex128",
	}[lit.Kind]
	t, _ := w.st.p.Types.Basic(name)
	return t
}

// contextCall handles ctx.Inject, ctx.BuildUp, ctx.Override and ctx.Let.
// It returns false for every other call.
func (w *factoryWalker) contextCall(call *ast.CallExpr, sc *lexicalScope, fr *overrideFrame) bool {
	fun := call.Fun
	var typeArgs []ast.Expr
	switch f := fun.(type) {
	case *ast.IndexExpr:
		typeArgs = []ast.Expr{f.Index}
		fun = f.X
	case *ast.IndexListExpr:
		typeArgs = f.Indices
		fun = f.X
	}
	sel, ok := fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	recv, ok := sel.X.(*ast.Ident)
	if !ok || !w.isContext(sc, recv) {
		return false
	}
	isCtx := func(name string) bool {
		e, ok := sc.lookup(name)
		return ok && e.ctx
	}
	loc := w.st.location(call.Pos())
	switch sel.Sel.Name {
	case "Inject":
		w.inject(call, typeArgs, sc, fr, isCtx, loc)
	case "BuildUp":
		w.buildUp(call, sc, fr, loc)
	case "Override", "Let":
		w.override(call, typeArgs, sel.Sel.Name == "Override", sc, fr, isCtx, loc)
	default:
		return false
	}
	return true
}

// target returns the variable a request fills and its type.
func (w *factoryWalker) target(e ast.Expr, sc *lexicalScope) (string, *ntypes.Type, bool) {
	addr := false
	if u, ok := e.(*ast.UnaryExpr); ok && u.Op == token.AND {
		e = u.X
		addr = true
	}
	id, ok := e.(*ast.Ident)
	if !ok {
		return types.ExprString(e), nil, addr
	}
	entry, _ := sc.lookup(id.Name)
	return id.Name, entry.typ, addr
}

func (w *factoryWalker) inject(call *ast.CallExpr, typeArgs []ast.Expr, sc *lexicalScope, fr *overrideFrame, isCtx func(string) bool, loc Location) {
	if len(call.Args) == 0 || len(call.Args) > 2 {
		w.fail(w.st.unsupported(call, "Inject takes an optional tag and a pointer to the target"))
		return
	}
	name, t, _ := w.target(call.Args[len(call.Args)-1], sc)
	if len(typeArgs) == 1 {
		var err error
		t, err = w.st.resolveType(typeArgs[0])
		if err != nil {
			w.fail(err)
			return
		}
	}
	if t == nil {
		w.fail(fatalf(w.st.p.Reporter, TypeCannotBeInferred, locs(loc),
			"cannot determine the type injected into %s", name))
		return
	}
	r := Resolver{Type: t, Target: name, Location: loc}
	if len(call.Args) == 2 {
		tag, err := w.st.parseTag(call.Args[0], 0, isCtx)
		if err != nil {
			w.fail(err)
			return
		}
		r.Tag = tag
	}
	w.position++
	r.Position = w.position
	r.Overrides = fr.take()
	w.f.Resolvers = append(w.f.Resolvers, r)
}

func (w *factoryWalker) buildUp(call *ast.CallExpr, sc *lexicalScope, fr *overrideFrame, loc Location) {
	if len(call.Args) != 1 {
		w.fail(w.st.unsupported(call, "BuildUp takes the instance to build up"))
		return
	}
	name, t, addr := w.target(call.Args[0], sc)
	if t == nil {
		w.fail(fatalf(w.st.p.Reporter, TypeCannotBeInferred, locs(loc),
			"cannot determine the type of %s", name))
		return
	}
	if addr {
		t = w.st.p.Types.PointerTo(t)
	}
	w.position++
	w.f.Initializers = append(w.f.Initializers, Initializer{
		Position:  w.position,
		Type:      t,
		Target:    name,
		Overrides: fr.take(),
		Location:  loc,
	})
}

func (w *factoryWalker) override(call *ast.CallExpr, typeArgs []ast.Expr, deep bool, sc *lexicalScope, fr *overrideFrame, isCtx func(string) bool, loc Location) {
	if len(call.Args) == 0 {
		w.fail(w.st.unsupported(call, "an override needs a value"))
		return
	}
	value := call.Args[0]
	var t *ntypes.Type
	if len(typeArgs) == 1 {
		var err error
		t, err = w.st.resolveType(typeArgs[0])
		if err != nil {
			w.fail(err)
			return
		}
	} else if id, ok := value.(*ast.Ident); ok {
		e, _ := sc.lookup(id.Name)
		t = e.typ
	} else {
		t = w.inferType(value)
	}
	if t == nil {
		w.fail(fatalf(w.st.p.Reporter, TypeCannotBeInferred, locs(loc),
			"cannot determine the type of override %s", types.ExprString(value)))
		return
	}
	tags, err := w.st.parseTags(call.Args[1:], isCtx)
	if err != nil {
		w.fail(err)
		return
	}
	fr.pending = append(fr.pending, Override{
		Type:     t,
		Tags:     tags,
		Deep:     deep,
		Value:    types.ExprString(value),
		Location: loc,
	})
}
