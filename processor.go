package ncompose

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

// Processor turns configuration chains into metadata records.
type Processor struct {
	Types    TypeService
	Fset     *token.FileSet
	Info     *types.Info
	Reporter Reporter
}

// ProcessFile finds every di.Setup(...) chain in file and sends its
// records to v.  A fatal problem abandons the chain it was found in;
// other chains are still processed.  The returned error wraps ErrHandled
// when any chain was abandoned.
func (p *Processor) ProcessFile(pkg string, file *ast.File, src []byte, v MetadataVisitor) error {
	var firstErr error
	var stack []ast.Node
	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		call, ok := n.(*ast.CallExpr)
		if ok {
			chain, root, ok := decomposeChain(call)
			if ok && IsSetupCall(root, file, p.Info) {
				st := p.newChainState(pkg, file, src, v, stack)
				if err := st.process(chain); err != nil {
					v.VisitAbort()
					if firstErr == nil {
						firstErr = err
					}
				}
				return false
			}
		}
		stack = append(stack, n)
		return true
	})
	v.VisitFinish()
	return firstErr
}

type chainState struct {
	p        *Processor
	v        MetadataVisitor
	file     *ast.File
	src      []byte
	pkg      string
	scope    *ntypes.Scope
	receiver string
	stmtLine int

	setupName string
	// pending is set by Bind() without type arguments; the contracts are
	// computed when the implementation is known.
	pending      *pendingBind
	specialTypes []*ntypes.Type
}

type pendingBind struct {
	tags     []Tag
	location Location
}

func (p *Processor) newChainState(pkg string, file *ast.File, src []byte, v MetadataVisitor, stack []ast.Node) *chainState {
	st := &chainState{
		p:     p,
		v:     v,
		file:  file,
		src:   src,
		pkg:   pkg,
		scope: ntypes.FileScope(pkg, file),
	}
	for i := len(stack) - 1; i >= 0; i-- {
		switch n := stack[i].(type) {
		case ast.Stmt:
			if st.stmtLine == 0 {
				st.stmtLine = p.line(n.Pos())
			}
		case *ast.GenDecl:
			if st.stmtLine == 0 {
				st.stmtLine = p.line(n.Pos())
			}
		case *ast.FuncDecl:
			if n.Recv != nil && len(n.Recv.List) == 1 && len(n.Recv.List[0].Names) == 1 {
				st.receiver = n.Recv.List[0].Names[0].Name
			}
			if n.Type.TypeParams != nil {
				st.scope = st.scope.WithTypeParams(p.funcTypeParams(pkg, n))
			}
		}
	}
	return st
}

func (p *Processor) funcTypeParams(pkg string, fd *ast.FuncDecl) map[string]*ntypes.Type {
	tps := make(map[string]*ntypes.Type)
	for _, f := range fd.Type.TypeParams.List {
		for _, n := range f.Names {
			tps[n.Name] = p.Types.TypeParamOf(pkg+"."+fd.Name.Name, n.Name)
		}
	}
	return tps
}

func (p *Processor) line(pos token.Pos) int {
	if p.Fset == nil || !pos.IsValid() {
		return 0
	}
	return p.Fset.Position(pos).Line
}

func (p *Processor) location(pos token.Pos) Location {
	if p.Fset == nil || !pos.IsValid() {
		return Location{}
	}
	pp := p.Fset.Position(pos)
	return Location{File: pp.Filename, Line: pp.Line, Column: pp.Column, Offset: pp.Offset}
}

func (st *chainState) location(pos token.Pos) Location { return st.p.location(pos) }

func (st *chainState) process(chain []invocation) error {
	for i, inv := range chain {
		if err := st.dispatch(inv, i == 0); err != nil {
			return err
		}
	}
	if st.pending != nil {
		return fatalf(st.p.Reporter, NoConstructionMechanism, locs(st.pending.location),
			"Bind() in setup %s is not followed by To", st.setupName)
	}
	return nil
}

// source returns the source text of a node when the file text is known.
func (st *chainState) source(n ast.Node) string {
	if st.src == nil || st.p.Fset == nil {
		return ""
	}
	tf := st.p.Fset.File(n.Pos())
	if tf == nil {
		return ""
	}
	start, end := tf.Offset(n.Pos()), tf.Offset(n.End())
	if start < 0 || end > len(st.src) || start > end {
		return ""
	}
	return string(st.src[start:end])
}

func (st *chainState) resolveType(e ast.Expr) (*ntypes.Type, error) {
	t, err := st.p.Types.Resolve(st.scope, e)
	if err != nil {
		return nil, fatalf(st.p.Reporter, TypeCannotBeInferred, locs(st.location(e.Pos())),
			"cannot determine type %s: %s", types.ExprString(e), err)
	}
	return t, nil
}

func (st *chainState) resolveTypes(es []ast.Expr) ([]*ntypes.Type, error) {
	out := make([]*ntypes.Type, len(es))
	for i, e := range es {
		t, err := st.resolveType(e)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// diName returns X for di.X (any import name for the configuration API)
// and for X when the API is dot-imported.
func (st *chainState) diName(e ast.Expr) (string, bool) {
	switch x := e.(type) {
	case *ast.SelectorExpr:
		id, ok := x.X.(*ast.Ident)
		if ok && st.scope.ImportsDI(id.Name) {
			return x.Sel.Name, true
		}
	case *ast.Ident:
		if st.scope.DotImportsDI() {
			return x.Name, true
		}
	}
	return "", false
}

func stringLit(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return s, true
}

func (st *chainState) unsupported(e ast.Node, format string, args ...any) error {
	return fatalf(st.p.Reporter, NotSupportedSyntax, locs(st.location(e.Pos())), format, args...)
}

func (st *chainState) parseLifetime(e ast.Expr) (Lifetime, error) {
	if name, ok := st.diName(e); ok {
		if l, ok := ParseLifetime(name); ok {
			return l, nil
		}
	}
	if s, ok := stringLit(e); ok {
		if l, ok := ParseLifetime(s); ok {
			return l, nil
		}
	}
	return UnsetLifetime, st.unsupported(e, "%s is not a lifetime", types.ExprString(e))
}

func (st *chainState) parseLifetimes(es []ast.Expr) ([]Lifetime, error) {
	var out []Lifetime
	for _, e := range es {
		l, err := st.parseLifetime(e)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

var rootKindNames = map[string]RootKind{
	"RootPublic":   RootPublic,
	"RootInternal": RootInternal,
	"RootStatic":   RootStatic,
	"RootExposed":  RootExposed,
}

func (st *chainState) parseRootKind(e ast.Expr) (RootKind, error) {
	if b, ok := e.(*ast.BinaryExpr); ok && b.Op == token.OR {
		x, err := st.parseRootKind(b.X)
		if err != nil {
			return 0, err
		}
		y, err := st.parseRootKind(b.Y)
		if err != nil {
			return 0, err
		}
		return x | y, nil
	}
	if p, ok := e.(*ast.ParenExpr); ok {
		return st.parseRootKind(p.X)
	}
	if name, ok := st.diName(e); ok {
		if k, ok := rootKindNames[name]; ok {
			return k, nil
		}
	}
	return 0, st.unsupported(e, "%s is not a root kind", types.ExprString(e))
}

func (st *chainState) parseSetupKind(e ast.Expr) (SetupKind, error) {
	if name, ok := st.diName(e); ok {
		switch name {
		case "Public":
			return PublicSetup, nil
		case "Internal":
			return InternalSetup, nil
		case "Global":
			return GlobalSetup, nil
		}
	}
	return PublicSetup, st.unsupported(e, "%s is not a setup kind", types.ExprString(e))
}

// parseTag interprets a tag argument.  isContext reports whether an
// identifier names the active di.Context so that ctx.Tag can be
// recognized inside factories.
func (st *chainState) parseTag(e ast.Expr, position int, isContext func(string) bool) (Tag, error) {
	tag, err := st.parseTagValue(e, isContext)
	tag.Position = position
	return tag, err
}

func (st *chainState) parseTagValue(e ast.Expr, isContext func(string) bool) (Tag, error) {
	if name, ok := st.diName(e); ok {
		switch name {
		case "ContextTag":
			return ContextTag, nil
		case "UniqueTag":
			return UniqueTag(), nil
		case "TypeTag":
			return Tag{Kind: TagImplementation}, nil
		}
	}
	switch x := e.(type) {
	case *ast.ParenExpr:
		return st.parseTagValue(x.X, isContext)
	case *ast.BasicLit:
		return Tag{Kind: TagLiteral, Value: x.Value}, nil
	case *ast.UnaryExpr:
		if lit, ok := x.X.(*ast.BasicLit); ok && (x.Op == token.SUB || x.Op == token.ADD) {
			return Tag{Kind: TagLiteral, Value: x.Op.String() + lit.Value}, nil
		}
	case *ast.Ident:
		switch x.Name {
		case "nil":
			return NoTag, nil
		case "true", "false":
			return Tag{Kind: TagLiteral, Value: x.Name}, nil
		}
		return Tag{Kind: TagEnum, Value: st.pkg + "." + x.Name}, nil
	case *ast.SelectorExpr:
		id, ok := x.X.(*ast.Ident)
		if !ok {
			break
		}
		if isContext != nil && isContext(id.Name) && x.Sel.Name == "Tag" {
			return ContextTag, nil
		}
		if path, ok := st.scope.Imports[id.Name]; ok && path != ntypes.DIPackage {
			return Tag{Kind: TagEnum, Value: path + "." + x.Sel.Name}, nil
		}
	case *ast.CallExpr:
		if ix, ok := x.Fun.(*ast.IndexExpr); ok && len(x.Args) == 0 {
			if name, ok := st.diName(ix.X); ok && name == "TagOf" {
				t, err := st.resolveType(ix.Index)
				if err != nil {
					return NoTag, err
				}
				return TypeTag(t), nil
			}
		}
	}
	return NoTag, st.unsupported(e, "%s cannot be used as a tag", types.ExprString(e))
}

func (st *chainState) parseTags(es []ast.Expr, isContext func(string) bool) ([]Tag, error) {
	var tags []Tag
	for i, e := range es {
		t, err := st.parseTag(e, i, isContext)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// nameTemplate replaces {type} with the short name of t.
func nameTemplate(template string, t *ntypes.Type) string {
	return strings.ReplaceAll(template, "{type}", t.ShortName())
}

func (st *chainState) requireString(e ast.Expr, what string) (string, error) {
	s, ok := stringLit(e)
	if !ok {
		return "", st.unsupported(e, "%s must be a string literal", what)
	}
	return s, nil
}
