package ntypes

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func parseExpr(text string) (ast.Expr, error) {
	return parser.ParseExpr(text)
}

// Loader fills a Universe from Go declarations.  Packages are added
// first and then completed together so that declarations may refer to
// types of any added package regardless of order.
type Loader struct {
	u     *Universe
	fset  *token.FileSet
	files []loaderFile
	done  bool
}

type loaderFile struct {
	pkg  string
	file *ast.File
}

// typeEntry is a type declaration being completed.
type typeEntry struct {
	decl  *Decl
	spec  *ast.TypeSpec
	doc   *ast.CommentGroup
	scope *Scope
}

func NewLoader(u *Universe, fset *token.FileSet) *Loader {
	return &Loader{u: u, fset: fset}
}

// Add registers the syntax of one package.
func (l *Loader) Add(pkgPath string, files ...*ast.File) {
	for _, f := range files {
		l.files = append(l.files, loaderFile{pkg: pkgPath, file: f})
	}
}

// Complete declares every type of the added packages and then fills in
// fields, methods, embedded types, asserted interfaces and constructors.
// Problems with individual declarations are collected; the declarations
// that could be completed remain usable.
func (l *Loader) Complete() error {
	if l.done {
		return errors.New("loader already completed")
	}
	l.done = true

	entries := make(map[string]*typeEntry)
	var order []*typeEntry
	for _, lf := range l.files {
		for _, d := range lf.file.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				decl := &Decl{
					Pkg:      lf.pkg,
					Name:     ts.Name.Name,
					Kind:     declKind(ts.Type),
					Location: l.location(ts.Pos()),
				}
				key := decl.Key()
				tps := make(map[string]*Type)
				if ts.TypeParams != nil {
					for _, f := range ts.TypeParams.List {
						for _, n := range f.Names {
							tp := l.u.TypeParamOf(key, n.Name)
							decl.TypeParams = append(decl.TypeParams, tp)
							tps[n.Name] = tp
						}
					}
				}
				if _, err := l.u.Declare(decl); err != nil {
					return errors.Wrapf(err, "declare %s", key)
				}
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				e := &typeEntry{
					decl:  decl,
					spec:  ts,
					doc:   doc,
					scope: FileScope(lf.pkg, lf.file).WithTypeParams(tps),
				}
				entries[key] = e
				order = append(order, e)
			}
		}
	}

	var problems []string
	note := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}
	for _, e := range order {
		note(l.completeType(e))
	}
	for _, lf := range l.files {
		scope := FileScope(lf.pkg, lf.file)
		for _, d := range lf.file.Decls {
			switch d := d.(type) {
			case *ast.FuncDecl:
				note(l.completeFunc(scope, entries, d))
			case *ast.GenDecl:
				if d.Tok == token.VAR {
					note(l.completeAssertions(scope, entries, d))
				}
			}
		}
	}
	if len(problems) > 0 {
		return errors.Errorf("incomplete declarations: %s", strings.Join(problems, "; "))
	}
	return nil
}

func declKind(expr ast.Expr) DeclKind {
	switch expr.(type) {
	case *ast.StructType:
		return StructDecl
	case *ast.InterfaceType:
		return InterfaceDecl
	default:
		return OtherDecl
	}
}

func (l *Loader) location(pos token.Pos) Location {
	if l.fset == nil || !pos.IsValid() {
		return Location{}
	}
	p := l.fset.Position(pos)
	return Location{File: p.Filename, Line: p.Line, Column: p.Column, Offset: p.Offset}
}

func (l *Loader) completeType(e *typeEntry) error {
	d := e.decl
	for _, dir := range directives(e.doc) {
		if dir.name != "implements" {
			continue
		}
		for _, text := range dir.args {
			iface, err := l.u.ParseType(e.scope, text)
			if err != nil {
				return errors.Wrapf(err, "%s: di:implements", d.Key())
			}
			d.Implements = appendUnique(d.Implements, iface)
		}
	}
	switch st := e.spec.Type.(type) {
	case *ast.StructType:
		for _, f := range st.Fields.List {
			t, err := l.u.Resolve(e.scope, f.Type)
			if err != nil {
				return errors.Wrapf(err, "%s: field", d.Key())
			}
			var tag string
			if f.Tag != nil {
				tag, _ = strconv.Unquote(f.Tag.Value)
			}
			if len(f.Names) == 0 {
				d.Embeds = appendUnique(d.Embeds, t.Deref())
				continue
			}
			bind := bindDirective(f.Doc)
			for _, n := range f.Names {
				d.Fields = append(d.Fields, &Member{
					Name:      n.Name,
					Kind:      FieldMember,
					Type:      t,
					StructTag: tag,
					Bind:      bind,
					Location:  l.location(n.Pos()),
				})
			}
		}
	case *ast.InterfaceType:
		for _, m := range st.Methods.List {
			if len(m.Names) == 0 {
				t, err := l.u.Resolve(e.scope, m.Type)
				if err != nil {
					return errors.Wrapf(err, "%s: embedded interface", d.Key())
				}
				d.Embeds = appendUnique(d.Embeds, t)
				continue
			}
			for _, n := range m.Names {
				d.Methods = append(d.Methods, n.Name)
			}
		}
	}
	return nil
}

func appendUnique(list []*Type, t *Type) []*Type {
	for _, x := range list {
		if x == t {
			return list
		}
	}
	return append(list, t)
}

// receiverEntry finds the declaration a method belongs to and maps the
// receiver's type parameter names onto the declaration's parameters.
func receiverEntry(entries map[string]*typeEntry, pkg string, recv ast.Expr) (*typeEntry, bool, map[string]*Type) {
	pointer := false
	if star, ok := recv.(*ast.StarExpr); ok {
		pointer = true
		recv = star.X
	}
	var names []ast.Expr
	switch r := recv.(type) {
	case *ast.IndexExpr:
		names = []ast.Expr{r.Index}
		recv = r.X
	case *ast.IndexListExpr:
		names = r.Indices
		recv = r.X
	}
	id, ok := recv.(*ast.Ident)
	if !ok {
		return nil, false, nil
	}
	e, ok := entries[pkg+"."+id.Name]
	if !ok {
		return nil, false, nil
	}
	tps := make(map[string]*Type)
	for i, n := range names {
		if ident, ok := n.(*ast.Ident); ok && i < len(e.decl.TypeParams) {
			tps[ident.Name] = e.decl.TypeParams[i]
		}
	}
	return e, pointer, tps
}

func (l *Loader) completeFunc(scope *Scope, entries map[string]*typeEntry, fd *ast.FuncDecl) error {
	if fd.Recv != nil && len(fd.Recv.List) == 1 {
		e, pointer, tps := receiverEntry(entries, scope.Package, fd.Recv.List[0].Type)
		if e == nil {
			return nil
		}
		e.decl.Methods = append(e.decl.Methods, fd.Name.Name)
		if e.decl.Kind == InterfaceDecl {
			return nil
		}
		fn, err := l.signature(scope.WithTypeParams(tps), fd)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", e.decl.Key(), fd.Name.Name)
		}
		if fn.Result == nil {
			return nil
		}
		e.decl.Members = append(e.decl.Members, &Member{
			Name:            fd.Name.Name,
			Kind:            MethodMember,
			Type:            fn.Result,
			Params:          fn.Params,
			PointerReceiver: pointer,
			Bind:            bindDirective(fd.Doc),
			Location:        fn.Location,
		})
		return nil
	}

	bind := bindDirective(fd.Doc)
	owner := ""
	if bind != nil {
		owner = bind.Owner
	}
	isConstructor := strings.HasPrefix(fd.Name.Name, "New") && len(fd.Name.Name) > 3
	if !isConstructor && owner == "" {
		return nil
	}
	funcTPs := make(map[string]*Type)
	var funcTPList []*Type
	if fd.Type.TypeParams != nil {
		for _, f := range fd.Type.TypeParams.List {
			for _, n := range f.Names {
				tp := l.u.TypeParamOf(scope.Package+"."+fd.Name.Name, n.Name)
				funcTPs[n.Name] = tp
				funcTPList = append(funcTPList, tp)
			}
		}
	}
	fn, err := l.signature(scope.WithTypeParams(funcTPs), fd)
	if err != nil {
		return errors.Wrapf(err, "func %s", fd.Name.Name)
	}
	if fn.Result == nil {
		return nil
	}

	if owner != "" {
		e, ok := entries[scope.Package+"."+owner]
		if !ok {
			return errors.Errorf("func %s: di:bind owner %s is not declared", fd.Name.Name, owner)
		}
		if len(funcTPList) > 0 {
			return errors.Errorf("func %s: generic static members are not supported", fd.Name.Name)
		}
		e.decl.Members = append(e.decl.Members, &Member{
			Name:     fd.Name.Name,
			Kind:     MethodMember,
			Type:     fn.Result,
			Params:   fn.Params,
			Static:   true,
			Bind:     bind,
			Location: fn.Location,
		})
		return nil
	}

	e, ok := entries[scope.Package+"."+fd.Name.Name[3:]]
	if !ok || e.decl.Kind == InterfaceDecl {
		return nil
	}
	result := fn.Result.Deref()
	if result.Kind() != Named || result.Decl() != e.decl {
		return nil
	}
	// Express the constructor in the declaration's own type parameters.
	m := make(map[*Type]*Type)
	for i, a := range result.Args() {
		if a.IsTypeParam() && i < len(e.decl.TypeParams) {
			m[a] = e.decl.TypeParams[i]
		}
	}
	if len(m) != len(funcTPList) {
		return nil
	}
	fn.Result = l.u.Substitute(fn.Result, m)
	fn.Params = l.u.substituteParams(fn.Params, m)
	e.decl.Constructor = fn
	return nil
}

func (l *Loader) signature(scope *Scope, fd *ast.FuncDecl) (*Func, error) {
	fn := &Func{
		Pkg:      scope.Package,
		Name:     fd.Name.Name,
		Location: l.location(fd.Pos()),
	}
	tags := tagDirectives(fd.Doc)
	if fd.Type.Params != nil {
		for i, f := range fd.Type.Params.List {
			t, err := l.u.Resolve(scope, f.Type)
			if err != nil {
				return nil, err
			}
			if len(f.Names) == 0 {
				fn.Params = append(fn.Params, Param{Name: "p" + strconv.Itoa(i), Type: t})
				continue
			}
			for _, n := range f.Names {
				p := Param{Name: n.Name, Type: t}
				if tag, ok := tags[n.Name]; ok {
					p.Tag, p.HasTag = tag, true
				}
				fn.Params = append(fn.Params, p)
			}
		}
	}
	if fd.Type.Results != nil {
		results, err := l.u.resolveFields(scope, fd.Type.Results)
		if err != nil {
			return nil, err
		}
		switch {
		case len(results) == 1 && results[0] != l.u.Error():
			fn.Result = results[0]
		case len(results) == 2 && results[1] == l.u.Error():
			fn.Result = results[0]
			fn.ReturnsError = true
		}
	}
	return fn, nil
}

// completeAssertions records "var _ I = (*T)(nil)" and its variants as
// T implementing I.  An assertion about an instantiation of a generic
// type, "var _ I[int] = (*T[int])(nil)", is generalized to the
// declaration when the type arguments are distinct.
func (l *Loader) completeAssertions(scope *Scope, entries map[string]*typeEntry, gd *ast.GenDecl) error {
	for _, spec := range gd.Specs {
		vs := spec.(*ast.ValueSpec)
		if vs.Type == nil || len(vs.Names) != 1 || vs.Names[0].Name != "_" || len(vs.Values) != 1 {
			continue
		}
		implExpr := assertedType(vs.Values[0])
		if implExpr == nil {
			continue
		}
		iface, err := l.u.Resolve(scope, vs.Type)
		if err != nil {
			return errors.Wrap(err, "interface assertion")
		}
		impl, err := l.u.Resolve(scope, implExpr)
		if err != nil {
			return errors.Wrap(err, "interface assertion")
		}
		impl = impl.Deref()
		if impl.Kind() != Named || impl.Decl() == nil {
			continue
		}
		e, ok := entries[impl.Decl().Key()]
		if !ok {
			continue
		}
		if len(impl.Args()) > 0 {
			m := make(map[*Type]*Type)
			for i, a := range impl.Args() {
				if _, dup := m[a]; dup || i >= len(e.decl.TypeParams) {
					m = nil
					break
				}
				m[a] = e.decl.TypeParams[i]
			}
			if m == nil {
				continue
			}
			iface = l.u.Substitute(iface, m)
		}
		if iface.IsInterface() {
			e.decl.Implements = appendUnique(e.decl.Implements, iface)
		}
	}
	return nil
}

// assertedType extracts T from (*T)(nil), T{}, &T{} and new(T).
func assertedType(v ast.Expr) ast.Expr {
	switch e := v.(type) {
	case *ast.CallExpr:
		if id, ok := e.Fun.(*ast.Ident); ok && id.Name == "new" && len(e.Args) == 1 {
			return e.Args[0]
		}
		if p, ok := e.Fun.(*ast.ParenExpr); ok {
			if star, ok := p.X.(*ast.StarExpr); ok {
				return star.X
			}
		}
	case *ast.CompositeLit:
		return e.Type
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			if cl, ok := e.X.(*ast.CompositeLit); ok {
				return cl.Type
			}
		}
	}
	return nil
}
