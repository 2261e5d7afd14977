package ntypes

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Scope is the naming context in which a type expression is resolved.
type Scope struct {
	// Package is the import path of the package the expression appears in.
	Package string
	// Imports maps the local import names of the file to import paths.
	Imports map[string]string
	// DotImports are the paths imported with "." as the name.
	DotImports []string
	// TypeParams are the type parameters in scope, by name.
	TypeParams map[string]*Type
}

// FileScope builds the scope of a file from its import declarations.  An
// import without an explicit name is known by the last element of its path
// with a leading "go-" and a trailing major version removed.
func FileScope(pkg string, file *ast.File) *Scope {
	s := &Scope{
		Package: pkg,
		Imports: make(map[string]string),
	}
	if file == nil {
		return s
	}
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		switch {
		case imp.Name == nil:
			s.Imports[DefaultImportName(path)] = path
		case imp.Name.Name == ".":
			s.DotImports = append(s.DotImports, path)
		case imp.Name.Name == "_":
		default:
			s.Imports[imp.Name.Name] = path
		}
	}
	return s
}

// DefaultImportName guesses the package name for an import path.
func DefaultImportName(path string) string {
	name := packageName(path)
	if len(name) > 1 && name[0] == 'v' && strings.Trim(name[1:], "0123456789") == "" {
		trimmed := strings.TrimSuffix(path, "/"+name)
		if trimmed != path {
			name = packageName(trimmed)
		}
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, ".go")
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "-", "_")
}

// WithTypeParams returns a copy of the scope with more type parameters.
func (s *Scope) WithTypeParams(tps map[string]*Type) *Scope {
	c := *s
	c.TypeParams = make(map[string]*Type, len(s.TypeParams)+len(tps))
	for k, v := range s.TypeParams {
		c.TypeParams[k] = v
	}
	for k, v := range tps {
		c.TypeParams[k] = v
	}
	return &c
}

// ImportsDI reports whether local refers to the configuration API
// package in this scope.
func (s *Scope) ImportsDI(local string) bool {
	return s.Imports[local] == DIPackage
}

// DotImportsDI reports if the configuration API was imported with ".".
func (s *Scope) DotImportsDI() bool {
	for _, p := range s.DotImports {
		if p == DIPackage {
			return true
		}
	}
	return false
}

// Resolve turns a type expression into a Type.  Types from packages that
// were never loaded become opaque declarations so that they can still be
// compared and bound.
func (u *Universe) Resolve(s *Scope, expr ast.Expr) (*Type, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return u.Resolve(s, e.X)
	case *ast.Ident:
		return u.resolveIdent(s, e.Name)
	case *ast.SelectorExpr:
		x, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, errors.Errorf("unsupported qualified type %T", e.X)
		}
		path, ok := s.Imports[x.Name]
		if !ok {
			return nil, errors.Errorf("%s is not an imported package", x.Name)
		}
		return u.resolveQualified(path, e.Sel.Name, 0)
	case *ast.StarExpr:
		t, err := u.Resolve(s, e.X)
		if err != nil {
			return nil, err
		}
		return u.PointerTo(t), nil
	case *ast.Ellipsis:
		t, err := u.Resolve(s, e.Elt)
		if err != nil {
			return nil, err
		}
		return u.SliceOf(t), nil
	case *ast.ArrayType:
		elem, err := u.Resolve(s, e.Elt)
		if err != nil {
			return nil, err
		}
		if e.Len == nil {
			return u.SliceOf(elem), nil
		}
		lit, ok := e.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return nil, errors.New("array length must be an integer literal")
		}
		n, err := strconv.Atoi(lit.Value)
		if err != nil {
			return nil, errors.Wrap(err, "array length")
		}
		return u.ArrayOf(n, elem), nil
	case *ast.MapType:
		k, err := u.Resolve(s, e.Key)
		if err != nil {
			return nil, err
		}
		v, err := u.Resolve(s, e.Value)
		if err != nil {
			return nil, err
		}
		return u.MapOf(k, v), nil
	case *ast.ChanType:
		t, err := u.Resolve(s, e.Value)
		if err != nil {
			return nil, err
		}
		return u.ChanOf(t), nil
	case *ast.FuncType:
		params, err := u.resolveFields(s, e.Params)
		if err != nil {
			return nil, err
		}
		results, err := u.resolveFields(s, e.Results)
		if err != nil {
			return nil, err
		}
		return u.FuncOf(params, results), nil
	case *ast.InterfaceType:
		if e.Methods == nil || len(e.Methods.List) == 0 {
			return u.Any(), nil
		}
		return nil, errors.New("anonymous interfaces are not supported")
	case *ast.IndexExpr:
		return u.resolveInstance(s, e.X, []ast.Expr{e.Index})
	case *ast.IndexListExpr:
		return u.resolveInstance(s, e.X, e.Indices)
	default:
		return nil, errors.Errorf("unsupported type expression %T", expr)
	}
}

func (u *Universe) resolveFields(s *Scope, fl *ast.FieldList) ([]*Type, error) {
	if fl == nil {
		return nil, nil
	}
	var out []*Type
	for _, f := range fl.List {
		t, err := u.Resolve(s, f.Type)
		if err != nil {
			return nil, err
		}
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, t)
		}
	}
	return out, nil
}

func (u *Universe) resolveIdent(s *Scope, name string) (*Type, error) {
	if tp, ok := s.TypeParams[name]; ok {
		return tp, nil
	}
	if t, ok := u.Basic(name); ok {
		return t, nil
	}
	if t, ok := u.Lookup(s.Package, name); ok {
		return t, nil
	}
	for _, path := range s.DotImports {
		if path == DIPackage && IsMarkerName(name) {
			return u.Marker(name), nil
		}
		if t, ok := u.Lookup(path, name); ok {
			return t, nil
		}
	}
	if t, ok := u.Lookup("", name); ok {
		return t, nil
	}
	return nil, errors.Errorf("undefined type %s", name)
}

func (u *Universe) resolveQualified(path, name string, numArgs int) (*Type, error) {
	if path == DIPackage {
		if IsMarkerName(name) {
			return u.Marker(name), nil
		}
		return nil, errors.Errorf("%s is not a generic marker", name)
	}
	if t, ok := u.Lookup(path, name); ok {
		return t, nil
	}
	return u.declareOpaque(path, name, numArgs), nil
}

func (u *Universe) resolveInstance(s *Scope, x ast.Expr, indices []ast.Expr) (*Type, error) {
	var generic *Type
	switch e := x.(type) {
	case *ast.Ident:
		t, err := u.resolveIdent(s, e.Name)
		if err != nil {
			return nil, err
		}
		generic = t
	case *ast.SelectorExpr:
		pkg, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, errors.Errorf("unsupported qualified type %T", e.X)
		}
		path, ok := s.Imports[pkg.Name]
		if !ok {
			return nil, errors.Errorf("%s is not an imported package", pkg.Name)
		}
		t, err := u.resolveQualified(path, e.Sel.Name, len(indices))
		if err != nil {
			return nil, err
		}
		generic = t
	default:
		return nil, errors.Errorf("unsupported generic type %T", x)
	}
	args := make([]*Type, len(indices))
	for i, ix := range indices {
		a, err := u.Resolve(s, ix)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return u.Instantiate(generic, args)
}

// ParseType resolves a type written as text, "[]*app.Service" for
// example, against the scope.
func (u *Universe) ParseType(s *Scope, text string) (*Type, error) {
	expr, err := parseExpr(text)
	if err != nil {
		return nil, errors.Wrapf(err, "parse type %q", text)
	}
	return u.Resolve(s, expr)
}
