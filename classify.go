package ncompose

import (
	"go/ast"
	"go/types"
	"strconv"

	"github.com/muir/ncompose/ntypes"
)

const setupName = "Setup"

// IsSetupCall reports whether call is di.Setup(...) for the configuration
// API package, however that package was imported.  Type information is
// used when info has an answer for the qualifier; otherwise the file's
// imports decide.  Anything ambiguous is not a setup call.
func IsSetupCall(call *ast.CallExpr, file *ast.File, info *types.Info) bool {
	if call == nil {
		return false
	}
	switch fun := call.Fun.(type) {
	case *ast.SelectorExpr:
		if fun.Sel.Name != setupName {
			return false
		}
		x, ok := fun.X.(*ast.Ident)
		if !ok {
			return false
		}
		if info != nil {
			if obj, ok := info.Uses[x]; ok && obj != nil {
				pn, ok := obj.(*types.PkgName)
				return ok && pn.Imported().Path() == ntypes.DIPackage
			}
		}
		//nolint:staticcheck // syntactic fallback when there is no type information
		if x.Obj != nil {
			// a local variable or parameter shadows the import
			return false
		}
		return importPath(file, x.Name) == ntypes.DIPackage
	case *ast.Ident:
		if fun.Name != setupName {
			return false
		}
		if info != nil {
			if obj, ok := info.Uses[fun]; ok && obj != nil {
				return obj.Pkg() != nil && obj.Pkg().Path() == ntypes.DIPackage
			}
		}
		//nolint:staticcheck // syntactic fallback when there is no type information
		if fun.Obj != nil {
			return false
		}
		return dotImports(file, ntypes.DIPackage)
	default:
		return false
	}
}

// importPath returns the path imported under the local name, or "" when
// no import or more than one import uses that name.
func importPath(file *ast.File, local string) string {
	if file == nil {
		return ""
	}
	found := ""
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := ntypes.DefaultImportName(path)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if name != local {
			continue
		}
		if found != "" {
			return ""
		}
		found = path
	}
	return found
}

func dotImports(file *ast.File, path string) bool {
	if file == nil {
		return false
	}
	for _, imp := range file.Imports {
		if imp.Name == nil || imp.Name.Name != "." {
			continue
		}
		if p, err := strconv.Unquote(imp.Path.Value); err == nil && p == path {
			return true
		}
	}
	return false
}
