package ncompose

import (
	"go/ast"
	"go/token"
)

// invocation is one call of a configuration chain.
type invocation struct {
	name     string
	typeArgs []ast.Expr
	args     []ast.Expr
	call     *ast.CallExpr
	pos      token.Pos
}

// decomposeChain splits x.A().B[T]().C(y) into its calls, innermost
// first.  The root is the first call; ok is false when the expression is
// not a chain of method calls ending in a call.
func decomposeChain(call *ast.CallExpr) (chain []invocation, root *ast.CallExpr, ok bool) {
	var rev []invocation
	cur := call
	for {
		fun := cur.Fun
		var typeArgs []ast.Expr
		switch f := fun.(type) {
		case *ast.IndexExpr:
			typeArgs = []ast.Expr{f.Index}
			fun = f.X
		case *ast.IndexListExpr:
			typeArgs = f.Indices
			fun = f.X
		}
		sel, isSel := fun.(*ast.SelectorExpr)
		if !isSel {
			if id, isIdent := fun.(*ast.Ident); isIdent {
				rev = append(rev, invocation{name: id.Name, typeArgs: typeArgs, args: cur.Args, call: cur, pos: id.Pos()})
				return reverse(rev), cur, true
			}
			return nil, nil, false
		}
		inv := invocation{name: sel.Sel.Name, typeArgs: typeArgs, args: cur.Args, call: cur, pos: sel.Sel.Pos()}
		rev = append(rev, inv)
		next, isCall := sel.X.(*ast.CallExpr)
		if !isCall {
			// qualified root call: di.Setup(...)
			return reverse(rev), cur, true
		}
		cur = next
	}
}

func reverse(in []invocation) []invocation {
	out := make([]invocation, len(in))
	for i, x := range in {
		out[len(in)-1-i] = x
	}
	return out
}
