package ncompose

import (
	"github.com/muir/ncompose/ntypes"
)

// unify matches pattern against concrete.  Parts of pattern for which
// isVar is true are variables: each binds to the part of concrete in the
// same place, and every occurrence of a variable must bind to the same
// type.  Bindings are added to m.
func unify(pattern, concrete *ntypes.Type, isVar func(*ntypes.Type) bool, m map[*ntypes.Type]*ntypes.Type) bool {
	if pattern == nil || concrete == nil {
		return pattern == concrete
	}
	if isVar(pattern) {
		if bound, ok := m[pattern]; ok {
			return bound == concrete
		}
		m[pattern] = concrete
		return true
	}
	if pattern == concrete {
		return true
	}
	if pattern.Kind() != concrete.Kind() {
		return false
	}
	switch pattern.Kind() {
	case ntypes.Pointer, ntypes.Slice, ntypes.Chan:
		return unify(pattern.Elem(), concrete.Elem(), isVar, m)
	case ntypes.Array:
		return pattern.Len() == concrete.Len() && unify(pattern.Elem(), concrete.Elem(), isVar, m)
	case ntypes.Map:
		return unify(pattern.Key(), concrete.Key(), isVar, m) && unify(pattern.Elem(), concrete.Elem(), isVar, m)
	case ntypes.FuncKind:
		return unifyAll(pattern.Args(), concrete.Args(), isVar, m) &&
			unifyAll(pattern.Results(), concrete.Results(), isVar, m)
	case ntypes.Named:
		if pattern.Pkg() != concrete.Pkg() || pattern.Name() != concrete.Name() {
			return false
		}
		return unifyAll(pattern.Args(), concrete.Args(), isVar, m)
	default:
		return false
	}
}

func unifyAll(patterns, concretes []*ntypes.Type, isVar func(*ntypes.Type) bool, m map[*ntypes.Type]*ntypes.Type) bool {
	if len(patterns) != len(concretes) {
		return false
	}
	for i := range patterns {
		if !unify(patterns[i], concretes[i], isVar, m) {
			return false
		}
	}
	return true
}

// markerVars returns the variable test used to unify binding contracts:
// the TT markers and any type declared with GenericTypeArgument.
func markerVars(genericArgs []*ntypes.Type) func(*ntypes.Type) bool {
	return func(t *ntypes.Type) bool {
		if t.IsMarker() {
			return true
		}
		for _, g := range genericArgs {
			if g == t {
				return true
			}
		}
		return false
	}
}

// typeParamVars makes the type parameters of a declaration the variables.
func typeParamVars(d *ntypes.Decl) func(*ntypes.Type) bool {
	return func(t *ntypes.Type) bool {
		if !t.IsTypeParam() || d == nil {
			return false
		}
		for _, tp := range d.TypeParams {
			if tp == t {
				return true
			}
		}
		return false
	}
}

// isGenericPattern reports whether t has anything for vars to bind.
func isGenericPattern(t *ntypes.Type, isVar func(*ntypes.Type) bool) bool {
	return t.Contains(isVar)
}
