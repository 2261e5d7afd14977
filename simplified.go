package ncompose

import (
	"github.com/muir/ncompose/ntypes"
)

// deniedContracts are never inferred as contracts by Bind().To[T]()
// unless the setup declares them with SpecialType[T]().  Generic entries
// match every instantiation.
var deniedContracts = [][2]string{
	{"", "any"},
	{"", "error"},
	{"fmt", "Stringer"},
	{"io", "Closer"},
	{"iter", "Seq"},
	{"iter", "Seq2"},
	{"context", "Context"},
}

func denied(t *ntypes.Type) bool {
	if t == nil || t.Kind() != ntypes.Named {
		return false
	}
	for _, d := range deniedContracts {
		if t.Pkg() == d[0] && t.Name() == d[1] {
			return true
		}
	}
	return false
}

// simplifiedContracts are the contracts of a binding that only names its
// implementation: the type itself and the interfaces it directly
// implements.  Interfaces that come only through embedded types are not
// included.
func simplifiedContracts(ts TypeService, t *ntypes.Type, special []*ntypes.Type) []*ntypes.Type {
	isSpecial := func(x *ntypes.Type) bool {
		for _, s := range special {
			if s == x || (s.IsGeneric() && ts.Origin(x) == s) {
				return true
			}
		}
		return false
	}
	out := []*ntypes.Type{t}
	seen := map[*ntypes.Type]bool{t: true}
	for _, iface := range ts.DirectInterfaces(t) {
		if seen[iface] {
			continue
		}
		seen[iface] = true
		if denied(iface) && !isSpecial(iface) {
			debugf("simplified binding of %s skips %s", t, iface)
			continue
		}
		out = append(out, iface)
	}
	return out
}
