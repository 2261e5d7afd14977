package ncompose

import (
	"go/ast"

	"github.com/muir/ncompose/ntypes"
)

// TypeService answers questions about types.  *ntypes.Universe is the
// implementation.
type TypeService interface {
	Resolve(scope *ntypes.Scope, expr ast.Expr) (*ntypes.Type, error)
	ParseType(scope *ntypes.Scope, text string) (*ntypes.Type, error)
	Lookup(pkg, name string) (*ntypes.Type, bool)
	Basic(name string) (*ntypes.Type, bool)
	Any() *ntypes.Type
	Error() *ntypes.Type
	Marker(name string) *ntypes.Type
	AnonymousMarker(i int) *ntypes.Type
	TypeParamOf(owner, name string) *ntypes.Type

	PointerTo(t *ntypes.Type) *ntypes.Type
	SliceOf(t *ntypes.Type) *ntypes.Type
	FuncOf(params, results []*ntypes.Type) *ntypes.Type
	Instantiate(generic *ntypes.Type, args []*ntypes.Type) (*ntypes.Type, error)
	Origin(t *ntypes.Type) *ntypes.Type
	Substitute(t *ntypes.Type, m map[*ntypes.Type]*ntypes.Type) *ntypes.Type

	DirectInterfaces(t *ntypes.Type) []*ntypes.Type
	BaseTypes(t *ntypes.Type) []*ntypes.Type
	Depth(t *ntypes.Type) int
	Implements(t, iface *ntypes.Type) bool
	IsSubtype(t, base *ntypes.Type) bool
	Constructor(t *ntypes.Type) (*ntypes.Func, bool)
	Fields(t *ntypes.Type) []*ntypes.Member
	Members(t *ntypes.Type) []*ntypes.Member
	AllTypes() []*ntypes.Type
}

var _ TypeService = (*ntypes.Universe)(nil)
