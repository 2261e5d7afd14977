/*
Package ntypes is the type oracle used by ncompose.

A Universe interns types so that structurally identical types are the
same pointer.  Declarations are loaded from Go syntax with a Loader or
declared directly.  Besides identity, a Universe answers the questions
that binding resolution needs: which interfaces a type declares that it
implements, which types it embeds, what its constructor (NewName) looks
like and which fields and methods carry a //di:bind directive.

Interface implementation is recorded with compile time assertions:

	var _ IOrderRepository = (*OrderManager)(nil)

or with a directive on the type:

	//di:implements IRepository[T]
	type Repository[T any] struct{}
*/
package ntypes
