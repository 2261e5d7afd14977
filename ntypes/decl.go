package ntypes

import (
	"fmt"
)

// Location is a position in source.  The zero Location means "unknown".
type Location struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (l Location) IsValid() bool { return l.File != "" || l.Line > 0 }

func (l Location) String() string {
	if !l.IsValid() {
		return "-"
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

type DeclKind uint8

const (
	StructDecl DeclKind = iota
	InterfaceDecl
	// OtherDecl covers named basic, func, slice and map types as well
	// as types from packages that were not loaded.
	OtherDecl
)

// Decl describes a named type declaration.  Types inside a Decl are
// expressed in terms of the declaration's own TypeParams.
type Decl struct {
	Pkg        string
	Name       string
	Kind       DeclKind
	TypeParams []*Type

	// Embeds are embedded struct types (for structs) or embedded
	// interfaces (for interfaces).  Embedded structs are the base types.
	Embeds []*Type

	// Implements lists the interfaces that the type declares it
	// implements directly, usually with "var _ I = (*T)(nil)".
	Implements []*Type

	// Methods are the method names: required methods for interfaces,
	// defined methods (value and pointer receivers) for other types.
	Methods []string

	Fields  []*Member
	Members []*Member

	// Constructor is the NewName function, if one exists.
	Constructor *Func

	// Opaque is set for types that were referenced but never declared
	// in a loaded package.
	Opaque bool

	Location Location
}

func (d *Decl) Key() string { return d.Pkg + "." + d.Name }

type MemberKind uint8

const (
	FieldMember MemberKind = iota
	MethodMember
)

// Member is a field or a method.
type Member struct {
	Name string
	Kind MemberKind
	// Type is the field type or the first result of a method.
	Type   *Type
	Params []Param
	// Static members do not need an instance of the owner.
	Static bool
	// PointerReceiver is set for methods declared on *T.
	PointerReceiver bool
	// StructTag is the raw struct tag of a field, without quotes.
	StructTag string
	// Bind is set when the member is marked with //di:bind.
	Bind     *BindInfo
	Location Location
}

// BindInfo holds the arguments of a //di:bind directive.
type BindInfo struct {
	Tag      string
	HasTag   bool
	Lifetime string
	// Owner names the type a package level function is a static
	// member of.
	Owner string
}

// Func is a function signature with enough detail to call it.
type Func struct {
	Pkg          string
	Name         string
	Params       []Param
	Result       *Type
	ReturnsError bool
	Location     Location
}

// Param is a function or method parameter.  Tag is set from a
// "//di:tag name=value" directive on the function.
type Param struct {
	Name   string
	Type   *Type
	Tag    string
	HasTag bool
}
