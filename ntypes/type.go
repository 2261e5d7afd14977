package ntypes

import (
	"strconv"
	"strings"
)

// DIPackage is the import path of the configuration API.  Generic markers
// (TT, TT1, ...) live in this package.
const DIPackage = "github.com/muir/ncompose/di"

// Kind classifies a Type.
type Kind uint8

const (
	Invalid Kind = iota
	Basic
	Named
	Pointer
	Slice
	Array
	Map
	FuncKind
	Chan
	TypeParam
	Marker
)

var kindNames = [...]string{
	Invalid:   "invalid",
	Basic:     "basic",
	Named:     "named",
	Pointer:   "pointer",
	Slice:     "slice",
	Array:     "array",
	Map:       "map",
	FuncKind:  "func",
	Chan:      "chan",
	TypeParam: "type-param",
	Marker:    "marker",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Type is a canonical type identity.  Types are interned by a Universe:
// two structurally identical types from the same Universe are the same
// pointer, so == is structural equality.
type Type struct {
	kind    Kind
	pkg     string
	name    string
	elem    *Type
	key     *Type
	length  int
	args    []*Type
	results []*Type
	decl    *Decl
	id      typeCode
	canon   string
}

func (t *Type) Kind() Kind { return t.kind }

// Pkg is the package path for named types and markers.  For type
// parameters it is the key of the owning declaration.
func (t *Type) Pkg() string { return t.pkg }

// Name is the unqualified name of named, basic, marker and type-parameter
// types.
func (t *Type) Name() string { return t.name }

// Elem is the element type of pointers, slices, arrays, maps and channels.
func (t *Type) Elem() *Type { return t.elem }

// Key is the key type of a map.
func (t *Type) Key() *Type { return t.key }

// Len is the length of an array.
func (t *Type) Len() int { return t.length }

// Args returns the type arguments of an instantiated named type or
// the parameters of a func type.
func (t *Type) Args() []*Type { return t.args }

// Results returns the results of a func type.
func (t *Type) Results() []*Type { return t.results }

// Decl returns the declaration of a named type, nil for other kinds.
func (t *Type) Decl() *Decl { return t.decl }

// Canonical returns the fully qualified identity string of the type.
func (t *Type) Canonical() string { return t.canon }

func (t *Type) IsMarker() bool { return t != nil && t.kind == Marker }

func (t *Type) IsTypeParam() bool { return t != nil && t.kind == TypeParam }

// IsInterface is true for named interface types.
func (t *Type) IsInterface() bool {
	return t != nil && t.kind == Named && t.decl != nil && t.decl.Kind == InterfaceDecl
}

// IsGeneric reports if the type is a generic declaration that has not
// been instantiated.
func (t *Type) IsGeneric() bool {
	return t != nil && t.kind == Named && t.decl != nil && len(t.decl.TypeParams) > 0 && len(t.args) == 0
}

// Deref strips a single level of pointer.
func (t *Type) Deref() *Type {
	if t != nil && t.kind == Pointer {
		return t.elem
	}
	return t
}

// Contains reports if any part of the type satisfies test.
func (t *Type) Contains(test func(*Type) bool) bool {
	if t == nil {
		return false
	}
	if test(t) {
		return true
	}
	if t.elem != nil && t.elem.Contains(test) {
		return true
	}
	if t.key != nil && t.key.Contains(test) {
		return true
	}
	for _, a := range t.args {
		if a.Contains(test) {
			return true
		}
	}
	for _, r := range t.results {
		if r.Contains(test) {
			return true
		}
	}
	return false
}

// ContainsMarker reports if a generic marker appears anywhere in the type.
func (t *Type) ContainsMarker() bool {
	return t.Contains((*Type).IsMarker)
}

// ContainsTypeParam reports if a type parameter appears anywhere in the type.
func (t *Type) ContainsTypeParam() bool {
	return t.Contains((*Type).IsTypeParam)
}

// ShortName is the unqualified display name without type arguments:
// "Repository" for app.Repository[int] and *app.Repository[int].
func (t *Type) ShortName() string {
	switch t.kind {
	case Pointer, Slice, Array, Chan:
		return t.elem.ShortName()
	case Named, Basic, Marker, TypeParam:
		return t.name
	default:
		return t.String()
	}
}

// String renders the type the way it would be written in Go source with
// package names (not paths) as qualifiers.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Type) write(b *strings.Builder) {
	switch t.kind {
	case Basic, TypeParam:
		b.WriteString(t.name)
	case Named, Marker:
		if t.pkg != "" {
			b.WriteString(packageName(t.pkg))
			b.WriteByte('.')
		}
		b.WriteString(t.name)
		if len(t.args) > 0 {
			b.WriteByte('[')
			for i, a := range t.args {
				if i > 0 {
					b.WriteString(", ")
				}
				a.write(b)
			}
			b.WriteByte(']')
		}
	case Pointer:
		b.WriteByte('*')
		t.elem.write(b)
	case Slice:
		b.WriteString("[]")
		t.elem.write(b)
	case Array:
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(t.length))
		b.WriteByte(']')
		t.elem.write(b)
	case Map:
		b.WriteString("map[")
		t.key.write(b)
		b.WriteByte(']')
		t.elem.write(b)
	case Chan:
		b.WriteString("chan ")
		t.elem.write(b)
	case FuncKind:
		b.WriteString("func(")
		for i, a := range t.args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.write(b)
		}
		b.WriteByte(')')
		switch len(t.results) {
		case 0:
		case 1:
			b.WriteByte(' ')
			t.results[0].write(b)
		default:
			b.WriteString(" (")
			for i, r := range t.results {
				if i > 0 {
					b.WriteString(", ")
				}
				r.write(b)
			}
			b.WriteByte(')')
		}
	default:
		b.WriteString("invalid")
	}
}

func packageName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
