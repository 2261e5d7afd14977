package ntypes

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type typeCode int

// Universe interns types and holds the declarations that were loaded.
// Universe is safe for concurrent use.
type Universe struct {
	lock    sync.Mutex
	counter typeCode
	byCanon map[string]*Type
	byCode  map[typeCode]*Type
	decls   map[string]*Decl
	generic map[string]*Type
	builtin map[string]bool
}

var basicNames = []string{
	"bool", "string", "int", "int8", "int16", "int32", "int64",
	"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
	"float32", "float64", "complex64", "complex128", "byte", "rune",
}

// MarkerNames are the generic markers predeclared in DIPackage.
var MarkerNames = []string{"TT", "TT1", "TT2", "TT3", "TT4", "TT5", "TT6", "TT7", "TT8", "TT9"}

const anonymousMarkerPrefix = "TTA"

func NewUniverse() *Universe {
	u := &Universe{
		byCanon: make(map[string]*Type),
		byCode:  make(map[typeCode]*Type),
		decls:   make(map[string]*Decl),
		generic: make(map[string]*Type),
		builtin: make(map[string]bool),
	}
	for _, n := range basicNames {
		u.intern(&Type{kind: Basic, name: n})
	}
	for _, n := range MarkerNames {
		u.Marker(n)
	}
	u.mustDeclare(&Decl{Name: "any", Kind: InterfaceDecl})
	u.mustDeclare(&Decl{Name: "error", Kind: InterfaceDecl, Methods: []string{"Error"}})
	u.mustDeclare(&Decl{Pkg: "context", Name: "Context", Kind: InterfaceDecl, Methods: []string{"Deadline", "Done", "Err", "Value"}})
	u.mustDeclare(&Decl{Pkg: "fmt", Name: "Stringer", Kind: InterfaceDecl, Methods: []string{"String"}})
	u.mustDeclare(&Decl{Pkg: "io", Name: "Closer", Kind: InterfaceDecl, Methods: []string{"Close"}})
	u.mustDeclare(&Decl{Pkg: "iter", Name: "Seq", Kind: OtherDecl, TypeParams: u.typeParams("iter.Seq", "V")})
	u.mustDeclare(&Decl{Pkg: "iter", Name: "Seq2", Kind: OtherDecl, TypeParams: u.typeParams("iter.Seq2", "K", "V")})
	for k := range u.decls {
		u.builtin[k] = true
	}
	return u
}

func (u *Universe) typeParams(owner string, names ...string) []*Type {
	tps := make([]*Type, len(names))
	for i, n := range names {
		tps[i] = u.TypeParamOf(owner, n)
	}
	return tps
}

func canonical(t *Type) string {
	var b strings.Builder
	writeCanonical(&b, t)
	return b.String()
}

func writeCanonical(b *strings.Builder, t *Type) {
	list := func(open, closing string, ts []*Type) {
		b.WriteString(open)
		for i, a := range ts {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, a)
		}
		b.WriteString(closing)
	}
	switch t.kind {
	case Basic:
		b.WriteString(t.name)
	case TypeParam:
		b.WriteString("param:")
		b.WriteString(t.pkg)
		b.WriteByte('.')
		b.WriteString(t.name)
	case Marker:
		b.WriteString("marker:")
		b.WriteString(t.name)
	case Named:
		b.WriteString(t.pkg)
		b.WriteByte('.')
		b.WriteString(t.name)
		if len(t.args) > 0 {
			list("[", "]", t.args)
		}
	case Pointer:
		b.WriteByte('*')
		writeCanonical(b, t.elem)
	case Slice:
		b.WriteString("[]")
		writeCanonical(b, t.elem)
	case Array:
		b.WriteString("[" + strconv.Itoa(t.length) + "]")
		writeCanonical(b, t.elem)
	case Map:
		b.WriteString("map[")
		writeCanonical(b, t.key)
		b.WriteByte(']')
		writeCanonical(b, t.elem)
	case Chan:
		b.WriteString("chan ")
		writeCanonical(b, t.elem)
	case FuncKind:
		list("func(", ")", t.args)
		list("(", ")", t.results)
	default:
		b.WriteString("invalid")
	}
}

// intern returns the canonical instance of t.  Every Type handed out by a
// Universe has passed through intern.
func (u *Universe) intern(t *Type) *Type {
	t.canon = canonical(t)
	u.lock.Lock()
	defer u.lock.Unlock()
	if found, ok := u.byCanon[t.canon]; ok {
		return found
	}
	u.counter++
	t.id = u.counter
	u.byCanon[t.canon] = t
	u.byCode[t.id] = t
	return t
}

// Basic returns a predeclared basic type such as "int" or "string".
func (u *Universe) Basic(name string) (*Type, bool) {
	u.lock.Lock()
	defer u.lock.Unlock()
	t, ok := u.byCanon[name]
	if !ok || t.kind != Basic {
		return nil, false
	}
	return t, true
}

func (u *Universe) PointerTo(t *Type) *Type {
	return u.intern(&Type{kind: Pointer, elem: t})
}

func (u *Universe) SliceOf(t *Type) *Type {
	return u.intern(&Type{kind: Slice, elem: t})
}

func (u *Universe) ArrayOf(n int, t *Type) *Type {
	return u.intern(&Type{kind: Array, elem: t, length: n})
}

func (u *Universe) MapOf(k, v *Type) *Type {
	return u.intern(&Type{kind: Map, key: k, elem: v})
}

func (u *Universe) ChanOf(t *Type) *Type {
	return u.intern(&Type{kind: Chan, elem: t})
}

func (u *Universe) FuncOf(params []*Type, results []*Type) *Type {
	return u.intern(&Type{kind: FuncKind, args: params, results: results})
}

// Marker returns the generic marker with the given name.
func (u *Universe) Marker(name string) *Type {
	return u.intern(&Type{kind: Marker, pkg: DIPackage, name: name})
}

// AnonymousMarker returns a marker that no configuration can name.  They
// replace type parameters that are left unbound after substitution.
func (u *Universe) AnonymousMarker(i int) *Type {
	return u.Marker(anonymousMarkerPrefix + strconv.Itoa(i))
}

// IsMarkerName reports whether name is a predeclared marker of DIPackage.
func IsMarkerName(name string) bool {
	for _, n := range MarkerNames {
		if n == name {
			return true
		}
	}
	return false
}

func (u *Universe) TypeParamOf(owner string, name string) *Type {
	return u.intern(&Type{kind: TypeParam, pkg: owner, name: name})
}

// Any returns the empty interface.
func (u *Universe) Any() *Type {
	t, _ := u.Lookup("", "any")
	return t
}

// Error returns the error interface.
func (u *Universe) Error() *Type {
	t, _ := u.Lookup("", "error")
	return t
}

// Declare registers a declaration and returns its type.  For generic
// declarations the returned type is the uninstantiated form.  Declaring
// the same name again replaces the declaration in place so that types
// interned earlier see the new contents.
func (u *Universe) Declare(d *Decl) (*Type, error) {
	if d.Name == "" {
		return nil, errors.New("declaration has no name")
	}
	for i, tp := range d.TypeParams {
		if tp == nil || tp.kind != TypeParam {
			return nil, errors.Errorf("type parameter %d of %s is not a type parameter", i, d.Key())
		}
	}
	u.lock.Lock()
	existing, ok := u.decls[d.Key()]
	if ok {
		*existing = *d
		t := u.generic[d.Key()]
		u.lock.Unlock()
		return t, nil
	}
	u.decls[d.Key()] = d
	u.lock.Unlock()
	t := u.intern(&Type{kind: Named, pkg: d.Pkg, name: d.Name, decl: d})
	u.lock.Lock()
	u.generic[d.Key()] = t
	u.lock.Unlock()
	return t, nil
}

func (u *Universe) mustDeclare(d *Decl) *Type {
	t, err := u.Declare(d)
	if err != nil {
		panic(err)
	}
	return t
}

// declareOpaque records a type from a package that was never loaded.
func (u *Universe) declareOpaque(pkg, name string, numParams int) *Type {
	if t, ok := u.Lookup(pkg, name); ok {
		return t
	}
	d := &Decl{Pkg: pkg, Name: name, Kind: OtherDecl, Opaque: true}
	for i := 0; i < numParams; i++ {
		d.TypeParams = append(d.TypeParams, u.TypeParamOf(d.Key(), "P"+strconv.Itoa(i)))
	}
	return u.mustDeclare(d)
}

// Lookup finds a declared type by package path and name.
func (u *Universe) Lookup(pkg, name string) (*Type, bool) {
	u.lock.Lock()
	defer u.lock.Unlock()
	t, ok := u.generic[pkg+"."+name]
	return t, ok
}

// Instantiate applies type arguments to a generic declaration.
func (u *Universe) Instantiate(generic *Type, args []*Type) (*Type, error) {
	if generic == nil || generic.kind != Named || generic.decl == nil {
		return nil, errors.Errorf("%s is not a named type", generic)
	}
	if len(generic.args) != 0 {
		return nil, errors.Errorf("%s is already instantiated", generic)
	}
	if len(args) != len(generic.decl.TypeParams) {
		return nil, errors.Errorf("%s takes %d type arguments, got %d", generic, len(generic.decl.TypeParams), len(args))
	}
	if len(args) == 0 {
		return generic, nil
	}
	for i, a := range args {
		if a == nil {
			return nil, errors.Errorf("type argument %d of %s is nil", i, generic)
		}
	}
	return u.intern(&Type{kind: Named, pkg: generic.pkg, name: generic.name, decl: generic.decl, args: args}), nil
}

// Origin returns the uninstantiated form of a named type.
func (u *Universe) Origin(t *Type) *Type {
	if t == nil || t.kind != Named || len(t.args) == 0 {
		return t
	}
	g, _ := u.Lookup(t.pkg, t.name)
	return g
}

// Decls returns all declarations ordered by package path and name.
func (u *Universe) Decls() []*Decl {
	u.lock.Lock()
	decls := make([]*Decl, 0, len(u.decls))
	for _, d := range u.decls {
		decls = append(decls, d)
	}
	u.lock.Unlock()
	sort.Slice(decls, func(i, j int) bool { return decls[i].Key() < decls[j].Key() })
	return decls
}

// AllTypes returns the declared named types of loaded packages, generic
// ones uninstantiated.  Predeclared and opaque types are not included.
func (u *Universe) AllTypes() []*Type {
	var all []*Type
	for _, d := range u.Decls() {
		if d.Opaque || u.builtin[d.Key()] {
			continue
		}
		t, _ := u.Lookup(d.Pkg, d.Name)
		all = append(all, t)
	}
	return all
}
