package ncompose

import (
	"fmt"
	"go/ast"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

type Lifetime uint8

const (
	// UnsetLifetime means the binding did not choose a lifetime; defaults
	// apply.
	UnsetLifetime Lifetime = iota
	Transient
	Singleton
	Scoped
	PerResolve
	PerBlock
)

var lifetimeNames = [...]string{
	UnsetLifetime: "Unset",
	Transient:     "Transient",
	Singleton:     "Singleton",
	Scoped:        "Scoped",
	PerResolve:    "PerResolve",
	PerBlock:      "PerBlock",
}

func (l Lifetime) String() string {
	if int(l) < len(lifetimeNames) {
		return lifetimeNames[l]
	}
	return fmt.Sprintf("Lifetime(%d)", int(l))
}

// ParseLifetime accepts the names of the lifetimes, case-insensitively.
func ParseLifetime(s string) (Lifetime, bool) {
	for i, n := range lifetimeNames {
		if i != int(UnsetLifetime) && strings.EqualFold(n, s) {
			return Lifetime(i), true
		}
	}
	return UnsetLifetime, false
}

// cycleIntolerant lifetimes share one instance within their scope and
// therefore can never take part in a construction cycle.
func (l Lifetime) cycleIntolerant() bool {
	return l == Singleton || l == Scoped || l == PerResolve
}

type SetupKind uint8

const (
	PublicSetup SetupKind = iota
	InternalSetup
	// GlobalSetup bindings are inherited by every other setup.
	GlobalSetup
)

func (k SetupKind) String() string {
	switch k {
	case InternalSetup:
		return "Internal"
	case GlobalSetup:
		return "Global"
	default:
		return "Public"
	}
}

// Setup is one complete configuration: everything declared by one
// di.Setup(...) chain plus, once finalized, what it inherits.
type Setup struct {
	Name      string
	Package   string
	Kind      SetupKind
	Hints     Hints
	Bindings  []*Binding
	Roots     []*Root
	DependsOn []string

	GenericTypeArguments []*ntypes.Type
	TypeAttributes       []string
	TagAttributes        []string
	OrdinalAttributes    []string
	SpecialTypes         []*ntypes.Type
	Accumulators         []*Accumulator
	DefaultLifetimes     []DefaultLifetimeRule

	// Imports are the import paths of the file holding the chain.
	Imports []string
	// Receiver is the receiver name of the method holding the chain.
	Receiver string
	Location Location

	finalized bool
}

// Finalized is true for setups returned by Finalize.
func (s *Setup) Finalized() bool { return s.finalized }

// Matches reports whether name refers to this setup: either the plain
// name or the name qualified by package path or package name.
func (s *Setup) Matches(name string) bool {
	if name == s.Name {
		return true
	}
	if s.Package == "" {
		return false
	}
	return name == s.Package+"."+s.Name || name == ntypes.DefaultImportName(s.Package)+"."+s.Name
}

// IsCompositionType reports whether t is the type generated for this
// setup.
func (s *Setup) IsCompositionType(t *ntypes.Type) bool {
	t = t.Deref()
	return t != nil && t.Kind() == ntypes.Named && t.Pkg() == s.Package && t.Name() == s.Name
}

func (s *Setup) String() string {
	if s.Package == "" {
		return s.Name
	}
	return ntypes.DefaultImportName(s.Package) + "." + s.Name
}

func (s *Setup) binding(id int) *Binding {
	for _, b := range s.Bindings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

type ContractKind uint8

const (
	ExplicitContract ContractKind = iota
	// ImplicitContract contracts were derived by simplified binding.
	ImplicitContract
)

type Contract struct {
	Type *ntypes.Type
	Tags []Tag
	Kind ContractKind
}

func (c Contract) String() string {
	if len(c.Tags) == 0 {
		return c.Type.String()
	}
	tags := make([]string, len(c.Tags))
	for i, t := range c.Tags {
		tags[i] = t.String()
	}
	return c.Type.String() + "(" + strings.Join(tags, ", ") + ")"
}

// Binding maps contracts to a construction mechanism.  Exactly one of
// Implementation, Factory, and Arg is set.
type Binding struct {
	ID          int
	OriginalIDs []int
	Contracts   []Contract

	Implementation *ntypes.Type
	Factory        *Factory
	Arg            *Arg

	Lifetime Lifetime
	// Tags apply to every contract.
	Tags []Tag

	// SourceSetup is the setup the binding is visible in, OriginSetup is
	// the setup that declared it.
	SourceSetup string
	OriginSetup string
	// Synthetic explains why the binding was created by ncompose rather
	// than written by the user.
	Synthetic string
	Location  Location
}

// Type is the type the construction mechanism produces.
func (b *Binding) Type() *ntypes.Type {
	switch {
	case b.Implementation != nil:
		return b.Implementation
	case b.Factory != nil:
		return b.Factory.Type
	case b.Arg != nil:
		return b.Arg.Type
	default:
		return nil
	}
}

func (b *Binding) mechanisms() int {
	n := 0
	if b.Implementation != nil {
		n++
	}
	if b.Factory != nil {
		n++
	}
	if b.Arg != nil {
		n++
	}
	return n
}

// Tags of a contract including the binding level tags.
func (b *Binding) contractTags(c Contract) []Tag {
	if len(b.Tags) == 0 {
		return c.Tags
	}
	return append(append([]Tag(nil), c.Tags...), b.Tags...)
}

// Satisfies reports if the binding has a contract for exactly t with tag.
func (b *Binding) Satisfies(t *ntypes.Type, tag Tag) bool {
	for _, c := range b.Contracts {
		if c.Type == t && hasTag(b.contractTags(c), tag) {
			return true
		}
	}
	return false
}

func (b *Binding) hasExplicitContract() bool {
	for _, c := range b.Contracts {
		if c.Kind == ExplicitContract {
			return true
		}
	}
	return false
}

func (b *Binding) copy() *Binding {
	c := *b
	c.Contracts = append([]Contract(nil), b.Contracts...)
	c.OriginalIDs = append([]int(nil), b.OriginalIDs...)
	c.Tags = append([]Tag(nil), b.Tags...)
	return &c
}

func (b *Binding) String() string {
	contracts := make([]string, len(b.Contracts))
	for i, c := range b.Contracts {
		contracts[i] = c.String()
	}
	return fmt.Sprintf("#%d %s -> %s", b.ID, strings.Join(contracts, ", "), b.Type())
}

type RootKind uint8

const (
	RootPublic RootKind = 1 << iota
	RootInternal
	RootStatic
	// RootExposed roots become bindings of setups that bind this
	// setup's composition type.
	RootExposed
)

type Root struct {
	ID   int
	Type *ntypes.Type
	Tag  Tag
	// Name is empty for anonymous roots.
	Name string
	Kind RootKind
	// BuilderArg is the contract of the instance argument of builder roots.
	BuilderArg *Contract
	Location   Location
}

func (r *Root) Anonymous() bool { return r.Name == "" }

func (r *Root) String() string {
	name := r.Name
	if name == "" {
		name = "<anonymous>"
	}
	if r.Tag.IsNone() {
		return fmt.Sprintf("root %s %s", name, r.Type)
	}
	return fmt.Sprintf("root %s %s(%s)", name, r.Type, r.Tag)
}

// Factory is user written construction code together with the requests
// found in its body.
type Factory struct {
	Type *ntypes.Type
	// ContextName is the name of the di.Context parameter, empty for
	// simple factories.
	ContextName string
	// Lambda is nil for synthesized factories.
	Lambda *ast.FuncLit
	Source string
	// Simple factories take their dependencies as parameters.
	Simple       bool
	Resolvers    []Resolver
	Initializers []Initializer
	// Member is set for factories synthesized to read a field or call a
	// method.
	Member   *MemberAccess
	Location Location
}

// Resolver is a ctx.Inject call or a simple factory parameter.
type Resolver struct {
	Position  int
	Type      *ntypes.Type
	Tag       Tag
	Target    string
	Overrides []Override
	Location  Location
}

// Initializer is a ctx.BuildUp call.
type Initializer struct {
	Position  int
	Type      *ntypes.Type
	Target    string
	Overrides []Override
	Location  Location
}

// Override is a ctx.Override (Deep) or ctx.Let call.
type Override struct {
	Type     *ntypes.Type
	Tags     []Tag
	Deep     bool
	Value    string
	Location Location
}

func (o *Override) matches(t *ntypes.Type, tag Tag) bool {
	return o.Type == t && hasTag(o.Tags, tag)
}

// MemberAccess describes a synthesized factory that reads a field or
// calls a method of an injected owner.
type MemberAccess struct {
	Owner  *ntypes.Type
	Member *ntypes.Member
	// Via is the contract through which the owner is injected.  It is nil
	// for static members.
	Via *Contract
}

type ArgKind uint8

const (
	ClassArg ArgKind = iota
	RootArg
	BuilderArg
)

// Arg is a composition argument.
type Arg struct {
	Name string
	Type *ntypes.Type
	Kind ArgKind
}

type Accumulator struct {
	Type      *ntypes.Type
	AccType   *ntypes.Type
	Lifetimes []Lifetime
	Location  Location
}

func (a *Accumulator) accepts(l Lifetime) bool {
	if len(a.Lifetimes) == 0 {
		return true
	}
	for _, x := range a.Lifetimes {
		if x == l {
			return true
		}
	}
	return false
}

// DefaultLifetimeRule sets the lifetime of bindings that do not choose one.
// A nil Type applies to every binding.
type DefaultLifetimeRule struct {
	Lifetime Lifetime
	Type     *ntypes.Type
	Tags     []Tag
	Location Location
}

type InjectionKind uint8

const (
	InjectRoot InjectionKind = iota
	InjectContract
	InjectParameter
	InjectMember
	InjectResolver
	InjectInitializer
)

var injectionKindNames = [...]string{
	InjectRoot:        "root",
	InjectContract:    "contract",
	InjectParameter:   "parameter",
	InjectMember:      "member",
	InjectResolver:    "resolver",
	InjectInitializer: "initializer",
}

func (k InjectionKind) String() string {
	if int(k) < len(injectionKindNames) {
		return injectionKindNames[k]
	}
	return "injection"
}

// Injection is a request for an instance of Type with Tag.
type Injection struct {
	Kind      InjectionKind
	Type      *ntypes.Type
	Tag       Tag
	Target    string
	Locations []Location
}

// Key identifies the injection: two injections are equal when their
// types, tags and kinds are equal.
func (i Injection) Key() string {
	return i.Kind.String() + "|" + i.Type.Canonical() + "|" + i.Tag.Key()
}

func (i Injection) String() string {
	s := i.Type.String()
	if !i.Tag.IsNone() {
		s += "(" + i.Tag.String() + ")"
	}
	if i.Target != "" {
		s = i.Target + " " + s
	}
	return i.Kind.String() + " " + s
}
