package ncompose

import (
	"github.com/muir/ncompose/ntypes"
)

// The Md records are what the processor extracts from a configuration
// chain.  A MetadataVisitor receives them in chain order.

type MdSetup struct {
	Name     string
	Package  string
	Kind     SetupKind
	Hints    Hints
	Imports  []string
	Receiver string
	Location Location
}

type MdDependsOn struct {
	Names    []string
	Location Location
}

type MdHint struct {
	Key      string
	Value    string
	Location Location
}

type MdContract struct {
	Type     *ntypes.Type
	Tags     []Tag
	Kind     ContractKind
	Location Location
}

type MdImplementation struct {
	Type      *ntypes.Type
	Synthetic string
	Location  Location
}

type MdFactory struct {
	Factory   *Factory
	Synthetic string
	Location  Location
}

type MdArg struct {
	Arg       Arg
	Synthetic string
	Location  Location
}

type MdLifetime struct {
	Lifetime Lifetime
	Location Location
}

type MdTag struct {
	Tags     []Tag
	Location Location
}

type MdRoot struct {
	Root Root
}

type MdDefaultLifetime struct {
	Rule DefaultLifetimeRule
}

type MdGenericTypeArgument struct {
	Type     *ntypes.Type
	Location Location
}

type AttributeKind uint8

const (
	TypeAttribute AttributeKind = iota
	TagAttribute
	OrdinalAttribute
)

type MdAttribute struct {
	Kind     AttributeKind
	Key      string
	Location Location
}

type MdSpecialType struct {
	Type     *ntypes.Type
	Location Location
}

type MdAccumulator struct {
	Accumulator Accumulator
}

// MetadataVisitor consumes the records of configuration chains.
type MetadataVisitor interface {
	VisitSetup(MdSetup)
	VisitDependsOn(MdDependsOn)
	VisitHint(MdHint)
	VisitContract(MdContract)
	VisitImplementation(MdImplementation)
	VisitFactory(MdFactory)
	VisitArg(MdArg)
	VisitLifetime(MdLifetime)
	VisitTag(MdTag)
	VisitRoot(MdRoot)
	VisitDefaultLifetime(MdDefaultLifetime)
	VisitGenericTypeArgument(MdGenericTypeArgument)
	VisitAttribute(MdAttribute)
	VisitSpecialType(MdSpecialType)
	VisitAccumulator(MdAccumulator)
	// VisitAbort discards the current chain after a fatal problem.
	VisitAbort()
	// VisitFinish closes the last chain.
	VisitFinish()
}
