package ncompose

import (
	"github.com/muir/ncompose/ntypes"
)

// SetupBuilder collects metadata records into Setups.  Each
// configuration chain becomes one Setup.
type SetupBuilder struct {
	reporter Reporter
	setups   []*Setup
	current  *Setup
	// binding is the binding being described; it is complete once it
	// has a construction mechanism.
	binding *Binding
	// last is the most recently completed binding of the current setup.
	last *Binding
}

var _ MetadataVisitor = &SetupBuilder{}

func NewSetupBuilder(r Reporter) *SetupBuilder {
	return &SetupBuilder{reporter: r}
}

// Setups returns the setups completed so far.
func (b *SetupBuilder) Setups() []*Setup {
	return b.setups
}

func (b *SetupBuilder) VisitSetup(md MdSetup) {
	b.finish()
	hints := md.Hints.clone()
	b.current = &Setup{
		Name:     md.Name,
		Package:  md.Package,
		Kind:     md.Kind,
		Hints:    hints,
		Imports:  md.Imports,
		Receiver: md.Receiver,
		Location: md.Location,
	}
	debugf("setup %s", b.current)
}

func (b *SetupBuilder) VisitDependsOn(md MdDependsOn) {
	if b.current == nil {
		return
	}
	b.current.DependsOn = append(b.current.DependsOn, md.Names...)
}

func (b *SetupBuilder) VisitHint(md MdHint) {
	if b.current == nil {
		return
	}
	b.current.Hints.add(md.Key, md.Value)
}

func (b *SetupBuilder) open(loc Location) *Binding {
	if b.binding == nil {
		b.binding = &Binding{Location: loc}
	}
	return b.binding
}

func (b *SetupBuilder) VisitContract(md MdContract) {
	if b.current == nil {
		return
	}
	bb := b.open(md.Location)
	bb.Contracts = append(bb.Contracts, Contract{Type: md.Type, Tags: md.Tags, Kind: md.Kind})
}

func (b *SetupBuilder) VisitLifetime(md MdLifetime) {
	if b.current == nil {
		return
	}
	b.open(md.Location).Lifetime = md.Lifetime
}

func (b *SetupBuilder) VisitTag(md MdTag) {
	if b.current == nil {
		return
	}
	bb := b.open(md.Location)
	bb.Tags = append(bb.Tags, md.Tags...)
}

func (b *SetupBuilder) VisitImplementation(md MdImplementation) {
	if bb := b.mechanism(md.Location); bb != nil {
		bb.Implementation = md.Type
		bb.Synthetic = md.Synthetic
		b.complete()
	}
}

func (b *SetupBuilder) VisitFactory(md MdFactory) {
	if bb := b.mechanism(md.Location); bb != nil {
		bb.Factory = md.Factory
		bb.Synthetic = md.Synthetic
		b.complete()
	}
}

func (b *SetupBuilder) VisitArg(md MdArg) {
	if bb := b.mechanism(md.Location); bb != nil {
		arg := md.Arg
		bb.Arg = &arg
		bb.Synthetic = md.Synthetic
		b.complete()
	}
}

// mechanism returns the binding that is to receive a construction
// mechanism.  A mechanism with nothing to attach to right after a
// completed binding is a second mechanism for that binding.
func (b *SetupBuilder) mechanism(loc Location) *Binding {
	if b.current == nil {
		return nil
	}
	if b.binding == nil && b.last != nil {
		reportf(b.reporter, MultipleConstructionMechanisms, Error, locs(loc, b.last.Location),
			"binding %s already has a construction mechanism", b.last)
		return nil
	}
	return b.open(loc)
}

func (b *SetupBuilder) complete() {
	bb := b.binding
	b.binding = nil
	bb.ID = nextBindingID()
	bb.SourceSetup = b.current.Name
	bb.OriginSetup = b.current.Name
	t := bb.Type()
	if len(bb.Contracts) == 0 {
		bb.Contracts = []Contract{{Type: t, Kind: ImplicitContract}}
	}
	for i := range bb.Contracts {
		bb.Contracts[i].Tags = implementationTags(bb.Contracts[i].Tags, t)
	}
	bb.Tags = implementationTags(bb.Tags, t)
	b.current.Bindings = append(b.current.Bindings, bb)
	b.last = bb
	debugf("binding %s", bb)
}

// implementationTags replaces di.TypeTag with the tag of the
// implementation type.
func implementationTags(tags []Tag, t *ntypes.Type) []Tag {
	var out []Tag
	for i, tag := range tags {
		if tag.Kind != TagImplementation {
			continue
		}
		if out == nil {
			out = append([]Tag(nil), tags...)
		}
		out[i] = Tag{Kind: TagType, Type: t, Position: tag.Position}
	}
	if out == nil {
		return tags
	}
	return out
}

func (b *SetupBuilder) VisitRoot(md MdRoot) {
	if b.current == nil {
		return
	}
	r := md.Root
	r.ID = nextRootID()
	b.current.Roots = append(b.current.Roots, &r)
}

func (b *SetupBuilder) VisitDefaultLifetime(md MdDefaultLifetime) {
	if b.current == nil {
		return
	}
	b.current.DefaultLifetimes = append(b.current.DefaultLifetimes, md.Rule)
}

func (b *SetupBuilder) VisitGenericTypeArgument(md MdGenericTypeArgument) {
	if b.current == nil {
		return
	}
	b.current.GenericTypeArguments = append(b.current.GenericTypeArguments, md.Type)
}

func (b *SetupBuilder) VisitAttribute(md MdAttribute) {
	if b.current == nil {
		return
	}
	switch md.Kind {
	case TypeAttribute:
		b.current.TypeAttributes = append(b.current.TypeAttributes, md.Key)
	case TagAttribute:
		b.current.TagAttributes = append(b.current.TagAttributes, md.Key)
	case OrdinalAttribute:
		b.current.OrdinalAttributes = append(b.current.OrdinalAttributes, md.Key)
	}
}

func (b *SetupBuilder) VisitSpecialType(md MdSpecialType) {
	if b.current == nil {
		return
	}
	b.current.SpecialTypes = append(b.current.SpecialTypes, md.Type)
}

func (b *SetupBuilder) VisitAccumulator(md MdAccumulator) {
	if b.current == nil {
		return
	}
	acc := md.Accumulator
	b.current.Accumulators = append(b.current.Accumulators, &acc)
}

func (b *SetupBuilder) VisitAbort() {
	if b.current != nil {
		debugf("setup %s abandoned", b.current)
	}
	b.current = nil
	b.binding = nil
	b.last = nil
}

func (b *SetupBuilder) VisitFinish() {
	b.finish()
}

func (b *SetupBuilder) finish() {
	if b.current == nil {
		return
	}
	if b.binding != nil {
		reportf(b.reporter, NoConstructionMechanism, Error, locs(b.binding.Location),
			"binding of %s in setup %s has no construction mechanism", contractList(b.binding), b.current)
	}
	b.setups = append(b.setups, b.current)
	b.current = nil
	b.binding = nil
	b.last = nil
}

func contractList(bb *Binding) string {
	if len(bb.Contracts) == 0 {
		return "nothing"
	}
	s := ""
	for i, c := range bb.Contracts {
		if i > 0 {
			s += ", "
		}
		s += c.String()
	}
	return s
}
