package ncompose

import (
	"github.com/muir/ncompose/ntypes"
)

// synthesizeBindings creates a binding for every bind-member of the
// bound types and for every exposed root of the setups whose composition
// type is bound.  A (type, tag) pair is bound at most once; bindings
// synthesized by an earlier pass count.
func synthesizeBindings(s *Setup, all []*Setup, ts TypeService) []*Binding {
	seen := make(map[string]bool)
	for _, b := range s.Bindings {
		if b.Factory != nil && b.Factory.Member != nil {
			for _, c := range b.Contracts {
				for _, tag := range tagSet(b.contractTags(c)) {
					seen[c.Type.Canonical()+"|"+tag.Key()] = true
				}
			}
		}
	}
	claim := func(t *ntypes.Type, tag Tag) bool {
		key := t.Canonical() + "|" + tag.Key()
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}
	var out []*Binding
	for _, b := range s.Bindings {
		if b.Synthetic != "" || len(b.Contracts) == 0 {
			continue
		}
		t := b.Type()
		if t == nil {
			continue
		}
		via := b.Contracts[0]
		via.Tags = []Tag{tagSet(b.contractTags(via))[0]}
		for _, m := range append(ts.Fields(t), ts.Members(t)...) {
			if m.Bind == nil {
				continue
			}
			nb := memberBinding(s, b, t, m, via, ts)
			if !claim(nb.Contracts[0].Type, nb.Contracts[0].Tags[0]) {
				continue
			}
			debugf("finalize %s: member binding %s", s, nb)
			out = append(out, nb)
		}
		for _, other := range all {
			if other.Name == s.Name && other.Package == s.Package {
				continue
			}
			if !other.IsCompositionType(t) {
				continue
			}
			for _, root := range other.Roots {
				if root.Kind&RootExposed == 0 || root.Name == "" {
					continue
				}
				if !claim(root.Type, root.Tag) {
					continue
				}
				nb := exposedRootBinding(s, b, t, root, via)
				debugf("finalize %s: exposed root binding %s", s, nb)
				out = append(out, nb)
			}
		}
	}
	return out
}

// memberBinding binds the value of a field, or the result of a method,
// of owner.
func memberBinding(s *Setup, b *Binding, owner *ntypes.Type, m *ntypes.Member, via Contract, ts TypeService) *Binding {
	markers := make(map[*ntypes.Type]*ntypes.Type)
	anonymize := func(t *ntypes.Type) *ntypes.Type {
		t.Contains(func(x *ntypes.Type) bool {
			if x.IsTypeParam() {
				if _, ok := markers[x]; !ok {
					markers[x] = ts.AnonymousMarker(len(markers) + 1)
				}
			}
			return false
		})
		return ts.Substitute(t, markers)
	}
	t := anonymize(m.Type)
	tag := NoTag
	if m.Bind.HasTag {
		tag = StringTag(m.Bind.Tag)
	}
	lifetime, _ := ParseLifetime(m.Bind.Lifetime)
	f := &Factory{
		Type:        t,
		ContextName: "ctx",
		Member:      &MemberAccess{Owner: owner, Member: m},
		Location:    m.Location,
	}
	pos := 0
	if !m.Static {
		pos++
		f.Member.Via = &via
		f.Resolvers = append(f.Resolvers, Resolver{
			Position: pos,
			Type:     via.Type,
			Tag:      via.Tags[0],
			Target:   "owner",
			Location: m.Location,
		})
	}
	for _, p := range m.Params {
		pos++
		ptag := ContextTag
		if p.HasTag {
			ptag = StringTag(p.Tag)
		}
		f.Resolvers = append(f.Resolvers, Resolver{
			Position: pos,
			Type:     anonymize(p.Type),
			Tag:      ptag,
			Target:   p.Name,
			Location: m.Location,
		})
	}
	f.Source = memberSource(owner, m)
	return &Binding{
		ID:          nextBindingID(),
		Contracts:   []Contract{{Type: t, Tags: []Tag{tag}, Kind: ImplicitContract}},
		Factory:     f,
		Lifetime:    lifetime,
		SourceSetup: s.Name,
		OriginSetup: b.OriginSetup,
		Synthetic:   "member " + owner.ShortName() + "." + m.Name,
		Location:    m.Location,
	}
}

func memberSource(owner *ntypes.Type, m *ntypes.Member) string {
	recv := "owner"
	if m.Static {
		recv = owner.Deref().String()
	}
	if m.Kind == ntypes.FieldMember {
		return recv + "." + m.Name
	}
	args := ""
	for i, p := range m.Params {
		if i > 0 {
			args += ", "
		}
		args += p.Name
	}
	return recv + "." + m.Name + "(" + args + ")"
}

// exposedRootBinding binds a root of another composition through an
// instance of that composition.
func exposedRootBinding(s *Setup, b *Binding, owner *ntypes.Type, root *Root, via Contract) *Binding {
	m := &ntypes.Member{Name: root.Name, Kind: ntypes.MethodMember, Type: root.Type, Location: root.Location}
	return &Binding{
		ID:        nextBindingID(),
		Contracts: []Contract{{Type: root.Type, Tags: []Tag{root.Tag}, Kind: ImplicitContract}},
		Factory: &Factory{
			Type:        root.Type,
			ContextName: "ctx",
			Source:      "owner." + root.Name + "()",
			Member:      &MemberAccess{Owner: owner, Member: m, Via: &via},
			Resolvers: []Resolver{{
				Position: 1,
				Type:     via.Type,
				Tag:      via.Tags[0],
				Target:   "owner",
				Location: root.Location,
			}},
			Location: root.Location,
		},
		SourceSetup: s.Name,
		OriginSetup: b.OriginSetup,
		Synthetic:   "exposed root " + root.Name,
		Location:    root.Location,
	}
}
