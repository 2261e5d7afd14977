package ntypes

// Substitute replaces types according to m, rebuilding composite types.
// Types that contain nothing from m are returned unchanged.
func (u *Universe) Substitute(t *Type, m map[*Type]*Type) *Type {
	if t == nil || len(m) == 0 {
		return t
	}
	if r, ok := m[t]; ok {
		return r
	}
	switch t.kind {
	case Pointer:
		if e := u.Substitute(t.elem, m); e != t.elem {
			return u.PointerTo(e)
		}
	case Slice:
		if e := u.Substitute(t.elem, m); e != t.elem {
			return u.SliceOf(e)
		}
	case Array:
		if e := u.Substitute(t.elem, m); e != t.elem {
			return u.ArrayOf(t.length, e)
		}
	case Chan:
		if e := u.Substitute(t.elem, m); e != t.elem {
			return u.ChanOf(e)
		}
	case Map:
		k, v := u.Substitute(t.key, m), u.Substitute(t.elem, m)
		if k != t.key || v != t.elem {
			return u.MapOf(k, v)
		}
	case FuncKind:
		params, pc := u.substituteAll(t.args, m)
		results, rc := u.substituteAll(t.results, m)
		if pc || rc {
			return u.FuncOf(params, results)
		}
	case Named:
		if len(t.args) == 0 {
			return t
		}
		args, changed := u.substituteAll(t.args, m)
		if changed {
			return u.intern(&Type{kind: Named, pkg: t.pkg, name: t.name, decl: t.decl, args: args})
		}
	}
	return t
}

func (u *Universe) substituteAll(ts []*Type, m map[*Type]*Type) ([]*Type, bool) {
	if len(ts) == 0 {
		return ts, false
	}
	out := make([]*Type, len(ts))
	changed := false
	for i, t := range ts {
		out[i] = u.Substitute(t, m)
		if out[i] != t {
			changed = true
		}
	}
	return out, changed
}

// Bindings maps the type parameters of a named type's declaration to its
// type arguments.  Pointers are dereferenced first.
func Bindings(t *Type) map[*Type]*Type {
	t = t.Deref()
	if t == nil || t.kind != Named || t.decl == nil || len(t.args) == 0 {
		return nil
	}
	m := make(map[*Type]*Type, len(t.args))
	for i, tp := range t.decl.TypeParams {
		if i < len(t.args) {
			m[tp] = t.args[i]
		}
	}
	return m
}

func (u *Universe) declOf(t *Type) (*Decl, map[*Type]*Type) {
	n := t.Deref()
	if n == nil || n.kind != Named || n.decl == nil {
		return nil, nil
	}
	return n.decl, Bindings(n)
}

// DirectInterfaces returns the interfaces that t declares it implements,
// not counting those inherited through embedded types.
func (u *Universe) DirectInterfaces(t *Type) []*Type {
	d, m := u.declOf(t)
	if d == nil {
		return nil
	}
	out, _ := u.substituteAll(d.Implements, m)
	return out
}

// Embeds returns the embedded types of t with type arguments applied.
func (u *Universe) Embeds(t *Type) []*Type {
	d, m := u.declOf(t)
	if d == nil {
		return nil
	}
	out, _ := u.substituteAll(d.Embeds, m)
	return out
}

// BaseTypes returns every type that t inherits from: embedded types,
// transitively, and every interface declared by t or by something it
// embeds.  The order is breadth first and stable.
func (u *Universe) BaseTypes(t *Type) []*Type {
	seen := map[*Type]bool{t.Deref(): true}
	var out []*Type
	queue := []*Type{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, group := range [][]*Type{u.Embeds(cur), u.DirectInterfaces(cur)} {
			for _, b := range group {
				if seen[b] {
					continue
				}
				seen[b] = true
				out = append(out, b)
				queue = append(queue, b)
			}
		}
	}
	return out
}

// Depth is the number of base types; deeper types are more specific.
func (u *Universe) Depth(t *Type) int {
	return len(u.BaseTypes(t))
}

// MethodSet returns the names of the methods of t including those
// promoted from embedded types.
func (u *Universe) MethodSet(t *Type) map[string]struct{} {
	set := make(map[string]struct{})
	seen := make(map[*Type]bool)
	var walk func(*Type)
	walk = func(x *Type) {
		x = x.Deref()
		if x == nil || seen[x] {
			return
		}
		seen[x] = true
		d, _ := u.declOf(x)
		if d == nil {
			return
		}
		for _, name := range d.Methods {
			set[name] = struct{}{}
		}
		for _, e := range u.Embeds(x) {
			walk(e)
		}
	}
	walk(t)
	return set
}

// Implements reports whether t satisfies the interface iface.  Interfaces
// without methods other than any must be declared, either directly or
// through a base type, since every type would satisfy them structurally.
func (u *Universe) Implements(t, iface *Type) bool {
	if t == nil || iface == nil {
		return false
	}
	if t == iface {
		return true
	}
	if !iface.IsInterface() {
		return false
	}
	if iface == u.Any() {
		return true
	}
	for _, b := range u.BaseTypes(t) {
		if b == iface {
			return true
		}
	}
	if iface.decl.Opaque {
		return false
	}
	required := u.MethodSet(iface)
	if len(required) == 0 {
		return false
	}
	have := u.MethodSet(t)
	for name := range required {
		if _, ok := have[name]; !ok {
			return false
		}
	}
	return true
}

// IsSubtype reports whether t can stand in for base: t is base, t
// implements the interface base, or t embeds base.
func (u *Universe) IsSubtype(t, base *Type) bool {
	if t == base || t.Deref() == base.Deref() {
		return true
	}
	if base.IsInterface() {
		return u.Implements(t, base)
	}
	for _, b := range u.BaseTypes(t) {
		if b == base || b == base.Deref() {
			return true
		}
	}
	return false
}

// Constructor returns the NewName function of t with type arguments applied.
func (u *Universe) Constructor(t *Type) (*Func, bool) {
	d, m := u.declOf(t)
	if d == nil || d.Constructor == nil {
		return nil, false
	}
	c := *d.Constructor
	c.Result = u.Substitute(c.Result, m)
	c.Params = u.substituteParams(c.Params, m)
	return &c, true
}

func (u *Universe) substituteParams(params []Param, m map[*Type]*Type) []Param {
	if len(params) == 0 {
		return nil
	}
	out := make([]Param, len(params))
	for i, p := range params {
		p.Type = u.Substitute(p.Type, m)
		out[i] = p
	}
	return out
}

func (u *Universe) substituteMembers(members []*Member, m map[*Type]*Type) []*Member {
	if len(members) == 0 {
		return nil
	}
	out := make([]*Member, len(members))
	for i, mem := range members {
		c := *mem
		c.Type = u.Substitute(c.Type, m)
		c.Params = u.substituteParams(c.Params, m)
		out[i] = &c
	}
	return out
}

// Fields returns the declared fields of t with type arguments applied.
func (u *Universe) Fields(t *Type) []*Member {
	d, m := u.declOf(t)
	if d == nil {
		return nil
	}
	return u.substituteMembers(d.Fields, m)
}

// Members returns the declared methods of t with type arguments applied.
func (u *Universe) Members(t *Type) []*Member {
	d, m := u.declOf(t)
	if d == nil {
		return nil
	}
	return u.substituteMembers(d.Members, m)
}
