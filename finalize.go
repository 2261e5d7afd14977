package ncompose

import (
	"github.com/muir/ncompose/ntypes"
)

// Finalize merges into setup everything it inherits: the global setups
// and the setups named by DependsOn, transitively.  It then adds the
// bindings implied by bind-members and exposed roots.  The result is a
// new Setup; setup itself is not modified.  Finalizing a finalized setup
// returns it unchanged.
func Finalize(setup *Setup, all []*Setup, ts TypeService, r Reporter) (*Setup, error) {
	if setup.finalized {
		return setup, nil
	}
	bases, err := collectBases(setup, all, r)
	if err != nil {
		return nil, err
	}
	out := &Setup{
		Name:      setup.Name,
		Package:   setup.Package,
		Kind:      setup.Kind,
		DependsOn: setup.DependsOn,
		Imports:   setup.Imports,
		Receiver:  setup.Receiver,
		Location:  setup.Location,
		Hints:     make(Hints),
	}
	seenBindings := make(map[int]bool)
	seenRoots := make(map[int]bool)
	sources := append(append([]*Setup(nil), bases...), setup)
	for _, s := range sources {
		debugf("finalize %s: merging %s", setup, s)
		for _, b := range s.Bindings {
			if seenBindings[b.ID] {
				continue
			}
			seenBindings[b.ID] = true
			if s != setup {
				b = b.copy()
				b.SourceSetup = setup.Name
			}
			out.Bindings = append(out.Bindings, b)
		}
		for _, root := range s.Roots {
			if seenRoots[root.ID] {
				continue
			}
			seenRoots[root.ID] = true
			out.Roots = append(out.Roots, root)
		}
		out.Hints = mergeHints(out.Hints, s.Hints)
		out.GenericTypeArguments = appendNewTypes(out.GenericTypeArguments, s.GenericTypeArguments)
		out.SpecialTypes = appendNewTypes(out.SpecialTypes, s.SpecialTypes)
		out.TypeAttributes = appendNewStrings(out.TypeAttributes, s.TypeAttributes)
		out.TagAttributes = appendNewStrings(out.TagAttributes, s.TagAttributes)
		out.OrdinalAttributes = appendNewStrings(out.OrdinalAttributes, s.OrdinalAttributes)
		out.Accumulators = append(out.Accumulators, s.Accumulators...)
	}
	// Later rules win: the setup's own rules from last to first, then
	// those of its bases, most recent base first.
	for i := len(sources) - 1; i >= 0; i-- {
		rules := sources[i].DefaultLifetimes
		for j := len(rules) - 1; j >= 0; j-- {
			out.DefaultLifetimes = append(out.DefaultLifetimes, rules[j])
		}
	}
	out.Bindings = append(out.Bindings, synthesizeBindings(out, all, ts)...)
	out.finalized = true
	return out, nil
}

// collectBases returns the setups that setup inherits from in the order
// their bindings are merged: global setups first, then DependsOn depth
// first.
func collectBases(setup *Setup, all []*Setup, r Reporter) ([]*Setup, error) {
	visited := map[*Setup]bool{setup: true}
	var bases []*Setup
	var visit func(s *Setup) error
	visit = func(s *Setup) error {
		for _, name := range s.DependsOn {
			base := findSetup(all, name)
			if base == nil {
				return fatalf(r, SetupNotFound, locs(s.Location),
					"setup %s depends on %s which does not exist", s, name)
			}
			if visited[base] {
				continue
			}
			visited[base] = true
			if err := visit(base); err != nil {
				return err
			}
			bases = append(bases, base)
		}
		return nil
	}
	if setup.Kind != GlobalSetup {
		for _, s := range all {
			if s.Kind == GlobalSetup && !visited[s] {
				visited[s] = true
				if err := visit(s); err != nil {
					return nil, err
				}
				bases = append(bases, s)
			}
		}
	}
	if err := visit(setup); err != nil {
		return nil, err
	}
	return bases, nil
}

func findSetup(all []*Setup, name string) *Setup {
	for _, s := range all {
		if s.Matches(name) {
			return s
		}
	}
	return nil
}

// FinalizeAll finalizes every setup; setups that fail are left out.
func FinalizeAll(setups []*Setup, ts TypeService, r Reporter) ([]*Setup, error) {
	var out []*Setup
	var firstErr error
	for _, s := range setups {
		f, err := Finalize(s, setups, ts, r)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, f)
	}
	return out, firstErr
}

func appendNewTypes(list, more []*ntypes.Type) []*ntypes.Type {
	for _, t := range more {
		found := false
		for _, x := range list {
			if x == t {
				found = true
				break
			}
		}
		if !found {
			list = append(list, t)
		}
	}
	return list
}

func appendNewStrings(list, more []string) []string {
	for _, s := range more {
		found := false
		for _, x := range list {
			if x == s {
				found = true
				break
			}
		}
		if !found {
			list = append(list, s)
		}
	}
	return list
}
