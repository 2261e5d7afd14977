package ncompose

import (
	"sync"

	"github.com/muir/ncompose/ntypes"
)

// UsageRegistry records which bindings the resolved graphs use.  It is
// shared by every graph of a pass and is safe for concurrent use.
type UsageRegistry struct {
	lock       sync.Mutex
	used       map[string]map[int]struct{}
	overridden map[string]map[string]struct{}
}

func NewUsageRegistry() *UsageRegistry {
	return &UsageRegistry{
		used:       make(map[string]map[int]struct{}),
		overridden: make(map[string]map[string]struct{}),
	}
}

func (u *UsageRegistry) MarkUsed(setup string, ids ...int) {
	u.lock.Lock()
	defer u.lock.Unlock()
	m, ok := u.used[setup]
	if !ok {
		m = make(map[int]struct{})
		u.used[setup] = m
	}
	for _, id := range ids {
		m[id] = struct{}{}
	}
}

// MarkOverridden records that a graph of setup replaces injections of
// t with tag by an override value.
func (u *UsageRegistry) MarkOverridden(setup string, t *ntypes.Type, tag Tag) {
	u.lock.Lock()
	defer u.lock.Unlock()
	m, ok := u.overridden[setup]
	if !ok {
		m = make(map[string]struct{})
		u.overridden[setup] = m
	}
	m[t.Canonical()+"|"+tag.Key()] = struct{}{}
}

// IsUsed reports if any of ids was used by a graph of setup.
func (u *UsageRegistry) IsUsed(setup string, ids ...int) bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	m := u.used[setup]
	for _, id := range ids {
		if _, ok := m[id]; ok {
			return true
		}
	}
	return false
}

func (u *UsageRegistry) isOverridden(setup string, t *ntypes.Type, tag Tag) bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	_, ok := u.overridden[setup][t.Canonical()+"|"+tag.Key()]
	return ok
}

// ValidateUnused warns about bindings that no graph needed.  It only
// looks at bindings the setup authored with an explicit contract, and
// only once every graph of the pass has been resolved.  A binding whose
// contract is overridden somewhere counts as used.
func ValidateUnused(vc *ValidationContext) bool {
	if vc.Usage == nil || !vc.Settings.ReportUnusedBindings || len(vc.Setup.Roots) == 0 {
		return true
	}
	name := vc.Setup.Name
	for _, b := range vc.Setup.Bindings {
		if b.OriginSetup != name || b.Synthetic != "" || b.Arg != nil || !b.hasExplicitContract() {
			continue
		}
		if vc.Usage.IsUsed(name, append([]int{b.ID}, b.OriginalIDs...)...) || overriddenContract(vc.Usage, name, b) {
			continue
		}
		reportf(vc.Reporter, UnusedBinding, Warning, locs(b.Location),
			"binding %s of setup %s is never used", b, vc.Setup)
	}
	return true
}

func overriddenContract(u *UsageRegistry, setup string, b *Binding) bool {
	for _, c := range b.Contracts {
		for _, tag := range tagSet(b.contractTags(c)) {
			if u.isOverridden(setup, c.Type, tag) {
				return true
			}
		}
	}
	return false
}
