package ncompose

import (
	"github.com/muir/ncompose/ntypes"
)

// lifetimeOf picks the lifetime of a binding: its own, else the first
// default-lifetime rule for one of its types, else the first rule that
// names no type, else Transient.  Rules are in precedence order.
func lifetimeOf(b *Binding, rules []DefaultLifetimeRule, ts TypeService) Lifetime {
	if b.Lifetime != UnsetLifetime {
		return b.Lifetime
	}
	for _, rule := range rules {
		if rule.Type != nil && ruleMatches(rule, b, ts) {
			return rule.Lifetime
		}
	}
	for _, rule := range rules {
		if rule.Type == nil {
			return rule.Lifetime
		}
	}
	return Transient
}

func ruleMatches(rule DefaultLifetimeRule, b *Binding, ts TypeService) bool {
	matchType := func(t *ntypes.Type) bool {
		if t == nil {
			return false
		}
		if t == rule.Type {
			return true
		}
		if rule.Type.IsGeneric() && ts.Origin(t.Deref()) == rule.Type {
			return true
		}
		return false
	}
	if len(rule.Tags) == 0 {
		if matchType(b.Type()) {
			return true
		}
		for _, c := range b.Contracts {
			if matchType(c.Type) {
				return true
			}
		}
		return false
	}
	for _, c := range b.Contracts {
		if !matchType(c.Type) && !matchType(b.Type()) {
			continue
		}
		for _, tag := range rule.Tags {
			if hasTag(b.contractTags(c), tag) {
				return true
			}
		}
	}
	return false
}
