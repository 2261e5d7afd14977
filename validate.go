package ncompose

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

// ValidationContext is what validators look at.  Graph and Usage are
// only set for validators that run after resolution.
type ValidationContext struct {
	Setup    *Setup
	All      []*Setup
	Types    TypeService
	Reporter Reporter
	Settings HintSettings
	Graph    *DependencyGraph
	Usage    *UsageRegistry
}

// Validator checks one aspect of a setup.  It reports every problem it
// finds and returns false if any of them is an error.
type Validator func(*ValidationContext) bool

// SetupValidators run on finalized setups before resolution.
var SetupValidators = []Validator{
	ValidateRoots,
	ValidateContracts,
	ValidateGenericMarkers,
	ValidateRootsPresent,
	ValidateInstanceMembers,
}

// ValidateRoots checks root and argument names.  Root names are unique
// within a setup.  Two anonymous roots may not ask for the same type and
// tag; named roots may.
func ValidateRoots(vc *ValidationContext) bool {
	ok := true
	byName := make(map[string]*Root)
	byKey := make(map[string]*Root)
	for _, root := range vc.Setup.Roots {
		if root.Name != "" && !token.IsIdentifier(root.Name) {
			reportf(vc.Reporter, InvalidIdentifier, Error, locs(root.Location),
				"%q is not a valid root name in setup %s", root.Name, vc.Setup)
			ok = false
			continue
		}
		if root.Name != "" {
			if prior, dup := byName[root.Name]; dup {
				reportf(vc.Reporter, DuplicateRoot, Error, locs(root.Location, prior.Location),
					"setup %s has more than one root named %s", vc.Setup, root.Name)
				ok = false
				continue
			}
			byName[root.Name] = root
		}
		key := root.Type.Canonical() + "|" + root.Tag.Key()
		if prior, dup := byKey[key]; dup && root.Name == prior.Name {
			reportf(vc.Reporter, DuplicateRoot, Error, locs(root.Location, prior.Location),
				"setup %s has more than one root for %s", vc.Setup, root)
			ok = false
			continue
		}
		byKey[key] = root
	}
	for _, b := range vc.Setup.Bindings {
		if b.Arg == nil || token.IsIdentifier(b.Arg.Name) {
			continue
		}
		reportf(vc.Reporter, InvalidIdentifier, Error, locs(b.Location),
			"%q is not a valid argument name in setup %s", b.Arg.Name, vc.Setup)
		ok = false
	}
	return ok
}

// ValidateContracts checks that what each binding constructs can be used
// as each of its contracts.
func ValidateContracts(vc *ValidationContext) bool {
	sev := vc.Settings.SeverityOfNotImplementedContract
	if sev == Hidden {
		return true
	}
	ok := true
	for _, b := range vc.Setup.Bindings {
		t := b.Type()
		if t == nil || !checkable(t) {
			continue
		}
		var bad []string
		for _, c := range b.Contracts {
			if c.Type == t || !checkable(c.Type) {
				continue
			}
			if vc.Types.IsSubtype(t, c.Type) {
				continue
			}
			bad = append(bad, c.Type.String())
		}
		if len(bad) == 0 {
			continue
		}
		reportf(vc.Reporter, NotImplementedContract, sev, locs(b.Location),
			"%s does not implement %s", t, strings.Join(bad, ", "))
		if sev == Error {
			ok = false
		}
	}
	return ok
}

// checkable types have declarations the type service can reason about.
func checkable(t *ntypes.Type) bool {
	if t.ContainsMarker() || t.ContainsTypeParam() {
		return false
	}
	d := t.Deref().Decl()
	return d == nil || !d.Opaque
}

// ValidateGenericMarkers rejects markers where a concrete type is needed.
func ValidateGenericMarkers(vc *ValidationContext) bool {
	ok := true
	bad := func(t *ntypes.Type, what string, loc Location) {
		if !pureMarker(t) {
			return
		}
		reportf(vc.Reporter, GenericMarkerMisuse, Error, locs(loc),
			"generic marker %s cannot be used as %s", t, what)
		ok = false
	}
	for _, b := range vc.Setup.Bindings {
		if b.Arg != nil {
			bad(b.Arg.Type, "an argument", b.Location)
		}
	}
	for _, a := range vc.Setup.Accumulators {
		bad(a.Type, "an accumulated type", a.Location)
		bad(a.AccType, "an accumulator", a.Location)
	}
	for _, t := range vc.Setup.SpecialTypes {
		bad(t, "a special type", vc.Setup.Location)
	}
	return ok
}

// pureMarker is true for a marker and for types whose only type
// arguments are markers.
func pureMarker(t *ntypes.Type) bool {
	t = t.Deref()
	if t.IsMarker() {
		return true
	}
	if len(t.Args()) == 0 || t.Kind() != ntypes.Named {
		return false
	}
	for _, a := range t.Args() {
		if !a.IsMarker() {
			return false
		}
	}
	return true
}

// ValidateRootsPresent warns about setups that expose nothing.  Global
// setups exist to be inherited and are exempt.
func ValidateRootsPresent(vc *ValidationContext) bool {
	if vc.Setup.Kind == GlobalSetup || len(vc.Setup.Roots) > 0 {
		return true
	}
	reportf(vc.Reporter, NoRoots, Warning, locs(vc.Setup.Location),
		"setup %s has no composition roots", vc.Setup)
	return true
}

// ValidateInstanceMembers warns when a factory inherited from another
// setup refers to that setup's method receiver: the receiver does not
// exist in the inheriting composition.
func ValidateInstanceMembers(vc *ValidationContext) bool {
	for _, b := range vc.Setup.Bindings {
		if b.OriginSetup == "" || b.OriginSetup == vc.Setup.Name || b.Factory == nil || b.Factory.Lambda == nil {
			continue
		}
		origin := findSetup(vc.All, b.OriginSetup)
		if origin == nil || origin.Receiver == "" {
			continue
		}
		if !refersTo(b.Factory.Lambda, origin.Receiver) {
			continue
		}
		reportf(vc.Reporter, InstanceMemberLeak, Warning, locs(b.Location),
			"factory of %s inherited from %s uses the receiver %s of that setup",
			b, origin, origin.Receiver)
	}
	return true
}

// refersTo reports if the lambda uses name without declaring it.
func refersTo(lit *ast.FuncLit, name string) bool {
	found := false
	ast.Inspect(lit.Body, func(n ast.Node) bool {
		if found {
			return false
		}
		id, ok := n.(*ast.Ident)
		if !ok || id.Name != name {
			return true
		}
		if id.Obj != nil {
			if d, ok := id.Obj.Decl.(ast.Node); ok && d.Pos() >= lit.Pos() && d.End() <= lit.End() {
				return true
			}
		}
		found = true
		return false
	})
	return found
}

// runValidators runs every validator, even after a failure.
func runValidators(vc *ValidationContext, validators []Validator) bool {
	ok := true
	for _, v := range validators {
		if !v(vc) {
			ok = false
		}
	}
	return ok
}
