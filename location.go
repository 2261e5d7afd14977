package ncompose

import (
	"sort"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

type Location = ntypes.Location

// LocationClass orders locations in diagnostics: locations in the
// project's own sources come first, then generated files, then files
// outside of the module.
type LocationClass int

const (
	SourceLocation LocationClass = iota
	GeneratedLocation
	ExternalLocation
)

// LocationClassifier is implemented by reporters that know more about the
// project layout than file names reveal.
type LocationClassifier interface {
	ClassifyLocation(Location) LocationClass
}

// DefaultClassifier classifies by file name alone.
type DefaultClassifier struct{}

func (DefaultClassifier) ClassifyLocation(loc Location) LocationClass {
	if IsGeneratedFileName(loc.File) {
		return GeneratedLocation
	}
	return SourceLocation
}

// IsGeneratedFileName recognizes the naming conventions of generated
// Go files.
func IsGeneratedFileName(name string) bool {
	return strings.HasSuffix(name, "_gen.go") ||
		strings.HasSuffix(name, ".gen.go") ||
		strings.HasSuffix(name, ".pb.go")
}

// SortLocations orders locations by class and then by position.  Invalid
// locations are dropped and duplicates removed.
func SortLocations(locs []Location, c LocationClassifier) []Location {
	if c == nil {
		c = DefaultClassifier{}
	}
	seen := make(map[Location]struct{}, len(locs))
	out := make([]Location, 0, len(locs))
	for _, l := range locs {
		if !l.IsValid() {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	classes := make(map[Location]LocationClass, len(out))
	for _, l := range out {
		classes[l] = c.ClassifyLocation(l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if classes[a] != classes[b] {
			return classes[a] < classes[b]
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}
