package ncompose

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrHandled is wrapped by errors for conditions that have already been
// reported.  Callers should unwind without reporting again.
var ErrHandled = errors.New("already reported")

type Severity int

const (
	Hidden Severity = iota
	Info
	Warning
	Error
)

var severityNames = map[Severity]string{
	Hidden:  "Hidden",
	Info:    "Info",
	Warning: "Warning",
	Error:   "Error",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s *Severity) UnmarshalText(text []byte) error {
	for k, v := range severityNames {
		if strings.EqualFold(v, string(text)) {
			*s = k
			return nil
		}
	}
	return errors.Errorf("unknown severity %q", string(text))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DiagnosticID is the stable identifier of a kind of problem.  Tools
// filter and suppress diagnostics by id.
type DiagnosticID string

const (
	CannotResolve                  DiagnosticID = "NCP0001"
	CyclicDependency               DiagnosticID = "NCP0002"
	LifetimeCycle                  DiagnosticID = "NCP0003"
	CannotBuildGraph               DiagnosticID = "NCP0004"
	MaxIterationsExceeded          DiagnosticID = "NCP0005"
	NoAccessibleConstructor        DiagnosticID = "NCP0006"
	InvalidIdentifier              DiagnosticID = "NCP0007"
	DuplicateRoot                  DiagnosticID = "NCP0008"
	NotSupportedSyntax             DiagnosticID = "NCP0009"
	AsyncFactory                   DiagnosticID = "NCP0010"
	GenericMarkerMisuse            DiagnosticID = "NCP0011"
	TypeCannotBeInferred           DiagnosticID = "NCP0012"
	NoRoots                        DiagnosticID = "NCP0013"
	UnusedBinding                  DiagnosticID = "NCP0014"
	NotImplementedContract         DiagnosticID = "NCP0015"
	InstanceMemberLeak             DiagnosticID = "NCP0016"
	NoConstructionMechanism        DiagnosticID = "NCP0017"
	MultipleConstructionMechanisms DiagnosticID = "NCP0018"
	SetupNotFound                  DiagnosticID = "NCP0019"
	GenericArgumentMismatch        DiagnosticID = "NCP0020"
)

var diagnosticTitles = map[DiagnosticID]string{
	CannotResolve:                  "cannot resolve",
	CyclicDependency:               "cyclic dependency detected",
	LifetimeCycle:                  "lifetime does not support cyclic dependencies",
	CannotBuildGraph:               "cannot build dependency graph",
	MaxIterationsExceeded:          "maximum number of iterations exceeded",
	NoAccessibleConstructor:        "no accessible constructor",
	InvalidIdentifier:              "invalid identifier",
	DuplicateRoot:                  "duplicate root",
	NotSupportedSyntax:             "not supported syntax",
	AsyncFactory:                   "asynchronous factory",
	GenericMarkerMisuse:            "generic marker misuse",
	TypeCannotBeInferred:           "type cannot be inferred",
	NoRoots:                        "no composition roots",
	UnusedBinding:                  "unused binding",
	NotImplementedContract:         "contract not implemented",
	InstanceMemberLeak:             "instance member of another setup",
	NoConstructionMechanism:        "no construction mechanism",
	MultipleConstructionMechanisms: "multiple construction mechanisms",
	SetupNotFound:                  "setup not found",
	GenericArgumentMismatch:        "generic argument mismatch",
}

// Title is the short, fixed description of the id.
func (id DiagnosticID) Title() string {
	if t, ok := diagnosticTitles[id]; ok {
		return t
	}
	return string(id)
}

type Diagnostic struct {
	ID        DiagnosticID
	Severity  Severity
	Message   string
	Locations []Location
}

func (d Diagnostic) Location() Location {
	if len(d.Locations) == 0 {
		return Location{}
	}
	return d.Locations[0]
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Location(), d.Severity, d.ID, d.Message)
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(Diagnostic)
}

// Diagnostics collects reported diagnostics.  It is safe for concurrent use.
type Diagnostics struct {
	lock  sync.Mutex
	items []Diagnostic
}

var _ Reporter = &Diagnostics{}

func (ds *Diagnostics) Report(d Diagnostic) {
	ds.lock.Lock()
	defer ds.lock.Unlock()
	ds.items = append(ds.items, d)
}

func (ds *Diagnostics) All() []Diagnostic {
	ds.lock.Lock()
	defer ds.lock.Unlock()
	return append([]Diagnostic(nil), ds.items...)
}

// ByID returns the diagnostics with the given id.
func (ds *Diagnostics) ByID(id DiagnosticID) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds.All() {
		if d.ID == id {
			out = append(out, d)
		}
	}
	return out
}

func (ds *Diagnostics) HasErrors() bool {
	for _, d := range ds.All() {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (ds *Diagnostics) String() string {
	var b strings.Builder
	for _, d := range ds.All() {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func report(r Reporter, d Diagnostic) {
	if d.Severity == Hidden || r == nil {
		return
	}
	c, _ := r.(LocationClassifier)
	d.Locations = SortLocations(d.Locations, c)
	debugf("diagnostic %s", d)
	r.Report(d)
}

func reportf(r Reporter, id DiagnosticID, sev Severity, locs []Location, format string, args ...any) {
	report(r, Diagnostic{
		ID:        id,
		Severity:  sev,
		Message:   fmt.Sprintf(format, args...),
		Locations: locs,
	})
}

// fatalf reports an error and returns an error wrapping ErrHandled.
func fatalf(r Reporter, id DiagnosticID, locs []Location, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	reportf(r, id, Error, locs, "%s", msg)
	return &composeError{
		err: errors.Wrapf(ErrHandled, "%s %s", id, msg),
		id:  id,
	}
}

func locs(l ...Location) []Location { return l }
