package ncompose

import (
	"go/ast"
	"go/token"
	"reflect"
	"strings"

	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// Hints are the key/value settings of a setup.  Keys may be given more
// than once; the last value wins.
type Hints map[string][]string

func (h Hints) Get(key string) (string, bool) {
	v := h[key]
	if len(v) == 0 {
		return "", false
	}
	return v[len(v)-1], true
}

func (h Hints) add(key, value string) {
	h[key] = append(h[key], value)
}

func (h Hints) clone() Hints {
	c := make(Hints, len(h))
	for k, v := range h {
		c[k] = append([]string(nil), v...)
	}
	return c
}

// merge returns base values followed by derived values for every key.
func mergeHints(base, derived Hints) Hints {
	out := base.clone()
	for k, v := range derived {
		out[k] = append(out[k], v...)
	}
	return out
}

// HintSettings are the hints that ncompose itself understands.
// Unknown keys are kept in Hints and ignored.
type HintSettings struct {
	SeverityOfNotImplementedContract Severity `hint:"SeverityOfNotImplementedContract"`
	MaxVariants                      int      `hint:"MaxVariants"`
	ReportUnusedBindings             bool     `hint:"ReportUnusedBindings"`
}

const defaultMaxVariants = 4096

func defaultHintSettings() HintSettings {
	return HintSettings{
		SeverityOfNotImplementedContract: Error,
		MaxVariants:                      defaultMaxVariants,
		ReportUnusedBindings:             true,
	}
}

// Settings decodes the known hints on top of the defaults.
func (h Hints) Settings() (HintSettings, error) {
	settings := defaultHintSettings()
	v := reflect.ValueOf(&settings).Elem()
	var err error
	reflectutils.WalkStructElements(v.Type(), func(field reflect.StructField) bool {
		key, ok := field.Tag.Lookup("hint")
		if !ok {
			return true
		}
		value, ok := h.Get(key)
		if !ok {
			return true
		}
		setter, setErr := reflectutils.MakeStringSetter(field.Type)
		if setErr != nil {
			err = errors.Wrapf(setErr, "hint %s", key)
			return false
		}
		if setErr := setter(v.FieldByIndex(field.Index), value); setErr != nil {
			err = errors.Wrapf(setErr, "hint %s=%q", key, value)
			return false
		}
		return true
	})
	return settings, err
}

// commentHints parses "// Key = Value" lines from the comment group that
// ends on the line before line.
func commentHints(fset *token.FileSet, file *ast.File, line int) Hints {
	hints := make(Hints)
	if fset == nil || file == nil {
		return hints
	}
	for _, cg := range file.Comments {
		if fset.Position(cg.End()).Line != line-1 {
			continue
		}
		for _, c := range cg.List {
			text := strings.TrimPrefix(c.Text, "//")
			if text == c.Text {
				continue
			}
			key, value, ok := strings.Cut(text, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if key == "" || strings.ContainsAny(key, " \t") {
				continue
			}
			hints.add(key, strings.TrimSpace(value))
		}
	}
	return hints
}
