package ncompose

import (
	"github.com/pkg/errors"
)

type composeError struct {
	err     error
	id      DiagnosticID
	details string
	// trace re-runs the failed step with tracing turned on
	trace func() string
}

func (ce *composeError) Error() string {
	return ce.err.Error()
}

func (ce *composeError) Unwrap() error {
	return ce.err
}

// DiagnosticIDOf returns the diagnostic id carried by an error returned
// from this package, if there is one.
func DiagnosticIDOf(err error) (DiagnosticID, bool) {
	var ce *composeError
	if errors.As(err, &ce) && ce.id != "" {
		return ce.id, true
	}
	return "", false
}

// DetailedError transforms errors into strings.  If the error came from
// resolving a dependency graph, the resolver trace is included.  When the
// trace was not captured the first time, the failed resolution is run
// again with tracing enabled.
func DetailedError(err error) string {
	var ce *composeError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if ce.details == "" && ce.trace != nil {
		ce.details = ce.trace()
	}
	if ce.details == "" {
		return err.Error()
	}
	return err.Error() + "\n\n" + ce.details
}
