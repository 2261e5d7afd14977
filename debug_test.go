package ncompose

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugOn(t *testing.T) {
	debugOutputMu.Lock()
	debuglnHook = func(stuff ...any) {
		t.Log(stuff...)
	}
	debugfHook = func(format string, stuff ...any) {
		t.Logf(format+"\n", stuff...)
	}
	debugOutputMu.Unlock()
	atomic.StoreUint32(&debug, 1)
}

func debugOff() {
	debugOutputMu.Lock()
	debuglnHook = nil
	debugfHook = nil
	debugOutputMu.Unlock()
	atomic.StoreUint32(&debug, 0)
}

func wrapTest(t *testing.T, inner func(*testing.T)) {
	namedWrapTest(t, "", inner)
}

func namedWrapTest(t *testing.T, name string, inner func(*testing.T)) {
	if !t.Run("1st attempt"+name, func(t *testing.T) { inner(t) }) {
		t.Run("2nd attempt"+name, func(t *testing.T) {
			debugOn(t)
			defer debugOff()
			inner(t)
		})
	}
}

func TestDetailedError(t *testing.T) {
	p := newTestProject(t, `
type IA interface{ A() }
type IB interface{ B() }

type A2 struct {
	B IB `+"`di:\"\"`"+`
}

func (*A2) A() {}

type A3 struct {
	B IB `+"`di:\"\"`"+`
}

func (*A3) A() {}

type B2 struct {
	A IA `+"`di:\"\"`"+`
}

func (*B2) B() {}
`)
	_, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[IA]().To[*A2]().
		Bind[IA]().To[*A3]().
		Bind[IB]().To[*B2]().
		Root[IA]("A")
}
`, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandled))
	id, ok := DiagnosticIDOf(err)
	require.True(t, ok)
	assert.Equal(t, CannotBuildGraph, id)

	detailed := DetailedError(err)
	require.NotEqual(t, err.Error(), detailed, "detailed should have more")
	assert.True(t, strings.HasPrefix(detailed, err.Error()))
	assert.Contains(t, detailed, "rejected")
	t.Log("detailed error", detailed)
}

func TestDetailedErrorPlain(t *testing.T) {
	t.Parallel()
	err := errors.New("plain")
	assert.Equal(t, "plain", DetailedError(err))
}
