package nload

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(calls *[]string, name string, err error) Callback {
	return func(context.Context, Event) error {
		*calls = append(*calls, name)
		return err
	}
}

func combine(e1, e2 error) error {
	return errors.New(e1.Error() + "; " + e2.Error())
}

func TestHookOrder(t *testing.T) {
	t.Parallel()
	forward := NewHook("forward", ForwardOrder)
	reverse := NewHook("reverse", ReverseOrder)
	hs := NewHooks()
	var calls []string
	hs.On(forward, recorder(&calls, "f1", nil), recorder(&calls, "f2", nil))
	hs.On(reverse, recorder(&calls, "r1", nil), recorder(&calls, "r2", nil))

	require.NoError(t, hs.Do(context.Background(), forward, Event{}))
	require.NoError(t, hs.Do(context.Background(), reverse, Event{}))
	assert.Equal(t, []string{"f1", "f2", "r2", "r1"}, calls)
}

func TestHookErrors(t *testing.T) {
	t.Parallel()
	failed := NewHook("failed", ReverseOrder).ContinuePastError(true).SetErrorCombiner(combine)
	start := NewHook("start", ForwardOrder).OnError(failed).SetErrorCombiner(combine)
	hs := NewHooks()
	var calls []string
	hs.On(start,
		recorder(&calls, "s1", nil),
		recorder(&calls, "s2", errors.New("s2 error")),
		recorder(&calls, "s3", nil))
	hs.On(failed,
		recorder(&calls, "x1", errors.New("x1 error")),
		recorder(&calls, "x2", errors.New("x2 error")))

	err := hs.Do(context.Background(), start, Event{})
	require.Error(t, err)
	assert.Equal(t, "s2 error; x2 error; x1 error", err.Error())
	assert.Equal(t, []string{"s1", "s2", "x2", "x1"}, calls)
}

func TestHookOnErrorOnlyOnError(t *testing.T) {
	t.Parallel()
	failed := NewHook("failed", ForwardOrder)
	start := NewHook("start", ForwardOrder).OnError(failed)
	hs := NewHooks()
	var calls []string
	hs.On(start, recorder(&calls, "s", nil))
	hs.On(failed, recorder(&calls, "f", nil))
	require.NoError(t, hs.Do(context.Background(), start, Event{}))
	assert.Equal(t, []string{"s"}, calls)

	start.OnError(nil)
	assert.Empty(t, start.InvokeOnError)
}

func TestHookFirstErrorWithoutCombiner(t *testing.T) {
	t.Parallel()
	h := NewHook("h", ForwardOrder).ContinuePastError(true)
	hs := NewHooks()
	var calls []string
	hs.On(h, recorder(&calls, "a", errors.New("a")), recorder(&calls, "b", errors.New("b")))
	err := hs.Do(context.Background(), h, Event{})
	require.Error(t, err)
	assert.Equal(t, "a", err.Error())
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestHookRegisterDuringCallback(t *testing.T) {
	t.Parallel()
	start := NewHook("start", ForwardOrder)
	stop := NewHook("stop", ReverseOrder)
	hs := NewHooks()
	var calls []string
	hs.On(start, func(ctx context.Context, ev Event) error {
		hs.On(stop, recorder(&calls, "stop", nil))
		calls = append(calls, "start")
		return nil
	})
	require.NoError(t, hs.Do(context.Background(), start, Event{}))
	require.NoError(t, hs.Do(context.Background(), stop, Event{}))
	assert.Equal(t, []string{"start", "stop"}, calls)
}

func TestHookCopy(t *testing.T) {
	t.Parallel()
	other := NewHook("other", ForwardOrder)
	h := NewHook("h", ReverseOrder).OnError(other)
	c := h.Copy()
	assert.NotEqual(t, h.ID, c.ID)
	assert.Equal(t, h.Name, c.Name)
	assert.Equal(t, ReverseOrder, c.Order)
	c.OnError(NewHook("more", ForwardOrder))
	assert.Len(t, h.InvokeOnError, 1)
	assert.Len(t, c.InvokeOnError, 2)
	assert.Equal(t, "hook h", h.String())

	var hs *Hooks
	assert.NoError(t, hs.Do(context.Background(), h, Event{}))
}
