package nload

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/muir/ncompose"
)

var hookCounter int32

type hookOrder string

const (
	ForwardOrder hookOrder = "forward"
	ReverseOrder hookOrder = "reverse"
)

type hookID int32

// Hook names a point in a generator run where callbacks fire.
type Hook struct {
	ID            hookID
	lock          sync.Mutex
	Name          string
	Order         hookOrder
	InvokeOnError []*Hook
	ContinuePast  bool
	ErrorCombiner func(first, second error) error
}

// Event is what callbacks receive.  Graph is set for GraphReady only.
type Event struct {
	Runner *Runner
	Result *Result
	Graph  *ncompose.DependencyGraph
}

// Callback is invoked when its hook is.
type Callback func(ctx context.Context, ev Event) error

// Copy returns a hook with the same settings under a fresh ID, so its
// callbacks are registered apart from h.
func (h *Hook) Copy() *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	oe := make([]*Hook, len(h.InvokeOnError))
	copy(oe, h.InvokeOnError)
	return &Hook{
		ID:            hookID(atomic.AddInt32(&hookCounter, 1)),
		Name:          h.Name,
		Order:         h.Order,
		InvokeOnError: oe,
		ContinuePast:  h.ContinuePast,
		ErrorCombiner: h.ErrorCombiner,
	}
}

// NewHook declares a hook whose callbacks run in the given order.
func NewHook(name string, order hookOrder) *Hook {
	return &Hook{
		ID:    hookID(atomic.AddInt32(&hookCounter, 1)),
		Name:  name,
		Order: order,
	}
}

// OnError chains e to run when a callback of h fails.  A nil e drops
// every chained hook.
func (h *Hook) OnError(e *Hook) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	if e == nil {
		h.InvokeOnError = nil
	} else {
		h.InvokeOnError = append(h.InvokeOnError, e)
	}
	return h
}

// SetErrorCombiner merges the failures of a run that keeps going past
// its first failing callback.
func (h *Hook) SetErrorCombiner(f func(first, second error) error) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ErrorCombiner = f
	return h
}

// ContinuePastError makes the remaining callbacks of h run after one
// has failed.
func (h *Hook) ContinuePastError(b bool) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ContinuePast = b
	return h
}

func (h *Hook) String() string {
	return "hook " + h.Name
}

func (h *Hook) settings() (hookOrder, bool, func(first, second error) error, []*Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.Order, h.ContinuePast, h.ErrorCombiner, append([]*Hook(nil), h.InvokeOnError...)
}

// RunFailed is invoked, latest registration first, when a GraphReady
// or RunFinished callback fails.
var RunFailed = NewHook("run-failed", ReverseOrder).ContinuePastError(true)

// GraphReady is invoked once per resolved graph.  Emitters register
// here.
var GraphReady = NewHook("graph-ready", ForwardOrder).OnError(RunFailed)

// RunFinished is invoked after every run, successful or not.
var RunFinished = NewHook("run-finished", ForwardOrder).OnError(RunFailed)

// Hooks holds the callbacks registered per hook.
type Hooks struct {
	lock      sync.Mutex // guards callbacks
	runLock   sync.Mutex // one Do at a time
	callbacks map[hookID][]Callback
}

func NewHooks() *Hooks {
	return &Hooks{callbacks: make(map[hookID][]Callback)}
}

// On registers callbacks for a hook.  Callbacks may register further
// callbacks.
func (hs *Hooks) On(h *Hook, callbacks ...Callback) {
	hs.lock.Lock()
	defer hs.lock.Unlock()
	hs.callbacks[h.ID] = append(hs.callbacks[h.ID], callbacks...)
}

// Do runs the callbacks registered for h and then, if any failed, the
// hooks chained with OnError.  Without an error combiner the first
// failure is returned.  A nil *Hooks does nothing.
func (hs *Hooks) Do(ctx context.Context, h *Hook, ev Event) error {
	if hs == nil {
		return nil
	}
	hs.runLock.Lock()
	defer hs.runLock.Unlock()
	return hs.do(ctx, h, ev)
}

func (hs *Hooks) do(ctx context.Context, h *Hook, ev Event) error {
	order, continuePast, ec, onError := h.settings()
	if ec == nil {
		ec = func(err, _ error) error { return err }
	}
	ecw := func(e1, e2 error) error {
		if e1 == nil {
			return e2
		}
		if e2 == nil {
			return e1
		}
		return ec(e1, e2)
	}
	hs.lock.Lock()
	callbacks := make([]Callback, len(hs.callbacks[h.ID]))
	copy(callbacks, hs.callbacks[h.ID])
	hs.lock.Unlock()
	var err error
	for i := range callbacks {
		cb := callbacks[i]
		if order == ReverseOrder {
			cb = callbacks[len(callbacks)-1-i]
		}
		err = ecw(err, cb(ctx, ev))
		if err != nil && !continuePast {
			break
		}
	}
	if err != nil {
		for _, oe := range onError {
			err = ecw(err, hs.do(ctx, oe, ev))
		}
	}
	return err
}
