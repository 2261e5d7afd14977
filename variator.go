package ncompose

import (
	"iter"
)

// EnumeratorState is the state of a SafeEnumerator.
type EnumeratorState uint8

const (
	NotStarted EnumeratorState = iota
	HasValue
	Exhausted
)

// SafeEnumerator walks a sequence that can be restarted.  Current is only
// meaningful in the HasValue state.
type SafeEnumerator[T any] struct {
	seq     iter.Seq[T]
	next    func() (T, bool)
	stop    func()
	state   EnumeratorState
	current T
}

func NewSafeEnumerator[T any](seq iter.Seq[T]) *SafeEnumerator[T] {
	return &SafeEnumerator[T]{seq: seq}
}

// SliceEnumerator enumerates the values of a slice.
func SliceEnumerator[T any](values []T) *SafeEnumerator[T] {
	return NewSafeEnumerator(func(yield func(T) bool) {
		for _, v := range values {
			if !yield(v) {
				return
			}
		}
	})
}

func (e *SafeEnumerator[T]) State() EnumeratorState { return e.state }

func (e *SafeEnumerator[T]) Current() T { return e.current }

// MoveNext advances to the next value.  It returns false, and stays
// false, once the sequence is exhausted.
func (e *SafeEnumerator[T]) MoveNext() bool {
	if e.state == Exhausted {
		return false
	}
	if e.next == nil {
		e.next, e.stop = iter.Pull(e.seq)
	}
	v, ok := e.next()
	if !ok {
		e.state = Exhausted
		var zero T
		e.current = zero
		e.release()
		return false
	}
	e.current = v
	e.state = HasValue
	return true
}

// Reset returns to the NotStarted state.
func (e *SafeEnumerator[T]) Reset() {
	e.release()
	var zero T
	e.current = zero
	e.state = NotStarted
}

func (e *SafeEnumerator[T]) release() {
	if e.stop != nil {
		e.stop()
	}
	e.next = nil
	e.stop = nil
}

// Variator yields every combination of the values of its enumerators,
// like an odometer: the first enumerator moves fastest.
type Variator[T any] struct {
	enumerators []*SafeEnumerator[T]
	started     bool
	done        bool
}

func NewVariator[T any](enumerators ...*SafeEnumerator[T]) *Variator[T] {
	return &Variator[T]{enumerators: enumerators}
}

// Next advances to the next combination.  It returns false when every
// combination has been produced.  A Variator without enumerators
// produces one empty combination.
func (v *Variator[T]) Next() bool {
	if v.done {
		return false
	}
	if !v.started {
		v.started = true
		for _, e := range v.enumerators {
			if !e.MoveNext() {
				v.finish()
				return false
			}
		}
		return true
	}
	for i, e := range v.enumerators {
		if !e.MoveNext() {
			continue
		}
		for _, before := range v.enumerators[:i] {
			before.Reset()
			if !before.MoveNext() {
				v.finish()
				return false
			}
		}
		return true
	}
	v.finish()
	return false
}

// Current returns the value of each enumerator.
func (v *Variator[T]) Current() []T {
	out := make([]T, len(v.enumerators))
	for i, e := range v.enumerators {
		out[i] = e.Current()
	}
	return out
}

// Close releases the enumerators.
func (v *Variator[T]) Close() {
	v.finish()
}

func (v *Variator[T]) finish() {
	v.done = true
	for _, e := range v.enumerators {
		e.release()
	}
}
