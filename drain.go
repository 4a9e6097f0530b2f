package chainstack

import (
	"iter"
)

// Drain is a one-shot iterator over the items detached by Stack.Drain,
// yielding the most recently pushed item first.
//
// A Drain is owned by a single consumer, and is not safe for concurrent use.
// All methods are safe to call on a nil Drain, which is empty.
type Drain[T any] struct {
	head *entry[T]
}

// Next removes and returns the next item, or returns false if there are no
// more items.
func (x *Drain[T]) Next() (item T, ok bool) {
	if x == nil || x.head == nil {
		return
	}
	e := x.head
	x.head = e.next
	item, ok = e.item, true
	release(e)
	return
}

// All returns an iterator that consumes the Drain. If the loop exits early,
// the unconsumed items remain available, e.g. for Next or Discard.
func (x *Drain[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, ok := x.Next()
			if !ok || !yield(item) {
				return
			}
		}
	}
}

// Empty reports whether there are no more items.
func (x *Drain[T]) Empty() bool {
	return x == nil || x.head == nil
}

// Discard releases every remaining item, returning the number released.
// Subsequent calls return 0.
//
// Entries are released one at a time, in a loop, regardless of the length of
// the chain.
func (x *Drain[T]) Discard() (n int) {
	if x == nil {
		return
	}
	for e := x.head; e != nil; n++ {
		next := e.next
		release(e)
		e = next
	}
	x.head = nil
	return
}

// Count is an alias for Discard, which reads better where the only interest
// is how many items there were.
func (x *Drain[T]) Count() int {
	return x.Discard()
}

// release clears e, so neither the item nor the rest of the chain is
// retained by any lingering reference to e.
func release[T any](e *entry[T]) {
	var zero T
	e.item = zero
	e.next = nil
}
