package chainstack

import (
	"sync/atomic"
)

type (
	// Stack is a lock-free LIFO collection, supporting concurrent Push, and
	// atomic removal of every item, via Drain.
	//
	// The zero value is an empty stack, ready for use. A Stack must not be
	// copied after first use.
	Stack[T any] struct {
		_    noCopy
		head atomic.Pointer[entry[T]]
	}

	// entry is owned by exactly one of: the head of a Stack, the next field
	// of another entry, or a Drain.
	entry[T any] struct {
		item T
		next *entry[T]
	}

	// noCopy may be embedded into structs which must not be copied after
	// first use, see https://golang.org/issues/8005#issuecomment-190753527
	noCopy struct{}
)

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New returns a new, empty Stack. It is equivalent to new(Stack[T]).
func New[T any]() *Stack[T] {
	return new(Stack[T])
}

// Push adds item to the stack.
//
// Push is lock-free, and may be called from any number of goroutines,
// concurrently with any other method. Under contention, an individual Push
// may retry, but some contending operation always succeeds.
func (x *Stack[T]) Push(item T) {
	e := &entry[T]{item: item}
	x.publish(e, e)
}

// PushAll adds each of items to the stack, in order, as if by calling Push
// for each, except the entire chain is published using a single atomic
// operation, meaning concurrent drains observe either none or all of items.
func (x *Stack[T]) PushAll(items ...T) {
	if len(items) == 0 {
		return
	}
	tail := &entry[T]{item: items[0]}
	first := tail
	for _, item := range items[1:] {
		first = &entry[T]{item: item, next: first}
	}
	x.publish(first, tail)
}

// publish links the chain first..last in front of the current head.
// The chain must be private to the caller.
func (x *Stack[T]) publish(first, last *entry[T]) {
	last.next = x.head.Load()
	for !x.head.CompareAndSwap(last.next, first) {
		last.next = x.head.Load()
	}
}

// Drain atomically detaches every item currently in the stack, returning a
// Drain that exclusively owns them. Items pushed after the detach remain in
// the stack, for a subsequent call.
//
// Concurrent calls to Drain are safe, and each receives a disjoint set of
// items. Applications will usually want a single logical consumer, in order
// to reason about the order in which batches are processed.
func (x *Stack[T]) Drain() *Drain[T] {
	return &Drain[T]{head: x.head.Swap(nil)}
}

// Empty reports whether the stack had no items, at the time of the call.
// The result may be stale by the time it is observed.
func (x *Stack[T]) Empty() bool {
	return x.head.Load() == nil
}
