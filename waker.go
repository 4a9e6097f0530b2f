package chainstack

import (
	"runtime"
)

type (
	// Waker is a handle to a waiting task. Wake may be called any number of
	// times; calls after the first are redundant, but must be harmless.
	Waker interface {
		Wake()
	}

	// WakerFunc implements Waker using a function.
	WakerFunc func()

	// Cloner may be implemented by a Waker that is shared between multiple
	// registrations, and needs each registration to be independent, see
	// WakerSet.AddShared.
	Cloner interface {
		Waker
		CloneWaker() Waker
	}

	// WakerSet is a lock-free set of wakers, which may be woken (or cleared)
	// all at once. It is itself a Waker, meaning sets may be nested.
	// Instances must be initialized using the NewWakerSet factory, the zero
	// value is invalid, and will panic on use.
	//
	// Any wakers still registered when the set becomes unreachable will be
	// woken, by the garbage collector. Wakers that reference the set they are
	// registered with will prevent this, and should be woken or cleared
	// explicitly, e.g. using Close.
	WakerSet struct {
		stack *Stack[Waker]
	}
)

var (
	// compile time assertions

	_ Waker  = WakerFunc(nil)
	_ Waker  = (*WakerSet)(nil)
	_ Cloner = (*Signal)(nil)
)

// Wake calls x.
func (x WakerFunc) Wake() { x() }

// NewWakerSet initializes a new, empty WakerSet.
func NewWakerSet() *WakerSet {
	x := &WakerSet{stack: new(Stack[Waker])}
	// note: must not reference x
	runtime.AddCleanup(x, func(stack *Stack[Waker]) { wakeAll(stack) }, x.stack)
	return x
}

// Add registers w, to be woken by the next WakeAll. Nil values are ignored.
func (x *WakerSet) Add(w Waker) {
	if w == nil {
		return
	}
	x.get().Push(w)
}

// AddShared registers w, which the caller retains, and may register
// elsewhere. If w implements Cloner, the registered value is the result of
// w.CloneWaker, otherwise it is w itself.
func (x *WakerSet) AddShared(w Waker) {
	if c, ok := w.(Cloner); ok {
		w = c.CloneWaker()
	}
	x.Add(w)
}

// AddFunc registers fn as a WakerFunc. Nil values are ignored.
func (x *WakerSet) AddFunc(fn func()) {
	if fn == nil {
		return
	}
	x.get().Push(WakerFunc(fn))
}

// WakeAll atomically removes every registered waker, then wakes each of
// them, returning the number woken. Wakers registered after the removal are
// not woken, and remain for the next call.
//
// If a waker panics, the remaining wakers are still woken, before the panic
// continues.
func (x *WakerSet) WakeAll() int {
	return wakeAll(x.get())
}

// Clear atomically removes every registered waker, without waking them,
// returning the number removed.
func (x *WakerSet) Clear() int {
	return x.get().Drain().Discard()
}

// Empty reports whether no wakers were registered, at the time of the call.
func (x *WakerSet) Empty() bool {
	return x.get().Empty()
}

// Wake implements Waker, by calling WakeAll.
func (x *WakerSet) Wake() {
	x.WakeAll()
}

// Close wakes all registered wakers, and always returns nil. It is provided
// for use with defer, and with io.Closer. The set remains usable.
func (x *WakerSet) Close() error {
	x.WakeAll()
	return nil
}

func (x *WakerSet) get() *Stack[Waker] {
	if x == nil || x.stack == nil {
		panic(`chainstack: WakerSet must be initialized using NewWakerSet`)
	}
	return x.stack
}

func wakeAll(stack *Stack[Waker]) int {
	return wakeDrain(stack.Drain())
}

func wakeDrain(d *Drain[Waker]) (n int) {
	defer func() {
		if !d.Empty() {
			// panicked: still wake the rest
			wakeDrain(d)
		}
	}()
	for {
		w, ok := d.Next()
		if !ok {
			return
		}
		w.Wake()
		n++
	}
}
