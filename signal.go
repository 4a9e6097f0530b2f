package chainstack

// Signal is a Waker for goroutines, which park by receiving from C.
// Multiple wakes, prior to a receive, coalesce into one.
// Instances must be initialized using the NewSignal factory.
type Signal struct {
	ch chan struct{}
}

// NewSignal initializes a new Signal, which is not yet woken.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Wake marks the signal as woken, without blocking.
func (x *Signal) Wake() {
	select {
	case x.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives once per (coalesced) wake.
func (x *Signal) C() <-chan struct{} {
	return x.ch
}

// Reset consumes any pending wake, returning true if there was one.
func (x *Signal) Reset() bool {
	select {
	case <-x.ch:
		return true
	default:
		return false
	}
}

// CloneWaker returns x, as every registration of a Signal shares its channel.
func (x *Signal) CloneWaker() Waker {
	return x
}
