package chainstack

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type countingWaker struct {
	count atomic.Int64
}

func (x *countingWaker) Wake() { x.count.Add(1) }

type cloningWaker struct {
	countingWaker
	clones atomic.Int64
}

func (x *cloningWaker) CloneWaker() Waker {
	x.clones.Add(1)
	return &x.countingWaker
}

func TestWakerSet_WakeAll(t *testing.T) {
	w := new(countingWaker)
	set := NewWakerSet()
	assert.True(t, set.Empty())

	set.Add(w)
	set.Add(w)
	set.AddShared(w)
	assert.False(t, set.Empty())

	assert.Equal(t, 3, set.WakeAll())
	assert.Equal(t, int64(3), w.count.Load())
	assert.True(t, set.Empty())

	assert.Equal(t, 0, set.WakeAll())
	assert.Equal(t, int64(3), w.count.Load())
}

func TestWakerSet_WakeAll_order(t *testing.T) {
	var order []int
	set := NewWakerSet()
	for i := range 4 {
		set.AddFunc(func() { order = append(order, i) })
	}
	assert.Equal(t, 4, set.WakeAll())
	assert.Equal(t, []int{3, 2, 1, 0}, order)
}

func TestWakerSet_Clear(t *testing.T) {
	w := new(countingWaker)
	set := NewWakerSet()
	for range 5 {
		set.Add(w)
	}
	assert.Equal(t, 5, set.Clear())
	assert.Equal(t, int64(0), w.count.Load())
	assert.True(t, set.Empty())
	assert.Equal(t, 0, set.WakeAll())
	assert.Equal(t, int64(0), w.count.Load())
}

func TestWakerSet_Close(t *testing.T) {
	w := new(countingWaker)
	set := NewWakerSet()
	set.Add(w)
	set.Add(w)
	assert.NoError(t, set.Close())
	assert.Equal(t, int64(2), w.count.Load())
	assert.True(t, set.Empty())

	// still usable
	set.Add(w)
	assert.Equal(t, 1, set.WakeAll())
	assert.Equal(t, int64(3), w.count.Load())
}

func TestWakerSet_nilIgnored(t *testing.T) {
	set := NewWakerSet()
	set.Add(nil)
	set.AddShared(nil)
	set.AddFunc(nil)
	assert.True(t, set.Empty())
	assert.Equal(t, 0, set.WakeAll())
}

func TestWakerSet_AddShared_cloner(t *testing.T) {
	w := new(cloningWaker)
	set := NewWakerSet()
	set.AddShared(w)
	set.AddShared(w)
	set.Add(w)
	assert.Equal(t, int64(2), w.clones.Load())
	assert.Equal(t, 3, set.WakeAll())
	assert.Equal(t, int64(3), w.count.Load())
}

func TestWakerSet_nested(t *testing.T) {
	w := new(countingWaker)
	outer := NewWakerSet()
	inner := NewWakerSet()
	inner.Add(w)
	inner.Add(w)
	outer.Add(inner)
	outer.Add(w)

	assert.Equal(t, 2, outer.WakeAll())
	assert.Equal(t, int64(3), w.count.Load())
	assert.True(t, inner.Empty())
	assert.True(t, outer.Empty())
}

// wakers registered while waking belong to the next call
func TestWakerSet_WakeAll_registerDuringWake(t *testing.T) {
	w := new(countingWaker)
	set := NewWakerSet()
	set.AddFunc(func() { set.Add(w) })

	assert.Equal(t, 1, set.WakeAll())
	assert.Equal(t, int64(0), w.count.Load())
	assert.False(t, set.Empty())

	assert.Equal(t, 1, set.WakeAll())
	assert.Equal(t, int64(1), w.count.Load())
}

func TestWakerSet_WakeAll_panic(t *testing.T) {
	a, c := new(countingWaker), new(countingWaker)
	set := NewWakerSet()
	set.Add(a)
	set.AddFunc(func() { panic(`some panic`) })
	set.Add(c)

	assert.PanicsWithValue(t, `some panic`, func() { set.WakeAll() })
	assert.Equal(t, int64(1), a.count.Load())
	assert.Equal(t, int64(1), c.count.Load())
	assert.True(t, set.Empty())
}

func TestWakerSet_concurrent(t *testing.T) {
	const (
		numProducers = 8
		numWakers    = 1000
	)

	w := new(countingWaker)
	set := NewWakerSet()

	var woken atomic.Int64
	stop := make(chan struct{})
	var consumer errgroup.Group
	consumer.Go(func() error {
		for {
			select {
			case <-stop:
				return nil
			default:
			}
			woken.Add(int64(set.WakeAll()))
		}
	})

	var producers errgroup.Group
	for range numProducers {
		producers.Go(func() error {
			for range numWakers {
				set.Add(w)
			}
			return nil
		})
	}

	require.NoError(t, producers.Wait())
	close(stop)
	require.NoError(t, consumer.Wait())
	woken.Add(int64(set.WakeAll()))

	assert.Equal(t, int64(numProducers*numWakers), woken.Load())
	assert.Equal(t, int64(numProducers*numWakers), w.count.Load())
}

func TestWakerSet_unreachableWakesPending(t *testing.T) {
	w := new(countingWaker)
	func() {
		set := NewWakerSet()
		set.Add(w)
		set.Add(w)
	}()
	assert.Eventually(t, func() bool {
		runtime.GC()
		return w.count.Load() == 2
	}, time.Second*10, time.Millisecond*10)
}

func TestWakerSet_uninitialized(t *testing.T) {
	const msg = `chainstack: WakerSet must be initialized using NewWakerSet`
	for _, set := range [...]*WakerSet{nil, new(WakerSet)} {
		assert.PanicsWithValue(t, msg, func() { set.Add(new(countingWaker)) })
		assert.PanicsWithValue(t, msg, func() { set.AddFunc(func() {}) })
		assert.PanicsWithValue(t, msg, func() { set.WakeAll() })
		assert.PanicsWithValue(t, msg, func() { set.Clear() })
		assert.PanicsWithValue(t, msg, func() { set.Empty() })
		assert.PanicsWithValue(t, msg, func() { set.Wake() })
	}
}

func TestWakerFunc_Wake(t *testing.T) {
	var called int
	WakerFunc(func() { called++ }).Wake()
	assert.Equal(t, 1, called)
}
