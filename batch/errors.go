package batch

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Collector methods, after the Collector has been
// stopped, using either Shutdown or Close.
var ErrClosed = errors.New(`batch: collector closed`)

// PanicError wraps a value recovered from a panicking Processor, or a
// panicking waker registered via Collector.OnFlush.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("batch: recovered panic: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
