// Package batch collects jobs from any number of goroutines, without locking,
// and passes them to a processor in batches, e.g. to reduce the number of
// round trips.
//
// Unlike [github.com/joeycumines/go-microbatch], submitting a job never
// blocks, and never waits for a result. Callers that need to know when their
// jobs have been processed may use Collector.Flush or Collector.OnFlush.
package batch
