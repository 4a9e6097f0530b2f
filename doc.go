// Package chainstack implements a lock-free, multi-producer collection that
// supports appending items, and atomically draining all of them at once, plus
// a WakerSet, which fans out notifications to waiting tasks.
//
// The Stack is a singly-linked list with an atomic head. Producers push using
// a compare-and-swap loop, and consumers detach the entire list with a single
// swap, receiving a Drain, which exclusively owns the detached entries. No
// locks are taken anywhere, and ownership of each entry is only ever
// transferred, never shared, so no reclamation scheme is required.
//
// Items are drained newest first. Callers that need submission order should
// reverse each drained batch, see [github.com/joeycumines/go-chainstack/batch]
// for an example.
package chainstack
