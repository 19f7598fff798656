// Package petite is a reactive state-binding core: declared keys propagate
// changes to memoized computed values and registered watchers through a
// batched, coalescing scheduler.
//
// Everything hangs off an explicit Runtime, which carries the active
// evaluator stack, the update queue and the error reporter. Stores hold the
// tracked keys, Computeds derive from them lazily, Watchers react to them,
// and Instance ties one definition's worth of all three to a lifecycle.
//
// The core is purely in-memory and single-threaded cooperative: writes are
// synchronous and immediately visible to reads, reactions are deferred to
// the flush at the end of the triggering call (or batch) unless registered
// as Sync.
package petite
