package petite

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultMaxFlushPasses bounds how many back-to-back passes a single flush
// may take before the runtime gives up and reports an UpdateLoopError.
const DefaultMaxFlushPasses = 100

// OnErrorFunc receives every error caught at an evaluator boundary. from is
// the Store, Computed, Watcher, Instance or Runtime the error originated
// in. The reporter must not panic.
type OnErrorFunc func(from any, err error)

type RuntimeOption func(*Runtime)

// WithErrorReporter replaces the default recording reporter.
func WithErrorReporter(fn OnErrorFunc) RuntimeOption {
	return func(rt *Runtime) { rt.onError = fn }
}

// WithStrictPaths makes path watch registration fail with InvalidPathError
// instead of letting missing paths resolve to nil.
func WithStrictPaths() RuntimeOption {
	return func(rt *Runtime) { rt.strictPaths = true }
}

// WithMaxFlushPasses overrides DefaultMaxFlushPasses.
func WithMaxFlushPasses(n int) RuntimeOption {
	return func(rt *Runtime) { rt.maxFlushPasses = n }
}

// Runtime is the evaluation context and scheduler shared by every store,
// computed and watcher built on it. It is an explicit object rather than an
// ambient singleton, so logically independent instances interleaved on the
// same goroutine never cross-attribute dependencies.
//
// The execution model is single-threaded and cooperative; nothing here
// locks. One runtime must not be driven from multiple goroutines at once.
type Runtime struct {
	// active is the evaluation stack. Tracked reads attribute to the
	// topmost entry only; a nil entry suspends tracking (Untrack).
	active []evaluator

	queue  []*Watcher
	queued mapset.Set[*Watcher]
	dirty  mapset.Set[*Computed]

	flushing   bool
	batchDepth int

	nextWatcherID uint64

	strictPaths    bool
	maxFlushPasses int
	onError        OnErrorFunc
	errs           []error
}

func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		queued:         mapset.NewThreadUnsafeSet[*Watcher](),
		dirty:          mapset.NewThreadUnsafeSet[*Computed](),
		maxFlushPasses: DefaultMaxFlushPasses,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.onError == nil {
		rt.onError = func(from any, err error) {
			rt.errs = append(rt.errs, err)
		}
	}
	return rt
}

// Errors returns everything the default reporter recorded so far. Empty
// when a custom reporter is installed.
func (rt *Runtime) Errors() []error {
	out := make([]error, len(rt.errs))
	copy(out, rt.errs)
	return out
}

func (rt *Runtime) activeEvaluator() evaluator {
	if len(rt.active) == 0 {
		return nil
	}
	return rt.active[len(rt.active)-1]
}

// runTracked runs thunk with ev as the active subscriber. The evaluator's
// previous outgoing edges are dropped first, so code paths the new run
// never reaches stop notifying it. A panic inside thunk is caught at this
// boundary and routed to the reporter.
func (rt *Runtime) runTracked(ev evaluator, thunk func()) {
	ev.dropEdges()
	rt.active = append(rt.active, ev)
	defer func() {
		rt.active = rt.active[:len(rt.active)-1]
		if r := recover(); r != nil {
			rt.report(ev, recoveredError(r))
		}
	}()
	thunk()
}

// Untrack runs fn with tracking suspended: reads inside it establish no
// dependencies.
func (rt *Runtime) Untrack(fn func()) {
	rt.active = append(rt.active, nil)
	defer func() { rt.active = rt.active[:len(rt.active)-1] }()
	fn()
}

// guard runs fn, routing any panic to the error reporter instead of letting
// it unwind. A single failing reaction must not take down its siblings or
// the surrounding flush.
func (rt *Runtime) guard(from any, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rt.report(from, recoveredError(r))
		}
	}()
	fn()
}

func (rt *Runtime) report(from any, err error) {
	rt.onError(from, err)
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// StartBatch suspends flushing until the matching EndBatch.
func (rt *Runtime) StartBatch() {
	rt.batchDepth++
}

// EndBatch closes the innermost batch; the outermost EndBatch flushes
// everything the batch coalesced.
func (rt *Runtime) EndBatch() {
	if rt.batchDepth == 0 {
		return
	}
	rt.batchDepth--
	if rt.batchDepth == 0 {
		rt.schedule()
	}
}

// Batch runs fn as a single tick: writes inside it coalesce, and N
// mutations of one key reach each dependent watcher as at most one callback
// when the batch ends.
func (rt *Runtime) Batch(fn func()) {
	rt.StartBatch()
	defer rt.EndBatch()
	fn()
}

// enqueue adds w to the pending queue, deduplicated by identity.
func (rt *Runtime) enqueue(w *Watcher) {
	if w.destroyed || rt.queued.Contains(w) {
		return
	}
	rt.queued.Add(w)
	rt.queue = append(rt.queue, w)
}

func (rt *Runtime) markDirty(c *Computed) {
	rt.dirty.Add(c)
}

func (rt *Runtime) schedule() {
	if rt.batchDepth > 0 || rt.flushing {
		return
	}
	rt.flush()
}

// flush drains the update queue. Each pass first refreshes dirty computeds
// that still have live subscribers, so watchers only ever observe fresh
// derived values, then runs pending watchers in order of original
// registration. A watcher runs at most once per pass; anything a reaction
// re-enqueues is deferred to the next pass. Passes are capped to keep a
// self-triggering reaction from spinning forever.
func (rt *Runtime) flush() {
	rt.flushing = true
	defer func() { rt.flushing = false }()

	for pass := 0; len(rt.queue) > 0 || rt.dirty.Cardinality() > 0; pass++ {
		if pass >= rt.maxFlushPasses {
			rt.report(rt, &UpdateLoopError{Passes: pass})
			for _, w := range rt.queue {
				rt.queued.Remove(w)
			}
			rt.queue = rt.queue[:0]
			rt.dirty.Clear()
			return
		}

		for _, c := range rt.dirty.ToSlice() {
			rt.dirty.Remove(c)
			c.refresh()
		}

		pending := rt.queue
		rt.queue = nil
		sort.Slice(pending, func(a, b int) bool {
			return pending[a].id < pending[b].id
		})
		for _, w := range pending {
			rt.queued.Remove(w)
			if w.destroyed {
				// unsubscribed while enqueued, dropped silently
				continue
			}
			w.run()
		}
	}
}
