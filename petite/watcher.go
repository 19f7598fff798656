package petite

import (
	mapset "github.com/deckarep/golang-set/v2"
)

type WatchOptions struct {
	// Deep wraps the nested reactive keys reachable from the watched value
	// once, at registration, so a change at any depth counts as a change
	// even when the top-level reference stays the same.
	Deep bool
	// Immediate fires the callback synchronously at registration with
	// (initialValue, nil).
	Immediate bool
	// Sync runs the reaction inline with the triggering set call,
	// bypassing the queue.
	Sync bool
}

type WatchCallback func(newValue, oldValue any)

// Watcher is an externally registered reaction. Its source re-runs with
// fresh dependency capture on every flush it is enqueued for, and the
// callback fires when the produced value changed.
type Watcher struct {
	node
	rt     *Runtime
	id     uint64
	source func() any
	cb     WatchCallback
	opts   WatchOptions

	last     any
	lastHash uint64
	// deepEdges are the one-time deep subscriptions; unlike tracked edges
	// they survive re-runs and only go away on Unsubscribe.
	deepEdges []mapset.Set[evaluator]

	running   bool
	destroyed bool

	// render-watcher plumbing, set by Instance.Mount.
	force  bool
	before func()
}

// NewWatcher evaluates source once to capture the initial value and
// dependency set, then reacts to changes until Unsubscribe. cb may be nil
// for side-effecting sources.
func NewWatcher(rt *Runtime, source func() any, cb WatchCallback, opts WatchOptions) *Watcher {
	w := &Watcher{
		rt:     rt,
		id:     rt.nextWatcherID,
		source: source,
		cb:     cb,
		opts:   opts,
	}
	rt.nextWatcherID++
	w.node.self = w

	rt.runTracked(w, func() {
		w.last = w.source()
	})
	if opts.Deep {
		w.deepSubscribe(w.last)
		w.lastHash = fingerprint(w.last)
	}
	if opts.Immediate && cb != nil {
		rt.guard(w, func() { cb(w.last, nil) })
	}
	return w
}

// Value returns the value the source produced on its most recent run.
func (w *Watcher) Value() any { return w.last }

func (w *Watcher) notify() {
	if w.destroyed {
		return
	}
	if w.opts.Sync {
		w.run()
		return
	}
	w.rt.enqueue(w)
}

func (w *Watcher) alive() bool { return !w.destroyed }

// run re-evaluates the source and fires the callback when the value
// changed under the store's equality rule. Deep watchers also compare a
// structural fingerprint, so an in-place mutation that keeps the top-level
// reference still counts.
func (w *Watcher) run() {
	if w.destroyed || w.running {
		return
	}
	w.running = true
	defer func() { w.running = false }()

	if w.before != nil {
		w.before()
	}

	old := w.last
	var next any
	w.rt.runTracked(w, func() {
		next = w.source()
	})

	changed := !sameValue(old, next)
	if w.opts.Deep {
		h := fingerprint(next)
		changed = changed || h != w.lastHash
		w.lastHash = h
	}
	w.last = next

	if (changed || w.force) && w.cb != nil {
		w.rt.guard(w, func() { w.cb(next, old) })
	}
}

// Unsubscribe removes the watcher from every dependency set and marks it
// destroyed. Idempotent. An already-enqueued watcher is dropped silently at
// dispatch.
func (w *Watcher) Unsubscribe() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	w.dropEdges()
	for _, set := range w.deepEdges {
		set.Remove(w)
	}
	w.deepEdges = nil
}
