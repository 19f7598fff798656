package petite

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Computed is a memoized derived value: push-invalidated, pull-recomputed.
// It starts dirty and runs its getter at most once per dirty period no
// matter how many reads arrive.
//
// Only values read through tracking can invalidate it. A getter that
// consults some externally cached global will happily serve stale results;
// that trap is inherited from the model and stays.
type Computed struct {
	node
	rt     *Runtime
	name   string
	getter func() any
	setter func(any)

	value     any
	dirty     bool
	destroyed bool

	// subs are the evaluators that read this node while active, so
	// dirtiness propagates through it.
	subs mapset.Set[evaluator]
}

func NewComputed(rt *Runtime, name string, getter func() any) *Computed {
	c := &Computed{
		rt:     rt,
		name:   name,
		getter: getter,
		dirty:  true,
		subs:   mapset.NewThreadUnsafeSet[evaluator](),
	}
	c.node.self = c
	return c
}

// WithSetter configures the write path. The setter runs untracked; it
// typically issues Set calls on other keys.
func (c *Computed) WithSetter(set func(any)) *Computed {
	c.setter = set
	return c
}

func (c *Computed) Name() string { return c.name }

// Value recomputes if dirty, caches, and returns the cached value in all
// cases. Reading inside another active evaluator links this node as a
// dependency of that evaluator.
func (c *Computed) Value() any {
	if c.destroyed {
		return c.value
	}
	if c.dirty {
		c.rt.runTracked(c, func() {
			c.value = c.getter()
		})
		c.dirty = false
	}
	if ev := c.rt.activeEvaluator(); ev != nil && ev != evaluator(c) && ev.alive() {
		c.subs.Add(ev)
		ev.recordEdge(c.subs)
	}
	return c.value
}

// Peek returns the cache without recomputing or linking. It may be stale.
func (c *Computed) Peek() any { return c.value }

// Write invokes the configured setter with value. A computed without a
// setter rejects the write with NoSetterError and mutates nothing.
func (c *Computed) Write(value any) error {
	if c.setter == nil {
		err := &NoSetterError{Name: c.name}
		c.rt.report(c, err)
		return err
	}
	c.rt.guard(c, func() {
		c.rt.Untrack(func() { c.setter(value) })
	})
	return nil
}

// notify marks the node dirty but recomputes nothing. Subscribers hear
// about it immediately: downstream computeds go dirty in turn, watchers
// enqueue.
func (c *Computed) notify() {
	if c.destroyed || c.dirty {
		return
	}
	c.dirty = true
	if c.subs.Cardinality() == 0 {
		return
	}
	c.rt.markDirty(c)
	for _, ev := range c.subs.ToSlice() {
		ev.notify()
	}
}

func (c *Computed) alive() bool { return !c.destroyed }

// refresh recomputes a dirty node ahead of the watcher pass so watchers
// only ever observe fresh derived values.
func (c *Computed) refresh() {
	if c.destroyed || !c.dirty || c.subs.Cardinality() == 0 {
		return
	}
	c.Value()
}

// teardown unsubscribes the node from the dependency graph in both
// directions. Done once, at instance destruction.
func (c *Computed) teardown() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.dropEdges()
	c.subs.Clear()
	c.rt.dirty.Remove(c)
}
