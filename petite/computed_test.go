package petite_test

import (
	"testing"

	"github.com/delaneyj/vueparty/petite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reading a clean computed twice invokes its getter exactly once
func TestComputedMemoizes(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"a": 1, "b": 10})

	runs := 0
	double := petite.NewComputed(rt, "double", func() any {
		runs++
		v, _ := store.Get("a")
		return v.(int) * 2
	})

	assert.Equal(t, 2, double.Value())
	assert.Equal(t, 2, double.Value())
	assert.Equal(t, 1, runs)

	// mutating a key the node never read leaves it clean
	require.NoError(t, store.Set("b", 11))
	assert.Equal(t, 2, double.Value())
	assert.Equal(t, 1, runs)

	require.NoError(t, store.Set("a", 3))
	assert.Equal(t, 6, double.Value())
	assert.Equal(t, 2, runs)
}

// invalidation is push-only, recomputation is pull-only
func TestComputedIsLazy(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"a": 1})

	runs := 0
	c := petite.NewComputed(rt, "c", func() any {
		runs++
		v, _ := store.Get("a")
		return v
	})

	assert.Equal(t, 0, runs)
	c.Value()
	assert.Equal(t, 1, runs)

	// three writes, still no recomputation until the next read
	require.NoError(t, store.Set("a", 2))
	require.NoError(t, store.Set("a", 3))
	require.NoError(t, store.Set("a", 4))
	assert.Equal(t, 1, runs)

	assert.Equal(t, 4, c.Value())
	assert.Equal(t, 2, runs)
}

// dirtiness propagates through computed chains and watchers see fresh values
func TestComputedChainPropagates(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"a": 1})

	doubleRuns, quadRuns := 0, 0
	double := petite.NewComputed(rt, "double", func() any {
		doubleRuns++
		v, _ := store.Get("a")
		return v.(int) * 2
	})
	quad := petite.NewComputed(rt, "quad", func() any {
		quadRuns++
		return double.Value().(int) * 2
	})

	var seen []int
	petite.NewWatcher(rt, func() any {
		return quad.Value()
	}, func(newValue, oldValue any) {
		seen = append(seen, newValue.(int))
	}, petite.WatchOptions{})

	assert.Equal(t, 1, doubleRuns)
	assert.Equal(t, 1, quadRuns)

	require.NoError(t, store.Set("a", 2))
	assert.Equal(t, []int{8}, seen)
	// dirty nodes with live subscribers refresh once per flush, then the
	// watcher's own re-read finds them clean
	assert.Equal(t, 2, doubleRuns)
	assert.Equal(t, 2, quadRuns)
}

// a setter writes through to other keys and never tracks anything
func TestComputedSetter(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"celsius": 0.0})

	fahrenheit := petite.NewComputed(rt, "fahrenheit", func() any {
		v, _ := store.Get("celsius")
		return v.(float64)*9/5 + 32
	}).WithSetter(func(v any) {
		_ = store.Set("celsius", (v.(float64)-32)*5/9)
	})

	assert.Equal(t, 32.0, fahrenheit.Value())

	require.NoError(t, fahrenheit.Write(212.0))
	assert.Equal(t, 212.0, fahrenheit.Value())

	v, _ := store.Peek("celsius")
	assert.InDelta(t, 100.0, v.(float64), 1e-9)
}

// a getter-only computed rejects writes and mutates nothing
func TestComputedWithoutSetterRejectsWrite(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"a": 1})

	c := petite.NewComputed(rt, "readonly", func() any {
		v, _ := store.Get("a")
		return v
	})
	assert.Equal(t, 1, c.Value())

	err := c.Write(99)
	var noSetter *petite.NoSetterError
	require.ErrorAs(t, err, &noSetter)
	assert.Equal(t, "readonly", noSetter.Name)

	v, _ := store.Peek("a")
	assert.Equal(t, 1, v)
}

// values read outside tracking never invalidate the node
func TestComputedOnlyTracksStoreReads(t *testing.T) {
	rt := petite.NewRuntime()

	external := 1
	runs := 0
	c := petite.NewComputed(rt, "c", func() any {
		runs++
		return external
	})

	assert.Equal(t, 1, c.Value())

	// the node has no idea this happened and stays stale
	external = 2
	assert.Equal(t, 1, c.Value())
	assert.Equal(t, 1, runs)
}

// a panicking getter is caught at the evaluator boundary and reported
func TestComputedGetterPanicIsReported(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"a": 1})

	c := petite.NewComputed(rt, "explosive", func() any {
		v, _ := store.Get("a")
		if v.(int) > 1 {
			panic("boom")
		}
		return v
	})

	assert.Equal(t, 1, c.Value())

	require.NoError(t, store.Set("a", 2))
	// the read survives, serving the last good cache
	assert.Equal(t, 1, c.Value())
	require.Len(t, rt.Errors(), 1)
	assert.Contains(t, rt.Errors()[0].Error(), "boom")
}
