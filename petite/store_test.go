package petite_test

import (
	"math"
	"testing"

	"github.com/delaneyj/vueparty/petite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setting a tracked key to an equal value triggers no watcher
func TestSetEqualValueIsNoOp(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"n": 1})

	calls := 0
	petite.NewWatcher(rt, func() any {
		v, _ := store.Get("n")
		return v
	}, func(newValue, oldValue any) {
		calls++
	}, petite.WatchOptions{})

	require.NoError(t, store.Set("n", 1))
	assert.Equal(t, 0, calls)

	require.NoError(t, store.Set("n", 2))
	assert.Equal(t, 1, calls)
}

// NaN counts as equal to itself so rewriting it is not a change
func TestSetNaNIsNotAChange(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"x": math.NaN()})

	calls := 0
	petite.NewWatcher(rt, func() any {
		v, _ := store.Get("x")
		return v
	}, func(newValue, oldValue any) {
		calls++
	}, petite.WatchOptions{})

	require.NoError(t, store.Set("x", math.NaN()))
	assert.Equal(t, 0, calls)

	require.NoError(t, store.Set("x", 1.5))
	assert.Equal(t, 1, calls)
}

// keys not declared at construction abort the operation and leave the store alone
func TestUnknownKeyAborts(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"known": 1})

	_, err := store.Get("nope")
	var unknown *petite.UnknownKeyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Key)

	err = store.Set("nope", 2)
	require.ErrorAs(t, err, &unknown)

	assert.False(t, store.Has("nope"))
	assert.Equal(t, []string{"known"}, store.Keys())
	assert.Len(t, rt.Errors(), 2)
}

// a locked store takes writes at the value level but notifies nobody
func TestLockedStoreSwallowsNotifications(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"n": 1})

	calls := 0
	petite.NewWatcher(rt, func() any {
		v, _ := store.Get("n")
		return v
	}, func(newValue, oldValue any) {
		calls++
	}, petite.WatchOptions{})

	store.Lock()
	require.NoError(t, store.Set("n", 5))
	assert.Equal(t, 0, calls)

	v, err := store.Peek("n")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	store.Unlock()
	require.NoError(t, store.Notify("n"))
	assert.Equal(t, 1, calls)
}

// reads outside any evaluator establish no dependency
func TestUntrackedReadSubscribesNothing(t *testing.T) {
	rt := petite.NewRuntime()
	store := petite.NewStore(rt, map[string]any{"n": 1})

	// plain read, no evaluator active
	v, err := store.Get("n")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	calls := 0
	petite.NewWatcher(rt, func() any {
		var inner any
		rt.Untrack(func() {
			inner, _ = store.Get("n")
		})
		return inner
	}, func(newValue, oldValue any) {
		calls++
	}, petite.WatchOptions{})

	require.NoError(t, store.Set("n", 2))
	assert.Equal(t, 0, calls)
}

// element-level container mutation is invisible until Notify
func TestNotifyIsTheExplicitPathForContainerMutation(t *testing.T) {
	rt := petite.NewRuntime()
	items := []any{1, 2, 3}
	store := petite.NewStore(rt, map[string]any{"items": items})

	sums := 0
	total := petite.NewComputed(rt, "total", func() any {
		v, _ := store.Get("items")
		sums++
		sum := 0
		for _, n := range v.([]any) {
			sum += n.(int)
		}
		return sum
	})

	assert.Equal(t, 6, total.Value())
	assert.Equal(t, 1, sums)

	// in-place mutation keeps the identity, the store cannot see it
	items[0] = 10
	assert.Equal(t, 6, total.Value())
	assert.Equal(t, 1, sums)

	require.NoError(t, store.Notify("items"))
	assert.Equal(t, 15, total.Value())
	assert.Equal(t, 2, sums)
}
