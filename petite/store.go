package petite

import (
	"math"
	"reflect"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Store holds the reactive keys of one instance. The key set is fixed at
// construction: keys not present in the initial map never participate in
// tracking. That is an intentional limitation, not a bug.
//
// The store does not intercept mutation inside container values. Element
// level changes must go through Set with a fresh value or through Notify;
// deep watchers cover nested stores.
type Store struct {
	rt     *Runtime
	values map[string]any
	subs   map[string]mapset.Set[evaluator]
	locked bool
}

func NewStore(rt *Runtime, initial map[string]any) *Store {
	s := &Store{
		rt:     rt,
		values: make(map[string]any, len(initial)),
		subs:   make(map[string]mapset.Set[evaluator], len(initial)),
	}
	for key, value := range initial {
		s.values[key] = value
		s.subs[key] = mapset.NewThreadUnsafeSet[evaluator]()
	}
	return s
}

// Get returns the current value of key. If an evaluator is active the read
// subscribes it to the key; reads outside any evaluator establish nothing.
func (s *Store) Get(key string) (any, error) {
	v, ok := s.get(key)
	if !ok {
		err := &UnknownKeyError{Key: key}
		s.rt.report(s, err)
		return nil, err
	}
	return v, nil
}

// get is the non-reporting lookup used by path resolution, where a missing
// segment is legal.
func (s *Store) get(key string) (any, bool) {
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	s.track(key)
	return v, true
}

// Set stores value under key and notifies the key's subscribers. Writing an
// equal value is a no-op; NaN counts as equal to itself so it never
// retriggers. On a locked store the value is taken but nobody is notified.
func (s *Store) Set(key string, value any) error {
	old, ok := s.values[key]
	if !ok {
		err := &UnknownKeyError{Key: key}
		s.rt.report(s, err)
		return err
	}
	if sameValue(old, value) {
		return nil
	}
	s.values[key] = value
	if s.locked {
		return nil
	}
	s.notifyKey(key)
	return nil
}

// Notify wakes every subscriber of key without changing its value: the
// explicit path for element-level mutation inside a container the store
// cannot see.
func (s *Store) Notify(key string) error {
	if _, ok := s.values[key]; !ok {
		err := &UnknownKeyError{Key: key}
		s.rt.report(s, err)
		return err
	}
	if !s.locked {
		s.notifyKey(key)
	}
	return nil
}

// MustGet is Get for contexts that cannot return an error; the panic is
// caught at the surrounding evaluator boundary like any other.
func (s *Store) MustGet(key string) any {
	v, err := s.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

// Peek reads key without subscribing anything.
func (s *Store) Peek(key string) (any, error) {
	v, ok := s.values[key]
	if !ok {
		err := &UnknownKeyError{Key: key}
		s.rt.report(s, err)
		return nil, err
	}
	return v, nil
}

// Has reports whether key was declared at construction.
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the declared keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Lock freezes notifications: writes still land at the value level but
// subscribers hear nothing until Unlock. Per-store, not per-key.
func (s *Store) Lock() { s.locked = true }

func (s *Store) Unlock() { s.locked = false }

func (s *Store) Locked() bool { return s.locked }

func (s *Store) track(key string) {
	ev := s.rt.activeEvaluator()
	if ev == nil || !ev.alive() {
		return
	}
	set := s.subs[key]
	set.Add(ev)
	ev.recordEdge(set)
}

func (s *Store) notifyKey(key string) {
	set := s.subs[key]
	if set.Cardinality() == 0 {
		return
	}
	// snapshot: evaluators rewire their edges while being notified
	for _, ev := range set.ToSlice() {
		ev.notify()
	}
	s.rt.schedule()
}

// sameValue is the equality rule every change check uses: strict
// value/identity comparison with NaN equal to itself. Containers compare by
// identity, so an in-place mutation does not count as a change on its own;
// route it through Notify or cover it with a deep watcher.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if !va.Comparable() {
		return false
	}
	return va.Equal(vb)
}
