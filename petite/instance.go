package petite

import (
	"fmt"
	"sort"
)

// Definition declares everything an instance owns up front. The reactive
// key set is exactly Data's key set; nothing added later is tracked.
type Definition struct {
	Data     map[string]any
	Computed map[string]ComputedDef
	Methods  map[string]MethodFunc
	Watch    map[string]WatchDef
	Hooks    Hooks
}

// ComputedDef pairs a getter with an optional setter, both receiving the
// instance.
type ComputedDef struct {
	Get func(i *Instance) any
	Set func(i *Instance, value any)
}

type MethodFunc func(i *Instance, args ...any) any

// WatchDef is a watcher declared in the definition, keyed by its path
// expression.
type WatchDef struct {
	Handler WatchHandler
	Options WatchOptions
}

type WatchHandler func(i *Instance, newValue, oldValue any)

type UnsubscribeFunc func()

// Raw data, computeds and methods share one registry as a tagged variant,
// dispatched by kind rather than through a type hierarchy.
type propKind int

const (
	propRaw propKind = iota
	propComputed
	propMethod
)

type property struct {
	kind     propKind
	computed *Computed
	method   MethodFunc
}

// Instance owns a store, a computed registry, its watchers and a hook
// registry, and walks the created → mounted → updated* → destroyed path
// exactly once.
type Instance struct {
	rt       *Runtime
	store    *Store
	registry map[string]property
	watchers []*Watcher
	hooks    map[Stage][]HookFunc
	state    LifecycleState

	renderWatcher *Watcher
}

// Construct builds an instance from def: store first, then computeds,
// methods and declared watchers, then the created hooks fire synchronously
// in registration order.
func Construct(rt *Runtime, def Definition) *Instance {
	i := &Instance{
		rt:       rt,
		registry: make(map[string]property, len(def.Data)+len(def.Computed)+len(def.Methods)),
		hooks:    make(map[Stage][]HookFunc),
		state:    StateCreated,
	}
	i.store = NewStore(rt, def.Data)
	for key := range def.Data {
		i.registry[key] = property{kind: propRaw}
	}

	for _, name := range sortedKeys(def.Computed) {
		if _, taken := i.registry[name]; taken {
			rt.report(i, fmt.Errorf("definition declares %q more than once", name))
			continue
		}
		cd := def.Computed[name]
		get := cd.Get
		c := NewComputed(rt, name, func() any { return get(i) })
		if cd.Set != nil {
			set := cd.Set
			c.WithSetter(func(v any) { set(i, v) })
		}
		i.registry[name] = property{kind: propComputed, computed: c}
	}

	for _, name := range sortedKeys(def.Methods) {
		if _, taken := i.registry[name]; taken {
			rt.report(i, fmt.Errorf("definition declares %q more than once", name))
			continue
		}
		i.registry[name] = property{kind: propMethod, method: def.Methods[name]}
	}

	for stage, fns := range def.Hooks {
		i.hooks[stage] = append(i.hooks[stage], fns...)
	}

	for _, path := range sortedKeys(def.Watch) {
		wd := def.Watch[path]
		i.Watch(path, wd.Handler, wd.Options)
	}

	i.invokeHooks(StageCreated)
	return i
}

// Runtime returns the evaluation context the instance was built on.
func (i *Instance) Runtime() *Runtime { return i.rt }

// Store exposes the underlying store, mainly so nested stores can be
// assembled before construction.
func (i *Instance) Store() *Store { return i.store }

// Get resolves name through the registry: raw keys read the store,
// computed names pull the node, method names return the bound function.
func (i *Instance) Get(name string) (any, error) {
	p, ok := i.registry[name]
	if !ok {
		err := &UnknownKeyError{Key: name}
		i.rt.report(i, err)
		return nil, err
	}
	switch p.kind {
	case propComputed:
		return p.computed.Value(), nil
	case propMethod:
		return p.method, nil
	default:
		return i.store.Get(name)
	}
}

// MustGet is Get for getters and tests; it panics on unknown names, and the
// panic is caught at the surrounding evaluator boundary like any other.
func (i *Instance) MustGet(name string) any {
	v, err := i.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set writes name: raw keys go to the store, computed names go through
// their setter. Unknown names and getter-only computeds abort with the
// corresponding error and mutate nothing.
func (i *Instance) Set(name string, value any) error {
	p, ok := i.registry[name]
	if !ok {
		err := &UnknownKeyError{Key: name}
		i.rt.report(i, err)
		return err
	}
	switch p.kind {
	case propComputed:
		return p.computed.Write(value)
	case propMethod:
		err := &NoSetterError{Name: name}
		i.rt.report(i, err)
		return err
	default:
		return i.store.Set(name, value)
	}
}

// Call invokes a declared method with the instance as receiver. A panic in
// the method is reported, not propagated.
func (i *Instance) Call(name string, args ...any) (any, error) {
	p, ok := i.registry[name]
	if !ok || p.kind != propMethod {
		err := &UnknownKeyError{Key: name}
		i.rt.report(i, err)
		return nil, err
	}
	var out any
	i.rt.guard(i, func() {
		out = p.method(i, args...)
	})
	return out, nil
}

// lookup resolves name with tracking but without reporting, for path
// traversal where a missing segment is legal.
func (i *Instance) lookup(name string) (any, bool) {
	p, ok := i.registry[name]
	if !ok {
		return nil, false
	}
	switch p.kind {
	case propComputed:
		return p.computed.Value(), true
	case propMethod:
		return p.method, true
	default:
		return i.store.get(name)
	}
}

// Watch registers a reaction on a dot-path expression (string) or a read
// function (func(*Instance) any). The source is evaluated once to capture
// the initial value and dependencies; the returned unsubscribe handle is
// idempotent.
func (i *Instance) Watch(source any, handler WatchHandler, opts WatchOptions) (UnsubscribeFunc, error) {
	if i.state == StateDestroyed {
		err := fmt.Errorf("watch registered on destroyed instance")
		i.rt.report(i, err)
		return func() {}, err
	}

	var read func() any
	switch src := source.(type) {
	case string:
		if i.rt.strictPaths {
			resolvable := false
			i.rt.Untrack(func() {
				_, resolvable = i.resolvePath(src)
			})
			if !resolvable {
				err := &InvalidPathError{Path: src}
				i.rt.report(i, err)
				return func() {}, err
			}
		}
		read = func() any {
			v, _ := i.resolvePath(src)
			return v
		}
	case func(*Instance) any:
		read = func() any { return src(i) }
	default:
		err := fmt.Errorf("watch source must be a path or func(*Instance) any, got %T", source)
		i.rt.report(i, err)
		return func() {}, err
	}

	var cb WatchCallback
	if handler != nil {
		cb = func(newValue, oldValue any) {
			handler(i, newValue, oldValue)
		}
	}
	w := NewWatcher(i.rt, read, cb, opts)
	i.watchers = append(i.watchers, w)
	return w.Unsubscribe, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
