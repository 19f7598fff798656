package petite

import "fmt"

// LifecycleState tracks an instance along its forward-only path
// created → mounted → updated* → destroyed.
type LifecycleState int

const (
	StateCreated LifecycleState = iota
	StateMounted
	StateUpdated
	StateDestroyed
)

func (s LifecycleState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateMounted:
		return "mounted"
	case StateUpdated:
		return "updated"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
}

// Stage names a hook point. Hooks run in registration order with the
// instance as receiver; a panicking hook is reported and its siblings still
// run.
type Stage int

const (
	StageCreated Stage = iota
	StageBeforeMount
	StageMounted
	StageBeforeUpdate
	StageUpdated
	StageBeforeDestroy
	StageDestroyed
)

type HookFunc func(i *Instance)

type Hooks map[Stage][]HookFunc

func (i *Instance) State() LifecycleState { return i.state }

func (i *Instance) OnCreated(fns ...HookFunc) { i.addHooks(StageCreated, fns) }

func (i *Instance) OnBeforeMount(fns ...HookFunc) { i.addHooks(StageBeforeMount, fns) }

func (i *Instance) OnMounted(fns ...HookFunc) { i.addHooks(StageMounted, fns) }

func (i *Instance) OnBeforeUpdate(fns ...HookFunc) { i.addHooks(StageBeforeUpdate, fns) }

func (i *Instance) OnUpdated(fns ...HookFunc) { i.addHooks(StageUpdated, fns) }

func (i *Instance) OnBeforeDestroy(fns ...HookFunc) { i.addHooks(StageBeforeDestroy, fns) }

func (i *Instance) OnDestroyed(fns ...HookFunc) { i.addHooks(StageDestroyed, fns) }

func (i *Instance) addHooks(stage Stage, fns []HookFunc) {
	i.hooks[stage] = append(i.hooks[stage], fns...)
}

func (i *Instance) invokeHooks(stage Stage) {
	for _, fn := range i.hooks[stage] {
		fn := fn
		i.rt.guard(i, func() { fn(i) })
	}
}

// Mount attaches the render watcher the presentation layer supplies. render
// runs once here between the beforeMount and mounted hooks; every later
// flush of the watcher re-runs it bracketed by beforeUpdate and updated.
// The core does not care what render does; it only guarantees the ordering.
func (i *Instance) Mount(render func(*Instance)) error {
	if i.state != StateCreated {
		err := fmt.Errorf("mount from state %s", i.state)
		i.rt.report(i, err)
		return err
	}
	i.invokeHooks(StageBeforeMount)

	w := NewWatcher(i.rt, func() any {
		render(i)
		return nil
	}, func(newValue, oldValue any) {
		if i.state == StateMounted {
			i.state = StateUpdated
		}
		i.invokeHooks(StageUpdated)
	}, WatchOptions{})
	// the render watcher fires on every re-evaluation, its source value is
	// meaningless
	w.force = true
	w.before = func() { i.invokeHooks(StageBeforeUpdate) }
	i.watchers = append(i.watchers, w)
	i.renderWatcher = w

	i.state = StateMounted
	i.invokeHooks(StageMounted)
	return nil
}

// Destroy tears the instance down: every watcher and computed leaves the
// dependency graph, then the destroyed hooks fire. Terminal and reachable
// once; later store mutations invoke no instance callback and a second
// Destroy is a no-op.
func (i *Instance) Destroy() {
	if i.state == StateDestroyed {
		return
	}
	i.invokeHooks(StageBeforeDestroy)

	for _, w := range i.watchers {
		w.Unsubscribe()
	}
	for _, p := range i.registry {
		if p.kind == propComputed {
			p.computed.teardown()
		}
	}
	i.renderWatcher = nil

	i.state = StateDestroyed
	i.invokeHooks(StageDestroyed)
}
