package petite

import "fmt"

// UnknownKeyError reports a get or set on a key that was not declared when
// the store was constructed. The operation is aborted and the store is left
// unchanged.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown reactive key %q", e.Key)
}

// NoSetterError reports a write to a getter-only computed. No store
// mutation happens.
type NoSetterError struct {
	Name string
}

func (e *NoSetterError) Error() string {
	return fmt.Sprintf("computed %q has no setter", e.Name)
}

// InvalidPathError reports a watch expression that cannot be resolved at
// registration. It is only raised in strict mode; otherwise a missing path
// reads as nil.
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("watch path %q cannot be resolved", e.Path)
}

// UpdateLoopError reports a flush that kept re-enqueueing work past the
// runtime's pass cap, usually a watcher callback writing to its own source.
// The remaining queue is dropped.
type UpdateLoopError struct {
	Passes int
}

func (e *UpdateLoopError) Error() string {
	return fmt.Sprintf("update loop: flush aborted after %d passes", e.Passes)
}
