package replication

import "sync"

// Value is one replicated field: the authority writes it with Set, any
// goroutine reads it with Get, and subscribers are called with (old, new)
// after every change. Equal values are not re-published.
type Value[T any] struct {
	mu    sync.RWMutex
	value T
	equal func(a, b T) bool
	clone func(T) T
	subs  []func(old, new T)
}

// NewValue creates a Value for a comparable type.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		equal: func(a, b T) bool { return a == b },
		clone: func(v T) T { return v },
	}
}

// NewValueFunc creates a Value for slices, maps and other non-comparable types.
// clone must return a copy that shares no memory with its argument.
func NewValueFunc[T any](initial T, equal func(a, b T) bool, clone func(T) T) *Value[T] {
	return &Value[T]{
		value: clone(initial),
		equal: equal,
		clone: clone,
	}
}

// Set stores v and notifies subscribers. Returns false when v equals the current value.
func (v *Value[T]) Set(next T) bool {
	v.mu.Lock()
	if v.equal(v.value, next) {
		v.mu.Unlock()
		return false
	}
	old := v.value
	v.value = v.clone(next)
	subs := v.subs
	v.mu.Unlock()

	for _, fn := range subs {
		fn(v.clone(old), v.clone(next))
	}
	return true
}

// Get returns a copy of the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.clone(v.value)
}

// OnChange registers fn. Called on the writer's goroutine, outside the lock.
func (v *Value[T]) OnChange(fn func(old, new T)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs = append(v.subs[:len(v.subs):len(v.subs)], fn)
}
