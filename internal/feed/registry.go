package feed

import (
	"slices"
	"sync"
	"sync/atomic"
)

// ObserverID identifies one observer registration within a session.
type ObserverID uint64

type observer[T any] struct {
	id      ObserverID
	fn      func(T)
	removed atomic.Bool
}

// registry keeps observers in registration order. Emission iterates over a
// snapshot, so observers may unsubscribe themselves or siblings mid-dispatch;
// a sibling removed before its turn is skipped.
type registry[T any] struct {
	mu        sync.Mutex
	ids       *atomic.Uint64
	observers []*observer[T]
	onPanic   func(id ObserverID, p any)
}

func newRegistry[T any](ids *atomic.Uint64, onPanic func(ObserverID, any)) *registry[T] {
	return &registry[T]{ids: ids, onPanic: onPanic}
}

func (r *registry[T]) add(fn func(T)) ObserverID {
	o := &observer[T]{id: ObserverID(r.ids.Add(1)), fn: fn}

	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
	return o.id
}

func (r *registry[T]) remove(id ObserverID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.observers, func(o *observer[T]) bool { return o.id == id })
	if i < 0 {
		return false
	}
	r.observers[i].removed.Store(true)
	r.observers = slices.Delete(r.observers, i, i+1)
	return true
}

func (r *registry[T]) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.observers {
		o.removed.Store(true)
	}
	r.observers = nil
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

func (r *registry[T]) emit(v T) {
	r.mu.Lock()
	snapshot := slices.Clone(r.observers)
	r.mu.Unlock()

	for _, o := range snapshot {
		if o.removed.Load() {
			continue
		}
		r.call(o, v)
	}
}

func (r *registry[T]) call(o *observer[T], v T) {
	defer func() {
		if p := recover(); p != nil && r.onPanic != nil {
			r.onPanic(o.id, p)
		}
	}()
	o.fn(v)
}
