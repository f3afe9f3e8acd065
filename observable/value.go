// Package observable provides small, framework independent observable state cells.
// A Value owns one piece of state and notifies subscribers when it changes.
// Map views recompute from their source on every read; Derive views cache the result
// and recompute only when the source changes.
package observable

import "sync"

// Readable is the read side of an observable cell.
type Readable[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn to be called with every new value.
	// The returned function removes the subscription.
	Subscribe(fn func(T)) (cancel func())
}

// Value is a mutable observable cell. The zero value is not usable, use New.
type Value[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[int]func(T)
	order  []int
	nextID int
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  map[int]func(T){},
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores value and notifies subscribers.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.value = value
	subs := v.snapshot()
	v.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Update replaces the value with fn(current) atomically and notifies subscribers.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	v.value = fn(v.value)
	value := v.value
	subs := v.snapshot()
	v.mu.Unlock()

	for _, sub := range subs {
		sub(value)
	}
	return value
}

// Subscribe registers fn for future changes.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.order = append(v.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			for i, existing := range v.order {
				if existing == id {
					v.order = append(v.order[:i], v.order[i+1:]...)
					break
				}
			}
		})
	}
}

// snapshot must be called with v.mu held.
func (v *Value[T]) snapshot() []func(T) {
	subs := make([]func(T), 0, len(v.order))
	for _, id := range v.order {
		subs = append(subs, v.subs[id])
	}
	return subs
}

type mapped[A, B any] struct {
	src Readable[A]
	fn  func(A) B
}

// Map returns a read-only view of src transformed by fn.
// The view holds no state of its own: Get recomputes from the current source value
// and subscribers receive fn applied to each new source value.
func Map[A, B any](src Readable[A], fn func(A) B) Readable[B] {
	return mapped[A, B]{src: src, fn: fn}
}

func (m mapped[A, B]) Get() B {
	return m.fn(m.src.Get())
}

func (m mapped[A, B]) Subscribe(fn func(B)) func() {
	return m.src.Subscribe(func(a A) {
		fn(m.fn(a))
	})
}

// Derive returns a cell holding fn applied to the current value of src. fn runs once per
// source change, never on Get, so it suits expensive transformations. Subscribers of the
// returned cell must not set src synchronously.
func Derive[A, B any](src Readable[A], fn func(A) B) Readable[B] {
	var zero B
	out := New(zero)

	var mu sync.Mutex
	mu.Lock()
	defer mu.Unlock()

	src.Subscribe(func(a A) {
		mu.Lock()
		defer mu.Unlock()
		out.Set(fn(a))
	})
	out.Set(fn(src.Get()))

	return out
}
