// Package deadlines is a fixed-capacity min-heap of pending timeouts.
//
// It never grows past its capacity, so the control loop can keep it across
// iterations without allocating after construction.
package deadlines

import (
	"container/heap"
	"errors"
	"iter"
	"time"
)

// ErrFull is returned by Push when the heap already holds capacity entries.
var ErrFull = errors.New("deadline heap is full")

type Entry[T any] struct {
	At    time.Time
	Value T
}

// Heap orders entries by At, earliest first. Entries with equal At come out
// in no particular order.
type Heap[T any] struct {
	h entries[T]
}

func New[T any](capacity int) *Heap[T] {
	if capacity <= 0 {
		panic("deadlines: capacity must be positive")
	}
	return &Heap[T]{h: make(entries[T], 0, capacity)}
}

func (d *Heap[T]) Len() int { return len(d.h) }

func (d *Heap[T]) Cap() int { return cap(d.h) }

func (d *Heap[T]) Full() bool { return len(d.h) == cap(d.h) }

// Push inserts v with deadline at. It fails with ErrFull instead of evicting
// anything.
func (d *Heap[T]) Push(at time.Time, v T) error {
	if d.Full() {
		return ErrFull
	}
	heap.Push(&d.h, Entry[T]{At: at, Value: v})
	return nil
}

// Peek returns the earliest entry without removing it.
func (d *Heap[T]) Peek() (Entry[T], bool) {
	if len(d.h) == 0 {
		return Entry[T]{}, false
	}
	return d.h[0], true
}

// Pop removes and returns the earliest entry.
func (d *Heap[T]) Pop() (Entry[T], bool) {
	if len(d.h) == 0 {
		return Entry[T]{}, false
	}
	return heap.Pop(&d.h).(Entry[T]), true
}

// PopExpired removes and returns the earliest entry if it is due at now.
func (d *Heap[T]) PopExpired(now time.Time) (Entry[T], bool) {
	e, ok := d.Peek()
	if !ok || e.At.After(now) {
		return Entry[T]{}, false
	}
	return d.Pop()
}

// Any reports whether some entry satisfies pred.
func (d *Heap[T]) Any(pred func(Entry[T]) bool) bool {
	for _, e := range d.h {
		if pred(e) {
			return true
		}
	}
	return false
}

// All yields every entry in heap order, which is not sorted order.
func (d *Heap[T]) All() iter.Seq[Entry[T]] {
	return func(yield func(Entry[T]) bool) {
		for _, e := range d.h {
			if !yield(e) {
				return
			}
		}
	}
}

type entries[T any] []Entry[T]

func (e entries[T]) Len() int           { return len(e) }
func (e entries[T]) Less(i, j int) bool { return e[i].At.Before(e[j].At) }
func (e entries[T]) Swap(i, j int)      { e[i], e[j] = e[j], e[i] }

func (e *entries[T]) Push(x any) { *e = append(*e, x.(Entry[T])) }

func (e *entries[T]) Pop() any {
	old := *e
	n := len(old)
	x := old[n-1]
	old[n-1] = Entry[T]{}
	*e = old[:n-1]
	return x
}
