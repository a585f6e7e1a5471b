// Package window implements the activity window: the set of open items still
// eligible for correlation, ordered by last activity (oldest first).
package window

import (
	"time"

	"github.com/google/btree"
)

const degree = 16

type entry[T comparable] struct {
	at    time.Time
	seq   uint64
	value T
}

func less[T comparable](a, b entry[T]) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.seq < b.seq
}

// Window keeps items ordered by their last activity time. Ties keep insertion order.
type Window[T comparable] struct {
	horizon      time.Duration
	lastActivity func(T) time.Time
	tree         *btree.BTreeG[entry[T]]
	index        map[T]entry[T]
	seq          uint64
}

// New creates an empty window. Items whose last activity is more than horizon
// older than the most recently added item are evicted.
func New[T comparable](horizon time.Duration, lastActivity func(T) time.Time) *Window[T] {
	return &Window[T]{
		horizon:      horizon,
		lastActivity: lastActivity,
		tree:         btree.NewG(degree, less[T]),
		index:        make(map[T]entry[T]),
	}
}

// Add inserts v, or re-keys it if its activity changed, then evicts stale items
// relative to v. At least one item always remains. It returns the number evicted.
func (w *Window[T]) Add(v T) int {
	w.upsert(v)
	return w.evict(w.lastActivity(v))
}

func (w *Window[T]) upsert(v T) {
	at := w.lastActivity(v)
	if old, ok := w.index[v]; ok {
		if old.at.Equal(at) {
			return
		}
		w.tree.Delete(old)
	}
	w.seq++
	e := entry[T]{at: at, seq: w.seq, value: v}
	w.tree.ReplaceOrInsert(e)
	w.index[v] = e
}

func (w *Window[T]) evict(ref time.Time) int {
	cutoff := ref.Add(-w.horizon)
	evicted := 0
	for w.tree.Len() > 1 {
		oldest, _ := w.tree.Min()
		if !oldest.at.Before(cutoff) {
			break
		}
		w.tree.DeleteMin()
		delete(w.index, oldest.value)
		evicted++
	}
	return evicted
}

// Remove drops v from the window if present.
func (w *Window[T]) Remove(v T) bool {
	e, ok := w.index[v]
	if !ok {
		return false
	}
	w.tree.Delete(e)
	delete(w.index, v)
	return true
}

// Contains reports whether v is in the window.
func (w *Window[T]) Contains(v T) bool {
	_, ok := w.index[v]
	return ok
}

// Len returns the number of items.
func (w *Window[T]) Len() int {
	return w.tree.Len()
}

// Oldest returns the item with the earliest last activity.
func (w *Window[T]) Oldest() (T, bool) {
	e, ok := w.tree.Min()
	return e.value, ok
}

// Ascend calls fn for each item from oldest to newest until fn returns false.
// fn must not mutate the window.
func (w *Window[T]) Ascend(fn func(T) bool) {
	w.tree.Ascend(func(e entry[T]) bool {
		return fn(e.value)
	})
}
