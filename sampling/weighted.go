/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sampling

import (
	"errors"
	"iter"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mathext/prng"
)

// Entry is a reservoir bookkeeping record: the key assigned to a retained
// element and the slot it occupies. Callers only ever handle entries as
// opaque storage for NewWeightedInto.
type Entry struct {
	key  float64
	slot int
}

// Weighted maintains a weight-proportional random sample of up to k
// elements from a stream of unknown length, in one pass and O(k) space.
//
// Each accepted element receives the key U^(1/w) for an independent uniform
// U, and the k elements with the largest keys are retained; a min-heap over
// the keys makes the smallest retained key the eviction threshold. Between
// replacements the sampler maintains a weight budget drawn in log-space, so
// stream elements whose cumulative weight falls inside the budget are
// discarded without any random draws (Algorithm A-ExpJ). Callers iterating
// the stream themselves can exploit this through WillConsiderNext/SkipNext
// and avoid materializing elements that would be discarded.
//
// The marginal probability of retaining an element is proportional to its
// weight in the regime where every weight is small against the stream's
// total weight. Elements with weight <= 0 are treated as absent from the
// stream.
//
// Reference: Efraimidis and Spirakis, "Weighted random sampling with a
// reservoir", Information Processing Letters 97(5), 2006.
type Weighted[T any] struct {
	k      int
	n      uint64 // positive-weight elements seen, including skipped ones
	filled int
	budget float64 // weight to pass before the next consideration
	data   []T
	heap   []Entry // min-heap by key over entries [0:filled)
	fixed  bool

	rnd *rand.Rand
	src *prng.MT19937
}

// NewWeighted creates a weighted sampler with capacity k. Storage is
// allocated lazily on the first accepted element, or eagerly via Allocate.
func NewWeighted[T any](k int, opts ...Option) (*Weighted[T], error) {
	if k < minK {
		return nil, errors.New("k must be at least 1")
	}
	cfg := applyOptions(opts)
	return &Weighted[T]{k: k, rnd: cfg.rnd, src: cfg.src}, nil
}

// NewWeightedInto creates a weighted sampler over caller-supplied storage:
// items holds the reservoir and entries the key heap. Both must have the
// same length, which becomes the capacity; the sampler never allocates.
func NewWeightedInto[T any](items []T, entries []Entry, opts ...Option) (*Weighted[T], error) {
	if len(items) < minK {
		return nil, errors.New("items must have room for at least 1 element")
	}
	if len(entries) != len(items) {
		return nil, errors.New("items and entries must have the same length")
	}
	cfg := applyOptions(opts)
	return &Weighted[T]{
		k:     len(items),
		data:  items,
		heap:  entries,
		fixed: true,
		rnd:   cfg.rnd,
		src:   cfg.src,
	}, nil
}

// K returns the reservoir capacity.
func (w *Weighted[T]) K() int { return w.k }

// N returns the number of positive-weight stream elements the sampler has
// been told about, including elements declared past via SkipNext.
func (w *Weighted[T]) N() uint64 { return w.n }

// NumSamples returns the number of elements currently retained.
func (w *Weighted[T]) NumSamples() int { return w.filled }

// IsEmpty returns true if no positive-weight elements have been seen.
func (w *Weighted[T]) IsEmpty() bool { return w.n == 0 }

// Allocate eagerly allocates the reservoir and key heap. It is an error to
// call Allocate twice, or on a sampler built over caller-supplied storage.
func (w *Weighted[T]) Allocate() error {
	if w.data != nil {
		if w.fixed {
			return errors.New("sampler uses caller-supplied storage")
		}
		return errors.New("storage already allocated")
	}
	w.allocate()
	return nil
}

func (w *Weighted[T]) allocate() {
	w.data = make([]T, w.k)
	w.heap = make([]Entry, w.k)
}

// Sample offers one stream element with its weight. Elements with weight
// <= 0 are ignored with no state change. NaN and infinite weights are
// rejected.
func (w *Weighted[T]) Sample(item T, weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return errors.New("weight must be finite")
	}
	if weight <= 0 {
		return nil
	}
	if w.data == nil {
		w.allocate()
	}
	w.n++

	if w.filled < w.k {
		key := math.Pow(float64NonZero(w.rnd), 1.0/weight)
		w.data[w.filled] = item
		w.heapPush(key, w.filled)
		w.filled++
		if w.filled == w.k {
			w.refreshBudget()
		}
		return nil
	}

	w.budget -= weight
	if w.budget > 0 {
		return nil
	}

	// The new element replaces the weakest incumbent. Its key is drawn
	// from the truncated distribution above the current threshold so the
	// retained set stays distributed as the k largest keys overall.
	t := math.Pow(w.heap[0].key, weight)
	key := math.Pow(float64Above(w.rnd, t), 1.0/weight)
	slot := w.heap[0].slot
	w.heap[0] = Entry{key: key, slot: slot}
	w.siftDown(0)
	w.data[slot] = item
	w.refreshBudget()
	return nil
}

// WillConsiderNext reports whether offering an element of the given weight
// would actually examine it. The predicate is meaningful only once the
// reservoir is full; while filling, every element is accepted and it
// returns true. When it returns false the caller may call SkipNext instead
// of materializing the element.
func (w *Weighted[T]) WillConsiderNext(weight float64) bool {
	return w.budget-weight <= 0
}

// SkipNext declares that one stream element of the given weight passed
// without being offered. Weights <= 0 are ignored, mirroring Sample. It is
// an error to call SkipNext when the element would be considered.
func (w *Weighted[T]) SkipNext(weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return errors.New("weight must be finite")
	}
	if weight <= 0 {
		return nil
	}
	if w.budget-weight <= 0 {
		return errors.New("next element would be considered")
	}
	w.budget -= weight
	w.n++
	return nil
}

// Result returns a view over the retained elements. The slice is valid
// until the sampler is next mutated; ordering within it carries no meaning.
func (w *Weighted[T]) Result() []T { return w.data[:w.filled] }

// All returns an iterator over the retained elements.
func (w *Weighted[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < w.filled; i++ {
			if !yield(w.data[i]) {
				return
			}
		}
	}
}

// ConsumeResult returns the retained elements and resets the sampler. With
// heap-backed storage, ownership of the buffer transfers to the caller;
// with caller-supplied storage the elements are copied out.
func (w *Weighted[T]) ConsumeResult() []T {
	var out []T
	if w.fixed {
		out = make([]T, w.filled)
		copy(out, w.data[:w.filled])
		clear(w.data[:w.filled])
	} else {
		out = w.data[:w.filled]
		w.data = nil
		w.heap = nil
	}
	w.n = 0
	w.filled = 0
	w.budget = 0
	return out
}

// Reset clears the sampler back to its empty state. Retained elements are
// released so their payloads can be collected; storage is kept for reuse.
func (w *Weighted[T]) Reset() {
	if w.data != nil {
		clear(w.data[:w.filled])
	}
	w.n = 0
	w.filled = 0
	w.budget = 0
}

// Copy returns a deep copy of the sampler. A sampler that owns its
// generator gets a duplicate of the generator state; a borrowed generator
// is shared with the copy.
func (w *Weighted[T]) Copy() *Weighted[T] {
	c := *w
	if w.data != nil {
		c.data = make([]T, len(w.data))
		copy(c.data, w.data)
		c.heap = make([]Entry, len(w.heap))
		copy(c.heap, w.heap)
	}
	c.fixed = false
	if w.src != nil {
		c.rnd, c.src = cloneGenerator(w.src)
	}
	return &c
}

// Merge folds another weighted sampler into this one, as if both had seen a
// single combined stream. The retained elements of other are offered by
// their existing keys and the k largest keys overall survive; other is not
// modified. Capacities need not match.
func (w *Weighted[T]) Merge(other *Weighted[T]) {
	if other == nil || other.filled == 0 {
		if other != nil {
			w.n += other.n
		}
		return
	}
	if w.data == nil {
		w.allocate()
	}
	for i := 0; i < other.filled; i++ {
		e := other.heap[i]
		w.offerKeyed(e.key, other.data[e.slot])
	}
	w.n += other.n
	if w.filled == w.k {
		w.refreshBudget()
	}
}

// offerKeyed inserts an element that already carries a key, keeping the k
// largest keys. Stream accounting is the caller's responsibility.
func (w *Weighted[T]) offerKeyed(key float64, item T) {
	if w.filled < w.k {
		w.data[w.filled] = item
		w.heapPush(key, w.filled)
		w.filled++
		return
	}
	if key <= w.heap[0].key {
		return
	}
	slot := w.heap[0].slot
	w.heap[0] = Entry{key: key, slot: slot}
	w.siftDown(0)
	w.data[slot] = item
}

// refreshBudget draws the weight that must pass before the next
// consideration: log(U)/log(threshold), positive since both logs are
// negative.
func (w *Weighted[T]) refreshBudget() {
	w.budget = math.Log(float64NonZero(w.rnd)) / math.Log(w.heap[0].key)
}

// heapPush appends an entry at position w.filled and restores the heap.
func (w *Weighted[T]) heapPush(key float64, slot int) {
	w.heap[w.filled] = Entry{key: key, slot: slot}
	w.siftUp(w.filled)
}

// siftUp restores the heap property by moving the entry at i toward the
// root.
func (w *Weighted[T]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if w.heap[p].key <= w.heap[i].key {
			break
		}
		w.heap[p], w.heap[i] = w.heap[i], w.heap[p]
		i = p
	}
}

// siftDown restores the heap property by moving the entry at i toward the
// leaves. The heap spans [0:filled).
func (w *Weighted[T]) siftDown(i int) {
	last := w.filled - 1
	for {
		child := 2*i + 1
		if child > last {
			return
		}
		if child < last && w.heap[child+1].key < w.heap[child].key {
			child++
		}
		if w.heap[i].key <= w.heap[child].key {
			return
		}
		w.heap[i], w.heap[child] = w.heap[child], w.heap[i]
		i = child
	}
}
