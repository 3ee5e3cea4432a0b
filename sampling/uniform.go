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
	"gonum.org/v1/gonum/stat/distuv"
)

// Uniform maintains a uniformly random sample of up to k elements from a
// stream of unknown length, in one pass and O(k) space.
//
// The sampler implements Algorithm L: once the reservoir is full it draws a
// geometric-distributed skip count and declines to examine that many stream
// elements before the next replacement. Callers that iterate the stream
// themselves can exploit this through the peek protocol
// (WillConsiderNext/SkipNext) or by batch-jumping with SkipCount/JumpAhead,
// avoiding even the construction of elements that would be discarded.
//
// After n offered elements every element has probability min(k, n)/n of
// being retained, and every k-subset of the stream is equally likely.
//
// Reference: Kim-Hung Li, "Reservoir-Sampling Algorithms of Time Complexity
// O(n(1+log(N/n)))", ACM TOMS 20(4), 1994.
type Uniform[T any] struct {
	k      int
	n      uint64
	filled int
	skip   uint64  // elements to pass before the next consideration
	w      float64 // Algorithm L threshold; tracks the k-th smallest key
	data   []T     // nil until allocated; len k afterwards
	fixed  bool    // storage borrowed from the caller, never reallocated

	rnd *rand.Rand
	src *prng.MT19937
}

// NewUniform creates a uniform sampler with capacity k. Storage for the
// reservoir is allocated lazily on the first offered element, or eagerly via
// Allocate.
func NewUniform[T any](k int, opts ...Option) (*Uniform[T], error) {
	if k < minK {
		return nil, errors.New("k must be at least 1")
	}
	cfg := applyOptions(opts)
	return &Uniform[T]{k: k, rnd: cfg.rnd, src: cfg.src}, nil
}

// NewUniformInto creates a uniform sampler that stores its reservoir in the
// caller-supplied slice and never allocates. The capacity is len(backing).
// The backing slice must not be read or written by the caller while the
// sampler is in use; ConsumeResult copies, so results never alias it.
func NewUniformInto[T any](backing []T, opts ...Option) (*Uniform[T], error) {
	if len(backing) < minK {
		return nil, errors.New("backing must have room for at least 1 element")
	}
	cfg := applyOptions(opts)
	return &Uniform[T]{
		k:     len(backing),
		data:  backing,
		fixed: true,
		rnd:   cfg.rnd,
		src:   cfg.src,
	}, nil
}

// K returns the reservoir capacity.
func (u *Uniform[T]) K() int { return u.k }

// N returns the number of stream elements the sampler has been told about:
// offered elements plus elements declared past via SkipNext or JumpAhead.
func (u *Uniform[T]) N() uint64 { return u.n }

// NumSamples returns the number of elements currently retained.
func (u *Uniform[T]) NumSamples() int { return u.filled }

// IsEmpty returns true if no stream elements have been seen.
func (u *Uniform[T]) IsEmpty() bool { return u.n == 0 }

// Allocate eagerly allocates the reservoir, for callers that want the
// allocation off the sampling path. It is an error to call Allocate twice,
// or on a sampler built over caller-supplied storage.
func (u *Uniform[T]) Allocate() error {
	if u.data != nil {
		if u.fixed {
			return errors.New("sampler uses caller-supplied storage")
		}
		return errors.New("storage already allocated")
	}
	u.data = make([]T, u.k)
	return nil
}

// Sample offers one stream element. The element is either placed into the
// reservoir (possibly evicting an incumbent) or discarded.
func (u *Uniform[T]) Sample(item T) {
	if u.data == nil {
		u.data = make([]T, u.k)
	}
	u.n++

	if u.filled < u.k {
		u.data[u.filled] = item
		u.filled++
		if u.filled == u.k {
			u.refreshSkip()
		}
		return
	}

	if u.skip > 0 {
		u.skip--
		return
	}

	// One generator draw chooses the victim slot.
	u.data[u.rnd.Uint64()%uint64(u.k)] = item
	u.advanceSkip()
}

// WillConsiderNext reports whether the next call to Sample would actually
// examine its element. While the reservoir is filling it is always true.
// When it returns false the caller may call SkipNext instead of
// materializing the element.
func (u *Uniform[T]) WillConsiderNext() bool { return u.skip == 0 }

// SkipNext declares that one stream element passed without being offered.
// It is an error to call SkipNext when the next element would be considered.
func (u *Uniform[T]) SkipNext() error {
	if u.skip == 0 {
		return errors.New("next element would be considered")
	}
	u.skip--
	u.n++
	return nil
}

// SkipCount returns the number of upcoming stream elements that will be
// declined without examination. Callers that can seek their stream may jump
// over all of them at once with JumpAhead.
func (u *Uniform[T]) SkipCount() uint64 { return u.skip }

// JumpAhead declares that n stream elements passed without being offered.
// n must not exceed SkipCount.
func (u *Uniform[T]) JumpAhead(n uint64) error {
	if n > u.skip {
		return errors.New("jump exceeds the skip count")
	}
	u.skip -= n
	u.n += n
	return nil
}

// Result returns a view over the retained elements. The slice is valid until
// the sampler is next mutated; ordering within it carries no meaning.
func (u *Uniform[T]) Result() []T { return u.data[:u.filled] }

// All returns an iterator over the retained elements.
func (u *Uniform[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < u.filled; i++ {
			if !yield(u.data[i]) {
				return
			}
		}
	}
}

// ConsumeResult returns the retained elements and resets the sampler. With
// heap-backed storage, ownership of the buffer transfers to the caller; with
// caller-supplied storage the elements are copied out.
func (u *Uniform[T]) ConsumeResult() []T {
	var out []T
	if u.fixed {
		out = make([]T, u.filled)
		copy(out, u.data[:u.filled])
		clear(u.data[:u.filled])
	} else {
		out = u.data[:u.filled]
		u.data = nil
	}
	u.n = 0
	u.filled = 0
	u.skip = 0
	u.w = 0
	return out
}

// Reset clears the sampler back to its empty state. Retained elements are
// released so their payloads can be collected; storage is kept for reuse.
func (u *Uniform[T]) Reset() {
	if u.data != nil {
		clear(u.data[:u.filled])
	}
	u.n = 0
	u.filled = 0
	u.skip = 0
	u.w = 0
}

// Copy returns a deep copy of the sampler. Retained elements are copied with
// Go assignment. A sampler that owns its generator gets a duplicate of the
// generator state, so copy and original continue identical random sequences;
// a borrowed generator is shared with the copy.
func (u *Uniform[T]) Copy() *Uniform[T] {
	c := *u
	if u.data != nil {
		c.data = make([]T, len(u.data))
		copy(c.data, u.data)
	}
	c.fixed = false
	if u.src != nil {
		c.rnd, c.src = cloneGenerator(u.src)
	}
	return &c
}

// refreshSkip draws the Algorithm L state from scratch, as at the moment the
// reservoir first fills: w = U^(1/k), then a geometric skip from w.
func (u *Uniform[T]) refreshSkip() {
	u.w = math.Exp(math.Log(float64NonZero(u.rnd)) / float64(u.k))
	u.skip = geometricSkip(u.rnd, u.w)
}

// advanceSkip updates the state after a replacement: the threshold shrinks
// by an independent U^(1/k) factor and a fresh skip is drawn.
func (u *Uniform[T]) advanceSkip() {
	u.w *= math.Exp(math.Log(float64NonZero(u.rnd)) / float64(u.k))
	u.skip = geometricSkip(u.rnd, u.w)
}

// geometricSkip returns floor(log(U)/log(1-w)), the number of stream
// elements whose keys all fall at or above the threshold w.
func geometricSkip(r *rand.Rand, w float64) uint64 {
	return uint64(math.Floor(math.Log(float64NonZero(r)) / math.Log1p(-w)))
}

// resumeSkipState re-derives (w, skip) after the reservoir was manipulated
// outside the Sample path (union merges). The threshold w is the k-th
// smallest of n uniform keys, which is Beta(k, n-k+1) distributed; at n == k
// that reduces to the same U^(1/k) draw refreshSkip performs.
func (u *Uniform[T]) resumeSkipState() {
	if u.filled < u.k {
		u.skip = 0
		u.w = 0
		return
	}
	if u.n <= uint64(u.k) {
		u.refreshSkip()
		return
	}
	beta := distuv.Beta{
		Alpha: float64(u.k),
		Beta:  float64(u.n-uint64(u.k)) + 1,
		Src:   u.rnd,
	}
	u.w = beta.Rand()
	u.skip = geometricSkip(u.rnd, u.w)
}

// implicitSampleWeight is the number of stream elements each retained
// element stands for.
func (u *Uniform[T]) implicitSampleWeight() float64 {
	if u.n <= uint64(u.k) {
		return 1.0
	}
	return float64(u.n) / float64(u.k)
}

// valueAt and setValueAt give the union direct slot access.
func (u *Uniform[T]) valueAt(i int) T { return u.data[i] }

func (u *Uniform[T]) setValueAt(item T, i int) { u.data[i] = item }

// addSeen force-advances the stream position, for merges that account for
// another sampler's history.
func (u *Uniform[T]) addSeen(n uint64) { u.n += n }

// downsampledCopy returns a copy of the sampler reduced to capacity maxK by
// re-sampling the retained elements. The stream position is preserved.
func (u *Uniform[T]) downsampledCopy(maxK int) *Uniform[T] {
	c, _ := NewUniform[T](maxK, WithRand(u.rnd))
	for i := 0; i < u.filled; i++ {
		c.Sample(u.data[i])
	}
	c.n = u.n
	c.resumeSkipState()
	return c
}
