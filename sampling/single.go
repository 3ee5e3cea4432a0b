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
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mathext/prng"
)

// WeightedSingle selects a single element from a stream, with probability
// proportional to integer weights, using the classic linear algorithm: the
// i-th element replaces the incumbent with probability w_i over the running
// weight total. Compared to Weighted with k=1 it performs no floating-point
// math and at most one generator draw per element, which makes it the better
// fit for short streams offered many times (loot tables, pick-one-of-n
// decisions).
//
// The caller must ensure the sum of all weights fits in W; overflow is not
// detected. Zero-weight elements are ignored.
type WeightedSingle[T any, W constraints.Unsigned] struct {
	weightSum W
	item      T
	has       bool

	rnd *rand.Rand
	src *prng.MT19937
}

// NewWeightedSingle creates an empty single-element weighted sampler.
func NewWeightedSingle[T any, W constraints.Unsigned](opts ...Option) *WeightedSingle[T, W] {
	cfg := applyOptions(opts)
	return &WeightedSingle[T, W]{rnd: cfg.rnd, src: cfg.src}
}

// Sample offers one element with its weight. The very first positive-weight
// element is stored without consulting the generator.
func (s *WeightedSingle[T, W]) Sample(weight W, item T) {
	if weight == 0 {
		return
	}
	s.weightSum += weight
	if !s.has {
		s.item = item
		s.has = true
		return
	}
	if s.rnd.Uint64()%uint64(s.weightSum) < uint64(weight) {
		s.item = item
	}
}

// WeightSum returns the running total of offered weights.
func (s *WeightedSingle[T, W]) WeightSum() W { return s.weightSum }

// IsEmpty returns true if no positive-weight element has been offered.
func (s *WeightedSingle[T, W]) IsEmpty() bool { return !s.has }

// Result returns the selected element, if any. The sampler keeps it.
func (s *WeightedSingle[T, W]) Result() (T, bool) { return s.item, s.has }

// ConsumeResult returns the selected element, if any, and resets the
// sampler.
func (s *WeightedSingle[T, W]) ConsumeResult() (T, bool) {
	item, ok := s.item, s.has
	s.Reset()
	return item, ok
}

// Reset clears the sampler back to its empty state.
func (s *WeightedSingle[T, W]) Reset() {
	var zero T
	s.item = zero
	s.has = false
	s.weightSum = 0
}

// Copy returns a copy of the sampler. A sampler that owns its generator
// gets a duplicate of the generator state; a borrowed generator is shared.
func (s *WeightedSingle[T, W]) Copy() *WeightedSingle[T, W] {
	c := *s
	if s.src != nil {
		c.rnd, c.src = cloneGenerator(s.src)
	}
	return &c
}
