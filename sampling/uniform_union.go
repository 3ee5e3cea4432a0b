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

	"golang.org/x/exp/rand"
)

// UniformUnion merges independently built uniform samplers, for distributed
// sampling: each worker samples its share of the stream locally and the
// local reservoirs are merged into one global sample.
//
// Statistical correctness is preserved by choosing the merge direction
// dynamically (the lighter sampler merges into the heavier one) and by
// accepting merged elements with probability proportional to the weight
// each one stands for. When the sides swap roles, the merged sample takes
// the capacity of the side it merges into, which may be below maxK.
type UniformUnion[T any] struct {
	maxK   int
	gadget *Uniform[T] // nil until the first update
	rnd    *rand.Rand
}

// NewUniformUnion creates a union with the given maximum capacity.
func NewUniformUnion[T any](maxK int, opts ...Option) (*UniformUnion[T], error) {
	if maxK < minK {
		return nil, errors.New("maxK must be at least 1")
	}
	cfg := applyOptions(opts)
	return &UniformUnion[T]{maxK: maxK, rnd: cfg.rnd}, nil
}

// MaxK returns the union's maximum capacity.
func (u *UniformUnion[T]) MaxK() int { return u.maxK }

// Update offers a single stream element directly to the union.
func (u *UniformUnion[T]) Update(item T) {
	if u.gadget == nil {
		u.gadget, _ = NewUniform[T](u.maxK, WithRand(u.rnd))
	}
	u.gadget.Sample(item)
}

// UpdateSampler merges a sampler's reservoir into the union. The source is
// not modified.
func (u *UniformUnion[T]) UpdateSampler(s *Uniform[T]) {
	if s == nil || s.IsEmpty() {
		return
	}

	src := s
	if s.K() > u.maxK {
		// Downsample a copy so the source's own generator is not drawn from.
		src = s.Copy().downsampledCopy(u.maxK)
	}

	if u.gadget == nil || u.gadget.IsEmpty() {
		u.createNewGadget(src)
		return
	}
	u.twoWayMerge(src)
}

// Result returns a copy of the union's current state as a sampler.
func (u *UniformUnion[T]) Result() (*Uniform[T], error) {
	if u.gadget == nil {
		return NewUniform[T](u.maxK, WithRand(u.rnd))
	}
	return u.gadget.Copy(), nil
}

// Reset clears the union.
func (u *UniformUnion[T]) Reset() { u.gadget = nil }

// createNewGadget seeds the union from its first source. A source that is
// still filling and smaller than maxK is upgraded to maxK so later merges
// keep as much of the stream as allowed; otherwise the source's capacity is
// preserved.
func (u *UniformUnion[T]) createNewGadget(src *Uniform[T]) {
	if src.K() < u.maxK && src.N() <= uint64(src.K()) {
		u.gadget, _ = NewUniform[T](u.maxK, WithRand(u.rnd))
		for i := 0; i < src.NumSamples(); i++ {
			u.gadget.Sample(src.valueAt(i))
		}
		return
	}
	u.gadget = src.Copy()
}

// twoWayMerge dispatches on which side is still filling and which side's
// elements stand for less stream weight.
func (u *UniformUnion[T]) twoWayMerge(src *Uniform[T]) {
	switch {
	case src.N() <= uint64(src.K()):
		// Source is still filling: its elements are exact.
		u.mergeExact(src)
	case u.gadget.N() < uint64(u.gadget.K()):
		// Gadget is filling but source is not; swap roles.
		tmp := u.gadget
		u.gadget = src.Copy()
		u.mergeExact(tmp)
	case src.implicitSampleWeight() < float64(u.gadget.N())/float64(u.gadget.K()-1):
		u.mergeWeighted(src)
	default:
		tmp := u.gadget
		u.gadget = src.Copy()
		u.mergeWeighted(tmp)
	}
}

// mergeExact feeds every retained element of an exact-mode source through
// the gadget's normal sampling path.
func (u *UniformUnion[T]) mergeExact(src *Uniform[T]) {
	for i := 0; i < src.NumSamples(); i++ {
		u.gadget.Sample(src.valueAt(i))
	}
}

// mergeWeighted folds a source whose elements each stand for N/K stream
// elements into the gadget. Each element is kept with probability
// proportional to that weight against the gadget's growing total, then the
// gadget re-derives its skip state for the combined stream length.
func (u *UniformUnion[T]) mergeWeighted(src *Uniform[T]) {
	numSamples := src.NumSamples()
	itemWeight := float64(src.N()) / float64(numSamples)
	rescaledProb := float64(u.gadget.K()) * itemWeight
	targetTotal := float64(u.gadget.N())
	tgtK := u.gadget.K()

	for i := 0; i < numSamples; i++ {
		targetTotal += itemWeight

		// keep probability = (K * weight) / targetTotal
		if targetTotal*u.rnd.Float64() < rescaledProb {
			slot := int(u.rnd.Uint64() % uint64(tgtK))
			u.gadget.setValueAt(src.valueAt(i), slot)
		}
	}

	u.gadget.addSeen(src.N())
	u.gadget.resumeSkipState()
}
