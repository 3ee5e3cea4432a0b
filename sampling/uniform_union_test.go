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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUniformUnion(t *testing.T) {
	u, err := NewUniformUnion[int64](10)
	assert.NoError(t, err)
	assert.Equal(t, 10, u.MaxK())

	_, err = NewUniformUnion[int64](0)
	assert.ErrorContains(t, err, "maxK must be at least 1")
}

func TestUniformUnionEmpty(t *testing.T) {
	u, err := NewUniformUnion[int64](10, WithSeed(61))
	assert.NoError(t, err)

	result, err := u.Result()
	assert.NoError(t, err)
	assert.True(t, result.IsEmpty())
	assert.Equal(t, 10, result.K())
}

func TestUniformUnionUpdate(t *testing.T) {
	u, err := NewUniformUnion[int64](5, WithSeed(62))
	assert.NoError(t, err)

	for i := int64(0); i < 100; i++ {
		u.Update(i)
	}

	result, err := u.Result()
	assert.NoError(t, err)
	assert.Equal(t, 5, result.NumSamples())
	assert.Equal(t, uint64(100), result.N())
}

func TestUniformUnionMergeExact(t *testing.T) {
	// Two samplers that are both still filling: the union keeps every
	// element of both.
	a, err := NewUniform[int64](10, WithSeed(63))
	assert.NoError(t, err)
	b, err := NewUniform[int64](10, WithSeed(64))
	assert.NoError(t, err)

	a.Sample(1)
	a.Sample(2)
	b.Sample(3)
	b.Sample(4)
	b.Sample(5)

	u, err := NewUniformUnion[int64](10, WithSeed(65))
	assert.NoError(t, err)
	u.UpdateSampler(a)
	u.UpdateSampler(b)

	result, err := u.Result()
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), result.N())
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, result.Result())
}

func TestUniformUnionMergeSampling(t *testing.T) {
	const perNode = 500

	a, err := NewUniform[int64](10, WithSeed(66))
	assert.NoError(t, err)
	b, err := NewUniform[int64](10, WithSeed(67))
	assert.NoError(t, err)

	for i := int64(0); i < perNode; i++ {
		a.Sample(i)
		b.Sample(perNode + i)
	}

	u, err := NewUniformUnion[int64](10, WithSeed(68))
	assert.NoError(t, err)
	u.UpdateSampler(a)
	u.UpdateSampler(b)

	result, err := u.Result()
	assert.NoError(t, err)
	assert.Equal(t, uint64(2*perNode), result.N())
	assert.Equal(t, 10, result.NumSamples())
	for _, v := range result.Result() {
		assert.True(t, v >= 0 && v < 2*perNode)
	}

	// Sources are untouched.
	assert.Equal(t, uint64(perNode), a.N())
	assert.Equal(t, uint64(perNode), b.N())

	// The merged sampler keeps sampling correctly.
	for i := int64(0); i < perNode; i++ {
		result.Sample(-1 - i)
	}
	assert.Equal(t, uint64(3*perNode), result.N())
	assert.Equal(t, 10, result.NumSamples())
}

func TestUniformUnionDownsamplesWiderSources(t *testing.T) {
	src, err := NewUniform[int64](20, WithSeed(69))
	assert.NoError(t, err)
	for i := int64(0); i < 100; i++ {
		src.Sample(i)
	}

	u, err := NewUniformUnion[int64](5, WithSeed(70))
	assert.NoError(t, err)
	u.UpdateSampler(src)

	result, err := u.Result()
	assert.NoError(t, err)
	assert.LessOrEqual(t, result.K(), 5)
	assert.Equal(t, 5, result.NumSamples())
	assert.Equal(t, uint64(100), result.N())
}

func TestUniformUnionUpgradesNarrowExactSources(t *testing.T) {
	// An exact-mode source narrower than maxK must not cap the union's
	// capacity.
	src, err := NewUniform[int64](2, WithSeed(71))
	assert.NoError(t, err)
	src.Sample(1)
	src.Sample(2)

	u, err := NewUniformUnion[int64](8, WithSeed(72))
	assert.NoError(t, err)
	u.UpdateSampler(src)

	for i := int64(3); i <= 8; i++ {
		u.Update(i)
	}

	result, err := u.Result()
	assert.NoError(t, err)
	assert.Equal(t, 8, result.K())
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, result.Result())
}

func TestUniformUnionReset(t *testing.T) {
	u, err := NewUniformUnion[int64](4, WithSeed(73))
	assert.NoError(t, err)
	for i := int64(0); i < 50; i++ {
		u.Update(i)
	}

	u.Reset()
	result, err := u.Result()
	assert.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

// Merging per-node samplers must leave every stream element with roughly
// equal representation in the union's result.
func TestUniformUnionFrequencies(t *testing.T) {
	const (
		k      = 4
		nodes  = 2
		perN   = 20
		trials = 3000
	)

	counts := make([]float64, nodes*perN)
	for trial := 0; trial < trials; trial++ {
		seed := uint64(1000 + trial)
		u, err := NewUniformUnion[int](k, WithSeed(seed))
		assert.NoError(t, err)

		for node := 0; node < nodes; node++ {
			s, err := NewUniform[int](k, WithSeed(seed+uint64(node)+1))
			assert.NoError(t, err)
			for i := 0; i < perN; i++ {
				s.Sample(node*perN + i)
			}
			u.UpdateSampler(s)
		}

		result, err := u.Result()
		assert.NoError(t, err)
		for _, v := range result.Result() {
			counts[v]++
		}
	}

	want := float64(k) / float64(nodes*perN)
	for i, c := range counts {
		assert.InDelta(t, want, c/trials, 0.05, "index %d", i)
	}
}
