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

// Package sampling provides one-pass reservoir samplers for streams of
// unknown length.
//
// Three sampler families are available:
//
//   - Uniform: every stream element is equally likely to be retained
//     (Algorithm L, with geometric skip jumps so most elements are never
//     even examined once the reservoir is full).
//   - Weighted: inclusion probability is proportional to a caller-supplied
//     weight (Algorithm A-ExpJ of Efraimidis and Spirakis).
//   - WeightedSingle: a single-element weighted sampler for short streams
//     with integer weights, using the classic linear algorithm.
//
// All samplers are single-threaded; concurrent mutation is the caller's
// responsibility. Samplers retain at most k elements in O(k) space and use
// an expected O(k + k*log(n/k)) random draws over a stream of length n.
package sampling

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mathext/prng"
)

const minK = 1

// Option configures a sampler at construction time.
type Option func(*config)

type config struct {
	rnd *rand.Rand
	src *prng.MT19937 // non-nil when the sampler owns its generator
}

// WithRand supplies a caller-owned generator. The generator must outlive the
// sampler and may be shared between samplers; sharing trades reproducibility
// per sampler for fewer generator states.
func WithRand(r *rand.Rand) Option {
	return func(c *config) {
		c.rnd = r
		c.src = nil
	}
}

// WithSeed gives the sampler its own Mersenne Twister generator seeded with
// the provided value, for reproducible runs.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.src = newMT(seed)
		c.rnd = rand.New(c.src)
	}
}

// WithSeedKey gives the sampler its own Mersenne Twister generator seeded
// from a hash of the provided key. Useful when sampling must be reproducible
// per stream identity (shard name, trace ID, tenant) without coordinating
// numeric seeds.
func WithSeedKey(key string) Option {
	return func(c *config) {
		c.src = newMT(xxhash.Sum64String(key))
		c.rnd = rand.New(c.src)
	}
}

// applyOptions resolves options to a generator, defaulting to an owned
// Mersenne Twister with a time-based seed.
func applyOptions(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rnd == nil {
		cfg.src = newMT(uint64(time.Now().UnixNano()))
		cfg.rnd = rand.New(cfg.src)
	}
	return cfg
}

func newMT(seed uint64) *prng.MT19937 {
	src := prng.NewMT19937()
	src.Seed(seed)
	return src
}

// cloneGenerator duplicates an owned generator's state so a copied sampler
// continues the identical random sequence. Borrowed generators (src == nil)
// are shared instead.
func cloneGenerator(src *prng.MT19937) (*rand.Rand, *prng.MT19937) {
	dup := prng.NewMT19937()
	if b, err := src.MarshalBinary(); err == nil {
		// UnmarshalBinary only fails on a corrupted payload, which
		// MarshalBinary cannot produce.
		_ = dup.UnmarshalBinary(b)
	}
	return rand.New(dup), dup
}

// float64NonZero draws a uniform value from (0, 1). Zero is excluded so the
// result is always safe to pass to math.Log.
func float64NonZero(r *rand.Rand) float64 {
	for {
		if v := r.Float64(); v > 0 {
			return v
		}
	}
}

// float64Above draws a uniform value from [lo, 1). Landing exactly on lo is
// benign for the weighted replacement path: the synthesized key equals the
// current threshold and the incumbent ordering is preserved.
func float64Above(r *rand.Rand, lo float64) float64 {
	return lo + (1.0-lo)*r.Float64()
}
