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
	"math"

	"github.com/streamkit/reservoir/internal/binombounds"
)

// defaultKappa is the number of standard deviations backing subset-sum
// error bounds.
const defaultKappa = 2.0

// SubsetSumSummary captures the result of a subset-sum query against a
// uniform sampler: an estimate of how many stream elements satisfy a
// predicate, with confidence bounds.
type SubsetSumSummary struct {
	LowerBound        float64
	Estimate          float64
	UpperBound        float64
	TotalStreamWeight float64
}

// EstimateSubsetSum estimates the number of stream elements satisfying pred
// from the retained sample. While the sampler is still filling, the count
// is exact and the bounds collapse onto it; afterwards the bounds come from
// an approximate Clopper-Pearson interval on the sampled proportion,
// narrowed by the finite-population factor sqrt(1 - rate) for sampling
// without replacement.
func (u *Uniform[T]) EstimateSubsetSum(pred func(T) bool) (SubsetSumSummary, error) {
	if u.n == 0 {
		return SubsetSumSummary{}, nil
	}

	numSamples := uint64(u.filled)
	var count uint64
	for i := 0; i < u.filled; i++ {
		if pred(u.data[i]) {
			count++
		}
	}

	if u.n <= uint64(u.k) {
		// Still filling: every stream element is retained.
		exact := float64(count)
		return SubsetSumSummary{
			LowerBound:        exact,
			Estimate:          exact,
			UpperBound:        exact,
			TotalStreamWeight: float64(u.n),
		}, nil
	}

	total := float64(u.n)
	samplingRate := float64(numSamples) / total
	kappa := defaultKappa * math.Sqrt(1.0-samplingRate)

	lb, err := binombounds.ApproximateLowerBoundOnP(numSamples, count, kappa)
	if err != nil {
		return SubsetSumSummary{}, err
	}
	ub, err := binombounds.ApproximateUpperBoundOnP(numSamples, count, kappa)
	if err != nil {
		return SubsetSumSummary{}, err
	}

	return SubsetSumSummary{
		LowerBound:        total * lb,
		Estimate:          total * float64(count) / float64(numSamples),
		UpperBound:        total * ub,
		TotalStreamWeight: total,
	}, nil
}
