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

// Package binombounds approximates Clopper-Pearson confidence intervals for
// a binomial proportion.
//
// Given n independent trials with k observed successes, the functions here
// bound the unknown success probability p from both sides. The confidence
// level is specified as numStdDevs, the number of standard deviations of a
// standard normal whose right tail holds the allowed error probability.
// Exact Clopper-Pearson intervals are strictly conservative; these
// approximations are not, but they are accurate enough for sampling-error
// reporting and cost only a handful of floating-point operations.
package binombounds

import (
	"fmt"
	"math"
)

// ApproximateLowerBoundOnP bounds p from below. k must not exceed n. With
// n == 0 or k == 0 nothing can be said and the bound is 0.
func ApproximateLowerBoundOnP(n, k uint64, numStdDevs float64) (float64, error) {
	if k > n {
		return 0, fmt.Errorf("k cannot exceed n: n=%d, k=%d", n, k)
	}
	switch {
	case n == 0 || k == 0:
		return 0.0, nil
	case k == 1:
		// One success: invert P(at least one success) = 1 - (1-p)^n.
		return 1.0 - math.Pow(1.0-deltaOfNumStdDevs(numStdDevs), 1.0/float64(n)), nil
	case k == n:
		// All successes: invert P(all successes) = p^n.
		return math.Pow(deltaOfNumStdDevs(numStdDevs), 1.0/float64(n)), nil
	default:
		x := approxInverseIncompleteBeta(float64((n-k)+1), float64(k), -numStdDevs)
		return 1.0 - x, nil
	}
}

// ApproximateUpperBoundOnP bounds p from above. k must not exceed n. With
// n == 0 or k == n nothing can be said and the bound is 1.
func ApproximateUpperBoundOnP(n, k uint64, numStdDevs float64) (float64, error) {
	if k > n {
		return 0, fmt.Errorf("k cannot exceed n: n=%d, k=%d", n, k)
	}
	switch {
	case n == 0 || k == n:
		return 1.0, nil
	case k == n-1:
		// One failure: mirror image of the k == 1 lower bound.
		return math.Pow(1.0-deltaOfNumStdDevs(numStdDevs), 1.0/float64(n)), nil
	case k == 0:
		// No successes: invert P(no successes) = (1-p)^n.
		return 1.0 - math.Pow(deltaOfNumStdDevs(numStdDevs), 1.0/float64(n)), nil
	default:
		x := approxInverseIncompleteBeta(float64(n-k), float64(k+1), numStdDevs)
		return 1.0 - x, nil
	}
}

// EstimateUnknownP returns the unbiased point estimate k/n, or 0 when the
// coin was never flipped.
func EstimateUnknownP(n, k uint64) (float64, error) {
	if k > n {
		return 0, fmt.Errorf("k cannot exceed n: n=%d, k=%d", n, k)
	}
	if n == 0 {
		return 0.0, nil
	}
	return float64(k) / float64(n), nil
}

// deltaOfNumStdDevs converts a standard-deviation count into the tail
// probability it leaves under a standard normal.
func deltaOfNumStdDevs(kappa float64) float64 {
	return normalCDF(-kappa)
}

func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + erf(x/math.Sqrt2))
}

// erf approximates the error function to roughly 7 decimal digits, using
// Abramowitz & Stegun formula 7.1.28, p. 88.
func erf(x float64) float64 {
	if x < 0.0 {
		return -erfOfNonneg(-x)
	}
	return erfOfNonneg(x)
}

func erfOfNonneg(x float64) float64 {
	// Coefficients as printed in the book:
	//    a1 = 0.07052 30784    a2 = 0.04228 20123
	//    a3 = 0.00927 05272    a4 = 0.00015 20143
	//    a5 = 0.00027 65672    a6 = 0.00004 30638
	const (
		a1 = 0.0705230784
		a2 = 0.0422820123
		a3 = 0.0092705272
		a4 = 0.0001520143
		a5 = 0.0002765672
		a6 = 0.0000430638
	)

	x2 := x * x
	x3 := x2 * x
	sum := 1.0 +
		a1*x + a2*x2 + a3*x3 +
		a4*x2*x2 + a5*x2*x3 + a6*x3*x3

	// The formula calls for the 16th power of the sum.
	sum2 := sum * sum
	sum4 := sum2 * sum2
	sum8 := sum4 * sum4
	return 1.0 - 1.0/(sum8*sum8)
}

// approxInverseIncompleteBeta inverts the regularized incomplete beta
// function I_x(a, b) = delta as a function of x, holding a and b constant,
// using Abramowitz & Stegun formula 26.5.22, p. 945. delta is specified
// indirectly through yp, the number of standard deviations leaving delta in
// the right tail of a standard normal. Variable names follow the book so
// the transcription stays checkable.
func approxInverseIncompleteBeta(a, b, yp float64) float64 {
	b2m1 := 2.0*b - 1.0
	a2m1 := 2.0*a - 1.0
	lambda := (yp*yp - 3.0) / 6.0
	h := 2.0 / (1.0/a2m1 + 1.0/b2m1)
	term1 := yp * math.Sqrt(h+lambda) / h
	term2 := 1.0/b2m1 - 1.0/a2m1
	term3 := lambda + 5.0/6.0 - 2.0/(3.0*h)
	w := term1 - term2*term3
	return a / (a + b*math.Exp(2.0*w))
}
