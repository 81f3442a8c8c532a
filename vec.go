/*
 * Copyright (c) 2016 Salle, Alexandre <alex@alexsalle.com>
 * Author: Salle, Alexandre <alex@alexsalle.com>
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */

package multivec

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

const (
	expTableSize = 1000
	maxExp       = 6
	expScale     = expTableSize / (2.0 * maxExp)
)

// expTable holds sigmoid values over [-maxExp, maxExp), as in word2vec.
var expTable = newExpTable()

func newExpTable() []real {
	t := make([]real, expTableSize)
	for i := range t {
		e := math.Exp((float64(i)/expTableSize*2 - 1) * maxExp)
		t[i] = real(e / (e + 1))
	}
	return t
}

// sigmoid is only valid for -maxExp < x < maxExp; callers clamp first.
func sigmoid(x real) real {
	i := int((x + maxExp) * expScale)
	if i < 0 {
		i = 0
	} else if i >= expTableSize {
		i = expTableSize - 1
	}
	return expTable[i]
}

func blasVec(x []real) blas32.Vector {
	return blas32.Vector{N: len(x), Data: x, Inc: 1}
}

func dot(x, y []real) real {
	return blas32.Dot(blasVec(x), blasVec(y))
}

// axpy computes y += a*x.
func axpy(a real, x, y []real) {
	blas32.Axpy(a, blasVec(x), blasVec(y))
}

func scal(a real, x []real) {
	blas32.Scal(a, blasVec(x))
}

func nrm2(x []real) real {
	return blas32.Nrm2(blasVec(x))
}

func zero(x []real) {
	for i := range x {
		x[i] = 0
	}
}

// normalize scales x to unit length in place; zero vectors are left as is.
func normalize(x []real) {
	if n := nrm2(x); n > 0 {
		scal(1/n, x)
	}
}

func cosine(x, y []real) real {
	nx, ny := nrm2(x), nrm2(y)
	if nx == 0 || ny == 0 {
		return 0
	}
	return dot(x, y) / (nx * ny)
}

func finite(x []real) bool {
	for _, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
