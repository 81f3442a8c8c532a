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

import "math/rand"

// matrix is a fixed-size row-major weight matrix. Rows are views into one
// backing slice, so concurrent writers never trigger a reallocation.
type matrix struct {
	rows int
	cols int
	data []real
}

func newMatrix(rows, cols int) *matrix {
	return &matrix{rows, cols, make([]real, rows*cols)}
}

func (m *matrix) row(i idxUint) []real {
	off := int(i) * m.cols
	return m.data[off : off+m.cols : off+m.cols]
}

// randomize fills the matrix with uniform values in [-0.5/cols, 0.5/cols).
func (m *matrix) randomize(r *rand.Rand) {
	for i := range m.data {
		m.data[i] = (r.Float32() - 0.5) / real(m.cols)
	}
}

func (m *matrix) shape() (int, int) {
	if m == nil {
		return 0, 0
	}
	return m.rows, m.cols
}
