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
	"math/rand"
)

const unigramPower = 0.75

// discardP is the probability of dropping a word of relative frequency f
// under threshold t (word2vec formula), clamped at zero.
func discardP(f, t float64) float64 {
	if t <= 0 || f <= 0 {
		return 0
	}
	p := 1 - (1+math.Sqrt(f/t))*t/f
	if p < 0 {
		p = 0
	}
	return p
}

// subsample replaces discarded words by unk, keeping sentence positions.
func (v *Vocabulary) subsample(nodes []idxUint, t float64, r *rand.Rand) {
	if t <= 0 {
		return
	}
	total := float64(v.trainWords)
	for i, idx := range nodes {
		if idx == unk {
			continue
		}
		p := discardP(float64(v.list[idx].Count)/total, t)
		if p > 0 && r.Float64() < p {
			nodes[i] = unk
		}
	}
}

type sampler interface {
	sample(r *rand.Rand) idxUint
}

// Unigram sampling with context distribution smoothing, implements sampler.
// Each word owns a contiguous run of int(weight*tableSize) slots; truncation
// leftovers are dropped.
type unigramDist struct {
	table []idxUint
}

func newUnigramDist(vocab []*Word, tableSize int, power float64) *unigramDist {
	var trainWordsPow float64
	for _, w := range vocab {
		trainWordsPow += math.Pow(float64(w.Count), power)
	}
	table := make([]idxUint, 0, tableSize)
	for _, w := range vocab {
		d := int(math.Pow(float64(w.Count), power) / trainWordsPow * float64(tableSize))
		for a := 0; a < d && len(table) < tableSize; a++ {
			table = append(table, w.Idx)
		}
	}
	if len(table) == 0 && len(vocab) > 0 {
		table = append(table, vocab[0].Idx)
	}
	return &unigramDist{table}
}

func (d *unigramDist) sample(r *rand.Rand) idxUint {
	return d.table[r.Intn(len(d.table))]
}
