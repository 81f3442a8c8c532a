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

// threadState is owned by one worker. hidden and grad are reused across
// calls to avoid allocation.
type threadState struct {
	r      *rand.Rand
	hidden []real
	grad   []real
}

func newThreadState(dim int, seed int64) *threadState {
	return &threadState{
		r:      rand.New(rand.NewSource(seed)),
		hidden: make([]real, dim),
		grad:   make([]real, dim),
	}
}

// hierarchicalUpdate walks w's tree path, accumulating the gradient for hidden
// into grad. Output rows are only modified when update is set.
func (m *Model) hierarchicalUpdate(w *Word, hidden, grad []real, alpha real, update bool) {
	for j, parent := range w.Parents {
		out := m.mOutHS.row(parent)
		x := dot(hidden, out)
		if x <= -maxExp || x >= maxExp {
			continue
		}
		e := alpha * (real(w.Code[j]) - sigmoid(x))
		axpy(e, out, grad)
		if update {
			axpy(e, hidden, out)
		}
	}
}

// negSamplingUpdate scores target as positive and Negative draws from the
// noise distribution as negatives. Draws equal to target are skipped.
func (m *Model) negSamplingUpdate(target idxUint, hidden, grad []real, alpha real, update bool, r *rand.Rand) {
	for d := 0; d <= m.cfg.Negative; d++ {
		word, label := target, real(1)
		if d > 0 {
			word, label = m.noise.sample(r), 0
			if word == target {
				continue
			}
		}
		out := m.mOut.row(word)
		x := dot(hidden, out)
		var pred real
		switch {
		case x >= maxExp:
			pred = 1
		case x <= -maxExp:
			pred = 0
		default:
			pred = sigmoid(x)
		}
		e := alpha * (label - pred)
		axpy(e, out, grad)
		if update {
			axpy(e, hidden, out)
		}
	}
}

// outputUpdate runs every enabled output layer for target.
func (m *Model) outputUpdate(target idxUint, hidden, grad []real, alpha real, update bool, ts *threadState) {
	if m.cfg.HierarchicalSoftmax {
		m.hierarchicalUpdate(m.vocab.list[target], hidden, grad, alpha, update)
	}
	if m.cfg.Negative > 0 {
		m.negSamplingUpdate(target, hidden, grad, alpha, update, ts.r)
	}
}

// window draws a reduced window around pos, clipped to [0, n).
func window(r *rand.Rand, size, pos, n int) (lo, hi int) {
	span := size - r.Intn(size)
	return max(0, pos-span), min(n-1, pos+span)
}

// cbowHidden averages the input vectors of nodes[lo..hi] except pos, and
// sent, into ts.hidden. It reports false when nothing contributed.
func (m *Model) cbowHidden(nodes []idxUint, pos, lo, hi int, sent []real, ts *threadState) bool {
	zero(ts.hidden)
	count := 0
	for c := lo; c <= hi; c++ {
		if c == pos {
			continue
		}
		axpy(1, m.mIn.row(nodes[c]), ts.hidden)
		count++
	}
	if sent != nil {
		axpy(1, sent, ts.hidden)
		count++
	}
	if count == 0 {
		return false
	}
	scal(1/real(count), ts.hidden)
	return true
}

// trainWordCBOW predicts srcNodes[srcPos] with src's output layers from the
// context around trgNodes[trgPos] in trg's input space, trgPos excluded.
// src == trg is the monolingual case.
func trainWordCBOW(src, trg *Model, srcNodes, trgNodes []idxUint, srcPos, trgPos int, sent []real, alpha real, ts *threadState) {
	lo, hi := window(ts.r, trg.cfg.WindowSize, trgPos, len(trgNodes))
	if !trg.cbowHidden(trgNodes, trgPos, lo, hi, sent, ts) {
		return
	}
	zero(ts.grad)
	src.outputUpdate(srcNodes[srcPos], ts.hidden, ts.grad, alpha, true, ts)

	for c := lo; c <= hi; c++ {
		if c == trgPos {
			continue
		}
		axpy(1, ts.grad, trg.mIn.row(trgNodes[c]))
	}
	if sent != nil {
		axpy(1, ts.grad, sent)
	}
}

// trainWordSkipGram predicts each word around trgNodes[trgPos], trgPos
// excluded, with trg's output layers from the input vector of
// srcNodes[srcPos]. A sentence vector additionally predicts the center word.
func trainWordSkipGram(src, trg *Model, srcNodes, trgNodes []idxUint, srcPos, trgPos int, sent []real, alpha real, ts *threadState) {
	in := src.mIn.row(srcNodes[srcPos])
	lo, hi := window(ts.r, trg.cfg.WindowSize, trgPos, len(trgNodes))
	for c := lo; c <= hi; c++ {
		if c == trgPos {
			continue
		}
		zero(ts.grad)
		trg.outputUpdate(trgNodes[c], in, ts.grad, alpha, true, ts)
		axpy(1, ts.grad, in)
	}

	if sent != nil {
		zero(ts.grad)
		src.outputUpdate(srcNodes[srcPos], sent, ts.grad, alpha, true, ts)
		axpy(1, ts.grad, sent)
	}
}

func trainWord(src, trg *Model, srcNodes, trgNodes []idxUint, srcPos, trgPos int, sent []real, alpha real, ts *threadState) {
	if src.cfg.SkipGram {
		trainWordSkipGram(src, trg, srcNodes, trgNodes, srcPos, trgPos, sent, alpha, ts)
	} else {
		trainWordCBOW(src, trg, srcNodes, trgNodes, srcPos, trgPos, sent, alpha, ts)
	}
}
