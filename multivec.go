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

// Package multivec trains word embeddings with word2vec CBOW or skip-gram
// using hierarchical softmax and/or negative sampling. Workers update shared
// weights without locks (Hogwild). A BilingualModel trains two languages
// jointly on a parallel corpus.
package multivec

// Outputs names the files written after training. Empty paths are skipped.
type Outputs struct {
	Vectors     string // word2vec text format
	VectorsBin  string // word2vec binary format
	SentVectors string
	Vocab       string
	Policy      Policy
	Norm        bool
}

// Write saves every requested output of m.
func (o Outputs) Write(m *Model) error {
	if err := m.trained(); err != nil {
		return err
	}
	if o.Vocab != "" {
		if err := m.vocab.SaveVocab(o.Vocab); err != nil {
			return err
		}
	}
	if o.Vectors != "" {
		if err := m.SaveVectors(o.Vectors, o.Policy, o.Norm); err != nil {
			return err
		}
	}
	if o.VectorsBin != "" {
		if err := m.SaveVectorsBin(o.VectorsBin, o.Policy, o.Norm); err != nil {
			return err
		}
	}
	if o.SentVectors != "" {
		if err := m.SaveSentVectors(o.SentVectors, o.Norm); err != nil {
			return err
		}
	}
	return nil
}

// Suffixed returns a copy of o with suffix appended to every path, used to
// tell apart the two sides of a bilingual model.
func (o Outputs) Suffixed(suffix string) Outputs {
	add := func(p string) string {
		if p == "" {
			return ""
		}
		return p + suffix
	}
	o.Vectors = add(o.Vectors)
	o.VectorsBin = add(o.VectorsBin)
	o.SentVectors = add(o.SentVectors)
	o.Vocab = add(o.Vocab)
	return o
}
