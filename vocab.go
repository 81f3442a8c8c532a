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
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// unk marks a token that is not in the vocabulary, or that subsampling
// discarded. It keeps its slot so sentence positions stay aligned.
const unk idxUint = -1

// Word is a vocabulary entry and a leaf of the Huffman tree. Code and Parents
// describe the root-to-leaf path used by hierarchical softmax.
type Word struct {
	W       string
	Idx     idxUint
	Count   countUint
	Code    []uint8
	Parents []idxUint
}

// ByFreq sorts words by decreasing count, then alphabetically.
type ByFreq []*Word

func (a ByFreq) Len() int      { return len(a) }
func (a ByFreq) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByFreq) Less(i, j int) bool {
	if a[i].Count != a[j].Count {
		return a[i].Count > a[j].Count
	}
	return a[i].W < a[j].W
}

// Vocabulary maps words to their entries. It is read-only once training starts.
type Vocabulary struct {
	words      map[string]*Word
	list       []*Word
	trainWords countUint
	normalize  bool
}

func newVocabulary(list []*Word, normalize bool) *Vocabulary {
	v := &Vocabulary{
		words:     make(map[string]*Word, len(list)),
		list:      list,
		normalize: normalize,
	}
	for _, w := range list {
		v.words[w.W] = w
		v.trainWords += w.Count
	}
	return v
}

// BuildVocab counts every token of r, drops words seen fewer than minCount
// times and assigns dense indices by decreasing count.
func BuildVocab(r io.Reader, minCount countUint, normalize bool) (*Vocabulary, error) {
	counts := make(map[string]*Word)
	var list []*Word
	var rawWords uint64
	pp := newProgressPrinter("vocab", defaultProgressInterval)

	s := newLineScanner(r)
	for s.Scan() {
		for _, tok := range tokenize(s.Text(), normalize) {
			pp.inc()
			rawWords++
			w, ok := counts[tok]
			if !ok {
				w = &Word{W: tok}
				counts[tok] = w
				list = append(list, w)
			}
			w.Count++
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "multivec: reading corpus")
	}
	if rawWords == 0 {
		return nil, ErrEmptyCorpus
	}

	// Now sort the vocab by frequency and discard words below minCount.
	sort.Sort(ByFreq(list))
	cut := 0
	for ; cut < len(list) && list[cut].Count >= minCount; cut++ {
	}
	list = list[:cut]
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrEmptyCorpus, "no word occurs at least %d times", minCount)
	}
	for i, w := range list {
		w.Idx = idxUint(i)
	}

	v := newVocabulary(list, normalize)
	logger.WithField("raw_words", rawWords).Infof("vocabulary size %d, train words %d", v.Size(), v.trainWords)
	return v, nil
}

func buildVocabFile(path string, minCount countUint, normalize bool) (*Vocabulary, error) {
	f, err := openCorpus(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	v, err := BuildVocab(f, minCount, normalize)
	if err != nil && !errors.Is(err, ErrEmptyCorpus) {
		return nil, ioError("read", path, err)
	}
	return v, err
}

func (v *Vocabulary) Size() int { return len(v.list) }

// TrainWords is the total count of in-vocabulary tokens.
func (v *Vocabulary) TrainWords() countUint { return v.trainWords }

// Words returns entries in index order.
func (v *Vocabulary) Words() []*Word { return v.list }

// Lookup returns the entry of w, or an error wrapping ErrOutOfVocabulary.
func (v *Vocabulary) Lookup(w string) (*Word, error) {
	if v.normalize {
		w = normalizeToken(w)
	}
	if mapw, ok := v.words[w]; ok {
		return mapw, nil
	}
	return nil, oovError(w)
}

// WordCount pairs a word with its corpus count.
type WordCount struct {
	Word  string
	Count countUint
}

func (v *Vocabulary) WordCounts() []WordCount {
	res := make([]WordCount, len(v.list))
	for i, w := range v.list {
		res[i] = WordCount{w.W, w.Count}
	}
	return res
}

// nodes maps a line to vocabulary indices, one per token, unk for unknown ones.
func (v *Vocabulary) nodes(line string) []idxUint {
	toks := tokenize(line, v.normalize)
	res := make([]idxUint, len(toks))
	for i, tok := range toks {
		if w, ok := v.words[tok]; ok {
			res[i] = w.Idx
		} else {
			res[i] = unk
		}
	}
	return res
}

func known(nodes []idxUint) int {
	n := 0
	for _, i := range nodes {
		if i != unk {
			n++
		}
	}
	return n
}

// compact drops unk entries in place.
func compact(nodes []idxUint) []idxUint {
	res := nodes[:0]
	for _, i := range nodes {
		if i != unk {
			res = append(res, i)
		}
	}
	return res
}

// SaveVocab writes one "word count" line per entry, in index order.
func (v *Vocabulary) SaveVocab(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return ioError("create", path, err)
	}
	w := bufio.NewWriter(out)
	for _, mapw := range v.list {
		fmt.Fprintf(w, "%s %d\n", mapw.W, mapw.Count)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return ioError("write", path, err)
	}
	if err := out.Close(); err != nil {
		return ioError("close", path, err)
	}
	return nil
}
