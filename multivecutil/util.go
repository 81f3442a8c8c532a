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

package multivecutil

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const float32Bytes = 4

var byteOrder = binary.LittleEndian

// Vectors is a word embedding table read from a word2vec file.
type Vectors struct {
	dim     int
	words   []string
	wordIdx map[string]int
	vecs    [][]float64
}

func (v *Vectors) Dim() int { return v.dim }

func (v *Vectors) Words() []string { return v.words }

// Vec returns the vector of w and whether w is known.
func (v *Vectors) Vec(w string) ([]float64, bool) {
	i, ok := v.wordIdx[w]
	if !ok {
		return nil, false
	}
	return v.vecs[i], true
}

type Result struct {
	Word       string
	Similarity float64
}

// Nearest returns the k words closest to w by cosine similarity, w excluded.
func (v *Vectors) Nearest(w string, k int) ([]Result, error) {
	q, ok := v.Vec(w)
	if !ok {
		return nil, errors.Errorf("unknown word %q", w)
	}
	qn := floats.Norm(q, 2)
	out := make([]Result, 0, len(v.words))
	for i, x := range v.vecs {
		if v.words[i] == w {
			continue
		}
		var sim float64
		if n := floats.Norm(x, 2) * qn; n > 0 {
			sim = floats.Dot(q, x) / n
		}
		out = append(out, Result{v.words[i], sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func newVectors(n, dim int) *Vectors {
	return &Vectors{
		dim:     dim,
		words:   make([]string, 0, n),
		wordIdx: make(map[string]int, n),
		vecs:    make([][]float64, 0, n),
	}
}

func (v *Vectors) add(w string, vec []float64) {
	v.wordIdx[w] = len(v.words)
	v.words = append(v.words, w)
	v.vecs = append(v.vecs, vec)
}

func readHeader(r *bufio.Reader) (int, int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading header")
	}
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("bad header %q", strings.TrimSpace(line))
	}
	n, err1 := strconv.Atoi(parts[0])
	dim, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || n < 0 || dim <= 0 {
		return 0, 0, errors.Errorf("bad header %q", strings.TrimSpace(line))
	}
	return n, dim, nil
}

// LoadVectors reads the word2vec text format.
func LoadVectors(path string) (*Vectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	n, dim, err := readHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	out := newVectors(n, dim)
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, errors.Wrapf(err, "%s: line %d", path, i+2)
		}
		parts := strings.Fields(line)
		if len(parts) != dim+1 {
			return nil, errors.Errorf("%s: line %d has %d values, expected %d", path, i+2, len(parts)-1, dim)
		}
		vec := make([]float64, dim)
		for j, s := range parts[1:] {
			if vec[j], err = strconv.ParseFloat(s, 32); err != nil {
				return nil, errors.Wrapf(err, "%s: line %d", path, i+2)
			}
		}
		out.add(parts[0], vec)
	}
	return out, nil
}

// LoadVectorsBin reads the word2vec binary format: a text header, then per
// word its bytes, a space, dim little-endian float32 values and a newline.
func LoadVectorsBin(path string) (*Vectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	n, dim, err := readHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	out := newVectors(n, dim)
	b := make([]byte, dim*float32Bytes)
	for i := 0; i < n; i++ {
		w, err := r.ReadString(' ')
		if err != nil {
			return nil, errors.Wrapf(err, "%s: word %d", path, i)
		}
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, errors.Wrapf(err, "%s: word %d", path, i)
		}
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = float64(math.Float32frombits(byteOrder.Uint32(b[j*float32Bytes:])))
		}
		if c, err := r.ReadByte(); err != nil || c != '\n' {
			return nil, errors.Errorf("%s: word %d not terminated by newline", path, i)
		}
		out.add(strings.TrimSuffix(w, " "), vec)
	}
	return out, nil
}
