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
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var byteOrder = binary.LittleEndian

// Policy selects which weights make up an exported word vector.
type Policy int

const (
	PolicyInput  Policy = iota // input weights only
	PolicyConcat               // input and output weights, concatenated
	PolicySum                  // input plus output weights
	PolicyOutput               // output weights only
)

// Model is a monolingual embedding model. Its matrices are shared without
// locks by all training workers.
type Model struct {
	cfg   Config
	runID string

	vocab *Vocabulary
	noise sampler

	mIn    *matrix
	mOut   *matrix // negative sampling, one row per word
	mOutHS *matrix // hierarchical softmax, one row per internal tree node
	mSent  *matrix // one row per training line

	metrics *Metrics
}

func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg, runID: uuid.NewString()}, nil
}

func (m *Model) Config() Config { return m.cfg }

// SetConfig replaces the hyperparameters of m, e.g. to resume a loaded model
// with more threads or iterations. The dimension of trained weights is fixed.
func (m *Model) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if m.mIn != nil && cfg.Dimension != m.cfg.Dimension {
		return &ConfigError{"dimension", fmt.Sprintf("cannot change from %d on a trained model", m.cfg.Dimension)}
	}
	if cfg.Negative == 0 || cfg.UnigramTableSize != m.cfg.UnigramTableSize {
		m.noise = nil
	}
	m.cfg = cfg
	return nil
}

// RunID identifies the training run that created the model.
func (m *Model) RunID() string { return m.runID }

// Vocabulary is nil until the model has been trained or loaded.
func (m *Model) Vocabulary() *Vocabulary { return m.vocab }

func (m *Model) Dimension() int { return m.cfg.Dimension }

// SetMetrics makes training report progress to mt.
func (m *Model) SetMetrics(mt *Metrics) { m.metrics = mt }

// setVocab encodes the vocabulary and rebuilds the noise distribution. Both
// must be done before any worker starts.
func (m *Model) setVocab(v *Vocabulary) {
	m.vocab = v
	buildHuffman(v.list)
	m.initUnigramTable()
}

func (m *Model) initUnigramTable() {
	m.noise = nil
	if m.cfg.Negative > 0 {
		logger.Debug("creating vocab sampling distribution")
		m.noise = newUnigramDist(m.vocab.list, m.cfg.UnigramTableSize, unigramPower)
	}
}

func (m *Model) initNet(seed int64) {
	r := rand.New(rand.NewSource(seed))
	v, d := m.vocab.Size(), m.cfg.Dimension

	m.mIn = newMatrix(v, d)
	m.mIn.randomize(r)
	m.mOut, m.mOutHS = nil, nil
	if m.cfg.Negative > 0 {
		m.mOut = newMatrix(v, d)
	}
	if m.cfg.HierarchicalSoftmax {
		m.mOutHS = newMatrix(v, d)
	}
}

func (m *Model) initSentWeights(lines int, seed int64) {
	m.mSent = newMatrix(lines, m.cfg.Dimension)
	m.mSent.randomize(rand.New(rand.NewSource(seed)))
}

// ensureOutputLayers allocates output matrices enabled after a model was
// loaded, e.g. when resuming with a different algorithm.
func (m *Model) ensureOutputLayers() {
	v, d := m.vocab.Size(), m.cfg.Dimension
	if m.cfg.Negative > 0 && m.mOut == nil {
		m.mOut = newMatrix(v, d)
	}
	if m.cfg.HierarchicalSoftmax && m.mOutHS == nil {
		m.mOutHS = newMatrix(v, d)
	}
	if m.cfg.Negative > 0 && m.noise == nil {
		m.initUnigramTable()
	}
}

func (m *Model) trained() error {
	if m.vocab == nil || m.mIn == nil {
		return errors.New("multivec: model is not trained")
	}
	return nil
}

func (m *Model) wordVec(idx idxUint, policy Policy) []real {
	d := m.cfg.Dimension
	in := m.mIn.row(idx)
	if m.mOut == nil {
		policy = PolicyInput
	}
	var res []real
	switch policy {
	case PolicyConcat:
		res = make([]real, 2*d)
		copy(res, in)
		copy(res[d:], m.mOut.row(idx))
	case PolicySum:
		res = append([]real{}, in...)
		axpy(1, m.mOut.row(idx), res)
	case PolicyOutput:
		res = append([]real{}, m.mOut.row(idx)...)
	default:
		res = append([]real{}, in...)
	}
	return res
}

// WordVec returns a copy of the embedding of w under policy.
func (m *Model) WordVec(w string, policy Policy) ([]real, error) {
	if err := m.trained(); err != nil {
		return nil, err
	}
	mapw, err := m.vocab.Lookup(w)
	if err != nil {
		return nil, err
	}
	return m.wordVec(mapw.Idx, policy), nil
}

// Similarity is the cosine similarity of the input vectors of two words.
func (m *Model) Similarity(w1, w2 string) (real, error) {
	v1, err := m.WordVec(w1, PolicyInput)
	if err != nil {
		return 0, err
	}
	v2, err := m.WordVec(w2, PolicyInput)
	if err != nil {
		return 0, err
	}
	return cosine(v1, v2), nil
}

// SentVec infers a paragraph vector for sentence against frozen weights.
func (m *Model) SentVec(sentence string) ([]real, error) {
	if err := m.trained(); err != nil {
		return nil, err
	}
	nodes := compact(m.vocab.nodes(sentence))
	if len(nodes) == 0 {
		return nil, errors.Wrapf(ErrOutOfVocabulary, "no known word in %q", sentence)
	}

	d := m.cfg.Dimension
	sent := make([]real, d)
	ts := newThreadState(d, m.cfg.Seed)
	alpha := real(m.cfg.LearningRate)
	for k := 0; k < m.cfg.Iterations; k++ {
		for pos := range nodes {
			hidden := sent
			if !m.cfg.SkipGram {
				lo, hi := window(ts.r, m.cfg.WindowSize, pos, len(nodes))
				m.cbowHidden(nodes, pos, lo, hi, sent, ts)
				hidden = ts.hidden
			}
			zero(ts.grad)
			m.outputUpdate(nodes[pos], hidden, ts.grad, alpha, false, ts)
			axpy(1, ts.grad, sent)
		}
	}
	return sent, nil
}

func (m *Model) vectorRows(policy Policy, norm bool) (int, func(idx idxUint) []real) {
	d := m.cfg.Dimension
	if policy == PolicyConcat && m.mOut != nil {
		d *= 2
	}
	return d, func(idx idxUint) []real {
		v := m.wordVec(idx, policy)
		if norm {
			normalize(v)
		}
		return v
	}
}

// SaveVectors writes embeddings in the word2vec text format.
func (m *Model) SaveVectors(path string, policy Policy, norm bool) error {
	if err := m.trained(); err != nil {
		return err
	}
	logger.Infof("saving vectors to %s", path)
	out, err := os.Create(path)
	if err != nil {
		return ioError("create", path, err)
	}
	w := bufio.NewWriter(out)
	d, vec := m.vectorRows(policy, norm)
	writeVectors(w, m.vocab.list, d, vec)
	return flushClose(w, out, path)
}

func writeVectors(w *bufio.Writer, vocabList []*Word, d int, vec func(idxUint) []real) {
	// Write "vocabsize dim" as first line of vector file.
	fmt.Fprintf(w, "%d %d\n", len(vocabList), d)
	buf := make([]byte, 0, 32)
	for _, mapw := range vocabList {
		w.WriteString(mapw.W)
		for _, x := range vec(mapw.Idx) {
			buf = append(buf[:0], ' ')
			buf = strconv.AppendFloat(buf, float64(x), 'g', -1, 32)
			w.Write(buf)
		}
		w.WriteByte('\n')
	}
}

// SaveVectorsBin writes embeddings in the word2vec binary format.
func (m *Model) SaveVectorsBin(path string, policy Policy, norm bool) error {
	if err := m.trained(); err != nil {
		return err
	}
	logger.Infof("saving binary vectors to %s", path)
	out, err := os.Create(path)
	if err != nil {
		return ioError("create", path, err)
	}
	w := bufio.NewWriter(out)
	d, vec := m.vectorRows(policy, norm)
	fmt.Fprintf(w, "%d %d\n", m.vocab.Size(), d)
	b := make([]byte, float32Bytes)
	for _, mapw := range m.vocab.list {
		w.WriteString(mapw.W)
		w.WriteByte(' ')
		for _, x := range vec(mapw.Idx) {
			byteOrder.PutUint32(b, math.Float32bits(x))
			w.Write(b)
		}
		w.WriteByte('\n')
	}
	return flushClose(w, out, path)
}

// SaveSentVectors writes one line of space-separated values per training line.
func (m *Model) SaveSentVectors(path string, norm bool) error {
	if m.mSent == nil {
		return errors.New("multivec: model has no sentence vectors")
	}
	out, err := os.Create(path)
	if err != nil {
		return ioError("create", path, err)
	}
	w := bufio.NewWriter(out)
	buf := make([]byte, 0, 32)
	row := make([]real, m.mSent.cols)
	for i := 0; i < m.mSent.rows; i++ {
		copy(row, m.mSent.row(idxUint(i)))
		if norm {
			normalize(row)
		}
		for j, x := range row {
			buf = buf[:0]
			if j > 0 {
				buf = append(buf, ' ')
			}
			buf = strconv.AppendFloat(buf, float64(x), 'g', -1, 32)
			w.Write(buf)
		}
		w.WriteByte('\n')
	}
	return flushClose(w, out, path)
}

// SentVectors returns the number of trained sentence vectors.
func (m *Model) SentVectors() int {
	rows, _ := m.mSent.shape()
	return rows
}

func flushClose(w *bufio.Writer, f *os.File, path string) error {
	if err := w.Flush(); err != nil {
		f.Close()
		return ioError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("close", path, err)
	}
	return nil
}
