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
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Workers publish their word counts in batches of this size.
const batchSize = 10000

const minAlphaRatio = 1e-4

// trainState is shared by all workers of a run. Reads are lock free; alpha
// may lag behind the counter by a batch.
type trainState struct {
	initialAlpha real
	total        int64
	processed    atomic.Int64
	alphaBits    atomic.Uint32
	metrics      *Metrics
}

func newTrainState(initialAlpha float64, iterations int, trainWords countUint, metrics *Metrics) *trainState {
	s := &trainState{
		initialAlpha: real(initialAlpha),
		total:        int64(iterations) * int64(trainWords),
		metrics:      metrics,
	}
	s.alphaBits.Store(math.Float32bits(s.initialAlpha))
	return s
}

func (s *trainState) alpha() real {
	return math.Float32frombits(s.alphaBits.Load())
}

func (s *trainState) progress() float64 {
	return float64(s.processed.Load()) / float64(s.total+1)
}

// advance records n more words and decays alpha linearly, floored at
// minAlphaRatio of its initial value.
func (s *trainState) advance(n int64) {
	if n == 0 {
		return
	}
	s.processed.Add(n)
	p := s.progress()
	alpha := s.initialAlpha * real(1-p)
	if floor := s.initialAlpha * minAlphaRatio; alpha < floor {
		alpha = floor
	}
	s.alphaBits.Store(math.Float32bits(alpha))
	s.metrics.observe(n, alpha, p)
}

func (s *trainState) progressReport(quit chan bool, threads int) {
	startAt := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			secondsElapsed := time.Since(startAt).Seconds()
			processed := s.processed.Load()
			wordsPerSecond := float64(processed) / float64(threads) / secondsElapsed
			var eta time.Duration
			if processed > 0 {
				eta = time.Duration(float64(s.total-processed) / (float64(processed) / secondsElapsed) * float64(time.Second))
			}
			logger.WithFields(logrus.Fields{
				"progress": s.progress() * 1e2,
				"alpha":    s.alpha(),
				"speed":    wordsPerSecond / 1e3,
				"eta":      eta.Truncate(time.Second),
			}).Debug("training")
		}
	}
}

// runWorkers starts n workers and waits for all of them. The first failure
// cancels the others and is returned.
func runWorkers(ctx context.Context, n int, state *trainState, work func(ctx context.Context, threadID int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	errs := make([]error, n)
	var wg sync.WaitGroup
	for threadID := 0; threadID < n; threadID++ {
		wg.Add(1)
		go func(threadID int) {
			defer wg.Done()
			if err := work(ctx, threadID); err != nil {
				errs[threadID] = err
				cancel()
			}
		}(threadID)
	}
	quit := make(chan bool)
	go state.progressReport(quit, n)
	wg.Wait()
	close(quit)

	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	if first != nil {
		return first
	}
	logger.Infof("training done in %s, %d words", time.Since(start).Truncate(time.Millisecond), state.processed.Load())
	return nil
}

// Train learns embeddings from the corpus at path. A model that already has
// a vocabulary, e.g. one restored with Load, keeps training its weights.
func (m *Model) Train(ctx context.Context, path string) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	log := logger.WithFields(logrus.Fields{"run": m.runID, "corpus": path})

	if m.vocab == nil {
		v, err := buildVocabFile(path, m.cfg.MinCount, m.cfg.NormalizeUnicode)
		if err != nil {
			return err
		}
		m.setVocab(v)
		m.initNet(m.cfg.Seed)
	} else {
		log.Info("resuming training")
		m.ensureOutputLayers()
	}

	idx, err := indexCorpus(path)
	if err != nil {
		return err
	}
	chunks := idx.partition(m.cfg.Threads, m.cfg.BalanceWords)
	if m.cfg.SentVector {
		if rows, _ := m.mSent.shape(); rows != idx.lines() {
			m.initSentWeights(idx.lines(), m.cfg.Seed)
		}
	} else {
		m.mSent = nil
	}

	log.WithFields(logrus.Fields{
		"vocab":     m.vocab.Size(),
		"words":     m.vocab.TrainWords(),
		"lines":     idx.lines(),
		"threads":   m.cfg.Threads,
		"skipgram":  m.cfg.SkipGram,
		"hs":        m.cfg.HierarchicalSoftmax,
		"negative":  m.cfg.Negative,
		"sentences": m.cfg.SentVector,
	}).Info("training")

	state := newTrainState(m.cfg.LearningRate, m.cfg.Iterations, m.vocab.TrainWords(), m.metrics)
	err = runWorkers(ctx, m.cfg.Threads, state, func(ctx context.Context, threadID int) error {
		return m.trainChunk(ctx, path, chunks[threadID], state, threadID)
	})
	if err == nil && !finite(m.mIn.data) {
		log.Error("got a NaN, try a lower learning rate")
	}
	return err
}

func (m *Model) trainChunk(ctx context.Context, path string, c Chunk, state *trainState, threadID int) error {
	f, err := openCorpus(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ts := newThreadState(m.cfg.Dimension, m.cfg.Seed+int64(threadID))
	for k := 0; k < m.cfg.Iterations; k++ {
		var wordCount, lastCount int64
		s := newLineScanner(io.NewSectionReader(f, c.Start, c.End-c.Start))
		sentID := c.FirstLine
		for s.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			wordCount += int64(m.trainSentence(s.Text(), sentID, state.alpha(), ts))
			sentID++
			if wordCount-lastCount > batchSize {
				state.advance(wordCount - lastCount)
				lastCount = wordCount
			}
		}
		if err := s.Err(); err != nil {
			return ioError("read", path, err)
		}
		state.advance(wordCount - lastCount)
		state.metrics.epochDone()
	}
	return nil
}

// trainSentence runs one pass over a line and returns its number of
// in-vocabulary words, counted before subsampling.
func (m *Model) trainSentence(line string, sentID int, alpha real, ts *threadState) int {
	nodes := m.vocab.nodes(line)
	words := known(nodes)
	m.vocab.subsample(nodes, m.cfg.Subsampling, ts.r)
	nodes = compact(nodes)

	var sent []real
	if m.mSent != nil && sentID < m.mSent.rows {
		sent = m.mSent.row(idxUint(sentID))
	}
	for pos := range nodes {
		trainWord(m, m, nodes, nodes, pos, pos, sent, alpha, ts)
	}
	return words
}
