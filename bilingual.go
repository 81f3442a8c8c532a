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
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BilingualModel trains two monolingual models jointly on a parallel corpus,
// pulling aligned words of both languages together.
type BilingualModel struct {
	cfg   BilingualConfig
	runID string

	Src *Model
	Trg *Model

	// alignments[line][i] is the target position aligned to source token i,
	// or unk. A nil slice means uniform alignment.
	alignments [][]idxUint

	metrics *Metrics
}

func NewBilingualModel(cfg BilingualConfig) (*BilingualModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &BilingualModel{cfg: cfg, runID: uuid.NewString()}
	b.Src = &Model{cfg: cfg.Config, runID: b.runID}
	b.Trg = &Model{cfg: cfg.Config, runID: b.runID}
	return b, nil
}

func (b *BilingualModel) Config() BilingualConfig { return b.cfg }

// SetConfig applies cfg to the model and both of its languages.
func (b *BilingualModel) SetConfig(cfg BilingualConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := b.Src.SetConfig(cfg.Config); err != nil {
		return err
	}
	if err := b.Trg.SetConfig(cfg.Config); err != nil {
		return err
	}
	b.cfg = cfg
	return nil
}

func (b *BilingualModel) RunID() string { return b.runID }

func (b *BilingualModel) SetMetrics(mt *Metrics) { b.metrics = mt }

// Train learns both languages from line-aligned corpora. alignPath may be
// empty, in which case source token i of a line of n tokens is aligned with
// target token i*m/n.
func (b *BilingualModel) Train(ctx context.Context, srcPath, trgPath, alignPath string) error {
	if err := b.cfg.Validate(); err != nil {
		return err
	}
	log := logger.WithFields(logrus.Fields{"run": b.runID, "src": srcPath, "trg": trgPath})

	srcIdx, err := indexCorpus(srcPath)
	if err != nil {
		return err
	}
	trgIdx, err := indexCorpus(trgPath)
	if err != nil {
		return err
	}
	if srcIdx.lines() != trgIdx.lines() {
		return formatError(trgPath, 0, "%d lines, source corpus %s has %d", trgIdx.lines(), srcPath, srcIdx.lines())
	}
	b.alignments = nil
	if alignPath != "" {
		if b.alignments, err = readAlignments(alignPath, srcIdx, trgIdx); err != nil {
			return err
		}
	}

	if b.Src.vocab == nil || b.Trg.vocab == nil {
		for i, side := range []struct {
			m    *Model
			path string
		}{{b.Src, srcPath}, {b.Trg, trgPath}} {
			v, err := buildVocabFile(side.path, b.cfg.MinCount, b.cfg.NormalizeUnicode)
			if err != nil {
				return err
			}
			side.m.setVocab(v)
			side.m.initNet(b.cfg.Seed + int64(i))
		}
	} else {
		log.Info("resuming training")
		b.Src.ensureOutputLayers()
		b.Trg.ensureOutputLayers()
	}

	srcChunks := srcIdx.partition(b.cfg.Threads, b.cfg.BalanceWords)
	trgChunks := trgIdx.chunksAt(lineBounds(srcChunks))

	log.WithFields(logrus.Fields{
		"src_vocab": b.Src.vocab.Size(),
		"trg_vocab": b.Trg.vocab.Size(),
		"lines":     srcIdx.lines(),
		"aligned":   alignPath != "",
		"bi_weight": b.cfg.BiWeight,
		"threads":   b.cfg.Threads,
		"skipgram":  b.cfg.SkipGram,
		"hs":        b.cfg.HierarchicalSoftmax,
		"negative":  b.cfg.Negative,
	}).Info("training bilingual model")

	trainWords := b.Src.vocab.TrainWords() + b.Trg.vocab.TrainWords()
	state := newTrainState(b.cfg.LearningRate, b.cfg.Iterations, trainWords, b.metrics)
	return runWorkers(ctx, b.cfg.Threads, state, func(ctx context.Context, threadID int) error {
		return b.trainChunk(ctx, srcPath, trgPath, srcChunks[threadID], trgChunks[threadID], state, threadID)
	})
}

func (b *BilingualModel) trainChunk(ctx context.Context, srcPath, trgPath string, sc, tc Chunk, state *trainState, threadID int) error {
	srcFile, err := openCorpus(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()
	trgFile, err := openCorpus(trgPath)
	if err != nil {
		return err
	}
	defer trgFile.Close()

	ts := newThreadState(b.cfg.Dimension, b.cfg.Seed+int64(threadID))
	for k := 0; k < b.cfg.Iterations; k++ {
		var wordCount, lastCount int64
		ss := newLineScanner(io.NewSectionReader(srcFile, sc.Start, sc.End-sc.Start))
		st := newLineScanner(io.NewSectionReader(trgFile, tc.Start, tc.End-tc.Start))
		line := sc.FirstLine
		for ss.Scan() && st.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			wordCount += int64(b.trainSentence(ss.Text(), st.Text(), line, state.alpha(), ts))
			line++
			if wordCount-lastCount > batchSize {
				state.advance(wordCount - lastCount)
				lastCount = wordCount
			}
		}
		if err := ss.Err(); err != nil {
			return ioError("read", srcPath, err)
		}
		if err := st.Err(); err != nil {
			return ioError("read", trgPath, err)
		}
		state.advance(wordCount - lastCount)
		state.metrics.epochDone()
	}
	return nil
}

// trainSentence trains both sides of a sentence pair monolingually, then
// every aligned word pair in both directions. It returns the number of
// in-vocabulary words on both sides.
func (b *BilingualModel) trainSentence(srcLine, trgLine string, line int, alpha real, ts *threadState) int {
	srcNodes := b.Src.vocab.nodes(srcLine)
	trgNodes := b.Trg.vocab.nodes(trgLine)
	words := known(srcNodes) + known(trgNodes)
	if len(srcNodes) == 0 || len(trgNodes) == 0 {
		return words
	}
	b.Src.vocab.subsample(srcNodes, b.cfg.Subsampling, ts.r)
	b.Trg.vocab.subsample(trgNodes, b.cfg.Subsampling, ts.r)

	var gold []idxUint
	if b.alignments != nil {
		gold = b.alignments[line]
	}
	alignment := alignSentence(srcNodes, trgNodes, gold, b.alignments == nil)
	srcNodes = compact(srcNodes)
	trgNodes = compact(trgNodes)

	for pos := range srcNodes {
		trainWord(b.Src, b.Src, srcNodes, srcNodes, pos, pos, nil, alpha, ts)
	}
	for pos := range trgNodes {
		trainWord(b.Trg, b.Trg, trgNodes, trgNodes, pos, pos, nil, alpha, ts)
	}

	if b.cfg.BiWeight == 0 {
		return words
	}
	biAlpha := alpha * real(b.cfg.BiWeight)
	for srcPos, trgPos := range alignment {
		if trgPos == unk {
			continue
		}
		trainWord(b.Src, b.Trg, srcNodes, trgNodes, srcPos, int(trgPos), nil, biAlpha, ts)
		trainWord(b.Trg, b.Src, trgNodes, srcNodes, int(trgPos), srcPos, nil, biAlpha, ts)
	}
	return words
}

// alignSentence maps each kept source token to the position of its aligned
// target token after unk entries are dropped from both sides. The result has
// one entry per kept source token; unaligned or dropped targets are unk.
func alignSentence(srcNodes, trgNodes, gold []idxUint, uniform bool) []idxUint {
	trgMapping := make([]idxUint, len(trgNodes))
	var k idxUint
	for i, n := range trgNodes {
		if n == unk {
			trgMapping[i] = unk
		} else {
			trgMapping[i] = k
			k++
		}
	}

	res := make([]idxUint, 0, len(srcNodes))
	for i, n := range srcNodes {
		if n == unk {
			continue
		}
		j := unk
		if uniform {
			j = idxUint(i * len(trgNodes) / len(srcNodes))
		} else if i < len(gold) {
			j = gold[i]
		}
		if j >= 0 && int(j) < len(trgMapping) {
			j = trgMapping[j]
		} else {
			j = unk
		}
		res = append(res, j)
	}
	return res
}

// readAlignments parses one line of "i-j" pairs per sentence pair. Indices
// are validated against the token counts of both corpora.
func readAlignments(path string, src, trg *corpusIndex) ([][]idxUint, error) {
	f, err := openCorpus(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var res [][]idxUint
	lineNo := 0
	s := newLineScanner(f)
	for s.Scan() {
		lineNo++
		if lineNo > src.lines() {
			continue
		}
		srcLen, trgLen := int(src.lineWords[lineNo-1]), int(trg.lineWords[lineNo-1])
		var a []idxUint
		for _, tok := range strings.Fields(s.Text()) {
			i, j, ok := parseAlignmentPair(tok)
			if !ok {
				return nil, formatError(path, lineNo, "bad alignment %q", tok)
			}
			if i >= srcLen || j >= trgLen {
				return nil, formatError(path, lineNo, "alignment %s out of range for sentences of %d and %d words", tok, srcLen, trgLen)
			}
			for len(a) <= i {
				a = append(a, unk)
			}
			a[i] = idxUint(j)
		}
		res = append(res, a)
	}
	if err := s.Err(); err != nil {
		return nil, ioError("read", path, err)
	}
	if lineNo != src.lines() {
		return nil, formatError(path, 0, "%d lines, corpus has %d", lineNo, src.lines())
	}
	return res, nil
}

func parseAlignmentPair(tok string) (int, int, bool) {
	a, b, ok := strings.Cut(tok, "-")
	if !ok {
		return 0, 0, false
	}
	i, err := strconv.Atoi(a)
	if err != nil || i < 0 {
		return 0, 0, false
	}
	j, err := strconv.Atoi(b)
	if err != nil || j < 0 {
		return 0, 0, false
	}
	return i, j, true
}

// Save stores both models and the bilingual config in one database.
func (b *BilingualModel) Save(path string) error {
	logger.Infof("saving bilingual model to %s", path)
	kv, err := NewLevelDBStore(path, false)
	if err != nil {
		return err
	}
	err = putJSON(kv, "config", b.cfg)
	if err == nil {
		err = saveModel(kv, "src/", b.Src)
	}
	if err == nil {
		err = saveModel(kv, "trg/", b.Trg)
	}
	if err != nil {
		kv.Close()
		return err
	}
	return kv.Close()
}

// LoadBilingual restores a model written by BilingualModel.Save.
func LoadBilingual(path string) (*BilingualModel, error) {
	kv, err := NewLevelDBStore(path, true)
	if err != nil {
		return nil, err
	}
	defer kv.Close()
	cfg := DefaultBilingualConfig()
	if err := getJSON(kv, path, "config", &cfg); err != nil {
		return nil, err
	}
	b, err := NewBilingualModel(cfg)
	if err != nil {
		return nil, err
	}
	if err := loadModel(kv, path, "src/", b.Src); err != nil {
		return nil, err
	}
	if err := loadModel(kv, path, "trg/", b.Trg); err != nil {
		return nil, err
	}
	b.runID = b.Src.runID
	return b, nil
}
