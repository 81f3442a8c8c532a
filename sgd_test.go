package multivec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kernelModel builds a tiny model with window 1 and random, non-zero output
// layers so every update produces a gradient.
func kernelModel(t *testing.T, hs bool, negative int, counts ...countUint) *Model {
	t.Helper()
	cfg := testConfig()
	cfg.Dimension = 4
	cfg.WindowSize = 1
	cfg.HierarchicalSoftmax = hs
	cfg.Negative = negative
	cfg.UnigramTableSize = 1000
	m, err := NewModel(cfg)
	require.NoError(t, err)
	m.setVocab(newVocabulary(wordsWithCounts(counts...), false))
	m.initNet(1)
	r := rand.New(rand.NewSource(2))
	if m.mOut != nil {
		m.mOut.randomize(r)
	}
	if m.mOutHS != nil {
		m.mOutHS.randomize(r)
	}
	return m
}

func weights(m *Model) map[string][]real {
	res := map[string][]real{}
	for name, mat := range m.namedMatrices() {
		if *mat != nil {
			res[name] = append([]real{}, (*mat).data...)
		}
	}
	return res
}

func TestTrainWordContextExcludesCenter(t *testing.T) {
	tests := []struct {
		name      string
		skipGram  bool
		changed   []idxUint
		unchanged []idxUint
	}{
		{"cbow updates context only", false, []idxUint{0, 2}, []idxUint{1}},
		{"skipgram updates center only", true, []idxUint{1}, []idxUint{0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := kernelModel(t, false, 2, 10, 5, 3)
			m.cfg.SkipGram = tt.skipGram
			before := weights(m)["in"]
			nodes := []idxUint{0, 1, 2}
			trainWord(m, m, nodes, nodes, 1, 1, nil, 0.05, newThreadState(m.cfg.Dimension, 3))

			d := m.cfg.Dimension
			for _, i := range tt.changed {
				assert.NotEqual(t, before[int(i)*d:int(i+1)*d], m.mIn.row(i), "row %d", i)
			}
			for _, i := range tt.unchanged {
				assert.Equal(t, before[int(i)*d:int(i+1)*d], m.mIn.row(i), "row %d", i)
			}
		})
	}
}

func TestCrossLingualSingleWordTarget(t *testing.T) {
	for _, skipGram := range []bool{false, true} {
		src := kernelModel(t, true, 2, 10, 5, 3)
		trg := kernelModel(t, true, 2, 8, 4)
		src.cfg.SkipGram, trg.cfg.SkipGram = skipGram, skipGram
		srcBefore, trgBefore := weights(src), weights(trg)

		ts := newThreadState(src.cfg.Dimension, 3)
		trainWord(src, trg, []idxUint{0, 1}, []idxUint{0}, 1, 0, nil, 0.05, ts)

		assert.Equal(t, srcBefore, weights(src), "skipgram=%v", skipGram)
		assert.Equal(t, trgBefore, weights(trg), "skipgram=%v", skipGram)
	}
}

func TestHierarchicalUpdateSign(t *testing.T) {
	hidden := []real{0.5, -0.25, 0.1, 0.3}
	out := []real{0.2, -0.4, -0.3, 0.1}
	const alpha = real(0.1)

	tests := []struct {
		name   string
		word   idxUint
		update bool
	}{
		{"frequent word", 0, true},
		{"rare word", 1, true},
		{"inference leaves weights", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := kernelModel(t, true, 0, 3, 1)
			copy(m.mOutHS.row(0), out)
			w := m.vocab.list[tt.word]
			require.Len(t, w.Code, 1)

			grad := make([]real, len(hidden))
			m.hierarchicalUpdate(w, hidden, grad, alpha, tt.update)

			e := alpha * (real(w.Code[0]) - sigmoid(dot(hidden, out)))
			if w.Code[0] == 1 {
				assert.Greater(t, grad[0], real(0))
			} else {
				assert.Less(t, grad[0], real(0))
			}
			for i := range grad {
				assert.InDelta(t, e*out[i], grad[i], 1e-6)
				want := out[i]
				if tt.update {
					want += e * hidden[i]
				}
				assert.InDelta(t, want, m.mOutHS.row(0)[i], 1e-6)
			}
		})
	}

	m := kernelModel(t, true, 0, 3, 1)
	copy(m.mOutHS.row(0), out)
	grad := make([]real, 4)
	m.hierarchicalUpdate(m.vocab.list[0], []real{100, 100, 100, 100}, grad, alpha, true)
	assert.Equal(t, []real{0, 0, 0, 0}, grad, "saturated nodes are skipped")
}

func TestNegSamplingSkipsTarget(t *testing.T) {
	hidden := []real{0.5, -0.25, 0.1, 0.3}
	out := []real{0.2, -0.4, -0.3, 0.1}
	const alpha = real(0.1)

	tests := []struct {
		name       string
		table      []idxUint
		noiseTouch bool
	}{
		{"draws equal to target", []idxUint{0}, false},
		{"draws of another word", []idxUint{1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := kernelModel(t, false, 3, 3, 1)
			m.noise = &unigramDist{table: tt.table}
			copy(m.mOut.row(0), out)
			other := append([]real{}, m.mOut.row(1)...)

			grad := make([]real, len(hidden))
			m.negSamplingUpdate(0, hidden, grad, alpha, true, rand.New(rand.NewSource(1)))

			assert.Equal(t, tt.noiseTouch, !assert.ObjectsAreEqual(other, m.mOut.row(1)))
			e := alpha * (1 - sigmoid(dot(hidden, out)))
			for i := range out {
				assert.InDelta(t, out[i]+e*hidden[i], m.mOut.row(0)[i], 1e-6)
				if !tt.noiseTouch {
					assert.InDelta(t, e*out[i], grad[i], 1e-6)
				}
			}
		})
	}
}
