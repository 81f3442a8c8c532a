package multivec

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parallelCorpus mirrors syntheticCorpus on the target side with x-prefixed
// words in reverse order.
func parallelCorpus(n int) (src, trg, align []string) {
	for i := 0; i < n; i++ {
		var s, tw, a []string
		for k := 0; k < 6; k++ {
			s = append(s, fmt.Sprintf("w%d", (i*6+k)%60))
			tw = append([]string{fmt.Sprintf("x%d", (i*6+k)%60)}, tw...)
			a = append(a, fmt.Sprintf("%d-%d", k, 5-k))
		}
		src = append(src, strings.Join(s, " "))
		trg = append(trg, strings.Join(tw, " "))
		align = append(align, strings.Join(a, " "))
	}
	return src, trg, align
}

func testBilingualConfig() BilingualConfig {
	cfg := DefaultBilingualConfig()
	cfg.Config = testConfig()
	cfg.Iterations = 2
	cfg.Threads = 2
	return cfg
}

func TestBilingualTrain(t *testing.T) {
	src, trg, align := parallelCorpus(200)
	srcPath := writeLines(t, "src.txt", src)
	trgPath := writeLines(t, "trg.txt", trg)
	alignPath := writeLines(t, "align.txt", align)

	tests := []struct {
		name      string
		alignPath string
		skipGram  bool
		biWeight  float64
	}{
		{"gold cbow", alignPath, false, 1},
		{"uniform skipgram", "", true, 0.5},
		{"no cross updates", alignPath, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testBilingualConfig()
			cfg.SkipGram = tt.skipGram
			cfg.BiWeight = tt.biWeight
			b, err := NewBilingualModel(cfg)
			require.NoError(t, err)
			require.NoError(t, b.Train(context.Background(), srcPath, trgPath, tt.alignPath))

			assert.Equal(t, 60, b.Src.Vocabulary().Size())
			assert.Equal(t, 60, b.Trg.Vocabulary().Size())
			requireFinite(t, b.Src)
			requireFinite(t, b.Trg)
			assert.Equal(t, tt.alignPath != "", b.alignments != nil)

			_, err = b.Src.WordVec("x1", PolicyInput)
			assert.True(t, errors.Is(err, ErrOutOfVocabulary))
			_, err = b.Trg.WordVec("x1", PolicyInput)
			assert.NoError(t, err)
		})
	}
}

func TestBilingualAlignmentOutOfRange(t *testing.T) {
	src, trg, align := parallelCorpus(10)
	align[6] = "0-0 6-1"
	srcPath := writeLines(t, "src.txt", src)
	trgPath := writeLines(t, "trg.txt", trg)
	alignPath := writeLines(t, "align.txt", align)

	b, err := NewBilingualModel(testBilingualConfig())
	require.NoError(t, err)
	err = b.Train(context.Background(), srcPath, trgPath, alignPath)
	var fmtErr *FormatError
	require.True(t, errors.As(err, &fmtErr), "%v", err)
	assert.Equal(t, 7, fmtErr.Line)
	assert.Equal(t, alignPath, fmtErr.Path)
	assert.Nil(t, b.Src.Vocabulary())
}

func TestBilingualInputErrors(t *testing.T) {
	src, trg, align := parallelCorpus(10)
	srcPath := writeLines(t, "src.txt", src)

	tests := []struct {
		name  string
		trg   []string
		align []string
		path  func(trgPath, alignPath string) string
	}{
		{"short alignment file", trg, align[:9], func(_, a string) string { return a }},
		{"malformed pair", trg, append(append([]string{}, align[:3]...), append([]string{"0:1"}, align[4:]...)...), func(_, a string) string { return a }},
		{"not parallel", trg[:8], align, func(tp, _ string) string { return tp }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trgPath := writeLines(t, "trg.txt", tt.trg)
			alignPath := writeLines(t, "align.txt", tt.align)
			b, err := NewBilingualModel(testBilingualConfig())
			require.NoError(t, err)
			err = b.Train(context.Background(), srcPath, trgPath, alignPath)
			var fmtErr *FormatError
			require.True(t, errors.As(err, &fmtErr), "%v", err)
			assert.Equal(t, tt.path(trgPath, alignPath), fmtErr.Path)
		})
	}
}

func TestReadAlignmentsBlankLine(t *testing.T) {
	src := writeLines(t, "src.txt", []string{"a b c", "d e"})
	trg := writeLines(t, "trg.txt", []string{"x y", "z"})
	al := writeLines(t, "align.txt", []string{"", "1-0"})
	srcIdx, err := indexCorpus(src)
	require.NoError(t, err)
	trgIdx, err := indexCorpus(trg)
	require.NoError(t, err)

	got, err := readAlignments(al, srcIdx, trgIdx)
	require.NoError(t, err)
	assert.Equal(t, [][]idxUint{nil, {unk, 0}}, got)
}

func TestAlignSentence(t *testing.T) {
	srcNodes := []idxUint{3, 4, unk, 5}
	trgNodes := []idxUint{7, unk, 8, 9}

	tests := []struct {
		name    string
		gold    []idxUint
		uniform bool
		want    []idxUint
	}{
		{"uniform", nil, true, []idxUint{0, unk, 2}},
		{"gold", []idxUint{3, 2, 0, unk}, false, []idxUint{2, 1, unk}},
		{"gold to dropped target", []idxUint{1}, false, []idxUint{unk, unk, unk}},
		{"blank gold line", nil, false, []idxUint{unk, unk, unk}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, alignSentence(srcNodes, trgNodes, tt.gold, tt.uniform))
		})
	}
}

func TestBilingualSnapshotRoundTrip(t *testing.T) {
	src, trg, _ := parallelCorpus(50)
	srcPath := writeLines(t, "src.txt", src)
	trgPath := writeLines(t, "trg.txt", trg)

	cfg := testBilingualConfig()
	cfg.Iterations = 1
	b, err := NewBilingualModel(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Train(context.Background(), srcPath, trgPath, ""))

	snap := filepath.Join(t.TempDir(), "bi.db")
	require.NoError(t, b.Save(snap))
	loaded, err := LoadBilingual(snap)
	require.NoError(t, err)
	assert.Equal(t, b.Config(), loaded.Config())
	assert.Equal(t, b.RunID(), loaded.RunID())
	assert.Equal(t, b.Src.mIn, loaded.Src.mIn)
	assert.Equal(t, b.Trg.mOut, loaded.Trg.mOut)
	assert.Equal(t, b.Trg.Vocabulary().Words(), loaded.Trg.Vocabulary().Words())

	// A bilingual snapshot is not a monolingual one.
	_, err = Load(snap)
	var fmtErr *FormatError
	assert.True(t, errors.As(err, &fmtErr), "%v", err)
}
