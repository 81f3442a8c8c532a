package multivec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVocab(t *testing.T) {
	v, err := BuildVocab(strings.NewReader("a b a c a b\n d\n\n"), 2, false)
	require.NoError(t, err)

	assert.Equal(t, 2, v.Size())
	assert.Equal(t, countUint(5), v.TrainWords())
	assert.Equal(t, []WordCount{{"a", 3}, {"b", 2}}, v.WordCounts())
	for i, w := range v.Words() {
		assert.Equal(t, idxUint(i), w.Idx)
	}

	w, err := v.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, idxUint(1), w.Idx)

	_, err = v.Lookup("c")
	assert.True(t, errors.Is(err, ErrOutOfVocabulary))
}

func TestBuildVocabTies(t *testing.T) {
	v, err := BuildVocab(strings.NewReader("z y x y z x"), 1, false)
	require.NoError(t, err)
	assert.Equal(t, []WordCount{{"x", 2}, {"y", 2}, {"z", 2}}, v.WordCounts())
}

func TestBuildVocabEmpty(t *testing.T) {
	tests := []struct {
		name     string
		corpus   string
		minCount countUint
	}{
		{"no tokens", " \n\t\n", 1},
		{"all pruned", "a b c", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildVocab(strings.NewReader(tt.corpus), tt.minCount, false)
			assert.True(t, errors.Is(err, ErrEmptyCorpus), "%v", err)
		})
	}
}

func TestBuildVocabNormalize(t *testing.T) {
	corpus := "cafe\u0301 caf\u00e9"
	v, err := BuildVocab(strings.NewReader(corpus), 1, true)
	require.NoError(t, err)
	assert.Equal(t, []WordCount{{"caf\u00e9", 2}}, v.WordCounts())

	v, err = BuildVocab(strings.NewReader(corpus), 1, false)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Size())
}

func TestVocabNodes(t *testing.T) {
	v, err := BuildVocab(strings.NewReader("a a b"), 1, false)
	require.NoError(t, err)

	nodes := v.nodes("b x a  y")
	assert.Equal(t, []idxUint{1, unk, 0, unk}, nodes)
	assert.Equal(t, 2, known(nodes))
	assert.Equal(t, []idxUint{1, 0}, compact(nodes))
	assert.Empty(t, compact(v.nodes("")))
}

func TestSaveVocab(t *testing.T) {
	v, err := BuildVocab(strings.NewReader("a a b"), 1, false)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, v.SaveVocab(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a 2\nb 1\n", string(b))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, tokenize(" a b\u3000c\r", false))
	assert.Equal(t, 3, countTokens([]byte(" a b\u3000c\r\n")))
	assert.Empty(t, tokenize("  \t ", false))
}
