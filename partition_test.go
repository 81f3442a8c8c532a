package multivec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func requireTiling(t *testing.T, path string, chunks []Chunk, lines int) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	assert.Equal(t, int64(0), chunks[0].Start)
	assert.Equal(t, int64(len(data)), chunks[len(chunks)-1].End)
	total := 0
	for i, c := range chunks {
		assert.LessOrEqual(t, c.Start, c.End)
		if c.Start > 0 {
			assert.Equal(t, byte('\n'), data[c.Start-1], "chunk %d starts mid-line", i)
		}
		if i > 0 {
			assert.Equal(t, chunks[i-1].End, c.Start)
			assert.Equal(t, chunks[i-1].FirstLine+chunks[i-1].Lines, c.FirstLine)
		}
		assert.Equal(t, c.Lines, strings.Count(string(data[c.Start:c.End]), "\n"))
		total += c.Lines
	}
	assert.Equal(t, lines, total)
}

func TestPartition(t *testing.T) {
	var lines []string
	for i := 0; i < 1000; i++ {
		lines = append(lines, strings.Repeat(fmt.Sprintf("w%d ", i%17), 1+i%13))
	}
	path := writeLines(t, "corpus.txt", lines)

	tests := []struct {
		name    string
		n       int
		byWords bool
	}{
		{"lines", 4, false},
		{"words", 4, true},
		{"one", 1, false},
		{"uneven", 7, false},
		{"uneven words", 7, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Partition(path, tt.n, tt.byWords)
			require.NoError(t, err)
			require.Len(t, chunks, tt.n)
			requireTiling(t, path, chunks, len(lines))
		})
	}

	chunks, err := Partition(path, 4, false)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, 250, c.Lines)
	}
}

func TestPartitionBalancesWords(t *testing.T) {
	// First half of the lines are ten times longer than the second.
	var lines []string
	for i := 0; i < 100; i++ {
		n := 1
		if i < 50 {
			n = 10
		}
		lines = append(lines, strings.TrimSpace(strings.Repeat("a ", n)))
	}
	path := writeLines(t, "corpus.txt", lines)

	chunks, err := Partition(path, 2, true)
	require.NoError(t, err)
	requireTiling(t, path, chunks, len(lines))
	assert.Less(t, chunks[0].Lines, chunks[1].Lines)
}

func TestPartitionMoreChunksThanLines(t *testing.T) {
	path := writeLines(t, "corpus.txt", []string{"a b", "c", "d e f"})
	chunks, err := Partition(path, 5, false)
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	requireTiling(t, path, chunks, 3)
	empty := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Lines, 1)
		if c.Lines == 0 {
			assert.Equal(t, c.Start, c.End)
			empty++
		}
	}
	assert.Equal(t, 2, empty)
}

func TestPartitionNoIdleChunks(t *testing.T) {
	tests := []struct {
		name   string
		lines  int
		chunks int
	}{
		{"nine over eight", 9, 8},
		{"equal", 8, 8},
		{"one spare line", 5, 4},
		{"many chunks", 100, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := make([]string, tt.lines)
			for i := range lines {
				lines[i] = "w x"
			}
			path := writeLines(t, "corpus.txt", lines)
			chunks, err := Partition(path, tt.chunks, false)
			require.NoError(t, err)
			require.Len(t, chunks, tt.chunks)
			requireTiling(t, path, chunks, tt.lines)
			low, high := tt.lines/tt.chunks, (tt.lines+tt.chunks-1)/tt.chunks
			for i, c := range chunks {
				assert.NotZero(t, c.Lines, "chunk %d", i)
				assert.GreaterOrEqual(t, c.Lines, low, "chunk %d", i)
				assert.LessOrEqual(t, c.Lines, high, "chunk %d", i)
			}
		})
	}
}

func TestPartitionErrors(t *testing.T) {
	_, err := Partition(filepath.Join(t.TempDir(), "missing.txt"), 2, false)
	var ioErr *IOError
	assert.True(t, errors.As(err, &ioErr))

	_, err = Partition("whatever", 0, false)
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestCorpusIndex(t *testing.T) {
	path := writeLines(t, "corpus.txt", []string{"a b  c", "", "\td\te "})
	idx, err := indexCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.lines())
	assert.Equal(t, []int32{3, 0, 2}, idx.lineWords)
	assert.Equal(t, int64(5), idx.words)
	assert.Equal(t, []int64{0, 7, 8, 14}, idx.lineStarts)
	assert.Equal(t, int64(14), idx.size())
}
