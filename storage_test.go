package multivec

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryEncoding(t *testing.T) {
	x := []real{0.000000002, -1.5, 3}
	y := make([]real, len(x))
	require.True(t, bytesToFloat32s(float32sToBytes(x), y))
	assert.Equal(t, x, y)
	assert.False(t, bytesToFloat32s(float32sToBytes(x), make([]real, 2)))

	w := &Word{W: "h\u00e9llo w\u00f6rld", Idx: 7, Count: 1 << 40, Code: []uint8{1, 0, 1}, Parents: []idxUint{9, 4, 0}}
	got, ok := decodeWord(encodeWord(w), 7)
	require.True(t, ok)
	assert.Equal(t, w, got)

	_, ok = decodeWord([]byte{1, 2, 3}, 0)
	assert.False(t, ok)
}

func TestLevelDBKV(t *testing.T) {
	kv, err := NewLevelDBStore(filepath.Join(t.TempDir(), "db"), false)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Put([]byte("a"), []byte("1")))
	v, err := kv.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	_, err = kv.Get([]byte("missing"))
	assert.Equal(t, ErrKeyNotFound, err)

	var keys, vals [][]byte
	for i := 0; i < 300; i++ {
		keys = append(keys, rowKey("p/", i))
		vals = append(vals, []byte(fmt.Sprint(i)))
	}
	require.NoError(t, kv.PutBatch(keys, vals))

	seen := 0
	err = kv.Iterate([]byte("p/"), func(key, val []byte) error {
		assert.Equal(t, fmt.Sprint(seen), string(val))
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 300, seen)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := writeLines(t, "corpus.txt", syntheticCorpus())
	cfg := testConfig()
	cfg.Iterations = 1
	cfg.HierarchicalSoftmax = true
	cfg.SentVector = true
	m := trainModel(t, cfg, path)

	snap := filepath.Join(t.TempDir(), "model.db")
	require.NoError(t, m.Save(snap))
	loaded, err := Load(snap)
	require.NoError(t, err)

	assert.Equal(t, m.Config(), loaded.Config())
	assert.Equal(t, m.RunID(), loaded.RunID())
	assert.Equal(t, m.Vocabulary().Words(), loaded.Vocabulary().Words())
	assert.Equal(t, m.Vocabulary().TrainWords(), loaded.Vocabulary().TrainWords())
	for name, mat := range m.namedMatrices() {
		assert.Equal(t, *mat, *loaded.namedMatrices()[name], name)
	}
	require.NotNil(t, loaded.noise)
	assert.Equal(t, m.noise, loaded.noise)

	// Saving again over an existing snapshot replaces it.
	require.NoError(t, loaded.Train(context.Background(), path))
	require.NoError(t, loaded.Save(snap))
	again, err := Load(snap)
	require.NoError(t, err)
	assert.Equal(t, loaded.mIn, again.mIn)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nothing"))
	var ioErr *IOError
	assert.True(t, errors.As(err, &ioErr), "%v", err)

	path := filepath.Join(t.TempDir(), "db")
	kv, err := NewLevelDBStore(path, false)
	require.NoError(t, err)
	require.NoError(t, putJSON(kv, "config", testConfig()))
	require.NoError(t, kv.Put([]byte("meta"), []byte(`{"magic":1,"version":1}`)))
	require.NoError(t, kv.Close())

	_, err = Load(path)
	var fmtErr *FormatError
	assert.True(t, errors.As(err, &fmtErr), "%v", err)
}

func TestLoadRejectsBadTreePaths(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(w *Word)
	}{
		{"parent past tree layer", func(w *Word) { w.Parents[0] = 7 }},
		{"negative parent", func(w *Word) { w.Parents[0] = -2 }},
		{"code bit not binary", func(w *Word) { w.Code[0] = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := kernelModel(t, true, 2, 10, 5, 3)
			path := filepath.Join(t.TempDir(), "model.db")
			require.NoError(t, m.Save(path))
			_, err := Load(path)
			require.NoError(t, err)

			w := *m.vocab.list[1]
			w.Code = append([]uint8{}, w.Code...)
			w.Parents = append([]idxUint{}, w.Parents...)
			tt.corrupt(&w)
			kv, err := NewLevelDBStore(path, false)
			require.NoError(t, err)
			require.NoError(t, kv.Put(rowKey("vocab/", 1), encodeWord(&w)))
			require.NoError(t, kv.Close())

			_, err = Load(path)
			var fmtErr *FormatError
			assert.True(t, errors.As(err, &fmtErr), "%v", err)
		})
	}
}
