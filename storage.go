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
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	leveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	leveldbopt "github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	snapshotMagic   uint32 = 0x6d766563 // "mvec"
	snapshotVersion uint32 = 1
)

var ErrKeyNotFound = errors.New("key not found")

type IterateFunc func(key, val []byte) error

type KVStore interface {
	Get(key []byte) ([]byte, error)
	Put(key, val []byte) error
	// PutBatch writes all pairs atomically.
	PutBatch(keys, vals [][]byte) error
	Iterate(prefix []byte, f IterateFunc) error
	Close() error
}

type LevelDBStore struct {
	dbPath string
	db     *leveldb.DB
}

func NewLevelDBStore(dbPath string, readOnly bool) (*LevelDBStore, error) {
	opts := leveldbopt.Options{
		NoSync:         true,
		Compression:    leveldbopt.NoCompression,
		ReadOnly:       readOnly,
		ErrorIfMissing: readOnly,
	}
	db, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, ioError("open", dbPath, err)
	}
	return &LevelDBStore{dbPath, db}, nil
}

func (ldb *LevelDBStore) Get(key []byte) ([]byte, error) {
	val, err := ldb.db.Get(key, nil)
	if err == leveldberrors.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, ioError("get", ldb.dbPath, err)
	}
	return val, nil
}

func (ldb *LevelDBStore) Put(key, val []byte) error {
	if err := ldb.db.Put(key, val, nil); err != nil {
		return ioError("put", ldb.dbPath, err)
	}
	return nil
}

func (ldb *LevelDBStore) PutBatch(keys, vals [][]byte) error {
	b := new(leveldb.Batch)
	for i := range keys {
		b.Put(keys[i], vals[i])
	}
	if err := ldb.db.Write(b, nil); err != nil {
		return ioError("write", ldb.dbPath, err)
	}
	return nil
}

func (ldb *LevelDBStore) Iterate(prefix []byte, f IterateFunc) error {
	iter := ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := f(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return ioError("iterate", ldb.dbPath, err)
	}
	return nil
}

func (ldb *LevelDBStore) Close() error {
	logger.Debugf("closing leveldb %s", ldb.dbPath)
	if err := ldb.db.Close(); err != nil {
		return ioError("close", ldb.dbPath, err)
	}
	return nil
}

// rowKey appends a big-endian index to prefix so rows iterate in order.
func rowKey(prefix string, i int) []byte {
	buf := make([]byte, len(prefix)+uint32Bytes)
	copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[len(prefix):], uint32(i))
	return buf
}

func float32sToBytes(x []real) []byte {
	buf := make([]byte, len(x)*float32Bytes)
	for i, v := range x {
		byteOrder.PutUint32(buf[i*float32Bytes:], math.Float32bits(v))
	}
	return buf
}

func bytesToFloat32s(b []byte, dst []real) bool {
	if len(b) != len(dst)*float32Bytes {
		return false
	}
	for i := range dst {
		dst[i] = math.Float32frombits(byteOrder.Uint32(b[i*float32Bytes:]))
	}
	return true
}

// A word is stored as count, code length, code, parents, then the word bytes.
func encodeWord(w *Word) []byte {
	buf := make([]byte, 0, uint64Bytes+uint32Bytes+len(w.Code)*(1+uint32Bytes)+len(w.W))
	buf = byteOrder.AppendUint64(buf, w.Count)
	buf = byteOrder.AppendUint32(buf, uint32(len(w.Code)))
	buf = append(buf, w.Code...)
	for _, p := range w.Parents {
		buf = byteOrder.AppendUint32(buf, uint32(p))
	}
	return append(buf, w.W...)
}

func decodeWord(b []byte, idx idxUint) (*Word, bool) {
	if len(b) < uint64Bytes+uint32Bytes {
		return nil, false
	}
	w := &Word{Idx: idx, Count: byteOrder.Uint64(b)}
	n := int(byteOrder.Uint32(b[uint64Bytes:]))
	b = b[uint64Bytes+uint32Bytes:]
	if n < 0 || len(b) < n*(1+uint32Bytes) {
		return nil, false
	}
	w.Code = append([]uint8{}, b[:n]...)
	b = b[n:]
	w.Parents = make([]idxUint, n)
	for i := range w.Parents {
		w.Parents[i] = idxUint(byteOrder.Uint32(b[i*uint32Bytes:]))
	}
	w.W = string(b[n*uint32Bytes:])
	return w, true
}

// snapshotMeta is the fixed header of a stored model.
type snapshotMeta struct {
	Magic     uint32         `json:"magic"`
	Version   uint32         `json:"version"`
	RunID     string         `json:"run_id"`
	Vocab     int            `json:"vocab"`
	Dimension int            `json:"dimension"`
	Normalize bool           `json:"normalize"`
	Matrices  map[string]int `json:"matrices"`
}

func (m *Model) namedMatrices() map[string]**matrix {
	return map[string]**matrix{
		"in":    &m.mIn,
		"out":   &m.mOut,
		"ouths": &m.mOutHS,
		"sent":  &m.mSent,
	}
}

const saveBatchRows = 4096

func putMatrix(kv KVStore, prefix string, mat *matrix) error {
	var keys, vals [][]byte
	for i := 0; i < mat.rows; i++ {
		keys = append(keys, rowKey(prefix, i))
		vals = append(vals, float32sToBytes(mat.row(idxUint(i))))
		if len(keys) == saveBatchRows {
			if err := kv.PutBatch(keys, vals); err != nil {
				return err
			}
			keys, vals = keys[:0], vals[:0]
		}
	}
	if len(keys) > 0 {
		return kv.PutBatch(keys, vals)
	}
	return nil
}

// saveModel writes m under prefix. Rows are copied while workers may still be
// writing them, so a snapshot of a running model is best effort.
func saveModel(kv KVStore, prefix string, m *Model) error {
	if err := m.trained(); err != nil {
		return err
	}
	meta := snapshotMeta{
		Magic:     snapshotMagic,
		Version:   snapshotVersion,
		RunID:     m.runID,
		Vocab:     m.vocab.Size(),
		Dimension: m.cfg.Dimension,
		Normalize: m.vocab.normalize,
		Matrices:  map[string]int{},
	}
	for name, mat := range m.namedMatrices() {
		if *mat != nil {
			meta.Matrices[name] = (*mat).rows
		}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := kv.Put([]byte(prefix+"meta"), b); err != nil {
		return err
	}

	var keys, vals [][]byte
	for i, w := range m.vocab.list {
		keys = append(keys, rowKey(prefix+"vocab/", i))
		vals = append(vals, encodeWord(w))
	}
	if err := kv.PutBatch(keys, vals); err != nil {
		return err
	}
	for name, mat := range m.namedMatrices() {
		if *mat == nil {
			continue
		}
		if err := putMatrix(kv, prefix+"m/"+name+"/", *mat); err != nil {
			return err
		}
	}
	return nil
}

// loadModel restores the vocabulary and weights stored under prefix into m,
// whose config must already be set.
func loadModel(kv KVStore, path, prefix string, m *Model) error {
	b, err := kv.Get([]byte(prefix + "meta"))
	if err == ErrKeyNotFound {
		return formatError(path, 0, "missing %smeta", prefix)
	}
	if err != nil {
		return err
	}
	var meta snapshotMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return formatError(path, 0, "bad %smeta: %v", prefix, err)
	}
	if meta.Magic != snapshotMagic || meta.Version != snapshotVersion {
		return formatError(path, 0, "not a model snapshot (magic %x, version %d)", meta.Magic, meta.Version)
	}
	if meta.Dimension != m.cfg.Dimension {
		return formatError(path, 0, "dimension %d does not match config %d", meta.Dimension, m.cfg.Dimension)
	}

	list := make([]*Word, 0, meta.Vocab)
	err = kv.Iterate([]byte(prefix+"vocab/"), func(key, val []byte) error {
		i := len(list)
		if i >= meta.Vocab {
			return nil
		}
		w, ok := decodeWord(val, idxUint(i))
		if !ok {
			return formatError(path, 0, "bad vocabulary entry %d", i)
		}
		list = append(list, w)
		return nil
	})
	if err != nil {
		return err
	}
	if len(list) != meta.Vocab {
		return formatError(path, 0, "vocabulary has %d entries, expected %d", len(list), meta.Vocab)
	}
	m.runID = meta.RunID
	m.vocab = newVocabulary(list, meta.Normalize)
	m.initUnigramTable()

	for name, mat := range m.namedMatrices() {
		*mat = nil
		rows, ok := meta.Matrices[name]
		if !ok {
			continue
		}
		res := newMatrix(rows, meta.Dimension)
		for i := 0; i < rows; i++ {
			val, err := kv.Get(rowKey(prefix+"m/"+name+"/", i))
			if err == ErrKeyNotFound {
				return formatError(path, 0, "missing row %d of matrix %s", i, name)
			}
			if err != nil {
				return err
			}
			if !bytesToFloat32s(val, res.row(idxUint(i))) {
				return formatError(path, 0, "bad row %d of matrix %s", i, name)
			}
		}
		*mat = res
	}
	if m.mIn == nil {
		return formatError(path, 0, "missing input weights")
	}
	if m.mIn.rows != len(list) {
		return formatError(path, 0, "input weights have %d rows, expected %d", m.mIn.rows, len(list))
	}
	return checkTreePaths(path, list, m.mOutHS)
}

// checkTreePaths verifies that every stored code bit is 0 or 1 and that every
// parent addresses a row of the tree output layer.
func checkTreePaths(path string, list []*Word, hs *matrix) error {
	rows := len(list) - 1
	if hs != nil {
		rows = hs.rows
	}
	for _, w := range list {
		for j, p := range w.Parents {
			if p < 0 || int(p) >= rows {
				return formatError(path, 0, "word %d: parent %d out of range [0, %d)", w.Idx, p, rows)
			}
			if w.Code[j] > 1 {
				return formatError(path, 0, "word %d: bad code bit %d", w.Idx, w.Code[j])
			}
		}
	}
	return nil
}

func putJSON(kv KVStore, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return kv.Put([]byte(key), b)
}

func getJSON(kv KVStore, path, key string, v interface{}) error {
	b, err := kv.Get([]byte(key))
	if err == ErrKeyNotFound {
		return formatError(path, 0, "missing %s", key)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return formatError(path, 0, "bad %s: %v", key, err)
	}
	return nil
}

// Save stores the model, including its vocabulary and config, as a LevelDB
// database at path.
func (m *Model) Save(path string) error {
	logger.Infof("saving model to %s", path)
	kv, err := NewLevelDBStore(path, false)
	if err != nil {
		return err
	}
	if err := putJSON(kv, "config", m.cfg); err != nil {
		kv.Close()
		return err
	}
	if err := saveModel(kv, "", m); err != nil {
		kv.Close()
		return err
	}
	return kv.Close()
}

// Load restores a model written by Save.
func Load(path string) (*Model, error) {
	kv, err := NewLevelDBStore(path, true)
	if err != nil {
		return nil, err
	}
	defer kv.Close()
	var cfg Config
	if err := getJSON(kv, path, "config", &cfg); err != nil {
		return nil, err
	}
	m, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	if err := loadModel(kv, path, "", m); err != nil {
		return nil, err
	}
	logger.Infof("loaded model %s from %s: %d words", m.runID, path, m.vocab.Size())
	return m, nil
}
