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

import "container/heap"

// huffmanNode lives in a fixed arena: ids below the vocabulary size are
// leaves (word indices), the rest are internal nodes created by merging.
type huffmanNode struct {
	count       countUint
	left, right idxUint
	leaf        bool
}

type huffmanItem struct {
	count countUint
	id    idxUint
}

// huffmanQueue is a min-heap on count; ties go to the older node.
type huffmanQueue []huffmanItem

func (q huffmanQueue) Len() int { return len(q) }
func (q huffmanQueue) Less(i, j int) bool {
	if q[i].count != q[j].count {
		return q[i].count < q[j].count
	}
	return q[i].id < q[j].id
}
func (q huffmanQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *huffmanQueue) Push(x interface{}) { *q = append(*q, x.(huffmanItem)) }
func (q *huffmanQueue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// buildHuffman builds the tree over words (in index order) and stores each
// word's code and ancestor path. Internal node i has arena id len(words)+i and
// is row i of the hierarchical softmax output matrix; the root is the last one.
func buildHuffman(words []*Word) []huffmanNode {
	n := len(words)
	if n == 0 {
		return nil
	}
	arena := make([]huffmanNode, 0, 2*n-1)
	q := make(huffmanQueue, 0, n)
	for i, w := range words {
		arena = append(arena, huffmanNode{count: w.Count, left: unk, right: unk, leaf: true})
		q = append(q, huffmanItem{w.Count, idxUint(i)})
	}
	heap.Init(&q)

	for q.Len() > 1 {
		left := heap.Pop(&q).(huffmanItem)
		right := heap.Pop(&q).(huffmanItem)
		id := idxUint(len(arena))
		arena = append(arena, huffmanNode{count: left.count + right.count, left: left.id, right: right.id})
		heap.Push(&q, huffmanItem{left.count + right.count, id})
	}

	root := idxUint(len(arena) - 1)
	assignCodes(arena, words, root, nil, nil)
	return arena
}

func assignCodes(arena []huffmanNode, words []*Word, id idxUint, code []uint8, parents []idxUint) {
	node := &arena[id]
	if node.leaf {
		w := words[id]
		w.Code = append([]uint8{}, code...)
		w.Parents = append([]idxUint{}, parents...)
		return
	}
	// Subtrees are finished (and copied out) before the sibling reuses the
	// shared backing arrays.
	parents = append(parents, id-idxUint(len(words)))
	assignCodes(arena, words, node.left, append(code, 0), parents)
	assignCodes(arena, words, node.right, append(code, 1), parents)
}
