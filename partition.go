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
	"io"
)

// Chunk is the byte range [Start, End) of a corpus read by one worker. It
// always starts and ends on a line boundary.
type Chunk struct {
	Start     int64
	End       int64
	FirstLine int
	Lines     int
}

// corpusIndex records the byte offset and token count of every line.
type corpusIndex struct {
	path       string
	lineStarts []int64 // one per line plus the file size
	lineWords  []int32
	words      int64
}

func indexCorpus(path string) (*corpusIndex, error) {
	f, err := openCorpus(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx := &corpusIndex{path: path}
	r := bufio.NewReaderSize(f, 1<<20)
	pp := newProgressPrinter("index", defaultProgressInterval)
	var off int64
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			pp.inc()
			n := countTokens(line)
			idx.lineStarts = append(idx.lineStarts, off)
			idx.lineWords = append(idx.lineWords, int32(n))
			idx.words += int64(n)
			off += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ioError("read", path, err)
		}
	}
	idx.lineStarts = append(idx.lineStarts, off)
	return idx, nil
}

func (idx *corpusIndex) lines() int { return len(idx.lineWords) }

func (idx *corpusIndex) size() int64 { return idx.lineStarts[len(idx.lineStarts)-1] }

// partition splits the corpus into n contiguous chunks, balanced by lines or
// by words. Chunks are only empty when there are more chunks than lines.
func (idx *corpusIndex) partition(n int, byWords bool) []Chunk {
	lines := idx.lines()
	starts := make([]int, n+1)
	if byWords {
		var cum int64
		line := 0
		for i := 0; i < n; i++ {
			target := idx.words * int64(i) / int64(n)
			for line < lines && cum < target {
				cum += int64(idx.lineWords[line])
				line++
			}
			starts[i] = line
		}
	} else {
		for i := 0; i < n; i++ {
			starts[i] = lines * i / n
		}
	}
	starts[n] = lines
	return idx.chunksAt(starts)
}

// chunksAt builds chunks from line boundaries; starts has one more entry than
// the number of chunks.
func (idx *corpusIndex) chunksAt(starts []int) []Chunk {
	chunks := make([]Chunk, len(starts)-1)
	for i := range chunks {
		chunks[i] = Chunk{
			Start:     idx.lineStarts[starts[i]],
			End:       idx.lineStarts[starts[i+1]],
			FirstLine: starts[i],
			Lines:     starts[i+1] - starts[i],
		}
	}
	return chunks
}

// lineBounds returns the first line of every chunk followed by the line count.
func lineBounds(chunks []Chunk) []int {
	starts := make([]int, 0, len(chunks)+1)
	for _, c := range chunks {
		starts = append(starts, c.FirstLine)
	}
	last := chunks[len(chunks)-1]
	return append(starts, last.FirstLine+last.Lines)
}

// Partition computes n line-aligned chunks of the corpus at path.
func Partition(path string, n int, byWords bool) ([]Chunk, error) {
	if n <= 0 {
		return nil, &ConfigError{"threads", "must be positive"}
	}
	idx, err := indexCorpus(path)
	if err != nil {
		return nil, err
	}
	return idx.partition(n, byWords), nil
}
