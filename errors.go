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
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyCorpus is returned when a corpus yields no usable tokens.
	ErrEmptyCorpus = errors.New("multivec: empty corpus")
	// ErrOutOfVocabulary is returned, wrapped with the word, by per-word lookups.
	ErrOutOfVocabulary = errors.New("multivec: out of vocabulary")
)

// IOError reports a failed file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("multivec: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioError(op, path string, err error) error {
	return errors.WithStack(&IOError{Op: op, Path: path, Err: err})
}

// FormatError reports malformed alignment, corpus pairing or snapshot data.
// Line is 1-based; zero means the error is not tied to a line.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("multivec: %s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("multivec: %s: %s", e.Path, e.Msg)
}

func formatError(path string, line int, format string, args ...interface{}) error {
	return errors.WithStack(&FormatError{Path: path, Line: line, Msg: fmt.Sprintf(format, args...)})
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("multivec: config %s: %s", e.Field, e.Msg)
}

func oovError(w string) error {
	return errors.Wrapf(ErrOutOfVocabulary, "%q", w)
}
