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
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type (
	idxUint   = int32
	countUint = uint64
	real      = float32
)

const (
	float32Bytes = 4
	uint32Bytes  = 4
	uint64Bytes  = 8

	defaultProgressInterval = 100000
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Logger returns the package logger so callers can redirect or silence it.
func Logger() *logrus.Logger {
	return logger
}

// SetLogLevel sets verbosity from a name ("debug", "info", "warn", "error").
// Unknown names fall back to info.
func SetLogLevel(name string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(name))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

type progressPrinter struct {
	what string
	n    uint64
	mod  uint64
}

func newProgressPrinter(what string, mod uint64) *progressPrinter {
	return &progressPrinter{what, 0, mod}
}

func (p *progressPrinter) inc() {
	p.n++
	if p.n%p.mod == 0 {
		logger.Debugf("%s: %dK", p.what, p.n/1000)
	}
}
