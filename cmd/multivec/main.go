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

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/alexandres/multivec"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	trainCommand   = "train"
	trainBiCommand = "train-bi"
	exportCommand  = "export"
	sentVecCommand = "sentvec"
)

var log = multivec.Logger()

type options struct {
	cfg multivec.BilingualConfig

	corpus, srcCorpus, trgCorpus, alignPath string
	savePath, loadPath                      string
	out                                     multivec.Outputs
	policy                                  int
	verbose                                 string
	metricsAddr                             string
	cpuprofile                              string

	flags *flag.FlagSet
}

func newFlags(o *options) *flag.FlagSet {
	o.cfg = multivec.DefaultBilingualConfig()
	flags := flag.NewFlagSet("default", flag.ExitOnError)
	bindFlags(flags, o)
	flags.Usage = func() {
		fmt.Printf("Usage: multivec [command] [options]\n" +
			"Commands: train, train-bi, export, sentvec\n" +
			"Options:\n")
		flags.PrintDefaults()
	}
	return flags
}

// bindFlags registers every option on flags, defaulting to the current values
// of o.
func bindFlags(flags *flag.FlagSet, o *options) {
	c := &o.cfg
	flags.StringVar(&o.corpus, "corpus", "", "path to corpus (train)")
	flags.StringVar(&o.srcCorpus, "src", "", "path to source side of a parallel corpus (train-bi)")
	flags.StringVar(&o.trgCorpus, "trg", "", "path to target side of a parallel corpus (train-bi)")
	flags.StringVar(&o.alignPath, "align", "", "word alignments, one line of i-j pairs per sentence pair (train-bi)")
	flags.Float64Var(&c.LearningRate, "alpha", c.LearningRate, "learning rate")
	flags.IntVar(&c.Dimension, "dim", c.Dimension, "number of dimensions of word vectors")
	flags.Uint64Var(&c.MinCount, "min-count", c.MinCount, "remove from vocab words that occur less than this number of times")
	flags.IntVar(&c.Iterations, "iterations", c.Iterations, "how many times to process corpus")
	flags.IntVar(&c.WindowSize, "window", c.WindowSize, "max distance between a word and its contexts")
	flags.IntVar(&c.Threads, "threads", c.Threads, "number of threads to use")
	flags.Float64Var(&c.Subsampling, "subsample", c.Subsampling, "subsampling threshold, 0 to disable")
	flags.BoolVar(&c.HierarchicalSoftmax, "hs", c.HierarchicalSoftmax, "use hierarchical softmax")
	flags.BoolVar(&c.SkipGram, "sg", c.SkipGram, "use skip-gram instead of CBOW")
	flags.IntVar(&c.Negative, "negative", c.Negative, "number of negative samples, 0 to disable")
	flags.BoolVar(&c.SentVector, "sent-vector", c.SentVector, "learn a vector per line (train)")
	flags.IntVar(&c.UnigramTableSize, "unigram-table", c.UnigramTableSize, "size of the negative sampling table")
	flags.BoolVar(&c.BalanceWords, "balance-words", c.BalanceWords, "balance thread chunks by words instead of lines")
	flags.BoolVar(&c.NormalizeUnicode, "nfc", c.NormalizeUnicode, "NFC-normalize tokens")
	flags.Int64Var(&c.Seed, "seed", c.Seed, "random seed")
	flags.Float64Var(&c.BiWeight, "bi-weight", c.BiWeight, "weight of cross-lingual updates (train-bi)")
	flags.StringVar(&o.savePath, "save", "", "where to save the model snapshot")
	flags.StringVar(&o.loadPath, "load", "", "model snapshot to resume from or export")
	flags.StringVar(&o.out.Vectors, "output", "", "where to save vectors (text)")
	flags.StringVar(&o.out.VectorsBin, "output-bin", "", "where to save vectors (binary)")
	flags.StringVar(&o.out.SentVectors, "output-sent", "", "where to save sentence vectors")
	flags.StringVar(&o.out.Vocab, "save-vocab", "", "where to save the vocabulary")
	flags.IntVar(&o.policy, "policy", 0, "0 = input, 1 = concat input and output, 2 = sum, 3 = output")
	flags.BoolVar(&o.out.Norm, "norm", false, "L2-normalize saved vectors")
	flags.StringVar(&o.verbose, "verbose", "info", "log level (error, warn, info, debug)")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flags.StringVar(&o.cpuprofile, "cpuprofile", "", "write cpu profile to file")
}

// overrideConfig returns loaded with every flag set on the command line
// applied on top, so a resumed model keeps its stored settings otherwise.
func overrideConfig(flags *flag.FlagSet, loaded multivec.BilingualConfig) (multivec.BilingualConfig, error) {
	o := options{cfg: loaded}
	rebound := flag.NewFlagSet("overrides", flag.ContinueOnError)
	bindFlags(rebound, &o)
	var err error
	flags.Visit(func(f *flag.Flag) {
		if err == nil {
			err = errors.Wrapf(rebound.Set(f.Name, f.Value.String()), "-%s", f.Name)
		}
	})
	return o.cfg, err
}

func main() {
	var o options
	flags := newFlags(&o)
	o.flags = flags
	if len(os.Args) < 2 {
		flags.Usage()
		os.Exit(1)
	}
	command := os.Args[1]
	flags.Parse(os.Args[2:])
	multivec.SetLogLevel(o.verbose)
	o.out.Policy = multivec.Policy(o.policy)

	if o.cpuprofile != "" {
		f, err := os.Create(o.cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	var metrics *multivec.Metrics
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = multivec.NewMetrics(reg)
		go serveMetrics(o.metricsAddr, reg)
	}

	var err error
	switch command {
	case trainCommand:
		err = train(&o, metrics)
	case trainBiCommand:
		err = trainBilingual(&o, metrics)
	case exportCommand:
		err = export(&o)
	case sentVecCommand:
		err = sentVec(&o)
	default:
		flags.Usage()
		os.Exit(1)
	}
	if err != nil {
		pprof.StopCPUProfile()
		log.Fatalf("%+v", err)
	}
	log.Info("finished!")
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}

// trainable is satisfied by *multivec.Model and *multivec.BilingualModel.
type trainable interface {
	Save(path string) error
	RunID() string
}

// withInterrupt runs fn with a context cancelled on SIGINT or SIGTERM. On
// interrupt the model is saved to savePath, if set, while workers drain.
func withInterrupt(m trainable, savePath string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	saved := make(chan struct{})
	go func() {
		defer close(saved)
		select {
		case sig := <-sigs:
			log.WithFields(logrus.Fields{"signal": sig, "run": m.RunID()}).Warn("interrupted")
			cancel()
			if savePath != "" {
				if err := m.Save(savePath); err != nil {
					log.WithError(err).Error("saving interrupted model")
				}
			}
		case <-ctx.Done():
		}
	}()

	err := fn(ctx)
	cancel()
	<-saved
	return err
}

func train(o *options, metrics *multivec.Metrics) error {
	if o.corpus == "" {
		return errors.New("-corpus is required")
	}
	var m *multivec.Model
	var err error
	if o.loadPath != "" {
		if m, err = multivec.Load(o.loadPath); err != nil {
			return err
		}
		cfg, err := overrideConfig(o.flags, multivec.BilingualConfig{Config: m.Config()})
		if err != nil {
			return err
		}
		if err := m.SetConfig(cfg.Config); err != nil {
			return err
		}
	} else if m, err = multivec.NewModel(o.cfg.Config); err != nil {
		return err
	}
	m.SetMetrics(metrics)

	err = withInterrupt(m, o.savePath, func(ctx context.Context) error {
		return m.Train(ctx, o.corpus)
	})
	if err != nil {
		return err
	}
	if o.savePath != "" {
		if err := m.Save(o.savePath); err != nil {
			return err
		}
	}
	return o.out.Write(m)
}

func trainBilingual(o *options, metrics *multivec.Metrics) error {
	if o.srcCorpus == "" || o.trgCorpus == "" {
		return errors.New("-src and -trg are required")
	}
	var b *multivec.BilingualModel
	var err error
	if o.loadPath != "" {
		if b, err = multivec.LoadBilingual(o.loadPath); err != nil {
			return err
		}
		cfg, err := overrideConfig(o.flags, b.Config())
		if err != nil {
			return err
		}
		if err := b.SetConfig(cfg); err != nil {
			return err
		}
	} else if b, err = multivec.NewBilingualModel(o.cfg); err != nil {
		return err
	}
	b.SetMetrics(metrics)

	err = withInterrupt(b, o.savePath, func(ctx context.Context) error {
		return b.Train(ctx, o.srcCorpus, o.trgCorpus, o.alignPath)
	})
	if err != nil {
		return err
	}
	if o.savePath != "" {
		if err := b.Save(o.savePath); err != nil {
			return err
		}
	}
	return writeBilingual(b, o.out)
}

func writeBilingual(b *multivec.BilingualModel, out multivec.Outputs) error {
	if err := out.Suffixed(".src").Write(b.Src); err != nil {
		return err
	}
	return out.Suffixed(".trg").Write(b.Trg)
}

// export writes vectors from a saved snapshot, monolingual or bilingual.
func export(o *options) error {
	if o.loadPath == "" {
		return errors.New("-load is required")
	}
	m, err := multivec.Load(o.loadPath)
	if err == nil {
		return o.out.Write(m)
	}
	b, biErr := multivec.LoadBilingual(o.loadPath)
	if biErr != nil {
		return err
	}
	return writeBilingual(b, o.out)
}

// sentVec infers a vector for every line of stdin and prints it.
func sentVec(o *options) error {
	if o.loadPath == "" {
		return errors.New("-load is required")
	}
	m, err := multivec.Load(o.loadPath)
	if err != nil {
		return err
	}
	s := bufio.NewScanner(os.Stdin)
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for s.Scan() {
		vec, err := m.SentVec(s.Text())
		if errors.Is(err, multivec.ErrOutOfVocabulary) {
			log.WithError(err).Warn("skipping line")
			fmt.Fprintln(w)
			continue
		}
		if err != nil {
			return err
		}
		parts := make([]string, len(vec))
		for i, x := range vec {
			parts[i] = fmt.Sprint(x)
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
	}
	return s.Err()
}
