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

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes training progress. A nil *Metrics records nothing.
type Metrics struct {
	words    prometheus.Counter
	alpha    prometheus.Gauge
	progress prometheus.Gauge
	epochs   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	mt := &Metrics{
		words: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "multivec",
			Name:      "words_processed_total",
			Help:      "In-vocabulary words consumed by training workers.",
		}),
		alpha: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "multivec",
			Name:      "learning_rate",
			Help:      "Current learning rate.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "multivec",
			Name:      "progress_ratio",
			Help:      "Fraction of the planned words processed.",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "multivec",
			Name:      "worker_epochs_total",
			Help:      "Passes over a chunk finished by workers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(mt.words, mt.alpha, mt.progress, mt.epochs)
	}
	return mt
}

func (mt *Metrics) observe(words int64, alpha real, progress float64) {
	if mt == nil {
		return
	}
	mt.words.Add(float64(words))
	mt.alpha.Set(float64(alpha))
	mt.progress.Set(progress)
}

func (mt *Metrics) epochDone() {
	if mt == nil {
		return
	}
	mt.epochs.Inc()
}
