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

import "math"

const defaultUnigramTableSize = 1e8

// Config holds the training hyper-parameters shared by monolingual and
// bilingual models.
type Config struct {
	LearningRate        float64 `json:"alpha"`
	Dimension           int     `json:"dimension"`
	MinCount            uint64  `json:"min_count"`
	Iterations          int     `json:"iterations"`
	WindowSize          int     `json:"window_size"`
	Threads             int     `json:"threads"`
	Subsampling         float64 `json:"subsampling"`
	HierarchicalSoftmax bool    `json:"hierarchical_softmax"`
	SkipGram            bool    `json:"skip_gram"`
	Negative            int     `json:"negative"`
	SentVector          bool    `json:"sent_vector"`

	UnigramTableSize int   `json:"unigram_table_size"`
	BalanceWords     bool  `json:"balance_words"`
	NormalizeUnicode bool  `json:"normalize_unicode"`
	Seed             int64 `json:"seed"`
}

// BilingualConfig adds the weight of cross-lingual updates relative to
// monolingual ones.
type BilingualConfig struct {
	Config
	BiWeight float64 `json:"bi_weight"`
}

func DefaultConfig() Config {
	return Config{
		LearningRate:     0.05,
		Dimension:        100,
		MinCount:         5,
		Iterations:       5,
		WindowSize:       5,
		Threads:          4,
		Subsampling:      1e-3,
		Negative:         5,
		UnigramTableSize: defaultUnigramTableSize,
		Seed:             1,
	}
}

func DefaultBilingualConfig() BilingualConfig {
	return BilingualConfig{Config: DefaultConfig(), BiWeight: 1}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Dimension <= 0:
		return &ConfigError{"dimension", "must be positive"}
	case c.Threads <= 0:
		return &ConfigError{"threads", "must be positive"}
	case c.Iterations <= 0:
		return &ConfigError{"iterations", "must be positive"}
	case c.WindowSize <= 0:
		return &ConfigError{"window_size", "must be positive"}
	case c.Negative < 0:
		return &ConfigError{"negative", "must not be negative"}
	case !c.HierarchicalSoftmax && c.Negative == 0:
		return &ConfigError{"negative", "negative sampling or hierarchical softmax must be enabled"}
	case c.Negative > 0 && c.UnigramTableSize <= 0:
		return &ConfigError{"unigram_table_size", "must be positive"}
	case c.Subsampling < 0 || math.IsNaN(c.Subsampling):
		return &ConfigError{"subsampling", "must not be negative"}
	case c.LearningRate <= 0 || math.IsNaN(c.LearningRate):
		return &ConfigError{"alpha", "must be positive"}
	}
	return nil
}

func (c BilingualConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.BiWeight < 0 || math.IsNaN(c.BiWeight) {
		return &ConfigError{"bi_weight", "must not be negative"}
	}
	if c.SentVector {
		return &ConfigError{"sent_vector", "not supported by bilingual models"}
	}
	return nil
}
