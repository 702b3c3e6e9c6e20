// Package mtld implements the Measure of Textual Lexical Diversity: the
// mean length of token runs whose running type-token ratio stays above a
// fixed threshold, computed forward and backward and averaged.
package mtld

import (
	"fmt"

	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
)

// DefaultThreshold is the canonical MTLD factor boundary.
const DefaultThreshold = 0.72

// Scorer computes MTLD over lemma token sequences. The zero value is not
// usable; construct with New.
type Scorer struct {
	threshold float64
}

// New creates a Scorer with the given TTR threshold. Values outside (0, 1)
// fall back to DefaultThreshold.
func New(threshold float64) *Scorer {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Scorer{threshold: threshold}
}

// Result carries the MTLD score together with corpus-level lexical
// statistics.
type Result struct {
	Score      float64 `json:"score"`
	TokenCount int     `json:"token_count"`
	VocabSize  int     `json:"vocab_size"`
	TTR        float64 `json:"ttr"`
	HapaxRatio float64 `json:"hapax_ratio"`
	VocabPer1k float64 `json:"vocab_per_1k"`
}

// Score computes the MTLD of tokens. It is a pure function of the input:
// identical sequences yield bit-identical results. An empty sequence is
// rejected; minimum viable length is the caller's policy.
func (s *Scorer) Score(tokens []string) (float64, error) {
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: empty token sequence", apperrors.ErrScoring)
	}
	forward := s.factors(tokens, false)
	backward := s.factors(tokens, true)
	return float64(len(tokens)) / ((forward + backward) / 2), nil
}

// Analyze computes the MTLD score plus vocabulary statistics in one pass
// over the frequency table.
func (s *Scorer) Analyze(tokens []string) (*Result, error) {
	score, err := s.Score(tokens)
	if err != nil {
		return nil, err
	}

	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	hapax := 0
	for _, c := range freq {
		if c == 1 {
			hapax++
		}
	}

	n := len(tokens)
	v := len(freq)
	res := &Result{
		Score:      score,
		TokenCount: n,
		VocabSize:  v,
		TTR:        float64(v) / float64(n),
		VocabPer1k: float64(v) / float64(n) * 1000,
	}
	if v > 0 {
		res.HapaxRatio = float64(hapax) / float64(v)
	}
	return res, nil
}

// factors walks the sequence in one direction and returns the factor count,
// including the fractional remainder of an unterminated trailing segment.
func (s *Scorer) factors(tokens []string, reverse bool) float64 {
	var factors float64
	types := make(map[string]struct{})
	segLen := 0

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if reverse {
			tok = tokens[len(tokens)-1-i]
		}
		types[tok] = struct{}{}
		segLen++

		ttr := float64(len(types)) / float64(segLen)
		if ttr <= s.threshold {
			factors++
			types = make(map[string]struct{})
			segLen = 0
		}
	}

	if segLen > 0 {
		ttr := float64(len(types)) / float64(segLen)
		frac := (1 - ttr) / (1 - s.threshold)
		if frac > 1 {
			frac = 1
		}
		factors += frac
	}

	// A sequence whose TTR never reaches the threshold counts as a single
	// factor, so an all-distinct corpus scores its own length.
	if factors == 0 {
		factors = 1
	}
	return factors
}

// Threshold returns the configured TTR factor boundary.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}
