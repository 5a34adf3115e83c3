// Package phonetic finds the vocabulary term a misrecognised phrase most
// likely stands for.
//
// Candidates are filtered by Double Metaphone code overlap and ranked by
// Jaro-Winkler similarity. A term whose codes do not overlap can still win
// through plain string similarity, but only above the stricter fuzzy
// threshold and only when no phonetic candidate exists.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a term whose
// phonetic codes overlap the phrase. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a term matched
// on spelling alone. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the default thresholds unless overridden.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// term is one vocabulary entry with its encodings computed up front.
type term struct {
	text   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Vocabulary is a precomputed set of domain terms.
type Vocabulary struct {
	terms    []term
	maxWords int
}

// NewVocabulary encodes words once so repeated matching does not recompute
// the phonetic codes. Blank entries are ignored.
func NewVocabulary(words []string) *Vocabulary {
	v := &Vocabulary{}
	for _, w := range words {
		lower := strings.ToLower(strings.TrimSpace(w))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		v.terms = append(v.terms, term{
			text:   strings.TrimSpace(w),
			lower:  lower,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		v.maxWords = max(v.maxWords, len(tokens))
	}
	return v
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// MaxWords returns the word count of the longest term.
func (v *Vocabulary) MaxWords() int {
	if v == nil {
		return 0
	}
	return v.maxWords
}

// Contains reports whether phrase is already spelled exactly like a term,
// ignoring case.
func (v *Vocabulary) Contains(phrase string) bool {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	for _, t := range v.termsOrNil() {
		if t.lower == lower {
			return true
		}
	}
	return false
}

func (v *Vocabulary) termsOrNil() []term {
	if v == nil {
		return nil
	}
	return v.terms
}

// Result is a successful match.
type Result struct {
	// Term is the vocabulary entry in its original casing.
	Term string

	// Score is the Jaro-Winkler similarity in [0, 1].
	Score float64

	// Phonetic is true when the Double Metaphone codes overlapped.
	Phonetic bool
}

// Match returns the best term for phrase. phrase may hold several words.
func (m *Matcher) Match(phrase string, vocab *Vocabulary) (Result, bool) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if lower == "" || vocab.Len() == 0 {
		return Result{}, false
	}
	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)

	var best Result
	for _, t := range vocab.terms {
		score := bestJWScore(tokens, t.tokens, lower, t.lower)
		if codesOverlap(codes, t.codes) {
			if score >= m.phoneticThreshold && (!best.Phonetic || score > best.Score) {
				best = Result{Term: t.text, Score: score, Phonetic: true}
			}
			continue
		}
		if !best.Phonetic && score >= m.fuzzyThreshold && score > best.Score {
			best = Result{Term: t.text, Score: score}
		}
	}
	return best, best.Term != ""
}

// codesForTokens returns the union of the primary and alternate codes of
// every token. Empty codes are skipped.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore takes the highest of the full-string score, the score with
// spaces removed and, when both sides have the same word count, the mean
// score of the position-aligned word pairs.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false)
		score = max(score, joined)
	}

	if len(inputTokens) > 1 && len(inputTokens) == len(termTokens) {
		var sum float64
		for k := range inputTokens {
			sum += matchr.JaroWinkler(inputTokens[k], termTokens[k], false)
		}
		score = max(score, sum/float64(len(inputTokens)))
	}
	return score
}
