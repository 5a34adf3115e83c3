package transcript

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/MrWong99/voxkey/internal/transcript/phonetic"
)

// VocabularyCorrector replaces misrecognised phrases with the closest
// domain term. It is read-only after construction.
type VocabularyCorrector struct {
	matcher *phonetic.Matcher
	vocab   *phonetic.Vocabulary
	minLen  int
}

var _ Processor = (*VocabularyCorrector)(nil)

// VocabularyOption configures a [VocabularyCorrector].
type VocabularyOption func(*VocabularyCorrector)

// WithMatcher replaces the default [phonetic.Matcher].
func WithMatcher(m *phonetic.Matcher) VocabularyOption {
	return func(c *VocabularyCorrector) {
		if m != nil {
			c.matcher = m
		}
	}
}

// WithMinPhraseLength sets the minimum letter count of a phrase considered
// for replacement. Default: 3.
func WithMinPhraseLength(n int) VocabularyOption {
	return func(c *VocabularyCorrector) {
		c.minLen = n
	}
}

// NewVocabularyCorrector builds a corrector for terms. An empty term list
// yields a corrector that returns its input unchanged.
func NewVocabularyCorrector(terms []string, opts ...VocabularyOption) *VocabularyCorrector {
	c := &VocabularyCorrector{
		matcher: phonetic.New(),
		vocab:   phonetic.NewVocabulary(terms),
		minLen:  3,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Process implements [Processor].
func (c *VocabularyCorrector) Process(ctx context.Context, text string) (string, error) {
	out, corrections := c.Correct(text)
	for _, corr := range corrections {
		slog.DebugContext(ctx, "transcript: vocabulary correction",
			"original", corr.Original,
			"corrected", corr.Corrected,
			"confidence", corr.Confidence,
		)
	}
	return out, nil
}

// Correct returns text with every matching phrase replaced, plus the list of
// substitutions in text order.
//
// Every window of up to one word more than the longest term is scored; the
// highest-scoring windows are accepted first and any window overlapping an
// accepted one is discarded. Equal scores prefer the shorter window. Tokens
// containing CJK characters are never matched because Double Metaphone has
// no encoding for them.
func (c *VocabularyCorrector) Correct(text string) (string, []Correction) {
	maxWords := c.vocab.MaxWords()
	tokens := splitTokens(text)
	if maxWords == 0 || len(tokens) == 0 {
		return text, nil
	}

	cands := c.candidates(tokens, maxWords+1)
	if len(cands) == 0 {
		return text, nil
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		if a.res.Score != b.res.Score {
			return cmp.Compare(b.res.Score, a.res.Score)
		}
		return cmp.Compare(a.n, b.n)
	})

	used := make([]bool, len(tokens))
	accepted := make(map[int]candidate)
	for _, cd := range cands {
		if slices.Contains(used[cd.start:cd.start+cd.n], true) {
			continue
		}
		for k := cd.start; k < cd.start+cd.n; k++ {
			used[k] = true
		}
		accepted[cd.start] = cd
	}

	var (
		output      []string
		corrections []Correction
	)
	for i := 0; i < len(tokens); {
		cd, ok := accepted[i]
		if !ok {
			output = append(output, tokens[i].raw)
			i++
			continue
		}
		window := tokens[i : i+cd.n]
		original := joinCores(window)
		output = append(output, window[0].lead+cd.res.Term+window[cd.n-1].trail)
		if original != cd.res.Term {
			corrections = append(corrections, Correction{
				Original:   original,
				Corrected:  cd.res.Term,
				Confidence: cd.res.Score,
			})
		}
		i += cd.n
	}
	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(output, " "), corrections
}

type candidate struct {
	start int
	n     int
	res   phonetic.Result
}

func (c *VocabularyCorrector) candidates(tokens []token, maxN int) []candidate {
	var out []candidate
	for i := range tokens {
		for n := 1; n <= min(maxN, len(tokens)-i); n++ {
			window := tokens[i : i+n]
			if !matchable(window) {
				break
			}
			phrase := joinCores(window)
			if letterCount(phrase) < c.minLen {
				continue
			}
			if res, ok := c.matcher.Match(phrase, c.vocab); ok {
				out = append(out, candidate{start: i, n: n, res: res})
			}
		}
	}
	return out
}

// token is one whitespace-separated word split into leading punctuation,
// the word itself and trailing punctuation.
type token struct {
	raw   string
	lead  string
	core  string
	trail string
}

func splitTokens(text string) []token {
	fields := strings.Fields(text)
	tokens := make([]token, 0, len(fields))
	for _, f := range fields {
		core := strings.TrimLeftFunc(f, unicode.IsPunct)
		lead := f[:len(f)-len(core)]
		trimmed := strings.TrimRightFunc(core, unicode.IsPunct)
		tokens = append(tokens, token{
			raw:   f,
			lead:  lead,
			core:  trimmed,
			trail: core[len(trimmed):],
		})
	}
	return tokens
}

// matchable reports whether window can be replaced as a unit: every token
// has a word part, no punctuation sits between tokens, and none contains
// CJK characters.
func matchable(window []token) bool {
	for j, t := range window {
		if t.core == "" || hasCJK(t.core) {
			return false
		}
		if j > 0 && t.lead != "" {
			return false
		}
		if j < len(window)-1 && t.trail != "" {
			return false
		}
	}
	return true
}

func joinCores(window []token) string {
	parts := make([]string, len(window))
	for j, t := range window {
		parts[j] = t.core
	}
	return strings.Join(parts, " ")
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
