package polish

import (
	"strings"
	"unicode"
)

// tokens splits text into comparable units: lowercased runs of letters and
// digits for spaced scripts, single runes for Han, Kana and Hangul.
// Punctuation and whitespace are dropped.
func tokens(text string) []string {
	var out []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
			flush()
			out = append(out, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// commonLen returns the length of the longest common subsequence of a and
// b. Two rolling rows are enough since only the length is needed.
func commonLen(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// overlap is the share of input tokens the reply kept in order. Text
// without tokens counts as fully kept.
func overlap(input, reply string) float64 {
	in := tokens(input)
	if len(in) == 0 {
		return 1
	}
	return float64(commonLen(in, tokens(reply))) / float64(len(in))
}
