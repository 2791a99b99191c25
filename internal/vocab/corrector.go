package vocab

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// trailing punctuation that may cling to a spoken token after cleanup.
const punctCutset = ".,!?;:"

// Correction records one replacement the corrector applied.
type Correction struct {
	Original   string  `json:"original"`
	Corrected  string  `json:"corrected"`
	Confidence float64 `json:"confidence"`
}

// Corrector rewrites misrecognized words in a transcript to their canonical
// vocabulary spelling. It is read-only after construction and safe for
// concurrent use.
type Corrector struct {
	matcher *Matcher
}

// NewCorrector builds a Corrector over the given vocabulary terms.
func NewCorrector(terms []string, opts ...Option) *Corrector {
	return &Corrector{matcher: New(terms, opts...)}
}

// Apply scans text with n-gram windows sized to the longest vocabulary term
// and replaces each matched window with the term's canonical spelling.
// Longer windows win over shorter ones at the same position. Punctuation
// trailing a window survives the replacement, and a window never spans
// punctuation. Apply preserves single-space word separation; run it on
// cleaned, not yet paragraph-formatted text.
func (c *Corrector) Apply(text string) (string, []Correction) {
	maxWords := c.matcher.MaxWords()
	if maxWords == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window, trailing, ok := windowAt(tokens, i, n)
			if !ok {
				continue
			}
			termText, conf, found := c.matcher.Match(window)
			if !found {
				continue
			}

			replacement := matchCase(window, termText)
			if replacement == window {
				// Only a sentence-start capital differs; nothing to fix.
				continue
			}
			output = append(output, strings.Fields(replacement+trailing)...)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  termText,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// windowAt joins n tokens starting at i into a match window. Interior tokens
// must be punctuation-free so a window never crosses a clause boundary; the
// final token has its trailing punctuation split off and returned separately.
func windowAt(tokens []string, i, n int) (window, trailing string, ok bool) {
	for j := i; j < i+n-1; j++ {
		if strings.TrimRight(tokens[j], punctCutset) != tokens[j] {
			return "", "", false
		}
	}
	last := tokens[i+n-1]
	core := strings.TrimRight(last, punctCutset)
	if core == "" {
		return "", "", false
	}
	parts := append([]string{}, tokens[i:i+n-1]...)
	parts = append(parts, core)
	return strings.Join(parts, " "), last[len(core):], true
}

// matchCase carries a leading capital from the original window over to the
// replacement, so corrections at sentence starts stay capitalized.
func matchCase(original, replacement string) string {
	or, _ := utf8.DecodeRuneInString(original)
	rr, size := utf8.DecodeRuneInString(replacement)
	if unicode.IsUpper(or) && unicode.IsLower(rr) {
		return string(unicode.ToUpper(rr)) + replacement[size:]
	}
	return replacement
}
