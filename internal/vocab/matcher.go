// Package vocab corrects words the speech recognizer misheard against a
// user-supplied custom vocabulary (names, product terms, jargon).
//
// Matching runs in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input window and for each vocabulary term. A term whose code set
//     overlaps the input's becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity (case-insensitive) wins, provided it
//     clears the phonetic threshold. When no phonetic candidate exists, a
//     secondary pass accepts pure string similarity above a stricter fuzzy
//     threshold.
//
// Multi-word terms ("Jira board") are supported; the corrector scans the
// transcript with n-gram windows sized to the longest term.
package vocab

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a Matcher.
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically-matched term to be accepted. Default 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the pure
// string-similarity fallback. Default 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// term is one vocabulary entry with its matching data precomputed.
type term struct {
	canonical string
	lower     string
	tokens    []string
	codes     map[string]struct{}
}

// Matcher finds the vocabulary term closest to a spoken word or phrase.
// The vocabulary is fixed at construction; phonetic codes are computed once.
// A Matcher is read-only after New and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	terms             []term
	maxWords          int
}

// New builds a Matcher over the given vocabulary terms. Blank terms are
// ignored.
func New(terms []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, raw := range terms {
		canonical := strings.TrimSpace(raw)
		if canonical == "" {
			continue
		}
		lower := strings.ToLower(canonical)
		tokens := strings.Fields(lower)
		m.terms = append(m.terms, term{
			canonical: canonical,
			lower:     lower,
			tokens:    tokens,
			codes:     codesForTokens(tokens),
		})
		if len(tokens) > m.maxWords {
			m.maxWords = len(tokens)
		}
	}
	return m
}

// MaxWords returns the token count of the longest vocabulary term. Zero when
// the vocabulary is empty.
func (m *Matcher) MaxWords() int {
	return m.maxWords
}

// Match returns the vocabulary term most similar to word, its similarity
// score, and whether any term cleared its threshold. word may be a single
// token or a space-separated window. When matched is false, corrected equals
// word unchanged.
//
// A window equal to a term except for casing is corrected to the canonical
// spelling with confidence 1.0; a byte-identical window needs no correction
// and is reported as no match.
func (m *Matcher) Match(word string) (corrected string, confidence float64, matched bool) {
	trimmed := strings.TrimSpace(word)
	wordLower := strings.ToLower(trimmed)
	if wordLower == "" || len(m.terms) == 0 {
		return word, 0, false
	}
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, t := range m.terms {
		if t.lower == wordLower {
			if t.canonical == trimmed {
				return word, 0, false
			}
			return t.canonical, 1, true
		}

		score := bestSimilarity(wordTokens, t.tokens, wordLower, t.lower)

		if codesOverlap(inputCodes, t.codes) {
			if score >= m.phoneticThreshold {
				if !best.phonetic || score > best.score {
					best = candidate{term: t.canonical, score: score, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if score >= m.fuzzyThreshold && score > best.score {
				best = candidate{term: t.canonical, score: score, phonetic: false}
			}
		}
	}

	if best.term != "" {
		return best.term, best.score, true
	}
	return word, 0, false
}

// codesForTokens returns the union of Double Metaphone codes for the tokens.
// Tokens too short to produce a code contribute nothing.
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

// bestSimilarity computes the highest Jaro-Winkler score between the input
// and a term, comparing both the full strings and their space-stripped
// forms. The concatenated comparison handles a term heard as a different
// number of words ("cooper netties" for "kubernetes"). Scoring deliberately
// never compares individual token pairs: a shared token like "board" must
// not let a window claim a multi-word term its other tokens have nothing to
// do with.
func bestSimilarity(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		concatIn := strings.Join(inputTokens, "")
		concatTerm := strings.Join(termTokens, "")
		if s := matchr.JaroWinkler(concatIn, concatTerm, false); s > score {
			score = s
		}
	}
	return score
}
