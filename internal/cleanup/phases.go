package cleanup

import (
	"regexp"
	"strings"
	"unicode"
)

// Filler vocabularies. The three tiers are applied in separate passes:
// hard fillers are removed anywhere, soft fillers only when followed by
// whitespace (removing them elsewhere mangles ordinary prose), and phrase
// fillers are matched as whole multi-word units.
const (
	hardFillers   = `um|uh|ah|er|hmm|umm|uhh|ehh|mm|mhm|laughs?|coughs?|pause`
	softFillers   = `like|well|so|anyway|basically|literally|actually`
	phraseFillers = `i mean|you know|kind of|sort of`
)

var (
	reParenAside   = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	reBracketAside = regexp.MustCompile(`\s*\[[^\]]*\]\s*`)

	reEllipsis = regexp.MustCompile(`\.{3,}`)

	reTrailingDash = regexp.MustCompile(`\s*—\s*$`)
	reEmbeddedDash = regexp.MustCompile(`\s*—\s*`)

	reHardFiller   = regexp.MustCompile(`(?i)\b(?:` + hardFillers + `)\b[.,;:!?]*\s*`)
	reSoftFiller   = regexp.MustCompile(`(?i)\b(?:` + softFillers + `)\b[.,;:!?]*\s+`)
	rePhraseFiller = regexp.MustCompile(`(?i)\b(?:` + phraseFillers + `)\b[.,;:!?]*\s*`)
	reLeadFiller   = regexp.MustCompile(`(?i)^(?:` + phraseFillers + `|` + hardFillers + `|` + softFillers + `)\b[.,;:!?]*\s*`)

	reCommaRun  = regexp.MustCompile(`,(?:\s*,)+`)
	rePeriodRun = regexp.MustCompile(`\.(?:\s*\.)+`)
	reSpaceThenComma = regexp.MustCompile(`\s+,`)

	reWhitespaceRun = regexp.MustCompile(`\s+`)

	reSpaceBeforePunct = regexp.MustCompile(`\s+([.,!?;:])`)

	reDoubleBang     = regexp.MustCompile(`!{2,}`)
	reDoubleQuestion = regexp.MustCompile(`\?{2,}`)
	reCommaPeriod    = regexp.MustCompile(`,\s*\.`)
	reSemiComma      = regexp.MustCompile(`;\s*,`)
	reColonComma     = regexp.MustCompile(`:\s*,`)

	rePunctSpacing = regexp.MustCompile(`([.,!?;:])\s+`)

	reSentenceStart = regexp.MustCompile(`([.!?]\s+)([a-z])`)
	reQuestionStart = regexp.MustCompile(`(\?\s+)([a-z])`)
)

// Phases returns the standard ordered phase list. The order is load-bearing:
// filler removal produces orphaned punctuation that the later normalisation
// phases repair, and capitalisation assumes spacing is already normalised.
func Phases() []Phase {
	return []Phase{
		{Name: "strip-asides", Apply: stripAsides},
		{Name: "collapse-ellipses", Apply: collapseEllipses},
		{Name: "resolve-false-starts", Apply: resolveFalseStarts},
		{Name: "remove-fillers", Apply: removeFillers},
		{Name: "fix-orphaned-punctuation", Apply: fixOrphanedPunctuation},
		{Name: "collapse-duplicate-words", Apply: collapseDuplicateWords},
		{Name: "collapse-whitespace", Apply: collapseWhitespace},
		{Name: "strip-space-before-punctuation", Apply: stripSpaceBeforePunct},
		{Name: "collapse-repeated-punctuation", Apply: collapseRepeatedPunct},
		{Name: "normalize-punctuation-spacing", Apply: normalizePunctSpacing},
		{Name: "capitalize-sentence-starts", Apply: capitalizeSentenceStarts},
		{Name: "capitalize-after-questions", Apply: capitalizeAfterQuestions},
		{Name: "ensure-terminal-punctuation", Apply: ensureTerminalPunct},
	}
}

// stripAsides removes parenthesised and bracketed asides — STT side-channel
// annotations like "(inaudible)" or "[background noise]" — collapsing the
// surrounding whitespace to a single space.
func stripAsides(s string) string {
	s = reParenAside.ReplaceAllString(s, " ")
	return reBracketAside.ReplaceAllString(s, " ")
}

// collapseEllipses reduces runs of three or more periods to a single period.
func collapseEllipses(s string) string {
	return reEllipsis.ReplaceAllString(s, ".")
}

// resolveFalseStarts handles abandoned sentence fragments:
//
//   - a trailing em-dash becomes a period
//   - an embedded em-dash becomes a sentence break
//   - a hyphen-marked restart of the same word ("it's- it's") collapses to
//     one occurrence
//   - a dangling hyphen fragment followed by more speech is dropped
//
// The word comparisons run as a token walk because RE2 has no backreferences.
func resolveFalseStarts(s string) string {
	s = reTrailingDash.ReplaceAllString(s, ".")
	s = reEmbeddedDash.ReplaceAllString(s, ". ")

	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return s
	}
	out := tokens[:0:0]
	for i, tok := range tokens {
		if len(tok) > 1 && strings.HasSuffix(tok, "-") && i < len(tokens)-1 {
			// Drop the fragment whether or not the next token repeats it;
			// "it's- it's" and "hesi- something" both lose the fragment.
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// removeFillers strips the filler vocabulary in four passes: hard fillers
// anywhere, soft fillers when followed by whitespace, multi-word phrase
// fillers, and finally any filler anchored at the very start of the string.
func removeFillers(s string) string {
	s = reHardFiller.ReplaceAllString(s, "")
	s = reSoftFiller.ReplaceAllString(s, "")
	s = rePhraseFiller.ReplaceAllString(s, "")
	return reLeadFiller.ReplaceAllString(s, "")
}

// fixOrphanedPunctuation repairs debris left behind by token removal:
// runs of commas or periods collapse to one mark and stray space before a
// comma is removed.
func fixOrphanedPunctuation(s string) string {
	s = reCommaRun.ReplaceAllString(s, ",")
	s = rePeriodRun.ReplaceAllString(s, ".")
	return reSpaceThenComma.ReplaceAllString(s, ",")
}

// collapseDuplicateWords removes an immediately-adjacent case-insensitive
// repeat of the same word ("the the" → "the").
func collapseDuplicateWords(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	out := tokens[:1]
	for _, tok := range tokens[1:] {
		if strings.EqualFold(tok, out[len(out)-1]) {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(reWhitespaceRun.ReplaceAllString(s, " "))
}

func stripSpaceBeforePunct(s string) string {
	return reSpaceBeforePunct.ReplaceAllString(s, "$1")
}

// collapseRepeatedPunct reduces doubled terminal marks and resolves adjacent
// punctuation combinations (", ." → ".", "; ," → ";", ": ," → ":").
func collapseRepeatedPunct(s string) string {
	s = rePeriodRun.ReplaceAllString(s, ".")
	s = reCommaRun.ReplaceAllString(s, ",")
	s = reDoubleBang.ReplaceAllString(s, "!")
	s = reDoubleQuestion.ReplaceAllString(s, "?")
	s = reCommaPeriod.ReplaceAllString(s, ".")
	s = reSemiComma.ReplaceAllString(s, ";")
	return reColonComma.ReplaceAllString(s, ":")
}

func normalizePunctSpacing(s string) string {
	return strings.TrimSpace(rePunctSpacing.ReplaceAllString(s, "$1 "))
}

// capitalizeSentenceStarts uppercases the first letter of the string and the
// first letter following a sentence-ending mark.
func capitalizeSentenceStarts(s string) string {
	s = upperAfter(s, reSentenceStart)
	for i, r := range s {
		if unicode.IsLetter(r) {
			return s[:i] + string(unicode.ToUpper(r)) + s[i+len(string(r)):]
		}
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) {
			break
		}
	}
	return s
}

// capitalizeAfterQuestions uppercases the letter following a question mark.
// Redundant with capitalizeSentenceStarts but kept as its own phase so the
// behaviour survives reordering of the sentence-start phase.
func capitalizeAfterQuestions(s string) string {
	return upperAfter(s, reQuestionStart)
}

func upperAfter(s string, re *regexp.Regexp) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		i := len(m) - 1
		return m[:i] + strings.ToUpper(m[i:])
	})
}

// ensureTerminalPunct guarantees the text ends with a sentence-ending mark.
// A trailing comma, semicolon, or colon is replaced rather than doubled up so
// a second Clean pass yields the same output.
func ensureTerminalPunct(s string) string {
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	case ',', ';', ':':
		return s[:len(s)-1] + "."
	}
	return s + "."
}
