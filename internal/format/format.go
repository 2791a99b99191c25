// Package format implements paragraph segmentation for cleaned transcripts.
//
// Dictated text arrives as one unbroken run of sentences. The [Formatter]
// splits it into readable paragraphs using sentence- and word-count
// thresholds plus topical-transition heuristics: a sentence that opens with
// "however", mentions a time indicator like "yesterday", or starts with a
// spoken discourse marker ("so", "anyway") signals a topic change and forces
// a paragraph break.
//
// Formatting is a pure function and is fail-open in the same sense as the
// cleanup engine: inputs too short to need paragraphs pass through with only
// whitespace normalisation.
package format

import (
	"regexp"
	"strings"
)

// Break thresholds. A paragraph closes when it is both reasonably long in
// sentences and words, or when either count alone grows excessive.
const (
	minSentencesWithWords = 2
	minWordsWithSentences = 40
	maxSentences          = 3
	maxWords              = 80
)

// topicTransitions are phrases that, anywhere in a sentence, indicate the
// speaker moved to a new point.
var topicTransitions = []string{
	"however", "furthermore", "moreover", "additionally", "on the other hand",
	"in addition", "meanwhile", "subsequently", "in contrast",
	"first", "second", "third", "finally", "lastly", "in conclusion",
}

// timeIndicators are phrases that usually open a new narrative beat.
var timeIndicators = []string{
	"yesterday", "today", "tomorrow", "last week", "next week",
	"last month", "next month", "this morning", "this afternoon",
	"this evening", "later", "earlier", "afterwards",
}

var (
	reSentenceSplit   = regexp.MustCompile(`[^.!?]+[.!?]*`)
	reDiscourseMarker = regexp.MustCompile(`(?i)^(well|so|now|anyway|look|listen|you know what)\b`)
	reWhitespaceRun   = regexp.MustCompile(`\s+`)
)

// Formatter splits cleaned transcript text into paragraphs. It is stateless
// and safe for concurrent use.
type Formatter struct{}

// New returns a [Formatter].
func New() *Formatter {
	return &Formatter{}
}

// Format splits text into paragraphs joined by blank lines.
//
// Inputs with two or fewer sentences pass through with only whitespace
// normalisation — short dictations do not need paragraph structure. When the
// heuristics produce a single paragraph, the normalised single-paragraph
// text is returned.
func (f *Formatter) Format(text string) string {
	normalized := strings.TrimSpace(reWhitespaceRun.ReplaceAllString(text, " "))
	if normalized == "" {
		return normalized
	}

	sentences := splitSentences(normalized)
	if len(sentences) <= 2 {
		return normalized
	}

	var paragraphs []string
	var current []string
	wordCount := 0

	for _, sentence := range sentences {
		words := len(strings.Fields(sentence))

		if len(current) > 0 && shouldBreak(len(current), wordCount, sentence) {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = current[:0]
			wordCount = 0
		}

		current = append(current, sentence)
		wordCount += words
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}

	if len(paragraphs) == 1 {
		return paragraphs[0]
	}
	return strings.Join(paragraphs, "\n\n")
}

// shouldBreak reports whether a new paragraph should start before next,
// given the size of the paragraph accumulated so far.
func shouldBreak(sentenceCount, wordCount int, next string) bool {
	if sentenceCount >= minSentencesWithWords && wordCount >= minWordsWithSentences {
		return true
	}
	if sentenceCount >= maxSentences {
		return true
	}
	if wordCount >= maxWords {
		return true
	}

	lower := strings.ToLower(next)
	for _, phrase := range topicTransitions {
		if strings.HasPrefix(lower, phrase) || strings.Contains(lower, " "+phrase) {
			return true
		}
	}
	for _, phrase := range timeIndicators {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return reDiscourseMarker.MatchString(next)
}

// splitSentences splits text on sentence-ending punctuation, keeping the
// delimiters attached to their sentence. Empty fragments are dropped.
func splitSentences(text string) []string {
	raw := reSentenceSplit.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
