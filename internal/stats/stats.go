// Package stats computes speech-quality metrics for a completed dictation
// session: pace, filler usage, vocabulary spread, and sentence length. The
// numbers feed the analytics history; they are computed once per session
// from the raw transcript and never mutated afterwards.
package stats

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// singleFillers are matched as whole tokens after punctuation stripping.
// multiFillers are matched as substrings of the lowercased text. The two
// vocabularies are disjoint so no filler is counted twice.
var (
	singleFillers = []string{
		"um", "uh", "ah", "er", "hmm", "like", "so", "well",
		"basically", "literally", "actually", "anyway",
	}
	multiFillers = []string{
		"you know", "i mean", "kind of", "sort of",
	}
)

var (
	reNonWord       = regexp.MustCompile(`[^a-z0-9']+`)
	reWhitespace    = regexp.MustCompile(`\s+`)
	reSentenceSplit = regexp.MustCompile(`[.!?]+`)
)

// SessionMetrics is the immutable per-session analytics value.
type SessionMetrics struct {
	TotalWords              int            `json:"totalWords"`
	SessionDuration         float64        `json:"sessionDuration"`
	WordsPerMinute          int            `json:"wordsPerMinute"`
	FillerWords             int            `json:"fillerWords"`
	FillerWordsBreakdown    map[string]int `json:"fillerWordsBreakdown"`
	UniqueWords             int            `json:"uniqueWords"`
	AverageWordsPerSentence float64        `json:"averageWordsPerSentence"`
	SpeechRate              int            `json:"speechRate"`
	CleanupUsed             bool           `json:"cleanupUsed"`
	WordsRemoved            int            `json:"wordsRemoved"`
	Timestamp               time.Time      `json:"timestamp"`
	SessionID               string         `json:"sessionId"`
}

// Compute derives [SessionMetrics] from a raw transcript, the cleaned text
// (empty when cleanup was not applied or made no difference), and the session
// duration in seconds. Returns nil when rawText is empty or duration is not
// positive.
func Compute(rawText, cleanedText string, duration float64) *SessionMetrics {
	if strings.TrimSpace(rawText) == "" || duration <= 0 {
		return nil
	}

	words := strings.Fields(rawText)
	totalWords := len(words)

	fillerTotal, breakdown := countFillers(rawText)

	unique := make(map[string]struct{}, totalWords)
	for _, w := range words {
		norm := normalizeToken(w)
		if norm != "" {
			unique[norm] = struct{}{}
		}
	}

	wordsRemoved := 0
	cleanupUsed := cleanedText != ""
	if cleanupUsed {
		if removed := totalWords - len(strings.Fields(cleanedText)); removed > 0 {
			wordsRemoved = removed
		}
	}

	return &SessionMetrics{
		TotalWords:              totalWords,
		SessionDuration:         duration,
		WordsPerMinute:          int(math.Round(float64(totalWords) / duration * 60)),
		FillerWords:             fillerTotal,
		FillerWordsBreakdown:    breakdown,
		UniqueWords:             len(unique),
		AverageWordsPerSentence: averageWordsPerSentence(rawText, totalWords),
		SpeechRate:              speechRate(rawText, duration),
		CleanupUsed:             cleanupUsed,
		WordsRemoved:            wordsRemoved,
		Timestamp:               time.Now(),
		SessionID:               uuid.NewString(),
	}
}

// countFillers tallies filler usage: single-word fillers by exact token match
// after punctuation stripping, multi-word phrases by substring count against
// the lowercased full text.
func countFillers(text string) (int, map[string]int) {
	breakdown := make(map[string]int)
	total := 0

	for _, w := range strings.Fields(text) {
		norm := normalizeToken(w)
		for _, filler := range singleFillers {
			if norm == filler {
				breakdown[filler]++
				total++
				break
			}
		}
	}

	lower := strings.ToLower(text)
	for _, phrase := range multiFillers {
		if n := strings.Count(lower, phrase); n > 0 {
			breakdown[phrase] += n
			total += n
		}
	}

	return total, breakdown
}

func normalizeToken(w string) string {
	return strings.Trim(reNonWord.ReplaceAllString(strings.ToLower(w), ""), "'")
}

// averageWordsPerSentence is total words over non-empty sentence splits,
// rounded to one decimal. Zero when the text has no sentence boundaries and
// no content.
func averageWordsPerSentence(text string, totalWords int) float64 {
	sentences := 0
	for _, s := range reSentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		return 0
	}
	return math.Round(float64(totalWords)/float64(sentences)*10) / 10
}

// speechRate is non-whitespace characters per minute — a coarse pace proxy
// that is robust to tokenisation differences, unlike word-based WPM.
func speechRate(text string, duration float64) int {
	chars := len(reWhitespace.ReplaceAllString(text, ""))
	return int(math.Round(float64(chars) / duration * 60))
}
