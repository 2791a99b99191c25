// Package folder manages dictation folders and their activation phrases.
//
// A folder is a named destination for transcripts. Each folder carries an
// activation phrase — a spoken prefix like "work note" that routes the
// dictation into that folder and is stripped from the saved text. Matching
// is a plain case-insensitive prefix test; when two phrases could both
// match, the first folder in configured order wins.
package folder

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ErrNotFound is returned when the requested folder does not exist.
var ErrNotFound = errors.New("folder not found")

// ErrDuplicateName is returned when a folder name is already taken.
var ErrDuplicateName = errors.New("folder name already exists")

// ErrDuplicatePhrase is returned when an activation phrase collides
// case-insensitively with another folder's phrase.
var ErrDuplicatePhrase = errors.New("activation phrase already exists")

// Folder routes transcripts that begin with its activation phrase.
type Folder struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ActivationPhrase string    `json:"activationPhrase"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Match finds the first folder in folders whose activation phrase is a
// case-insensitive prefix of transcript, and returns that folder together
// with the transcript stripped of the phrase. ok is false when no folder
// matches; the transcript is then returned unchanged.
//
// Order matters: folders are tested in the order given, so when one phrase
// is a prefix of another the earlier folder wins.
func Match(transcript string, folders []Folder) (matched Folder, stripped string, ok bool) {
	for _, f := range folders {
		if f.ActivationPhrase == "" {
			continue
		}
		if hasPhrasePrefix(transcript, f.ActivationPhrase) {
			return f, StripPhrase(transcript, f.ActivationPhrase), true
		}
	}
	return Folder{}, transcript, false
}

// StripPhrase removes phrase from the start of transcript when present
// (case-insensitive, both sides trimmed), then skips any punctuation run and
// whitespace run that immediately follow, returning the trimmed remainder.
// When transcript does not start with phrase it is returned unchanged.
func StripPhrase(transcript, phrase string) string {
	n, ok := phrasePrefixLen(transcript, phrase)
	if !ok {
		return transcript
	}

	rest := strings.TrimSpace(transcript)[n:]
	rest = strings.TrimLeftFunc(rest, unicode.IsPunct)
	return strings.TrimSpace(rest)
}

func hasPhrasePrefix(transcript, phrase string) bool {
	_, ok := phrasePrefixLen(transcript, phrase)
	return ok
}

// phrasePrefixLen reports whether the trimmed transcript starts with the
// trimmed phrase, comparing rune by rune case-insensitively, and returns the
// byte length of the matched prefix as it appears in the transcript. The two
// sides can differ in byte length when case folding changes rune widths
// (for example U+1E9E folds to the two-byte sharp s).
func phrasePrefixLen(transcript, phrase string) (int, bool) {
	p := strings.TrimSpace(phrase)
	if p == "" {
		return 0, false
	}
	t := strings.TrimSpace(transcript)

	n := 0
	for _, pr := range p {
		tr, size := utf8.DecodeRuneInString(t[n:])
		if size == 0 || unicode.ToLower(tr) != unicode.ToLower(pr) {
			return 0, false
		}
		n += size
	}
	return n, true
}
