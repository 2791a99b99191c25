// Package cleanup implements the deterministic transcript cleanup engine.
//
// Raw speech-to-text output carries artifacts that should never reach the
// user's document: filler tokens ("um", "you know"), bracketed asides from
// the STT model ("[laughs]"), false starts, duplicated words, and orphaned
// punctuation left behind once those are removed. The [Engine] runs an
// ordered list of pure transformation phases over the text; order matters
// because later phases normalise the debris earlier phases produce.
//
// The engine is fail-open: any internal fault returns the original input
// unchanged, so a cleanup bug can never destroy a dictation. Each phase is
// exposed through [Phases] so it can be unit-tested in isolation.
package cleanup

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// MaxInputLen bounds the worst-case regex cost. Longer inputs are truncated
// (with a trailing ellipsis) before any phase runs.
const MaxInputLen = 10000

// Phase is a single named transformation step in the cleanup pipeline.
// Apply must be a pure function of its input.
type Phase struct {
	// Name identifies the phase in logs and tests.
	Name string

	// Apply transforms the text. It must not panic on well-formed input;
	// panics are recovered by [Engine.Clean] as a whole.
	Apply func(string) string
}

// Engine runs the ordered cleanup phases. The zero value is not usable;
// construct with [New]. Engine is stateless and safe for concurrent use.
type Engine struct {
	phases []Phase
}

// New returns an [Engine] with the standard phase order.
func New() *Engine {
	return &Engine{phases: Phases()}
}

// Clean applies every phase in order and returns the cleaned text.
//
// Guarantees:
//   - Never panics: any internal fault is recovered and the original input
//     is returned unchanged.
//   - Inputs longer than [MaxInputLen] characters are truncated with an
//     ellipsis before processing.
//   - If the result is empty or whitespace-only, the original input is
//     returned instead (guards against over-aggressive removal).
func (e *Engine) Clean(text string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("cleanup phase panicked, returning original text", "panic", r)
			result = text
		}
	}()

	if text == "" {
		return text
	}

	working := text
	if len(working) > MaxInputLen {
		// Cut on a rune boundary so a multi-byte character at the limit is
		// dropped whole rather than split.
		cut := MaxInputLen
		for cut > 0 && !utf8.RuneStart(working[cut]) {
			cut--
		}
		working = working[:cut] + "..."
	}

	for _, p := range e.phases {
		working = p.Apply(working)
	}

	if strings.TrimSpace(working) == "" {
		return text
	}
	return working
}
