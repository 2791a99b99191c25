// Package preset manages enhancement presets: named prompt templates that
// drive the LLM rewriting step of the dictation pipeline.
//
// Three system presets ship with the application and are seeded on first
// run. Users may add up to two custom presets on top. System presets cannot
// be renamed or deleted — only their prompt text and enabled state may
// change. At most one preset is "selected" at a time; no selection means
// enhancement is off.
//
// All preset state lives behind the [storage.KV] boundary and is mutated
// only through the [Manager].
package preset

import (
	"errors"
	"strings"
	"time"
)

// Persistent storage keys owned by this package.
const (
	// KeyPresets holds the JSON-encoded id → Preset collection.
	KeyPresets = "presets"

	// KeySelected holds the id of the selected preset, empty for "Off".
	KeySelected = "selected_preset_id"

	// KeyLegacySitePrompts is the pre-preset per-site prompt layout,
	// consumed once by the startup migration and then deleted.
	KeyLegacySitePrompts = "site_prompts"
)

// MaxCustomPresets caps the number of non-system presets.
const MaxCustomPresets = 2

// TranscriptVariable is the placeholder every preset prompt must reference.
const TranscriptVariable = "transcript"

// System preset ids. Fixed so upgrades recognise them across installs.
const (
	SystemEmail        = "default-email"
	SystemProfessional = "default-professional"
	SystemBasic        = "default-basic"
)

var (
	// ErrNotFound is returned when the referenced preset does not exist.
	ErrNotFound = errors.New("preset not found")

	// ErrSystemPreset is returned when a system preset would be deleted
	// or renamed.
	ErrSystemPreset = errors.New("system presets cannot be deleted or renamed")

	// ErrDuplicateName is returned when a preset name collides
	// case-insensitively with an existing one.
	ErrDuplicateName = errors.New("preset name already exists")

	// ErrCustomLimit is returned when creating a custom preset would
	// exceed [MaxCustomPresets].
	ErrCustomLimit = errors.New("custom preset limit reached")

	// ErrInvalidPreset is returned when a name or prompt fails validation.
	ErrInvalidPreset = errors.New("invalid preset")
)

// Preset is a named prompt template for transcript enhancement.
type Preset struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Prompt     string    `json:"prompt"`
	IsSystem   bool      `json:"isSystem"`
	Enabled    bool      `json:"enabled"`
	UsageCount int       `json:"usageCount"`
	LastUsed   time.Time `json:"lastUsed,omitzero"`
	CreatedAt  time.Time `json:"createdAt"`
}

// systemPrompts are the shipped prompt templates, seeded when absent.
var systemPrompts = map[string]struct {
	name   string
	prompt string
}{
	SystemEmail: {
		name: "Email",
		prompt: `Rewrite the following dictated text as a clear, polite email body. ` +
			`Keep the meaning intact, fix grammar, and do not invent content:

{transcript}`,
	},
	SystemProfessional: {
		name: "Professional",
		prompt: `Rewrite the following dictated text in a concise professional tone. ` +
			`Preserve every point, remove conversational filler, do not add new information:

{transcript}`,
	},
	SystemBasic: {
		name: "Basic cleanup",
		prompt: `Lightly edit the following dictated text: fix grammar and punctuation ` +
			`only, keep the wording and tone as spoken:

{transcript}`,
	},
}

// validate checks name and prompt for create/update operations.
func validate(name, promptText string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("preset name must not be empty")
	}
	if strings.TrimSpace(promptText) == "" {
		return errors.New("preset prompt must not be empty")
	}
	if !strings.Contains(promptText, "{"+TranscriptVariable+"}") {
		return errors.New("preset prompt must reference {transcript}")
	}
	return nil
}
