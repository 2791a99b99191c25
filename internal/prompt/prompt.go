// Package prompt renders enhancement prompt templates.
//
// Templates are plain strings containing {variable} placeholders, e.g.
//
//	Rewrite the following dictation as a professional email:
//
//	{transcript}
//
// [Render] performs all-or-nothing substitution: when any referenced variable
// is missing or empty, nothing is substituted and the missing names are
// reported so the caller can surface them to the user instead of silently
// sending a half-rendered prompt to the model. [Validate] is a separate,
// advisory syntax check for template authoring surfaces.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrMissingVariables is wrapped by the error carried in a failed [Result].
var ErrMissingVariables = errors.New("template variables missing")

var rePlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Result is the outcome of a [Render] call.
type Result struct {
	// OK reports whether rendering succeeded.
	OK bool

	// Text is the fully rendered template. Empty when OK is false.
	Text string

	// MissingVariables lists, in sorted order, every referenced variable
	// that was absent or empty. Nil when OK is true.
	MissingVariables []string

	// Err describes the failure. Nil when OK is true.
	Err error
}

// Variables returns the deduplicated placeholder names referenced by
// template, in first-appearance order.
func Variables(template string) []string {
	matches := rePlaceholder.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Render substitutes vars into template.
//
// A variable counts as missing when it is absent from vars or present with an
// empty value. If any referenced variable is missing, no substitution is
// performed and the result carries the sorted list of missing names.
func Render(template string, vars map[string]string) Result {
	var missing []string
	for _, name := range Variables(template) {
		if vars[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Result{
			MissingVariables: missing,
			Err: fmt.Errorf("%w: %s", ErrMissingVariables,
				strings.Join(missing, ", ")),
		}
	}

	rendered := template
	for name, value := range vars {
		// Variable names come from user-authored templates; escape them so
		// regex metacharacters in a name cannot change the match.
		re, err := regexp.Compile(`\{` + regexp.QuoteMeta(name) + `\}`)
		if err != nil {
			return Result{Err: fmt.Errorf("prompt: compile placeholder %q: %w", name, err)}
		}
		rendered = re.ReplaceAllLiteralString(rendered, value)
	}

	return Result{OK: true, Text: rendered}
}

// Validate reports malformed template syntax: unbalanced brace counts or an
// empty {} placeholder. It is advisory — Render does not call it.
func Validate(template string) error {
	opens := strings.Count(template, "{")
	closes := strings.Count(template, "}")
	if opens != closes {
		return fmt.Errorf("prompt: unbalanced braces: %d open, %d close", opens, closes)
	}
	if strings.Contains(template, "{}") {
		return errors.New("prompt: empty {} placeholder")
	}
	return nil
}
