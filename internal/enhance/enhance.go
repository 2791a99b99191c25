// Package enhance rewrites transcripts with an LLM under a selected preset.
//
// The service is deliberately fail-open: every failure path returns the
// original transcript tagged with a fallback reason, so downstream insertion
// never receives empty text. At most one enhancement is in flight at a time;
// concurrent calls are rejected immediately rather than queued.
package enhance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/preset"
	"github.com/voxnote/voxnote/internal/prompt"
	"github.com/voxnote/voxnote/pkg/provider/llm"
)

const (
	// MaxTranscriptLen is the input length threshold in characters. Longer
	// transcripts are truncated with an ellipsis before being sent to the LLM
	// rather than rejected.
	MaxTranscriptLen = 4000

	// DefaultTimeout bounds the LLM round trip.
	DefaultTimeout = 30 * time.Second
)

// Fallback reasons reported in Outcome.FallbackReason. These are stable
// strings surfaced to clients, not error messages.
const (
	ReasonBusy               = "already processing"
	ReasonNoPreset           = "no preset selected"
	ReasonEmptyTranscript    = "empty transcript"
	ReasonNoAPIKey           = "no API key"
	ReasonTemplateError      = "template error"
	ReasonAuthFailure        = "invalid API key"
	ReasonRateLimited        = "rate limited"
	ReasonInsufficientCredit = "insufficient credit"
	ReasonUnavailable        = "service unavailable"
	ReasonTimeout            = "request timed out"
	ReasonFailed             = "enhancement failed"
)

// defaultSystemPrompt instructs the model to behave as a rewriting tool
// rather than a conversational assistant.
const defaultSystemPrompt = "You rewrite dictated text. Follow the instructions exactly and " +
	"return only the rewritten text, without commentary, preamble, or quotes."

// CredentialSource supplies the LLM API key. An empty key means enhancement
// is not configured and every call falls back.
type CredentialSource interface {
	// APIKey returns the configured key, or "" when none is set.
	APIKey(ctx context.Context) (string, error)
}

// StaticCredentials is a CredentialSource backed by a fixed string.
type StaticCredentials string

// APIKey implements CredentialSource.
func (c StaticCredentials) APIKey(context.Context) (string, error) {
	return string(c), nil
}

// Outcome is the result of an enhancement attempt. OriginalText is always the
// caller's input; Result carries the enhanced text on success and the original
// text on every fallback path.
type Outcome struct {
	Success        bool           `json:"success"`
	Result         string         `json:"result"`
	OriginalText   string         `json:"originalText"`
	Preset         *preset.Preset `json:"preset,omitempty"`
	FallbackReason string         `json:"fallbackReason,omitempty"`
}

// Service orchestrates preset resolution, template rendering, and the LLM
// call. Safe for concurrent use; concurrent Enhance calls beyond the first
// are rejected with [ReasonBusy].
type Service struct {
	presets  *preset.Manager
	provider llm.Provider
	creds    CredentialSource
	metrics  *observe.Metrics

	// mu guards the hot-reloadable tuning below; see Retune.
	mu      sync.Mutex
	timeout time.Duration
	temp    float64

	busy atomic.Bool
}

// Option is a functional option for Service.
type Option func(*Service)

// WithTimeout overrides the LLM call timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature for enhancement requests.
func WithTemperature(t float64) Option {
	return func(s *Service) {
		s.temp = t
	}
}

// WithMetrics overrides the metrics instance used for instrumentation.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. presets and provider must be non-nil; a nil
// creds skips the API-key check for providers that do not need one.
func New(presets *preset.Manager, provider llm.Provider, creds CredentialSource, opts ...Option) *Service {
	s := &Service{
		presets:  presets,
		provider: provider,
		creds:    creds,
		metrics:  observe.DefaultMetrics(),
		timeout:  DefaultTimeout,
		temp:     0.3,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enhance transforms raw under the preset identified by presetID, or the
// manager's current selection when presetID is empty. It never returns an
// error: every failure resolves to a fallback Outcome carrying the original
// text.
func (s *Service) Enhance(ctx context.Context, raw string, presetID string) Outcome {
	if !s.busy.CompareAndSwap(false, true) {
		return s.fallback(ctx, raw, nil, ReasonBusy)
	}
	defer s.busy.Store(false)

	s.metrics.EnhancementsInFlight.Add(ctx, 1)
	defer s.metrics.EnhancementsInFlight.Add(ctx, -1)

	start := time.Now()
	defer func() {
		s.metrics.EnhanceDuration.Record(ctx, time.Since(start).Seconds())
	}()

	p, ok := s.resolvePreset(presetID)
	if !ok {
		return s.fallback(ctx, raw, nil, ReasonNoPreset)
	}

	if strings.TrimSpace(raw) == "" {
		return s.fallback(ctx, raw, &p, ReasonEmptyTranscript)
	}

	// A nil credential source means the provider needs no key (local models).
	if s.creds != nil {
		key, err := s.creds.APIKey(ctx)
		if err != nil {
			slog.Warn("credential lookup failed", "error", err)
			return s.fallback(ctx, raw, &p, ReasonNoAPIKey)
		}
		if key == "" {
			return s.fallback(ctx, raw, &p, ReasonNoAPIKey)
		}
	}

	input := raw
	if len(input) > MaxTranscriptLen {
		// Back up to a rune boundary so a multi-byte character at the limit
		// is dropped whole rather than split.
		cut := MaxTranscriptLen
		for cut > 0 && !utf8.RuneStart(input[cut]) {
			cut--
		}
		input = input[:cut] + "..."
		slog.Debug("transcript truncated for enhancement",
			"original_len", len(raw), "max", MaxTranscriptLen)
	}

	rendered := prompt.Render(p.Prompt, map[string]string{
		preset.TranscriptVariable: input,
		// Legacy alias still found in older custom prompts.
		"raw_transcript": input,
	})
	if !rendered.OK {
		slog.Warn("preset template failed to render",
			"preset_id", p.ID, "missing", rendered.MissingVariables, "error", rendered.Err)
		return s.fallback(ctx, raw, &p, ReasonTemplateError)
	}

	timeout, temp := s.tuning()
	llmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	llmStart := time.Now()
	resp, err := s.provider.Complete(llmCtx, llm.CompletionRequest{
		SystemPrompt: defaultSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: rendered.Text},
		},
		Temperature: temp,
	})
	s.metrics.LLMDuration.Record(ctx, time.Since(llmStart).Seconds())

	if err != nil {
		reason := reasonForError(err)
		slog.Warn("enhancement LLM call failed",
			"preset_id", p.ID, "reason", reason, "error", err)
		return s.fallback(ctx, raw, &p, reason)
	}

	result := ""
	if resp != nil {
		result = strings.TrimSpace(resp.Content)
	}
	if result == "" {
		return s.fallback(ctx, raw, &p, ReasonFailed)
	}

	s.presets.UpdateUsageStats(ctx, p.ID)
	s.metrics.RecordEnhancement(ctx, true, "")
	slog.Info("transcript enhanced",
		"preset_id", p.ID,
		"input_len", len(input),
		"output_len", len(result),
		"duration", time.Since(start))

	return Outcome{
		Success:      true,
		Result:       result,
		OriginalText: raw,
		Preset:       &p,
	}
}

// Retune applies hot-reloaded tuning. Non-positive values leave the current
// setting in place. In-flight enhancements keep the tuning they started with.
func (s *Service) Retune(timeout time.Duration, temp float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout > 0 {
		s.timeout = timeout
	}
	if temp > 0 {
		s.temp = temp
	}
	slog.Info("enhancement tuning updated", "timeout", s.timeout, "temperature", s.temp)
}

// tuning snapshots the current timeout and temperature.
func (s *Service) tuning() (time.Duration, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout, s.temp
}

// Busy reports whether an enhancement is currently in flight.
func (s *Service) Busy() bool {
	return s.busy.Load()
}

// resolvePreset picks the preset for this run: an explicit id wins, otherwise
// the manager's current selection is used.
func (s *Service) resolvePreset(presetID string) (preset.Preset, bool) {
	if presetID != "" {
		p, err := s.presets.Get(presetID)
		if err != nil {
			return preset.Preset{}, false
		}
		return p, true
	}
	return s.presets.Selected()
}

// fallback records the failed attempt and returns an Outcome carrying the
// untouched original text.
func (s *Service) fallback(ctx context.Context, raw string, p *preset.Preset, reason string) Outcome {
	s.metrics.RecordEnhancement(ctx, false, reason)
	return Outcome{
		Success:        false,
		Result:         raw,
		OriginalText:   raw,
		Preset:         p,
		FallbackReason: reason,
	}
}

// reasonForError maps a classified provider error onto the fallback-reason
// vocabulary.
func reasonForError(err error) string {
	switch {
	case llm.IsTimeout(err):
		return ReasonTimeout
	case errors.Is(err, llm.ErrAuth):
		return ReasonAuthFailure
	case errors.Is(err, llm.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, llm.ErrInsufficientCredit):
		return ReasonInsufficientCredit
	case errors.Is(err, llm.ErrUnavailable):
		return ReasonUnavailable
	default:
		return ReasonFailed
	}
}
