// Package pipeline wires the transcript post-processing stages together:
// activation-phrase extraction, cleanup, paragraph formatting, optional LLM
// enhancement, and session metrics. The pipeline is fail-open end to end; a
// failing stage passes its input through unchanged.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxnote/voxnote/internal/cleanup"
	"github.com/voxnote/voxnote/internal/enhance"
	"github.com/voxnote/voxnote/internal/folder"
	"github.com/voxnote/voxnote/internal/format"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/stats"
	"github.com/voxnote/voxnote/internal/storage"
	"github.com/voxnote/voxnote/internal/vocab"
)

// historyKeyPrefix namespaces persisted transcription records in the KV store.
const historyKeyPrefix = "history:"

// Transcription is the immutable record produced for one completed recording.
type Transcription struct {
	ID string `json:"id"`

	// Text is the final content handed to the client: phrase-stripped,
	// cleaned, formatted, and enhanced when a preset applied.
	Text string `json:"text"`

	// RawText is the transcript after activation-phrase stripping but before
	// any cleanup.
	RawText string `json:"rawText"`

	// OriginalText is the transcript exactly as received, before phrase
	// stripping.
	OriginalText string `json:"originalText"`

	// CleanedText is set only when cleanup actually changed the text.
	CleanedText string `json:"cleanedText,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Duration is the recording length in seconds.
	Duration float64 `json:"duration"`

	WordCount int `json:"wordCount"`

	// Service names the STT engine that produced the raw transcript.
	Service string `json:"service,omitempty"`

	FolderID   string `json:"folderId,omitempty"`
	FolderName string `json:"folderName,omitempty"`
}

// Result bundles everything one Process run produced.
type Result struct {
	Transcription Transcription         `json:"transcription"`
	Metrics       *stats.SessionMetrics `json:"metrics,omitempty"`
	Enhancement   *enhance.Outcome      `json:"enhancement,omitempty"`
}

// Options carries per-request knobs for Process.
type Options struct {
	// Duration is the recording length. Required for session metrics; zero
	// skips metric computation.
	Duration time.Duration

	// Service names the STT engine that produced the transcript.
	Service string

	// PresetID forces a specific enhancement preset. Empty uses the preset
	// manager's current selection.
	PresetID string

	// SkipEnhance bypasses the enhancement stage entirely.
	SkipEnhance bool
}

// Pipeline orchestrates the post-processing stages. Construct with New; all
// collaborators are required except the enhancer, which may be nil when no
// LLM is configured.
type Pipeline struct {
	cleaner   *cleanup.Engine
	format    *format.Formatter
	folders   folder.Store
	corrector *vocab.Corrector
	enhancer  *enhance.Service
	history   storage.KV
	metrics   *observe.Metrics
}

// Option is a functional option for Pipeline.
type Option func(*Pipeline)

// WithEnhancer enables the LLM enhancement stage.
func WithEnhancer(s *enhance.Service) Option {
	return func(p *Pipeline) {
		p.enhancer = s
	}
}

// WithVocabulary corrects misrecognized words against a custom vocabulary
// after cleanup, before paragraph formatting.
func WithVocabulary(c *vocab.Corrector) Option {
	return func(p *Pipeline) {
		p.corrector = c
	}
}

// WithHistory persists finished transcription records to the given store.
func WithHistory(kv storage.KV) Option {
	return func(p *Pipeline) {
		p.history = kv
	}
}

// WithMetrics overrides the metrics instance used for instrumentation.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New constructs a Pipeline over the given folder store.
func New(folders folder.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cleaner: cleanup.New(),
		format:  format.New(),
		folders: folders,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs raw through the full post-processing chain and returns the
// transcription record plus session metrics. Process never fails on a
// transform stage; only history persistence can surface an error, and even
// then the Result is fully populated.
func (p *Pipeline) Process(ctx context.Context, raw string, opts Options) (Result, error) {
	now := time.Now()

	// Activation phrase → folder routing.
	stripped := raw
	var matched *folder.Folder
	if p.folders != nil {
		all, err := p.folders.List(ctx)
		if err != nil {
			observe.Logger(ctx).Warn("folder lookup failed, skipping routing", "error", err)
		} else if f, s, ok := folder.Match(raw, all); ok {
			matched = &f
			stripped = s
		}
	}

	cleanStart := time.Now()
	cleaned := p.cleaner.Clean(stripped)
	if p.corrector != nil {
		if corrected, applied := p.corrector.Apply(cleaned); len(applied) > 0 {
			observe.Logger(ctx).Debug("vocabulary corrections applied", "count", len(applied))
			cleaned = corrected
		}
	}
	p.metrics.CleanupDuration.Record(ctx, time.Since(cleanStart).Seconds())

	formatStart := time.Now()
	formatted := p.format.Format(cleaned)
	p.metrics.FormatDuration.Record(ctx, time.Since(formatStart).Seconds())

	final := formatted
	var outcome *enhance.Outcome
	if p.enhancer != nil && !opts.SkipEnhance {
		o := p.enhancer.Enhance(ctx, formatted, opts.PresetID)
		outcome = &o
		if o.Success {
			final = o.Result
		}
	}

	rec := Transcription{
		ID:           uuid.NewString(),
		Text:         final,
		RawText:      stripped,
		OriginalText: raw,
		Timestamp:    now,
		Duration:     opts.Duration.Seconds(),
		WordCount:    countWords(final),
		Service:      opts.Service,
	}
	if cleaned != stripped {
		rec.CleanedText = cleaned
	}
	if matched != nil {
		rec.FolderID = matched.ID
		rec.FolderName = matched.Name
	}

	var metrics *stats.SessionMetrics
	if opts.Duration > 0 {
		cleanedForStats := ""
		if rec.CleanedText != "" {
			cleanedForStats = rec.CleanedText
		}
		metrics = stats.Compute(stripped, cleanedForStats, opts.Duration.Seconds())
	}

	p.metrics.RecordTranscript(ctx, rec.FolderName, rec.Service)

	res := Result{
		Transcription: rec,
		Metrics:       metrics,
		Enhancement:   outcome,
	}

	if p.history != nil {
		if err := p.saveHistory(ctx, rec); err != nil {
			return res, fmt.Errorf("pipeline: persist history: %w", err)
		}
	}
	return res, nil
}

// History returns all persisted transcription records, newest first.
func (p *Pipeline) History(ctx context.Context) ([]Transcription, error) {
	if p.history == nil {
		return nil, nil
	}
	keys, err := p.history.Keys(ctx, historyKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list history: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := p.history.Get(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load history: %w", err)
	}

	recs := make([]Transcription, 0, len(values))
	for key, raw := range values {
		var rec Transcription
		if err := json.Unmarshal(raw, &rec); err != nil {
			slog.Warn("skipping malformed history record", "key", key, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
	return recs, nil
}

// DeleteTranscription removes a single record from history.
func (p *Pipeline) DeleteTranscription(ctx context.Context, id string) error {
	if p.history == nil {
		return nil
	}
	return p.history.Delete(ctx, historyKeyPrefix+id)
}

func (p *Pipeline) saveHistory(ctx context.Context, rec Transcription) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.history.Set(ctx, map[string][]byte{historyKeyPrefix + rec.ID: raw})
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
