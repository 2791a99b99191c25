package enhance_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/voxnote/voxnote/internal/enhance"
	"github.com/voxnote/voxnote/internal/preset"
	"github.com/voxnote/voxnote/internal/storage"
	"github.com/voxnote/voxnote/pkg/provider/llm"
	llmmock "github.com/voxnote/voxnote/pkg/provider/llm/mock"
)

func newPresets(t *testing.T) *preset.Manager {
	t.Helper()
	m := preset.NewManager(storage.NewMemStore())
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

// newService wires a Service with a fresh preset manager, the given mock
// provider, and a configured credential.
func newService(t *testing.T, provider llm.Provider, opts ...enhance.Option) (*enhance.Service, *preset.Manager) {
	t.Helper()
	presets := newPresets(t)
	svc := enhance.New(presets, provider, enhance.StaticCredentials("sk-test"), opts...)
	return svc, presets
}

func TestEnhance_Success(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "  Polished text.  "},
	}
	svc, presets := newService(t, mock)
	if err := presets.SelectPreset(ctx, preset.SystemBasic); err != nil {
		t.Fatalf("SelectPreset: %v", err)
	}

	out := svc.Enhance(ctx, "polish this please", "")
	if !out.Success {
		t.Fatalf("Success = false, reason %q", out.FallbackReason)
	}
	if out.Result != "Polished text." {
		t.Errorf("Result = %q, want trimmed completion", out.Result)
	}
	if out.OriginalText != "polish this please" {
		t.Errorf("OriginalText = %q", out.OriginalText)
	}
	if out.Preset == nil || out.Preset.ID != preset.SystemBasic {
		t.Errorf("Preset = %+v, want the selected preset", out.Preset)
	}

	if len(mock.CompleteCalls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(mock.CompleteCalls))
	}
	req := mock.CompleteCalls[0].Req
	if req.SystemPrompt == "" {
		t.Error("expected a system prompt on the request")
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "polish this please") {
		t.Errorf("rendered prompt does not carry the transcript: %+v", req.Messages)
	}

	// Success updates the preset's usage stats.
	p, _ := presets.Get(preset.SystemBasic)
	if p.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", p.UsageCount)
	}
}

func TestEnhance_ExplicitPresetOverridesSelection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "done"},
	}
	svc, presets := newService(t, mock)
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	out := svc.Enhance(ctx, "some text", preset.SystemEmail)
	if !out.Success {
		t.Fatalf("Success = false, reason %q", out.FallbackReason)
	}
	if out.Preset.ID != preset.SystemEmail {
		t.Errorf("Preset.ID = %q, want the explicit preset", out.Preset.ID)
	}
}

func TestEnhance_NoPresetSelected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock := &llmmock.Provider{}
	svc, _ := newService(t, mock)

	for _, presetID := range []string{"", "no-such-preset"} {
		out := svc.Enhance(ctx, "some text", presetID)
		if out.Success {
			t.Fatalf("presetID %q: expected fallback", presetID)
		}
		if out.FallbackReason != enhance.ReasonNoPreset {
			t.Errorf("presetID %q: reason = %q, want %q", presetID, out.FallbackReason, enhance.ReasonNoPreset)
		}
		if out.Result != "some text" {
			t.Errorf("presetID %q: Result = %q, want original", presetID, out.Result)
		}
	}
	if len(mock.CompleteCalls) != 0 {
		t.Errorf("provider called %d times, want 0", len(mock.CompleteCalls))
	}
}

func TestEnhance_EmptyTranscript(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, presets := newService(t, &llmmock.Provider{})
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	out := svc.Enhance(ctx, "   \n\t ", "")
	if out.Success || out.FallbackReason != enhance.ReasonEmptyTranscript {
		t.Fatalf("got %+v, want empty-transcript fallback", out)
	}
}

func TestEnhance_NoAPIKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	presets := newPresets(t)
	_ = presets.SelectPreset(ctx, preset.SystemBasic)
	svc := enhance.New(presets, &llmmock.Provider{}, enhance.StaticCredentials(""))

	out := svc.Enhance(ctx, "hello there", "")
	if out.Success {
		t.Fatal("expected fallback")
	}
	if out.FallbackReason != enhance.ReasonNoAPIKey {
		t.Errorf("reason = %q, want %q", out.FallbackReason, enhance.ReasonNoAPIKey)
	}
	if out.Result != "hello there" {
		t.Errorf("Result = %q, want original text unchanged", out.Result)
	}
}

func TestEnhance_TruncatesLongInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "short"},
	}
	svc, presets := newService(t, mock)
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	long := strings.Repeat("w", enhance.MaxTranscriptLen+500)
	out := svc.Enhance(ctx, long, "")
	if !out.Success {
		t.Fatalf("Success = false, reason %q", out.FallbackReason)
	}

	sent := mock.CompleteCalls[0].Req.Messages[0].Content
	if strings.Contains(sent, long) {
		t.Error("full input sent to provider, expected truncation")
	}
	if !strings.Contains(sent, strings.Repeat("w", enhance.MaxTranscriptLen)+"...") {
		t.Error("truncated input missing ellipsis")
	}
	// The outcome still references the untruncated original.
	if out.OriginalText != long {
		t.Error("OriginalText was truncated")
	}
}

func TestEnhance_TemplateError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, presets := newService(t, &llmmock.Provider{})

	// Valid at creation time, but {tone} has no binding at render time.
	p, err := presets.CreateCustomPreset(ctx, "Toned", "Rewrite in a {tone} voice: {transcript}")
	if err != nil {
		t.Fatalf("CreateCustomPreset: %v", err)
	}

	out := svc.Enhance(ctx, "some text", p.ID)
	if out.Success || out.FallbackReason != enhance.ReasonTemplateError {
		t.Fatalf("got %+v, want template-error fallback", out)
	}
	if out.Result != "some text" {
		t.Errorf("Result = %q, want original", out.Result)
	}
}

func TestEnhance_ProviderFailureTaxonomy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"auth", fmt.Errorf("openai: %w", llm.ErrAuth), enhance.ReasonAuthFailure},
		{"rate limit", fmt.Errorf("openai: %w", llm.ErrRateLimited), enhance.ReasonRateLimited},
		{"credit", fmt.Errorf("openai: %w", llm.ErrInsufficientCredit), enhance.ReasonInsufficientCredit},
		{"unavailable", fmt.Errorf("openai: %w", llm.ErrUnavailable), enhance.ReasonUnavailable},
		{"timeout", fmt.Errorf("openai: %w", context.DeadlineExceeded), enhance.ReasonTimeout},
		{"unclassified", errors.New("boom"), enhance.ReasonFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			svc, presets := newService(t, &llmmock.Provider{CompleteErr: tc.err})
			_ = presets.SelectPreset(ctx, preset.SystemBasic)

			out := svc.Enhance(ctx, "some text", "")
			if out.Success {
				t.Fatal("expected fallback")
			}
			if out.FallbackReason != tc.reason {
				t.Errorf("reason = %q, want %q", out.FallbackReason, tc.reason)
			}
			if out.Result != "some text" {
				t.Errorf("Result = %q, want original text", out.Result)
			}
		})
	}
}

func TestEnhance_EmptyCompletionFallsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, presets := newService(t, &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "   "},
	})
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	out := svc.Enhance(ctx, "some text", "")
	if out.Success || out.FallbackReason != enhance.ReasonFailed {
		t.Fatalf("got %+v, want failed fallback", out)
	}
	if out.Result != "some text" {
		t.Errorf("Result = %q, want original", out.Result)
	}
}

func TestEnhance_RejectsConcurrentCalls(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})

	mock := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			close(started)
			<-release
			return &llm.CompletionResponse{Content: "slow result"}, nil
		},
	}
	svc, presets := newService(t, mock)
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	first := make(chan enhance.Outcome, 1)
	go func() {
		first <- svc.Enhance(ctx, "first call", "")
	}()

	<-started
	out := svc.Enhance(ctx, "second call", "")
	if out.Success || out.FallbackReason != enhance.ReasonBusy {
		t.Fatalf("got %+v, want busy rejection", out)
	}
	if out.Result != "second call" {
		t.Errorf("Result = %q, want the second caller's own text", out.Result)
	}

	close(release)
	if got := <-first; !got.Success {
		t.Fatalf("first call failed: %+v", got)
	}

	// The flag clears once the in-flight call finishes.
	if svc.Busy() {
		t.Error("Busy() still true after completion")
	}
}

func TestEnhance_TimeoutConfigurable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc, presets := newService(t, mock, enhance.WithTimeout(20*time.Millisecond))
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	out := svc.Enhance(ctx, "some text", "")
	if out.Success || out.FallbackReason != enhance.ReasonTimeout {
		t.Fatalf("got %+v, want timeout fallback", out)
	}
}

func TestEnhance_TruncationKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "short"},
	}
	svc, presets := newService(t, mock)
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	// Multi-byte runes straddle the cut so a byte-offset slice would split one.
	long := strings.Repeat("a", enhance.MaxTranscriptLen-1) + strings.Repeat("é", 10)
	out := svc.Enhance(ctx, long, "")
	if !out.Success {
		t.Fatalf("Success = false, reason %q", out.FallbackReason)
	}

	sent := mock.CompleteCalls[0].Req.Messages[0].Content
	if !utf8.ValidString(sent) {
		t.Error("truncated transcript sent to provider is not valid UTF-8")
	}
}

func TestRetune_AppliesToNextEnhance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var deadline time.Time
	mock := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			deadline, _ = ctx.Deadline()
			return &llm.CompletionResponse{Content: "done"}, nil
		},
	}
	svc, presets := newService(t, mock, enhance.WithTimeout(30*time.Second), enhance.WithTemperature(0.3))
	_ = presets.SelectPreset(ctx, preset.SystemBasic)

	svc.Retune(5*time.Second, 0.9)

	start := time.Now()
	out := svc.Enhance(ctx, "tidy this up", "")
	if !out.Success {
		t.Fatalf("Success = false, reason %q", out.FallbackReason)
	}
	if got := mock.CompleteCalls[0].Req.Temperature; got != 0.9 {
		t.Errorf("Temperature = %v, want retuned 0.9", got)
	}
	if remaining := deadline.Sub(start); remaining > 6*time.Second {
		t.Errorf("deadline %v from start, want the retuned 5s timeout", remaining)
	}

	// Non-positive values leave the current tuning in place.
	svc.Retune(0, 0)
	_ = svc.Enhance(ctx, "tidy again", "")
	if got := mock.CompleteCalls[1].Req.Temperature; got != 0.9 {
		t.Errorf("Temperature after no-op retune = %v, want 0.9", got)
	}
}
