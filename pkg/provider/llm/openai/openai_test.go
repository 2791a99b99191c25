package openai

import (
	"errors"
	"testing"

	"github.com/voxnote/voxnote/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
	); err != nil {
		t.Errorf("New with options: %v", err)
	}
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		model       string
		wantContext int
	}{
		{"gpt-4o-mini", 128_000},
		{"gpt-4", 8_192},
		{"o1-mini", 128_000},
		{"my-custom-model", 128_000},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			caps := (&Provider{model: tc.model}).Capabilities()
			if caps.ContextWindow != tc.wantContext {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tc.wantContext)
			}
			if caps.MaxOutputTokens <= 0 {
				t.Error("expected positive MaxOutputTokens")
			}
		})
	}
}

func TestCountTokens_ScalesWithContent(t *testing.T) {
	p := &Provider{model: "gpt-4o"}

	short, err := p.CountTokens([]llm.Message{{Role: "user", Content: "Hello"}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	long, err := p.CountTokens([]llm.Message{{Role: "user", Content: "Hello there, this transcript runs quite a bit longer."}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if short <= 0 || long <= short {
		t.Errorf("counts = %d, %d; want 0 < short < long", short, long)
	}
}

func TestChatParams_SystemPromptLeads(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.chatParams(llm.CompletionRequest{
		SystemPrompt: "Rewrite the transcript.",
		Messages:     []llm.Message{{Role: "user", Content: "hello"}},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message should be the system prompt")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("second message should be the user turn")
	}
}

func TestClassify_TransportFailure(t *testing.T) {
	err := classify(errors.New("dial tcp: connection refused"))
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
