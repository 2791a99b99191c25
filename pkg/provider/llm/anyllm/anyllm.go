// Package anyllm adapts github.com/mozilla-ai/any-llm-go to the llm.Provider
// interface, giving Voxnote a single constructor for every hosted or local
// backend the library speaks: OpenAI, Anthropic, Gemini, Ollama, DeepSeek,
// Mistral, Groq, llama.cpp, and llamafile.
package anyllm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/voxnote/voxnote/pkg/provider/llm"
)

// factories maps a backend name to its any-llm-go constructor. Names are the
// same identifiers accepted in the llm.backends config section.
var factories = map[string]func(...anyllmlib.Option) (anyllmlib.Provider, error){
	"openai":    wrap(anyllmoai.New),
	"anthropic": wrap(anthropic.New),
	"gemini":    wrap(gemini.New),
	"ollama":    wrap(ollama.New),
	"deepseek":  wrap(deepseek.New),
	"mistral":   wrap(mistral.New),
	"groq":      wrap(groq.New),
	"llamacpp":  wrap(llamacpp.New),
	"llamafile": wrap(llamafile.New),
}

// wrap lifts a concrete constructor to the anyllmlib.Provider interface;
// function types are not covariant in Go, so the adaptation must be explicit.
func wrap[P anyllmlib.Provider](ctor func(...anyllmlib.Option) (P, error)) func(...anyllmlib.Option) (anyllmlib.Provider, error) {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return ctor(opts...)
	}
}

// Supported returns the accepted backend names, sorted.
func Supported() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider is an [llm.Provider] over one any-llm-go backend and a fixed model.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New builds a Provider for the named backend. Credentials come from opts
// (anyllmlib.WithAPIKey, anyllmlib.WithBaseURL) or, when absent, from the
// backend's usual environment variable such as OPENAI_API_KEY.
func New(name, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	factory, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unknown backend %q, supported: %s",
			name, strings.Join(Supported(), ", "))
	}
	backend, err := factory(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: init %q backend: %w", name, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.params(req))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: response had no choices")
	}

	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

func (p *Provider) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: msgs}
	if req.Temperature != 0 {
		params.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = &req.MaxTokens
	}
	return params
}

// CountTokens estimates roughly four characters per token plus a fixed
// per-message overhead. Good enough for context-window budgeting; a real
// tokenizer would be per-model.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	lower := strings.ToLower(p.model)
	for _, fam := range modelFamilies {
		if strings.Contains(lower, fam.match) {
			return fam.caps
		}
	}
	// Unknown model: assume a modern mid-size context.
	return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
}

// modelFamilies is checked in order, so more specific prefixes come first.
var modelFamilies = []struct {
	match string
	caps  llm.ModelCapabilities
}{
	{"gpt-4o", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{"gpt-4-turbo", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}},
	{"gpt-4", llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{"gpt-3.5-turbo", llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{"o1-mini", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 65_536}},
	{"o1", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{"o3", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{"claude-3-opus", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 4_096}},
	{"claude", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}},
	{"gemini-1.5-pro", llm.ModelCapabilities{ContextWindow: 2_097_152, MaxOutputTokens: 8_192}},
	{"gemini", llm.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
}

// classify maps a backend failure onto the llm sentinel errors. any-llm-go
// returns opaque errors with the upstream HTTP status embedded in the text,
// so matching is on message content.
func classify(err error) error {
	if llm.IsTimeout(err) {
		return fmt.Errorf("anyllm: completion: %w", err)
	}

	msg := strings.ToLower(err.Error())
	sentinel := llm.ErrUnavailable
	switch {
	case hasAny(msg, "401", "403", "unauthorized", "invalid api key"):
		sentinel = llm.ErrAuth
	case hasAny(msg, "402", "insufficient", "quota"):
		sentinel = llm.ErrInsufficientCredit
	case hasAny(msg, "429", "rate limit"):
		sentinel = llm.ErrRateLimited
	}
	return fmt.Errorf("anyllm: completion: %w: %w", sentinel, err)
}

func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
