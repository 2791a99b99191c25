// Package openai implements llm.Provider directly on the official OpenAI SDK.
// It exists alongside the anyllm adapter for deployments that want the SDK's
// native error types and request options rather than the generic bridge.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/voxnote/voxnote/pkg/provider/llm"
)

// Provider talks to the OpenAI chat completions API with a fixed model.
type Provider struct {
	client oai.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

// Option adds SDK request options at construction time.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at a compatible endpoint, such as a proxy or
// an Azure deployment.
func WithBaseURL(url string) Option {
	return func(ro *[]option.RequestOption) {
		*ro = append(*ro, option.WithBaseURL(url))
	}
}

// WithOrganization sets the OpenAI organization header on every request.
func WithOrganization(org string) Option {
	return func(ro *[]option.RequestOption) {
		*ro = append(*ro, option.WithOrganization(org))
	}
}

// WithTimeout caps each HTTP request at d.
func WithTimeout(d time.Duration) Option {
	return func(ro *[]option.RequestOption) {
		*ro = append(*ro, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// New builds a Provider for the given key and model.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.chatParams(req))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response had no choices")
	}

	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *Provider) chatParams(req llm.CompletionRequest) oai.ChatCompletionNewParams {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, oai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, oai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, oai.UserMessage(m.Content))
		}
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: msgs,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}

// CountTokens estimates roughly four characters per token plus per-message
// overhead, which is close enough for GPT-series context budgeting.
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
	switch {
	case strings.HasPrefix(lower, "gpt-4o"):
		return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}
	case strings.HasPrefix(lower, "gpt-4-turbo"):
		return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
	case strings.HasPrefix(lower, "gpt-4"):
		return llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}
	case strings.HasPrefix(lower, "gpt-3.5-turbo"):
		return llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}
	case strings.HasPrefix(lower, "o1-mini"):
		return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 65_536}
	case strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		return llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}
	default:
		return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
	}
}

// classify wraps API failures with the matching llm sentinel so callers can
// branch with errors.Is. A missing HTTP response means the backend was never
// reached.
func classify(err error) error {
	if llm.IsTimeout(err) {
		return fmt.Errorf("openai: chat completion: %w", err)
	}
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai: chat completion: %w: %w", llm.ErrUnavailable, err)
	}
	if sentinel := llm.ClassifyStatus(apiErr.StatusCode); sentinel != nil {
		return fmt.Errorf("openai: chat completion: %w: %w", sentinel, err)
	}
	return fmt.Errorf("openai: chat completion: %w", err)
}
