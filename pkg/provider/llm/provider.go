// Package llm defines the Provider interface over Large Language Model
// backends. A provider wraps one remote or local model API (OpenAI GPT-4o,
// Anthropic Claude, a local Ollama instance) so the enhancement service can
// rewrite transcripts without knowing which SDK is underneath.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message is one turn in a model conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	Content string
}

// Usage carries the backend's token accounting. Counts are in the model's
// own token unit, so the same text can cost differently across providers.
type Usage struct {
	// PromptTokens covers the input messages and system prompt; this is the
	// billable input size.
	PromptTokens int

	// CompletionTokens is the size of the generated reply.
	CompletionTokens int

	// TotalTokens is the sum. Some backends report it directly.
	TotalTokens int
}

// CompletionRequest carries everything one completion needs. Messages must
// be non-empty.
type CompletionRequest struct {
	// Messages is the conversation in order. Transcript enhancement sends a
	// single user message holding the rendered prompt.
	Messages []Message

	// Temperature in [0.0, 2.0]; lower gives more deterministic rewrites
	// and 0.0 usually means greedy decoding.
	Temperature float64

	// MaxTokens caps the reply length. Zero leaves the backend default,
	// normally the model's MaxOutputTokens.
	MaxTokens int

	// SystemPrompt is injected ahead of Messages. Backends without a native
	// system slot prepend it as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is the model's full reply plus its token accounting.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// ModelCapabilities are the static limits of one model.
type ModelCapabilities struct {
	// ContextWindow is the combined input+output token budget.
	ContextWindow int

	// MaxOutputTokens bounds a single completion.
	MaxOutputTokens int
}

// Provider abstracts one LLM backend. Implementations are concurrency-safe
// and honour context cancellation promptly.
type Provider interface {
	// Complete sends req and waits for the whole reply. Transport and API
	// failures come back wrapped in this package's sentinel errors (ErrAuth,
	// ErrRateLimited, ErrInsufficientCredit, ErrUnavailable) so callers can
	// branch with errors.Is.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how much of the context window the messages
	// would consume. Local approximations are fine; they should err high
	// rather than undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities reports the model's limits, constant for the lifetime of
	// the Provider.
	Capabilities() ModelCapabilities
}
