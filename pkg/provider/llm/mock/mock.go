// Package mock is a configurable llm.Provider test double. Tests set the
// response fields up front, run the code under test, then assert on the
// recorded Complete calls:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: "Hello!"},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/voxnote/voxnote/pkg/provider/llm"
)

// CompleteCall is one recorded invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider implements llm.Provider with canned responses. The zero value
// returns zero values and nil errors from every method. Configure the fields
// before use; the recording itself is safe for concurrent calls.
type Provider struct {
	// CompleteResponse and CompleteErr are returned by Complete unless
	// CompleteFunc is set, in which case it runs instead. Calls are recorded
	// either way.
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error
	CompleteFunc     func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// TokenCount is returned by CountTokens.
	TokenCount int

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	mu sync.Mutex

	// CompleteCalls records every Complete invocation in order. Hold no
	// reference across concurrent calls; read it after the code under test
	// returns.
	CompleteCalls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	return p.CompleteResponse, p.CompleteErr
}

// CountTokens implements llm.Provider.
func (p *Provider) CountTokens([]llm.Message) (int, error) {
	return p.TokenCount, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.ModelCapabilities
}
