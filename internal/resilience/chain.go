package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/pkg/provider/llm"
)

// ErrExhausted is returned when no backend in a [Chain] produced a response.
// When at least one backend was actually tried, the last backend's error is
// wrapped alongside it, so errors.Is still matches the llm sentinel errors.
var ErrExhausted = errors.New("resilience: every llm backend failed")

type backend struct {
	name     string
	provider llm.Provider
	breaker  *Breaker
}

// Chain is an [llm.Provider] that fails over across configured backends in
// order. Each backend gets its own [Breaker], so a flapping primary is
// skipped without waiting for it to time out on every request.
//
// Safe for concurrent use once construction (New + Add calls) is finished.
type Chain struct {
	backends    []backend
	breakerOpts []BreakerOption
	metrics     *observe.Metrics
}

var _ llm.Provider = (*Chain)(nil)

// NewChain builds a Chain with primary as the preferred backend. The breaker
// options apply to every backend, including ones added later.
func NewChain(name string, primary llm.Provider, opts ...BreakerOption) *Chain {
	c := &Chain{breakerOpts: opts, metrics: observe.DefaultMetrics()}
	c.Add(name, primary)
	return c
}

// Add appends a fallback backend. Backends are tried in insertion order.
func (c *Chain) Add(name string, p llm.Provider) {
	c.backends = append(c.backends, backend{
		name:     name,
		provider: p,
		breaker:  NewBreaker(name, c.breakerOpts...),
	})
}

// Complete sends req to the first backend whose breaker admits the call.
// On failure the next backend is tried; the error of the last attempt is
// preserved in the returned chain.
func (c *Chain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for _, b := range c.backends {
		if !b.breaker.Allow() {
			slog.Debug("skipping sidelined llm backend", "backend", b.name)
			continue
		}
		resp, err := b.provider.Complete(ctx, req)
		if err == nil {
			b.breaker.Success()
			return resp, nil
		}
		b.breaker.Failure()
		c.metrics.RecordProviderError(ctx, b.name, errorKind(err))
		slog.Warn("llm backend failed, trying next", "backend", b.name, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: all backends sidelined", ErrExhausted)
	}
	return nil, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// errorKind buckets a completion error for the provider-error counter.
func errorKind(err error) string {
	switch {
	case errors.Is(err, llm.ErrAuth):
		return "auth"
	case errors.Is(err, llm.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, llm.ErrInsufficientCredit):
		return "insufficient_credit"
	case errors.Is(err, llm.ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

// CountTokens uses the primary backend's estimate; counts are approximate
// and do not justify failover traffic.
func (c *Chain) CountTokens(messages []llm.Message) (int, error) {
	return c.backends[0].provider.CountTokens(messages)
}

// Capabilities reports the primary backend's limits.
func (c *Chain) Capabilities() llm.ModelCapabilities {
	return c.backends[0].provider.Capabilities()
}
