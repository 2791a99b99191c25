package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxnote/voxnote/internal/resilience"
	"github.com/voxnote/voxnote/pkg/provider/llm"
	llmmock "github.com/voxnote/voxnote/pkg/provider/llm/mock"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker("primary", resilience.WithTripThreshold(3))

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("Allow rejected call %d below the threshold", i)
		}
		b.Failure()
	}
	if b.State() != resilience.BreakerHealthy {
		t.Fatalf("state = %v before the threshold, want healthy", b.State())
	}

	b.Failure()
	if b.State() != resilience.BreakerTripped {
		t.Fatalf("state = %v after threshold failures, want tripped", b.State())
	}
	if b.Allow() {
		t.Error("Allow admitted a call while tripped")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker("primary", resilience.WithTripThreshold(2))

	b.Failure()
	b.Success()
	b.Failure()

	if b.State() != resilience.BreakerHealthy {
		t.Errorf("state = %v, want healthy after an interleaved success", b.State())
	}
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker("primary",
		resilience.WithTripThreshold(1),
		resilience.WithCooldown(10*time.Millisecond),
	)

	b.Failure()
	if b.Allow() {
		t.Fatal("Allow admitted a call during the cooldown")
	}

	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("Allow rejected the probe after the cooldown")
	}
	// Only one probe may be in flight.
	if b.Allow() {
		t.Error("Allow admitted a second concurrent probe")
	}

	b.Success()
	if b.State() != resilience.BreakerHealthy {
		t.Errorf("state = %v after successful probe, want healthy", b.State())
	}
	if !b.Allow() {
		t.Error("Allow rejected a call after recovery")
	}
}

func TestBreaker_FailedProbeRestartsCooldown(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker("primary",
		resilience.WithTripThreshold(1),
		resilience.WithCooldown(50*time.Millisecond),
	)

	b.Failure()
	time.Sleep(60 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("Allow rejected the probe after the cooldown")
	}
	b.Failure()

	if b.Allow() {
		t.Error("Allow admitted a call right after a failed probe")
	}
}

func TestChain_PrimaryServes(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from primary"},
	}
	fallback := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from fallback"},
	}

	c := resilience.NewChain("openai", primary)
	c.Add("ollama", fallback)

	resp, err := c.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from primary" {
		t.Errorf("Content = %q, want the primary's response", resp.Content)
	}
	if len(fallback.CompleteCalls) != 0 {
		t.Error("fallback was called although the primary succeeded")
	}
}

func TestChain_FailsOverToFallback(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: llm.ErrUnavailable}
	fallback := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from fallback"},
	}

	c := resilience.NewChain("openai", primary)
	c.Add("ollama", fallback)

	resp, err := c.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from fallback" {
		t.Errorf("Content = %q, want the fallback's response", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.CompleteCalls))
	}
}

func TestChain_ExhaustionPreservesClassification(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: llm.ErrUnavailable}
	fallback := &llmmock.Provider{CompleteErr: llm.ErrRateLimited}

	c := resilience.NewChain("openai", primary)
	c.Add("ollama", fallback)

	_, err := c.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, resilience.ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Errorf("error = %v, want the last backend's sentinel preserved", err)
	}
}

func TestChain_SkipsSidelinedBackend(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: llm.ErrUnavailable}
	fallback := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "steady"},
	}

	c := resilience.NewChain("openai", primary,
		resilience.WithTripThreshold(2),
		resilience.WithCooldown(time.Hour),
	)
	c.Add("ollama", fallback)

	ctx := context.Background()
	req := llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "hi"}}}

	for i := 0; i < 3; i++ {
		if _, err := c.Complete(ctx, req); err != nil {
			t.Fatalf("Complete %d: %v", i, err)
		}
	}

	// Two failures trip the primary; the third request must not touch it.
	if got := len(primary.CompleteCalls); got != 2 {
		t.Errorf("primary called %d times, want 2 (sidelined after trip)", got)
	}
	if got := len(fallback.CompleteCalls); got != 3 {
		t.Errorf("fallback called %d times, want 3", got)
	}
}

func TestChain_CapabilitiesFromPrimary(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128000, MaxOutputTokens: 4096},
	}

	c := resilience.NewChain("openai", primary)

	if got := c.Capabilities().ContextWindow; got != 128000 {
		t.Errorf("ContextWindow = %d, want the primary's value", got)
	}
}
