package health

import (
	"context"
	"fmt"

	"github.com/voxnote/voxnote/internal/storage"
	"github.com/voxnote/voxnote/pkg/provider/llm"
)

// Pinger is implemented by stores that can probe their backing connection,
// such as the PostgreSQL store. [StorageCheck] uses it when available and
// falls back to a cheap key scan otherwise.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageCheck probes the persistence layer.
func StorageCheck(kv storage.KV) Check {
	return func(ctx context.Context) error {
		if p, ok := kv.(Pinger); ok {
			return p.Ping(ctx)
		}
		_, err := kv.Keys(ctx, "health:")
		return err
	}
}

// ProviderCheck verifies an LLM provider is configured and reports sane
// capabilities. It never issues a completion; readiness should not spend
// tokens or depend on the remote API being momentarily reachable.
func ProviderCheck(p llm.Provider) Check {
	return func(_ context.Context) error {
		if p == nil {
			return fmt.Errorf("no provider configured")
		}
		if caps := p.Capabilities(); caps.ContextWindow <= 0 {
			return fmt.Errorf("provider reports no context window")
		}
		return nil
	}
}
