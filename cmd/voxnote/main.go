// Command voxnote is the main entry point for the voxnote dictation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voxnote/voxnote/internal/app"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/resilience"
	"github.com/voxnote/voxnote/pkg/provider/llm"
	"github.com/voxnote/voxnote/pkg/provider/llm/anyllm"
	"github.com/voxnote/voxnote/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration (with hot reload) ──────────────────────────────────
	levelVar := new(slog.LevelVar)

	var application atomic.Pointer[app.App]
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if a := application.Load(); a != nil {
			a.ApplyConfig(context.Background(), new)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxnote: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxnote: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := newLogger(cfg.Server.LogFormat, levelVar)
	slog.SetDefault(logger)

	slog.Info("voxnote starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── LLM provider ──────────────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	a, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	application.Store(a)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the configured LLM providers. When fallbacks
// are configured they are strung together in a circuit-breaking failover
// chain.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{}

	primary := cfg.LLM.Primary
	if primary.Name == "" {
		return ps, nil
	}

	p, err := buildLLM(primary)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", primary.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", primary.Name, "model", primary.Model)

	if len(cfg.LLM.Fallbacks) == 0 {
		ps.LLM = p
		return ps, nil
	}

	chain := resilience.NewChain(primary.Name, p)
	for _, entry := range cfg.LLM.Fallbacks {
		fb, err := buildLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback llm provider %q: %w", entry.Name, err)
		}
		chain.Add(entry.Name, fb)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}
	ps.LLM = chain
	return ps, nil
}

// buildLLM constructs a single provider from a config entry. "openai" uses
// the native client; every other name goes through the any-llm backend.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "openai" {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voxnote — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("LLM", providerLabel(cfg.LLM.Primary))
	for _, fb := range cfg.LLM.Fallbacks {
		printRow("  fallback", providerLabel(fb))
	}
	printRow("Storage", string(storageBackend(cfg)))
	printRow("Folders", fmt.Sprintf("%d seeded", len(cfg.Folders)))
	if len(cfg.Vocabulary) > 0 {
		printRow("Vocabulary", fmt.Sprintf("%d terms", len(cfg.Vocabulary)))
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(entry config.ProviderEntry) string {
	if entry.Name == "" {
		return "(not configured)"
	}
	if entry.Model != "" {
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func storageBackend(cfg *config.Config) config.StorageBackend {
	if cfg.Storage.Backend == "" {
		return config.StorageMemory
	}
	return cfg.Storage.Backend
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(format config.LogFormat, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
