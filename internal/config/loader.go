package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known LLM provider names. [Validate] warns about
// unrecognised names but does not reject them, so self-hosted or third-party
// OpenAI-compatible endpoints keep working.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral",
	"groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}

	// LLM providers
	validateProviderName("llm.primary", cfg.LLM.Primary.Name)
	for i, fb := range cfg.LLM.Fallbacks {
		prefix := fmt.Sprintf("llm.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		validateProviderName(prefix, fb.Name)
	}
	if cfg.LLM.Primary.Name == "" && len(cfg.LLM.Fallbacks) > 0 {
		errs = append(errs, errors.New("llm.fallbacks is set but llm.primary is not configured"))
	}
	if cfg.LLM.Primary.Name == "" {
		slog.Warn("no LLM provider configured; AI enhancement will fall back to cleaned text")
	}

	// Enhancement
	if cfg.Enhancement.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("enhancement.timeout_seconds %d must not be negative", cfg.Enhancement.TimeoutSeconds))
	}
	if cfg.Enhancement.Temperature < 0 || cfg.Enhancement.Temperature > 2 {
		errs = append(errs, fmt.Errorf("enhancement.temperature %.2f is out of range [0, 2]", cfg.Enhancement.Temperature))
	}

	// Folders: names and activation phrases must be unique (case-insensitive),
	// matching the rules the folder store enforces for API-created folders.
	namesSeen := make(map[string]int, len(cfg.Folders))
	phrasesSeen := make(map[string]int, len(cfg.Folders))
	for i, f := range cfg.Folders {
		prefix := fmt.Sprintf("folders[%d]", i)
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			key := strings.ToLower(strings.TrimSpace(f.Name))
			if prev, ok := namesSeen[key]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of folders[%d]", prefix, f.Name, prev))
			}
			namesSeen[key] = i
		}
		if f.ActivationPhrase != "" {
			key := strings.ToLower(strings.TrimSpace(f.ActivationPhrase))
			if prev, ok := phrasesSeen[key]; ok {
				errs = append(errs, fmt.Errorf("%s.activation_phrase %q is a duplicate of folders[%d]", prefix, f.ActivationPhrase, prev))
			}
			phrasesSeen[key] = i
		}
	}

	// Vocabulary: no blank or duplicate terms (case-insensitive).
	termsSeen := make(map[string]int, len(cfg.Vocabulary))
	for i, term := range cfg.Vocabulary {
		if strings.TrimSpace(term) == "" {
			errs = append(errs, fmt.Errorf("vocabulary[%d] must not be blank", i))
			continue
		}
		key := strings.ToLower(strings.TrimSpace(term))
		if prev, ok := termsSeen[key]; ok {
			errs = append(errs, fmt.Errorf("vocabulary[%d] %q is a duplicate of vocabulary[%d]", i, term, prev))
		}
		termsSeen[key] = i
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
