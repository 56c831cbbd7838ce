package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"sarvam", "deepgram", "whisper"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "mistral", "groq"},
	"tts": {"sarvam", "elevenlabs"},
}

// Defaults applied by [Validate] when the corresponding field is zero.
const (
	DefaultListenAddr    = ":8080"
	DefaultSearchLimit   = 3
	DefaultMinScore      = 10.0
	DefaultTTLSeconds    = 3600
	DefaultSweepSeconds  = 300
	DefaultSessionsStore = BackendMemory
)

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

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for unset fields. It returns a joined error listing all validation
// failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.PublicURL != "" {
		u, err := url.Parse(cfg.Server.PublicURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("server.public_url %q is not a valid http(s) URL", cfg.Server.PublicURL))
		}
	}

	// Provider name validation, warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.STT.Name == "" || cfg.Providers.LLM.Name == "" || cfg.Providers.TTS.Name == "" {
		slog.Warn("not all pipeline providers are configured; media streams will reject calls",
			"stt", cfg.Providers.STT.Name,
			"llm", cfg.Providers.LLM.Name,
			"tts", cfg.Providers.TTS.Name,
		)
	}

	// Knowledge
	if cfg.Knowledge.Limit < 0 {
		errs = append(errs, fmt.Errorf("knowledge.limit %d must not be negative", cfg.Knowledge.Limit))
	}
	if cfg.Knowledge.Limit == 0 {
		cfg.Knowledge.Limit = DefaultSearchLimit
	}
	if cfg.Knowledge.MinScore < 0 {
		errs = append(errs, fmt.Errorf("knowledge.min_score %.2f must not be negative", cfg.Knowledge.MinScore))
	}
	if cfg.Knowledge.MinScore == 0 {
		cfg.Knowledge.MinScore = DefaultMinScore
	}
	if cfg.Knowledge.Path == "" {
		slog.Warn("knowledge.path is empty; the assistant will answer without a knowledge base")
	}

	// Sessions
	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = DefaultSessionsStore
	}
	if !cfg.Sessions.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("sessions.backend %q is invalid; valid values: memory, redis", cfg.Sessions.Backend))
	}
	if cfg.Sessions.Backend == BackendRedis && cfg.Sessions.RedisURL == "" {
		errs = append(errs, errors.New("sessions.redis_url is required when sessions.backend is redis"))
	}
	if cfg.Sessions.RedisURL != "" && !strings.HasPrefix(cfg.Sessions.RedisURL, "redis://") && !strings.HasPrefix(cfg.Sessions.RedisURL, "rediss://") {
		errs = append(errs, fmt.Errorf("sessions.redis_url %q must start with redis:// or rediss://", cfg.Sessions.RedisURL))
	}
	if cfg.Sessions.TTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("sessions.ttl_seconds %d must not be negative", cfg.Sessions.TTLSeconds))
	}
	if cfg.Sessions.TTLSeconds == 0 {
		cfg.Sessions.TTLSeconds = DefaultTTLSeconds
	}
	if cfg.Sessions.SweepIntervalSeconds == 0 {
		cfg.Sessions.SweepIntervalSeconds = DefaultSweepSeconds
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
