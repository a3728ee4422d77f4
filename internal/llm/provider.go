// Package llm is the generative-text boundary for canvass. Answers produced
// here are phrasing only; the guard package decides whether they are kept.
// Providers talk to their REST APIs over net/http.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Finish reasons shared across providers. Providers pass their own values
// through unchanged when they do not map onto one of these.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishSafety = "safety"
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the generated text with its finish reason.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (Completion, error)
	// Name returns a human-readable provider name (e.g., "google/gemini-2.5-flash").
	Name() string
}

// Completion is one generated answer.
type Completion struct {
	Text         string `json:"text"`
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

// Usage is token accounting as reported by the provider.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Role of a prior conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a prior conversation turn sent ahead of the prompt.
type Message struct {
	Role string
	Text string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int       // Max tokens to generate (0 = provider default)
	Temperature float64   // 0.0-2.0 (0 = deterministic)
	Model       string    // Override model for this request (empty = use provider default)
	System      string    // System prompt (optional)
	History     []Message // Prior turns, oldest first
}

// Config holds provider configuration.
type Config struct {
	Provider string // "google", "openrouter"
	Model    string // e.g., "gemini-2.5-flash", "openai/gpt-4o-mini"
	APIKey   string // API key (empty = read from env)
	BaseURL  string // Optional URL override
}

// DefaultFlag is the provider/model used when none is configured.
const DefaultFlag = "google/gemini-2.5-flash"

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "google":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("google provider requires GEMINI_API_KEY or GOOGLE_API_KEY env var")
		}
		return &googleProvider{
			apiKey:  key,
			model:   firstNonEmpty(cfg.Model, "gemini-2.5-flash"),
			baseURL: firstNonEmpty(cfg.BaseURL, "https://generativelanguage.googleapis.com/v1beta"),
		}, nil

	case "openrouter":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENROUTER_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("openrouter provider requires OPENROUTER_API_KEY env var")
		}
		return &openrouterProvider{
			apiKey:  key,
			model:   firstNonEmpty(cfg.Model, "openai/gpt-4o-mini"),
			baseURL: firstNonEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
		}, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: google, openrouter)", cfg.Provider)
	}
}

// ParseLLMFlag parses a --llm flag value into a Config.
// Format: "provider/model" e.g., "google/gemini-2.5-flash", "openrouter/openai/gpt-4o-mini".
func ParseLLMFlag(flag string) (Config, error) {
	if flag == "" {
		flag = DefaultFlag
	}

	parts := strings.SplitN(flag, "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return Config{}, fmt.Errorf("invalid --llm format %q: expected provider/model (e.g., %s)", flag, DefaultFlag)
	}

	provider := strings.ToLower(parts[0])
	switch provider {
	case "google", "openrouter":
		return Config{Provider: provider, Model: parts[1]}, nil
	default:
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: google, openrouter)", provider)
	}
}

// normalizeFinish lower-cases a provider finish reason and maps the common
// spellings onto the shared constants.
func normalizeFinish(raw string) string {
	switch r := strings.ToLower(strings.TrimSpace(raw)); r {
	case "stop", "end_turn", "finish_reason_stop":
		return FinishStop
	case "length", "max_tokens":
		return FinishLength
	case "safety", "content_filter", "recitation", "blocklist", "prohibited_content":
		return FinishSafety
	default:
		return r
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
