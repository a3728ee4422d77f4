package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Built-in defaults.
const (
	DefaultAnswerTimeout = 30 * time.Second
	DefaultHistoryLimit  = 10
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath string
	CLILLM     string
	CLIDBPath  string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath        ResolvedValue `json:"db_path"`
	LLM           ResolvedValue `json:"llm"`
	GuardPhrases  ResolvedValue `json:"guard_phrases"`
	AnswerTimeout ResolvedValue `json:"answer_timeout"`
	HistoryLimit  ResolvedValue `json:"history_limit"`

	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Model  string `yaml:"model"`
		APIKey string `yaml:"api_key"`
	} `yaml:"llm"`
	Guard struct {
		PhrasesPath string `yaml:"phrases_path"`
	} `yaml:"guard"`
	Answer struct {
		Timeout      string `yaml:"timeout"`
		HistoryLimit string `yaml:"history_limit"`
	} `yaml:"answer"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".canvass", "config.yaml")
}

func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".canvass", "canvass.db")
}

// ResolveConfig layers built-in defaults < config file < environment < CLI
// flags. Every value records where it came from.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}
	path = expandUserPath(path)

	out := ResolvedConfig{
		ConfigPath:    path,
		DBPath:        ResolvedValue{Value: DefaultDBPath(), Source: SourceDefault, From: "built-in default"},
		AnswerTimeout: ResolvedValue{Value: DefaultAnswerTimeout.String(), Source: SourceDefault, From: "built-in default"},
		HistoryLimit:  ResolvedValue{Value: strconv.Itoa(DefaultHistoryLimit), Source: SourceDefault, From: "built-in default"},
		LLMKeys:       map[string]ResolvedValue{},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LLM, cfg.LLM.Model, SourceConfig, path)
		apply(&out.GuardPhrases, cfg.Guard.PhrasesPath, SourceConfig, path)
		apply(&out.AnswerTimeout, cfg.Answer.Timeout, SourceConfig, path)
		apply(&out.HistoryLimit, cfg.Answer.HistoryLimit, SourceConfig, path)

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			provider := providerOf(cfg.LLM.Model)
			if provider == "" {
				provider = "default"
			}
			out.LLMKeys[provider] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "CANVASS_DB")
	applyEnv(&out.LLM, "CANVASS_LLM")
	applyEnv(&out.GuardPhrases, "CANVASS_GUARD_PHRASES")
	applyEnv(&out.AnswerTimeout, "CANVASS_ANSWER_TIMEOUT")
	applyEnv(&out.HistoryLimit, "CANVASS_HISTORY_LIMIT")

	// Later entries win, so GEMINI_API_KEY beats GOOGLE_API_KEY.
	for _, ev := range []struct{ env, provider string }{
		{"GOOGLE_API_KEY", "google"},
		{"GEMINI_API_KEY", "google"},
		{"OPENROUTER_API_KEY", "openrouter"},
	} {
		if v := strings.TrimSpace(os.Getenv(ev.env)); v != "" {
			out.LLMKeys[ev.provider] = ResolvedValue{Value: v, Source: SourceEnv, From: ev.env}
		}
	}

	apply(&out.LLM, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")

	if out.DBPath.Value != "" && out.DBPath.Value != ":memory:" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.GuardPhrases.Value != "" {
		out.GuardPhrases.Value = expandUserPath(out.GuardPhrases.Value)
	}

	if _, err := out.Timeout(); err != nil {
		return out, err
	}
	if _, err := out.History(); err != nil {
		return out, err
	}
	return out, nil
}

// Timeout parses AnswerTimeout. A bare number is read as seconds.
func (r ResolvedConfig) Timeout() (time.Duration, error) {
	raw := strings.TrimSpace(r.AnswerTimeout.Value)
	if raw == "" {
		return DefaultAnswerTimeout, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		raw = strconv.Itoa(secs) + "s"
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid answer timeout %q (from %s): expected a positive duration such as 30s", r.AnswerTimeout.Value, r.AnswerTimeout.From)
	}
	return d, nil
}

// History parses HistoryLimit.
func (r ResolvedConfig) History() (int, error) {
	raw := strings.TrimSpace(r.HistoryLimit.Value)
	if raw == "" {
		return DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid history limit %q (from %s): expected a non-negative integer", r.HistoryLimit.Value, r.HistoryLimit.From)
	}
	return n, nil
}

// EffectiveLLM returns the configured provider/model, or fallback when none
// is set. A bare provider name is completed from fallback when they agree.
func (r ResolvedConfig) EffectiveLLM(fallback string) ResolvedValue {
	c := r.LLM
	if v := strings.TrimSpace(c.Value); v != "" {
		if strings.Contains(v, "/") {
			return c
		}
		if fallback != "" && strings.HasPrefix(strings.ToLower(fallback), strings.ToLower(v)+"/") {
			return ResolvedValue{Value: fallback, Source: c.Source, From: c.From}
		}
	}
	if strings.TrimSpace(fallback) != "" {
		return ResolvedValue{Value: fallback, Source: SourceDefault, From: "built-in default"}
	}
	return ResolvedValue{}
}

func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
