package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CANVASS_DB", "CANVASS_LLM", "CANVASS_GUARD_PHRASES", "CANVASS_ANSWER_TIMEOUT",
		"CANVASS_HISTORY_LIMIT", "OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfgPath := writeConfig(t, `db_path: ~/.canvass/from-config.db
llm:
  model: openrouter/openai/gpt-4o-mini
guard:
  phrases_path: ~/phrases.yaml
answer:
  timeout: 45s
  history_limit: 4
`)

	t.Setenv("CANVASS_DB", "~/from-env.db")
	t.Setenv("CANVASS_LLM", "google/gemini-2.5-flash")
	t.Setenv("CANVASS_HISTORY_LIMIT", "6")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLILLM:     "google/gemini-2.5-pro",
		CLIDBPath:  "~/from-cli.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI || resolved.DBPath.Value != filepath.Join(home, "from-cli.db") {
		t.Fatalf("db path = %+v", resolved.DBPath)
	}
	if resolved.LLM.Source != SourceCLI || resolved.LLM.Value != "google/gemini-2.5-pro" {
		t.Fatalf("llm = %+v", resolved.LLM)
	}
	if resolved.GuardPhrases.Source != SourceConfig || resolved.GuardPhrases.Value != filepath.Join(home, "phrases.yaml") {
		t.Fatalf("guard phrases = %+v", resolved.GuardPhrases)
	}
	if resolved.HistoryLimit.Source != SourceEnv || resolved.HistoryLimit.From != "CANVASS_HISTORY_LIMIT" {
		t.Fatalf("history limit = %+v", resolved.HistoryLimit)
	}

	d, err := resolved.Timeout()
	if err != nil || d != 45*time.Second {
		t.Fatalf("timeout = %v, %v", d, err)
	}
	n, err := resolved.History()
	if err != nil || n != 6 {
		t.Fatalf("history = %d, %v", n, err)
	}
}

func TestResolveConfig_Defaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(home, "missing.yaml")})
	if err != nil {
		t.Fatalf("missing config file should not be an error: %v", err)
	}
	if resolved.DBPath.Source != SourceDefault || resolved.DBPath.Value != filepath.Join(home, ".canvass", "canvass.db") {
		t.Fatalf("db path = %+v", resolved.DBPath)
	}
	if d, _ := resolved.Timeout(); d != DefaultAnswerTimeout {
		t.Fatalf("timeout = %v", d)
	}
	if n, _ := resolved.History(); n != DefaultHistoryLimit {
		t.Fatalf("history = %d", n)
	}
	if m := resolved.EffectiveLLM("google/gemini-2.5-flash"); m.Source != SourceDefault {
		t.Fatalf("expected default llm, got %+v", m)
	}
}

func TestResolveConfig_MemoryDBIsNotExpanded(t *testing.T) {
	clearEnv(t)
	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml"), CLIDBPath: ":memory:"})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if resolved.DBPath.Value != ":memory:" {
		t.Fatalf("db path = %q", resolved.DBPath.Value)
	}
}

func TestResolveConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"bad timeout", "CANVASS_ANSWER_TIMEOUT", "soon"},
		{"negative timeout", "CANVASS_ANSWER_TIMEOUT", "-5s"},
		{"bad history", "CANVASS_HISTORY_LIMIT", "many"},
		{"negative history", "CANVASS_HISTORY_LIMIT", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.val)
			if _, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")}); err == nil {
				t.Fatalf("expected error for %s=%q", tt.env, tt.val)
			}
		})
	}
}

func TestResolveConfig_MalformedYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "llm: [unterminated\n")
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: path}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTimeout_BareSeconds(t *testing.T) {
	r := ResolvedConfig{AnswerTimeout: ResolvedValue{Value: "12"}}
	d, err := r.Timeout()
	if err != nil || d != 12*time.Second {
		t.Fatalf("timeout = %v, %v", d, err)
	}
}

func TestEffectiveLLM_ProviderOnly(t *testing.T) {
	resolved := ResolvedConfig{LLM: ResolvedValue{Value: "google", Source: SourceConfig, From: "cfg"}}

	m := resolved.EffectiveLLM("google/gemini-2.5-flash")
	if m.Value != "google/gemini-2.5-flash" || m.Source != SourceConfig {
		t.Fatalf("unexpected effective model: %+v", m)
	}

	other := ResolvedConfig{LLM: ResolvedValue{Value: "openrouter", Source: SourceConfig}}
	if m := other.EffectiveLLM("google/gemini-2.5-flash"); m.Source != SourceDefault {
		t.Fatalf("mismatched provider should fall back to default, got %+v", m)
	}
}

func TestAPIKeyForProvider_EnvOverridesConfig(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, `llm:
  model: openrouter/openai/gpt-4o-mini
  api_key: config-key
`)
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	k := resolved.APIKeyForProvider("openrouter/some-model")
	if k.Value != "env-key" || k.Source != SourceEnv {
		t.Fatalf("expected env key, got %+v", k)
	}
}

func TestAPIKeyForProvider_GeminiBeatsGoogle(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if k := resolved.APIKeyForProvider("google"); k.Value != "gemini-key" {
		t.Fatalf("expected gemini key, got %+v", k)
	}
}

func TestAPIKeyForProvider_DefaultKey(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, "llm:\n  api_key: shared\n")
	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if k := resolved.APIKeyForProvider("google/gemini-2.5-flash"); k.Value != "shared" {
		t.Fatalf("expected shared default key, got %+v", k)
	}
	if k := resolved.APIKeyForProvider(""); k.Value != "" {
		t.Fatalf("empty provider should have no key, got %+v", k)
	}
}
