package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("STUDY_SERVER__PORT", "")
		os.Unsetenv("STUDY_SERVER__PORT")
		t.Setenv("GROQ_API_KEY", "")

		cfg, err := Load(missing)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Server.RequestTimeout != time.Minute {
			t.Errorf("Load() request timeout = %v, want 1m", cfg.Server.RequestTimeout)
		}
		if cfg.Storage.Type != "memory" {
			t.Errorf("Load() storage = %q, want memory", cfg.Storage.Type)
		}
		if cfg.Settings.Defaults.TextModel != "gemini:gemini-2.5-flash-lite" {
			t.Errorf("Load() text model = %q", cfg.Settings.Defaults.TextModel)
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("STUDY_SERVER__PORT", "9000")

		cfg, err := Load(missing)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
	})

	t.Run("file with env substitution and key fallback", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "studycore.yaml")
		content := `
server:
  port: 7000
  api_keys:
    - key_hash: ${TEST_KEY_HASH}
      description: phone
storage:
  type: sqlite
  sqlite:
    path: /tmp/study.db
providers:
  gemini:
    api_key: ${TEST_GEMINI}
settings:
  defaults:
    name: Asha
    text_model: groq:llama-3.3-70b-versatile
tools:
  timeout: 5s
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		t.Setenv("TEST_KEY_HASH", "abc123")
		t.Setenv("TEST_GEMINI", "AIza-file")
		t.Setenv("GEMINI_API_KEY", "AIza-env")
		t.Setenv("GROQ_API_KEY", "gsk-env")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 7000 || cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/study.db" {
			t.Errorf("Load() = %+v", cfg)
		}
		if len(cfg.Server.APIKeys) != 1 || cfg.Server.APIKeys[0].KeyHash != "abc123" {
			t.Errorf("APIKeys = %+v", cfg.Server.APIKeys)
		}
		if cfg.Providers.Gemini.APIKey != "AIza-file" {
			t.Errorf("Gemini key = %q, file value must win over GEMINI_API_KEY", cfg.Providers.Gemini.APIKey)
		}
		if cfg.Providers.Groq.APIKey != "gsk-env" {
			t.Errorf("Groq key = %q, want GROQ_API_KEY fallback", cfg.Providers.Groq.APIKey)
		}
		if cfg.Settings.Defaults.Name != "Asha" || cfg.Settings.Defaults.AcademicLevel != "High School" {
			t.Errorf("settings defaults = %+v", cfg.Settings.Defaults)
		}
		if cfg.Tools.Timeout != 5*time.Second {
			t.Errorf("tools timeout = %v", cfg.Tools.Timeout)
		}
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
