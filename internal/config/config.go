// Package config loads process configuration from an optional YAML file and
// STUDY_ environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mukti-ai/studycore/internal/domain"
)

// DefaultPath is read when no path is given.
const DefaultPath = "studycore.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Settings  SettingsConfig  `koanf:"settings"`
	Providers ProvidersConfig `koanf:"providers"`
	Tools     ToolsConfig     `koanf:"tools"`
	Usage     UsageConfig     `koanf:"usage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int            `koanf:"port"`
	RequestTimeout time.Duration  `koanf:"request_timeout"`
	APIKeys        []APIKeyConfig `koanf:"api_keys"`
}

// APIKeyConfig is a client key accepted by the HTTP server. Only the
// SHA-256 hash is configured.
type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// SettingsConfig seeds the user settings. When File is set it is loaded at
// startup and reloaded on change.
type SettingsConfig struct {
	File     string          `koanf:"file"`
	Defaults domain.Settings `koanf:"defaults"`
}

type ProvidersConfig struct {
	Gemini     ProviderConfig `koanf:"gemini"`
	Groq       ProviderConfig `koanf:"groq"`
	OpenRouter ProviderConfig `koanf:"openrouter"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type ToolsConfig struct {
	// ProxyURL fetches pages through a CORS proxy; "direct" fetches them
	// directly with private addresses blocked.
	ProxyURL string        `koanf:"proxy_url"`
	Timeout  time.Duration `koanf:"timeout"`
}

type UsageConfig struct {
	Threshold int64 `koanf:"threshold"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// Keys returns the configured provider keys by kind.
func (p ProvidersConfig) Keys() map[domain.ProviderKind]string {
	return map[domain.ProviderKind]string{
		domain.ProviderGemini:     p.Gemini.APIKey,
		domain.ProviderGroq:       p.Groq.APIKey,
		domain.ProviderOpenRouter: p.OpenRouter.APIKey,
	}
}

// BaseURLs returns the configured endpoint overrides by kind.
func (p ProvidersConfig) BaseURLs() map[domain.ProviderKind]string {
	return map[domain.ProviderKind]string{
		domain.ProviderGemini:     p.Gemini.BaseURL,
		domain.ProviderGroq:       p.Groq.BaseURL,
		domain.ProviderOpenRouter: p.OpenRouter.BaseURL,
	}
}

// providerKeyEnv are the conventional variables read when no key is
// configured under providers.
var providerKeyEnv = map[string]string{
	"GEMINI_API_KEY":     "providers.gemini.api_key",
	"GROQ_API_KEY":       "providers.groq.api_key",
	"OPENROUTER_API_KEY": "providers.openrouter.api_key",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then applies STUDY_ variables,
// with "__" separating levels: STUDY_SERVER__PORT sets server.port.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("STUDY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "STUDY_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	fallback := koanf.New(".")
	if err := fallback.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		return providerKeyEnv[key], value
	}), nil); err != nil {
		return nil, err
	}
	for _, key := range fallback.Keys() {
		if !k.Exists(key) {
			k.Set(key, fallback.String(key))
		}
	}

	setDefault(k, "server.port", 8080)
	setDefault(k, "server.request_timeout", "60s")
	setDefault(k, "storage.type", "memory")
	setDefault(k, "storage.sqlite.path", "studycore.db")
	setDefault(k, "tools.timeout", "15s")
	setDefault(k, "telemetry.service_name", "studycore")

	cfg := Config{Settings: SettingsConfig{Defaults: domain.DefaultSettings()}}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Providers.Gemini.APIKey = substituteEnvVars(cfg.Providers.Gemini.APIKey)
	cfg.Providers.Groq.APIKey = substituteEnvVars(cfg.Providers.Groq.APIKey)
	cfg.Providers.OpenRouter.APIKey = substituteEnvVars(cfg.Providers.OpenRouter.APIKey)
	for i := range cfg.Server.APIKeys {
		cfg.Server.APIKeys[i].KeyHash = substituteEnvVars(cfg.Server.APIKeys[i].KeyHash)
	}

	return &cfg, nil
}

func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
