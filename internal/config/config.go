package config

import (
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Assistant AssistantConfig
	Chat      ChatConfig
	Speech    SpeechConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type AssistantConfig struct {
	// GeminiAPIKey is the fallback credential. The key stored on the
	// profile record takes precedence when present.
	GeminiAPIKey   string
	Model          string
	RequestTimeout string
}

type ChatConfig struct {
	SessionTTL string
}

type SpeechConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Assistant: AssistantConfig{
			Model:          "gemini-2.0-flash",
			RequestTimeout: "30s",
		},
		Chat: ChatConfig{
			SessionTTL: "30m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.folio.app) and the
// Gemini key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/folio/config.json
// and secrets fall back to a secrets file under $XDG_DATA_HOME/folio.
//
// Environment variables (FOLIO_*) override backend values on all platforms.
// A missing Gemini key is not an error: the assistant runs in keyword
// matching mode until a key is configured.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for the Gemini key if still empty.
	if cfg.Assistant.GeminiAPIKey == "" {
		if key, err := kc.Get("folio", "gemini_api_key"); err == nil && key != "" {
			cfg.Assistant.GeminiAPIKey = key
		}
	}

	return cfg, nil
}

// RequestTimeout parses the assistant request timeout, falling back to 30s.
func (c AssistantConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// TTL parses the chat session TTL, falling back to 30m.
func (c ChatConfig) TTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
