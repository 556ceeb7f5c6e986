package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "FOLIO_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FOLIO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "assistant.gemini_api_key", typ: kString, env: "FOLIO_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Assistant.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.GeminiAPIKey },
	},
	{
		key: "assistant.model", typ: kString, env: "FOLIO_ASSISTANT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.Model },
	},
	{
		key: "assistant.request_timeout", typ: kString, env: "FOLIO_ASSISTANT_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Assistant.RequestTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.RequestTimeout },
	},
	{
		key: "chat.session_ttl", typ: kString, env: "FOLIO_CHAT_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Chat.SessionTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.SessionTTL },
	},
	{
		key: "speech.enabled", typ: kBool, env: "FOLIO_SPEECH_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Speech.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Speech.Enabled },
	},
	{
		key: "log.level", typ: kString, env: "FOLIO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
