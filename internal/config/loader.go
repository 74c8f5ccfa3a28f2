package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CALNOTES_"

// Load builds a Config by layering, from lowest to highest precedence:
//  1. defaults (New)
//  2. the plain environment variables used before CALNOTES_ existed
//     (GOOGLE_CLIENT_ID, ICLOUD_USERNAME, PRIMARY_TIMEZONE, ...)
//  3. the YAML file at path, or at CALNOTES_CONFIG when path is empty
//  4. env (prefix CALNOTES_, "__" separates nested keys:
//     CALNOTES_STORAGE__KIND -> storage.kind)
//
// The result is validated.
func Load(_ context.Context, path string) (*Config, error) {
	base := New()
	applyLegacyEnv(base)

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Empty variables are ignored so that VAR= does not erase a default.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		key = strings.TrimPrefix(key, envPrefix)
		key = strings.ToLower(key)
		return strings.ReplaceAll(key, "__", "."), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyLegacyEnv(c *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.LogLevel, "LOG_LEVEL")
	set(&c.Timezone, "PRIMARY_TIMEZONE")
	set(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.CalDAV.Username, "ICLOUD_USERNAME")
	set(&c.CalDAV.Password, "ICLOUD_APP_SPECIFIC_PASSWORD")
	if v := os.Getenv("GOOGLE_CALENDAR_IDS"); v != "" {
		c.Calendars = []string{v}
	}
}
