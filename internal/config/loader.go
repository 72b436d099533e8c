package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering, from low to high precedence:
//  1. struct defaults
//  2. the YAML file named by TCG_CONFIG, if set
//  3. TCG_ prefixed env vars (TCG_NAVER__CLIENT_ID -> naver.client_id)
//  4. unprefixed legacy vars (DATABASE_URL, PORT, NAVER_CLIENT_ID, ...)
func Load() (*Config, error) {
	cfg := New()

	k := koanf.New(".")
	if path := os.Getenv("TCG_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("TCG_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "TCG_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyLegacyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
