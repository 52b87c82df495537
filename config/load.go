package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CLAWGATE_"

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg, err := LoadBytes(data)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBytes decodes a YAML document merged over the defaults. Nested maps
// merge key by key, so a file only names what it changes.
func LoadBytes(data []byte) (*Config, error) {
	tree := make(map[string]any)
	if err := yaml.Unmarshal([]byte(defaults), &tree); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if len(data) > 0 {
		var user map[string]any
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
		merge(tree, user)
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				merge(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}
