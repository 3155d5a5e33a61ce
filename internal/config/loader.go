package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides, e.g. LECNOTE_VAULT_PATH.
// Nested keys use a double underscore: LECNOTE_LLM__MODEL -> llm.model.
const EnvPrefix = "LECNOTE_"

// Load builds a Config by layering defaults, the YAML file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (DefaultConfig)
//  2. file (YAML) at path
//  3. env (prefix LECNOTE_)
//
// If the file does not exist it is created with the defaults (0600) and
// loading continues; a failure to write it is returned alongside the
// usable config so the caller can decide.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: config path is empty", ErrLoadConfig)
	}

	var saveErr error
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
		// First run: create default config file.
		saveErr = Save(path, DefaultConfig())
	}

	k := koanf.New(".")

	if saveErr == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	// Unmarshal over the defaults so unset keys keep their default value.
	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, saveErr
}

// envKey maps LECNOTE_LLM__RETRY_COUNT to llm.retry_count.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o700)
}
