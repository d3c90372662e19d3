package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// ConfigPathEnv names the environment variable that points at the YAML file.
	ConfigPathEnv = "SMARTFAQ_CONFIG"

	// legacyAPIKeyEnv is the bare API_KEY variable accepted for the LLM key.
	legacyAPIKeyEnv = "API_KEY"
)

// sections lists the top-level keys that environment variables may target.
// Anything else in the environment is ignored.
var sections = map[string]bool{
	"server":     true,
	"embeddings": true,
	"index":      true,
	"chunker":    true,
	"retrieval":  true,
	"llm":        true,
	"history":    true,
	"ingest":     true,
	"logging":    true,
	"telemetry":  true,
}

// LoadWithFile loads configuration from a YAML file, then overrides it with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (LLM_API_URL, SERVER_PORT, ...)
//  2. YAML config file
//  3. Defaults
//
// An empty configPath falls back to $SMARTFAQ_CONFIG, then to
// ~/.config/smartfaq/config.yaml. A missing file is not an error.
//
// Environment variables map to keys by splitting on the first underscore:
//
//	SERVER_PORT      -> server.port
//	LLM_API_URL      -> llm.api_url
//	LLM_MODEL        -> llm.model
//	RETRIEVAL_TOP_K  -> retrieval.top_k
//
// API_KEY is accepted as the LLM key when LLM_API_KEY is not set.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = os.Getenv(ConfigPathEnv)
	}
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "smartfaq", "config.yaml")
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !cfg.LLM.APIKey.IsSet() {
		cfg.LLM.APIKey = Secret(os.Getenv(legacyAPIKeyEnv))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name. Variables outside
// the known sections return "" so koanf skips them.
func envKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	if !sections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile returns the file content, or nil when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate the already-opened descriptor to avoid a stat/open race.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties rejects directories, oversized files and,
// outside Windows, world-writable files.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (world-writable)", info.Mode().Perm())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
