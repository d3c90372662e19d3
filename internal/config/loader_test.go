package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the variables the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"API_KEY", "LLM_API_KEY", "LLM_API_URL", "LLM_MODEL", "SERVER_PORT",
		"RETRIEVAL_TOP_K", "EMBEDDINGS_PROVIDER", "EMBEDDINGS_MODEL", "EMBEDDINGS_DIMENSION",
		"INDEX_BACKEND", ConfigPathEnv,
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultLLMURL, cfg.LLM.APIURL)
	assert.Equal(t, DefaultLLMModel, cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.BackoffUnit.Duration())
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 50, cfg.Chunker.MinLength)
	assert.Zero(t, cfg.Embeddings.Dimension, "dimension is derived from the model unless set")
	assert.Equal(t, "flat", cfg.Index.Backend)
	assert.Equal(t, 50, cfg.History.Capacity)
	assert.False(t, cfg.LLM.APIKey.IsSet())
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `server:
  port: 8088
  shutdown_timeout: 3s
embeddings:
  provider: hashing
  dimension: 64
index:
  backend: chromem
llm:
  model: test/model
  backoff_unit: 250ms
retrieval:
  top_k: 5
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "hashing", cfg.Embeddings.Provider)
	assert.Equal(t, 64, cfg.Embeddings.Dimension)
	assert.Equal(t, "chromem", cfg.Index.Backend)
	assert.Equal(t, "test/model", cfg.LLM.Model)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.BackoffUnit.Duration())
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultLLMURL, cfg.LLM.APIURL)
}

func TestLoadWithFile_ModelSwitchKeepsDimensionUnset(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDINGS_PROVIDER", "openai")
	t.Setenv("EMBEDDINGS_MODEL", "text-embedding-3-small")

	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Zero(t, cfg.Embeddings.Dimension)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "llm:\n  model: from/file\n")

	t.Setenv("LLM_MODEL", "from/env")
	t.Setenv("LLM_API_URL", "http://localhost:9999/v1/chat/completions")
	t.Setenv("SERVER_PORT", "7001")
	t.Setenv("RETRIEVAL_TOP_K", "7")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from/env", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:9999/v1/chat/completions", cfg.LLM.APIURL)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
}

func TestLoadWithFile_APIKeyFallback(t *testing.T) {
	t.Run("legacy API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "sk-legacy")

		cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "sk-legacy", cfg.LLM.APIKey.Value())
	})

	t.Run("LLM_API_KEY wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "sk-legacy")
		t.Setenv("LLM_API_KEY", "sk-explicit")

		cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "sk-explicit", cfg.LLM.APIKey.Value())
	})
}

func TestLoadWithFile_ConfigPathEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "retrieval:\n  top_k: 9\n")
	t.Setenv(ConfigPathEnv, path)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
}

func TestLoadWithFile_Rejections(t *testing.T) {
	t.Run("invalid yaml", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadWithFile(writeConfig(t, "server: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadWithFile(writeConfig(t, "index:\n  backend: faiss\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index.backend")
	})

	t.Run("too large", func(t *testing.T) {
		clearEnv(t)
		big := make([]byte, maxConfigFileSize+1)
		for i := range big {
			big[i] = '#'
		}
		_, err := LoadWithFile(writeConfig(t, string(big)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("world writable", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission model differs on windows")
		}
		clearEnv(t)
		path := writeConfig(t, "server:\n  port: 8000\n")
		require.NoError(t, os.Chmod(path, 0o666))
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "world-writable")
	})
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"LLM_API_URL", "llm.api_url"},
		{"LLM_MODEL", "llm.model"},
		{"RETRIEVAL_TOP_K", "retrieval.top_k"},
		{"API_KEY", ""},
		{"HOME", ""},
		{"PATH", ""},
		{"LLM_", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.in))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "word2vec" }, "embeddings.provider"},
		{"zero dimension derives from model", func(c *Config) { c.Embeddings.Dimension = 0 }, ""},
		{"negative dimension", func(c *Config) { c.Embeddings.Dimension = -1 }, "embeddings.dimension"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "llm.max_retries"},
		{"bad llm url", func(c *Config) { c.LLM.APIURL = "ftp://x" }, "llm.api_url"},
		{"empty llm url", func(c *Config) { c.LLM.APIURL = "" }, "llm.api_url"},
		{"empty model", func(c *Config) { c.LLM.Model = " " }, "llm.model"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"telemetry protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, "telemetry.protocol"},
		{"qdrant backend", func(c *Config) { c.Index.Backend = "qdrant" }, ""},
		{"qdrant port", func(c *Config) {
			c.Index.Backend = "qdrant"
			c.Index.Qdrant.Port = 0
		}, "index.qdrant.port"},
		{"zero upload limit", func(c *Config) { c.Ingest.MaxUploadBytes = 0 }, "ingest.max_upload_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverLeaks(t *testing.T) {
	s := Secret("sk-very-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "sk-very-secret")
	assert.Equal(t, "sk-very-secret", s.Value())

	out, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "sk-very-secret")

	assert.Equal(t, "", Secret("").String())
}

func TestDuration_RejectsNegative(t *testing.T) {
	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())
}
