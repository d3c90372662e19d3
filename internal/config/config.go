// Package config provides configuration loading for the Smart FAQ service.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. See LoadWithFile for the env mapping.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete service configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Index      IndexConfig      `koanf:"index"`
	Chunker    ChunkerConfig    `koanf:"chunker"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	LLM        LLMConfig        `koanf:"llm"`
	History    HistoryConfig    `koanf:"history"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of "fastembed", "tei", "openai" or "hashing".
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	// Dimension overrides the model's output size. 0 derives it from Model.
	Dimension int    `koanf:"dimension"`
	BaseURL   string `koanf:"base_url"`
	CacheDir  string `koanf:"cache_dir"`
	APIKey    Secret `koanf:"api_key"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	// Backend is "flat" (brute-force squared L2), "chromem" or "qdrant".
	Backend string       `koanf:"backend"`
	Qdrant  QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig addresses the Qdrant gRPC API used by the qdrant backend.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
}

// ChunkerConfig controls paragraph chunking.
type ChunkerConfig struct {
	MinLength int `koanf:"min_length"`
}

// RetrievalConfig controls similarity search.
type RetrievalConfig struct {
	TopK int `koanf:"top_k"`
}

// LLMConfig configures the chat-completions endpoint used for answers.
type LLMConfig struct {
	APIURL            string   `koanf:"api_url"`
	APIKey            Secret   `koanf:"api_key"`
	Model             string   `koanf:"model"`
	Timeout           Duration `koanf:"timeout"`
	MaxRetries        int      `koanf:"max_retries"`
	BackoffUnit       Duration `koanf:"backoff_unit"`
	RequestsPerMinute int      `koanf:"requests_per_minute"`
}

// HistoryConfig bounds the in-memory chat history.
type HistoryConfig struct {
	Capacity     int `koanf:"capacity"`
	DefaultLimit int `koanf:"default_limit"`
}

// IngestConfig bounds document uploads.
type IngestConfig struct {
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// LoggingConfig is the file/env facing subset of logging options.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the file/env facing subset of OpenTelemetry options.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
	// Logs also ships log records to the collector.
	Logs        bool    `koanf:"logs"`
}

// Default values.
const (
	DefaultPort           = 5000
	DefaultLLMURL         = "https://openrouter.ai/api/v1/chat/completions"
	DefaultLLMModel       = "google/gemini-2.0-flash-exp:free"
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultServiceName    = "smartfaq"
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            DefaultPort,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    DefaultEmbeddingModel,
			BaseURL:  "http://localhost:8080",
		},
		Index: IndexConfig{
			Backend: "flat",
			Qdrant:  QdrantConfig{Host: "localhost", Port: 6334, Collection: "smartfaq_chunks"},
		},
		Chunker:   ChunkerConfig{MinLength: 50},
		Retrieval: RetrievalConfig{TopK: 3},
		LLM: LLMConfig{
			APIURL:      DefaultLLMURL,
			Model:       DefaultLLMModel,
			Timeout:     Duration(60 * time.Second),
			MaxRetries:  3,
			BackoffUnit: Duration(time.Second),
		},
		History: HistoryConfig{Capacity: 50, DefaultLimit: 10},
		Ingest:  IngestConfig{MaxUploadBytes: 20 << 20},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: DefaultServiceName,
			SampleRate:  1.0,
			Logs:        true,
		},
	}
}

var (
	validProviders = map[string]bool{"fastembed": true, "tei": true, "openai": true, "hashing": true}
	validBackends  = map[string]bool{"flat": true, "chromem": true, "qdrant": true}
	validFormats   = map[string]bool{"json": true, "console": true}
	validProtocols = map[string]bool{"grpc": true, "http/protobuf": true}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if !validProviders[c.Embeddings.Provider] {
		errs = append(errs, fmt.Errorf("embeddings.provider %q is not supported", c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embeddings.dimension must not be negative, got %d", c.Embeddings.Dimension))
	}
	if !validBackends[c.Index.Backend] {
		errs = append(errs, fmt.Errorf("index.backend %q is not supported", c.Index.Backend))
	}
	if c.Index.Backend == "qdrant" && (c.Index.Qdrant.Port < 1 || c.Index.Qdrant.Port > 65535) {
		errs = append(errs, fmt.Errorf("index.qdrant.port must be between 1 and 65535, got %d", c.Index.Qdrant.Port))
	}
	if c.Chunker.MinLength < 0 {
		errs = append(errs, fmt.Errorf("chunker.min_length cannot be negative, got %d", c.Chunker.MinLength))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}

	if err := validateURL(c.LLM.APIURL); err != nil {
		errs = append(errs, fmt.Errorf("llm.api_url: %w", err))
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.max_retries cannot be negative, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_minute cannot be negative, got %d", c.LLM.RequestsPerMinute))
	}

	if c.History.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("history.capacity must be positive, got %d", c.History.Capacity))
	}
	if c.History.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("history.default_limit must be positive, got %d", c.History.DefaultLimit))
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("ingest.max_upload_bytes must be positive, got %d", c.Ingest.MaxUploadBytes))
	}

	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if !validProtocols[c.Telemetry.Protocol] {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol))
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate))
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
