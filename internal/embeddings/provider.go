package embeddings

import (
	"fmt"
	"time"
)

// Provider names accepted by NewProvider.
const (
	ProviderFastEmbed = "fastembed"
	ProviderTEI       = "tei"
	ProviderOpenAI    = "openai"
	ProviderHashing   = "hashing"
)

// DefaultDimension is used when neither the config nor the model name
// determines one.
const DefaultDimension = 384

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of fastembed, tei, openai or hashing. Empty means fastembed.
	Provider string
	Model    string
	// Dimension sets the size for models we do not know. For a known model
	// it must match the model's size; hashing accepts any value.
	Dimension int
	// BaseURL is used by tei and openai.
	BaseURL string
	// CacheDir is used by fastembed.
	CacheDir string
	// APIKey is used by openai.
	APIKey       string
	Timeout      time.Duration
	ShowProgress bool
}

func (cfg ProviderConfig) dimension() int {
	if cfg.Dimension > 0 {
		return cfg.Dimension
	}
	if dim, ok := ModelDimension(cfg.Model); ok {
		return dim
	}
	return DefaultDimension
}

// checkDimension rejects an explicit dimension that disagrees with the
// known output size of Model.
func checkDimension(model string, dim int) error {
	known, ok := ModelDimension(model)
	if !ok || dim <= 0 || dim == known {
		return nil
	}
	return fmt.Errorf("%w: model %q produces %d-dimension vectors, configured dimension is %d",
		ErrInvalidConfig, model, known, dim)
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider != ProviderHashing {
		if err := checkDimension(cfg.Model, cfg.Dimension); err != nil {
			return nil, err
		}
	}

	switch cfg.Provider {
	case ProviderFastEmbed, "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:        cfg.Model,
			CacheDir:     cfg.CacheDir,
			ShowProgress: cfg.ShowProgress,
		})
	case ProviderTEI:
		return NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.dimension(),
			Timeout:   cfg.Timeout,
		})
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
		})
	case ProviderHashing:
		return NewHashingProvider(cfg.dimension())
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
