// Package embeddings turns text into fixed-dimension vectors.
//
// Several providers implement the same Provider interface: a local ONNX
// model through fastembed (cgo builds only), a Text Embeddings Inference
// server, any OpenAI-compatible embeddings endpoint, and a deterministic
// feature-hashing embedder that needs no model at all.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder produces vectors for documents and queries. EmbedDocuments
// returns one vector per input, in input order.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known output dimension.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// knownDimensions lists output sizes of the models we name in config.
var knownDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-all-MiniLM-L6-v2":                  384,
	"BAAI/bge-small-en-v1.5":                 384,
	"fast-bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"fast-bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"fast-bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"fast-bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"fast-bge-small-zh-v1.5":                 512,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
}

// ModelDimension returns the output dimension of a known model.
func ModelDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}

func checkBatch(texts []string) error {
	if len(texts) == 0 {
		return ErrEmptyInput
	}
	return nil
}
