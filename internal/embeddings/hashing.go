package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingProvider embeds text by hashing lowercase word tokens into signed
// buckets. It has no model to download, so it is useful for tests and for
// air-gapped deployments where lexical overlap is good enough.
type HashingProvider struct {
	dim int
}

// NewHashingProvider returns a hashing embedder of the given dimension.
func NewHashingProvider(dimension int) (*HashingProvider, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: hashing dimension must be positive", ErrInvalidConfig)
	}
	return &HashingProvider{dim: dimension}, nil
}

// EmbedDocuments embeds each text independently.
func (p *HashingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(text)
	}
	return out, nil
}

// EmbedQuery embeds one text.
func (p *HashingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

func (p *HashingProvider) vector(text string) []float32 {
	vec := make([]float32, p.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dim))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Dimension returns the configured dimension.
func (p *HashingProvider) Dimension() int { return p.dim }

// Close is a no-op.
func (p *HashingProvider) Close() error { return nil }
