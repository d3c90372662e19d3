// Package vectorindex provides append-only nearest-neighbor indexes over
// fixed-dimension float32 vectors.
//
// Rows are numbered from zero in insertion order and never change. Search
// results carry the row so callers can map hits back to records stored at
// the same offset.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the index dimension.
	ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")

	// ErrInvalidK is returned for a non-positive k.
	ErrInvalidK = errors.New("vectorindex: k must be positive")
)

// Neighbor is one search hit. Distance is squared Euclidean distance; on
// unit vectors it equals 2 - 2*cosine.
type Neighbor struct {
	Row      int
	Distance float32
}

// Index is an append-only kNN index.
//
// Search returns at most k neighbors ordered by ascending distance. An
// index with fewer than k rows returns all of them; an empty index returns
// an empty slice and no error.
type Index interface {
	Dimension() int
	Len() int
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
}

// Backend names accepted by New.
const (
	BackendFlat    = "flat"
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// New creates an index for the named backend.
func New(backend string, dim int) (Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorindex: dimension must be positive, got %d", dim)
	}
	switch backend {
	case "", BackendFlat:
		return NewFlat(dim), nil
	case BackendChromem:
		return NewChromem(dim)
	case BackendQdrant:
		return nil, fmt.Errorf("vectorindex: backend %q needs a connection, use Open", backend)
	default:
		return nil, fmt.Errorf("vectorindex: unknown backend %q", backend)
	}
}

// Options configures Open.
type Options struct {
	Backend   string
	Dimension int
	Qdrant    QdrantConfig
}

// Open creates an index for any backend, including ones backed by a
// server. Close the result with CloseIndex.
func Open(ctx context.Context, opts Options) (Index, error) {
	if opts.Backend != BackendQdrant {
		return New(opts.Backend, opts.Dimension)
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vectorindex: dimension must be positive, got %d", opts.Dimension)
	}
	return NewQdrant(ctx, opts.Dimension, opts.Qdrant)
}

// CloseIndex releases resources held by idx, if any.
func CloseIndex(idx Index) error {
	if c, ok := idx.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Normalize scales v to unit L2 norm in place and returns it. A zero
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		v[i] = float32(float64(x) * inv)
	}
	return v
}

func checkDims(dim int, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
