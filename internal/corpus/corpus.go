package corpus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/vectorindex"
)

// ErrBatchMismatch is returned when texts and vectors differ in length.
var ErrBatchMismatch = errors.New("corpus: texts and vectors differ in length")

// Hit is a search result resolved to its chunk.
type Hit struct {
	Chunk    Chunk
	Distance float32
}

// Corpus guards a vector index and a document store with a single RWMutex.
// Appends hold the write lock across both structures; searches hold the
// read lock across the index query and the chunk lookups.
type Corpus struct {
	mu    sync.RWMutex
	index vectorindex.Index
	docs  *DocumentStore
}

// New returns a Corpus over an empty index.
func New(index vectorindex.Index) (*Corpus, error) {
	if index == nil {
		return nil, errors.New("corpus: index is required")
	}
	if index.Len() != 0 {
		return nil, fmt.Errorf("corpus: index must start empty, has %d rows", index.Len())
	}
	return &Corpus{index: index, docs: NewDocumentStore()}, nil
}

// Dimension returns the vector dimension of the index.
func (c *Corpus) Dimension() int { return c.index.Dimension() }

// Len returns the number of stored chunks.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs.Len()
}

// Append commits one ingestion batch. Vectors go to the index first; if the
// index rejects them nothing is stored. Returns the new chunks and the
// total number of vectors afterwards.
func (c *Corpus) Append(ctx context.Context, texts []string, vectors [][]float32, source string) ([]Chunk, int, error) {
	if len(texts) != len(vectors) {
		return nil, 0, fmt.Errorf("%w: %d texts, %d vectors", ErrBatchMismatch, len(texts), len(vectors))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(texts) == 0 {
		return nil, c.index.Len(), nil
	}
	if err := c.index.Add(ctx, vectors); err != nil {
		return nil, 0, fmt.Errorf("corpus: adding vectors: %w", err)
	}
	added := c.docs.append(texts, source)
	return added, c.index.Len(), nil
}

// Search returns up to k chunks nearest to query, ascending by distance.
// Rows the store cannot resolve are skipped.
func (c *Corpus) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	neighbors, err := c.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("corpus: searching index: %w", err)
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		chunk, ok := c.docs.Get(n.Row)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Chunk: chunk, Distance: n.Distance})
	}
	return hits, nil
}

// Chunk returns the chunk with the given id.
func (c *Corpus) Chunk(id int) (Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs.Get(id)
}

// Consistent reports whether the index and the store hold the same number
// of rows.
func (c *Corpus) Consistent() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Len() == c.docs.Len()
}
