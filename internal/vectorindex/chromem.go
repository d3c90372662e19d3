package vectorindex

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
)

const chromemCollection = "chunks"

// errNoEmbeddingFunc is returned if chromem ever asks us to embed text.
// Vectors are always supplied by the caller.
var errNoEmbeddingFunc = errors.New("vectorindex: chromem collection embeds nothing itself")

// Chromem is an in-memory index backed by a chromem-go collection.
//
// chromem stores unit vectors and ranks by cosine similarity; distances are
// reported as 2 - 2*similarity, which equals squared L2 for unit vectors.
// Zero vectors are rejected because they have no direction.
type Chromem struct {
	dim        int
	collection *chromem.Collection

	mu   sync.Mutex // serializes Add so row ids stay dense
	rows int
}

// NewChromem creates an empty chromem-backed index.
func NewChromem(dim int) (*Chromem, error) {
	db := chromem.NewDB()
	noEmbed := func(context.Context, string) ([]float32, error) { return nil, errNoEmbeddingFunc }
	collection, err := db.CreateCollection(chromemCollection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: creating chromem collection: %w", err)
	}
	return &Chromem{dim: dim, collection: collection}, nil
}

// Dimension returns the vector dimension.
func (c *Chromem) Dimension() int { return c.dim }

// Len returns the number of stored vectors.
func (c *Chromem) Len() int { return c.collection.Count() }

// Add appends vectors as new rows. Validation happens before any insert.
func (c *Chromem) Add(ctx context.Context, vectors [][]float32) error {
	if err := checkDims(c.dim, vectors); err != nil {
		return err
	}
	for i, v := range vectors {
		if isZero(v) {
			return fmt.Errorf("vectorindex: vector %d has zero norm", i)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(c.rows + i),
			Embedding: slices.Clone(v),
		}
	}
	if err := c.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("vectorindex: adding to chromem: %w", err)
	}
	c.rows += len(vectors)
	vectorsAdded.WithLabelValues(BackendChromem).Add(float64(len(vectors)))
	return nil
}

// Search returns the k nearest rows. chromem requires k <= Count, so k is
// capped first.
func (c *Chromem) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != c.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), c.dim)
	}

	start := time.Now()
	defer func() { searchDuration.WithLabelValues(BackendChromem).Observe(time.Since(start).Seconds()) }()

	n := c.collection.Count()
	if n == 0 {
		return []Neighbor{}, nil
	}
	if isZero(query) {
		return nil, fmt.Errorf("vectorindex: query has zero norm")
	}
	if k > n {
		k = n
	}

	results, err := c.collection.QueryEmbedding(ctx, slices.Clone(query), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: querying chromem: %w", err)
	}

	hits := make([]Neighbor, 0, len(results))
	for _, r := range results {
		row, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: unexpected chromem id %q", r.ID)
		}
		dist := float32(math.Max(0, float64(2-2*r.Similarity)))
		hits = append(hits, Neighbor{Row: row, Distance: dist})
	}
	slices.SortStableFunc(hits, func(a, b Neighbor) int {
		if d := cmp.Compare(a.Distance, b.Distance); d != 0 {
			return d
		}
		return cmp.Compare(a.Row, b.Row)
	})
	return hits, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
