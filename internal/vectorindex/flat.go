package vectorindex

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
)

// Flat is an exact brute-force index using squared L2 distance.
//
// Vectors live in one contiguous slice, row-major. Flat does no locking;
// callers serialize Add against Search.
type Flat struct {
	dim  int
	data []float32
}

// NewFlat creates an empty flat index of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dimension returns the vector dimension.
func (f *Flat) Dimension() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.data) / f.dim }

// Add appends vectors as new rows. Either all vectors are added or none.
func (f *Flat) Add(_ context.Context, vectors [][]float32) error {
	if err := checkDims(f.dim, vectors); err != nil {
		return err
	}
	f.data = slices.Grow(f.data, len(vectors)*f.dim)
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	vectorsAdded.WithLabelValues(BackendFlat).Add(float64(len(vectors)))
	return nil
}

// Search scans every row and returns the k closest. Equal distances keep
// row order.
func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}

	start := time.Now()
	defer func() { searchDuration.WithLabelValues(BackendFlat).Observe(time.Since(start).Seconds()) }()

	n := f.Len()
	if n == 0 {
		return []Neighbor{}, nil
	}

	hits := make([]Neighbor, n)
	for row := 0; row < n; row++ {
		hits[row] = Neighbor{Row: row, Distance: squaredL2(query, f.data[row*f.dim:(row+1)*f.dim])}
	}
	slices.SortStableFunc(hits, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if k < n {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
