package vectorindex

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// collectionNamePattern: lowercase letters, digits and underscores, 1-64 chars.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ErrQdrantUnavailable is returned when the Qdrant server cannot be reached.
var ErrQdrantUnavailable = errors.New("vectorindex: qdrant unavailable")

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	// Host and Port address the gRPC API (6334), not the REST port.
	Host       string
	Port       int
	Collection string
	UseTLS     bool
	// MaxMessageSize caps gRPC messages in bytes. Default 50MB.
	MaxMessageSize int
}

func (c *QdrantConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "smartfaq_chunks"
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate checks the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("vectorindex: qdrant port must be between 1 and 65535, got %d", c.Port)
	}
	if !collectionNamePattern.MatchString(c.Collection) {
		return fmt.Errorf("vectorindex: invalid qdrant collection name %q", c.Collection)
	}
	return nil
}

// Qdrant is an index stored in a Qdrant collection using Euclid distance
// and exact search. Point ids are the row numbers.
//
// The collection is recreated on open: rows must line up with records held
// in process memory, so anything left over from a previous run is dropped.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dim        int

	mu   sync.Mutex // serializes Add so row ids stay dense
	rows int
}

// NewQdrant connects to Qdrant and recreates the collection.
func NewQdrant(ctx context.Context, dim int, cfg QdrantConfig) (*Qdrant, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnavailable, err)
	}

	q := &Qdrant{client: client, collection: cfg.Collection, dim: dim}
	if err := q.reset(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrQdrantUnavailable, err)
	}

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: checking collection %s: %w", q.collection, err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("vectorindex: dropping collection %s: %w", q.collection, err)
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: creating collection %s: %w", q.collection, err)
	}
	return nil
}

// Dimension returns the vector dimension.
func (q *Qdrant) Dimension() int { return q.dim }

// Len returns the number of rows added through this index.
func (q *Qdrant) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rows
}

// Add upserts vectors as new rows and waits for the write to be applied.
func (q *Qdrant) Add(ctx context.Context, vectors [][]float32) error {
	if err := checkDims(q.dim, vectors); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(q.rows + i)),
			Vectors: qdrant.NewVectors(slices.Clone(v)...),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upserting to %s: %w", q.collection, err)
	}
	q.rows += len(vectors)
	vectorsAdded.WithLabelValues(BackendQdrant).Add(float64(len(vectors)))
	return nil
}

// Search returns the k nearest rows. Qdrant reports plain Euclidean
// distance, which is squared here to match the other backends.
func (q *Qdrant) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != q.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), q.dim)
	}
	if q.Len() == 0 {
		return []Neighbor{}, nil
	}

	start := time.Now()
	defer func() { searchDuration.WithLabelValues(BackendQdrant).Observe(time.Since(start).Seconds()) }()

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(slices.Clone(query)...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Params: &qdrant.SearchParams{
			Exact: qdrant.PtrOf(true),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: querying %s: %w", q.collection, err)
	}

	hits := make([]Neighbor, 0, len(points))
	for _, p := range points {
		hits = append(hits, Neighbor{
			Row:      int(p.GetId().GetNum()),
			Distance: p.GetScore() * p.GetScore(),
		})
	}
	slices.SortStableFunc(hits, func(a, b Neighbor) int {
		if d := cmp.Compare(a.Distance, b.Distance); d != 0 {
			return d
		}
		return cmp.Compare(a.Row, b.Row)
	})
	return hits, nil
}

// Close releases the gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
