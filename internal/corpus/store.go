// Package corpus holds ingested chunks together with their vectors.
//
// A Corpus pairs a vectorindex.Index with a DocumentStore so that row i of
// the index always describes chunk i of the store. Both structures only
// grow, and both are mutated under one write lock.
package corpus

// Chunk is one stored piece of a document. ID equals the chunk's row in the
// vector index.
type Chunk struct {
	ID     int
	Text   string
	Source string
}

// DocumentStore is an ordered, append-only list of chunks. It does no
// locking of its own; Corpus guards it.
type DocumentStore struct {
	chunks []Chunk
}

// NewDocumentStore returns an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

// Len returns the number of stored chunks.
func (s *DocumentStore) Len() int { return len(s.chunks) }

// Get returns the chunk at row, or false when row is out of range.
func (s *DocumentStore) Get(row int) (Chunk, bool) {
	if row < 0 || row >= len(s.chunks) {
		return Chunk{}, false
	}
	return s.chunks[row], true
}

// append adds texts as chunks with sequential ids starting at Len().
func (s *DocumentStore) append(texts []string, source string) []Chunk {
	start := len(s.chunks)
	added := make([]Chunk, len(texts))
	for i, text := range texts {
		added[i] = Chunk{ID: start + i, Text: text, Source: source}
	}
	s.chunks = append(s.chunks, added...)
	return added
}
