package rag

import "context"

// DefaultSource labels chunks ingested from raw text.
const DefaultSource = "Uploaded Document"

// NoContextPlaceholder is passed to the generator when retrieval finds
// nothing.
const NoContextPlaceholder = "No relevant context found."

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// IngestResult reports the outcome of one ingestion.
type IngestResult struct {
	ChunksAdded  int `json:"chunks_added"`
	TotalVectors int `json:"total_vectors"`
}

// IngestRequest is either a FileUpload or a TextPayload.
type IngestRequest interface {
	isIngestRequest()
}

// FileUpload is an uploaded file. The extension of Filename selects the
// text extractor.
type FileUpload struct {
	Filename string
	Data     []byte
}

// TextPayload is raw document text.
type TextPayload struct {
	Text string
}

func (FileUpload) isIngestRequest()  {}
func (TextPayload) isIngestRequest() {}

// Answer is the result of asking a question.
type Answer struct {
	Text        string   `json:"answer"`
	ContextUsed []string `json:"context_used"`
	HistoryID   string   `json:"history_id,omitempty"`
}

// Status summarizes the corpus.
type Status struct {
	DocsCount int `json:"docs_count"`
}

// Generator produces an answer from a question and retrieved context. It
// reports failures in the returned text instead of an error.
type Generator interface {
	Generate(ctx context.Context, question, contextText string) string
}

// Extractor turns uploaded bytes into text.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}
