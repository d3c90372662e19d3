// Package rag wires chunking, embedding, retrieval and generation into the
// question answering pipeline.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/chunker"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/corpus"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/embeddings"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/extraction"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/history"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/vectorindex"
)

const instrumentationName = "github.com/theikram/Smart-FAQ-Bot-RAG/internal/rag"

// Deps are the collaborators of a Service. Chunker, Embedder, Corpus and
// Generator are required.
type Deps struct {
	Chunker   *chunker.Chunker
	Embedder  embeddings.Embedder
	Corpus    *corpus.Corpus
	Generator Generator
	// Extractor handles FileUpload requests. Nil disables file ingestion.
	Extractor Extractor
	// History records answered questions. Nil disables recording.
	History *history.Store
	TopK    int
	Logger  *zap.Logger
	Tracer  trace.Tracer
}

// Service answers questions over ingested documents.
type Service struct {
	chunker   *chunker.Chunker
	embedder  embeddings.Embedder
	corpus    *corpus.Corpus
	generator Generator
	extractor Extractor
	history   *history.Store
	topK      int
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService validates deps and returns a Service.
func NewService(deps Deps) (*Service, error) {
	if deps.Chunker == nil {
		return nil, errors.New("rag: chunker is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("rag: embedder is required")
	}
	if deps.Corpus == nil {
		return nil, errors.New("rag: corpus is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("rag: generator is required")
	}

	s := &Service{
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		corpus:    deps.Corpus,
		generator: deps.Generator,
		extractor: deps.Extractor,
		history:   deps.History,
		topK:      deps.TopK,
		logger:    deps.Logger,
		tracer:    deps.Tracer,
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	corpusChunks.Set(float64(s.corpus.Len()))
	return s, nil
}

// IngestRequest resolves req to text and ingests it.
func (s *Service) IngestRequest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	var (
		text   string
		source string
		kind   string
	)

	switch r := req.(type) {
	case FileUpload:
		kind = "file"
		if s.extractor == nil {
			return IngestResult{}, fmt.Errorf("%w: file ingestion is not enabled", ErrInput)
		}
		extracted, err := s.extractor.Extract(ctx, r.Filename, r.Data)
		if err != nil {
			documentsIngested.WithLabelValues(kind, "rejected").Inc()
			return IngestResult{}, classifyExtraction(err)
		}
		text = extracted
		source = r.Filename
		if source == "" {
			source = DefaultSource
		}
	case TextPayload:
		kind = "text"
		text = r.Text
		source = DefaultSource
	default:
		return IngestResult{}, fmt.Errorf("%w: unsupported ingest request %T", ErrInput, req)
	}

	res, err := s.Ingest(ctx, text, source)
	result := "ok"
	if err != nil {
		result = "rejected"
		if !errors.Is(err, ErrInput) {
			result = "error"
		}
	}
	documentsIngested.WithLabelValues(kind, result).Inc()
	return res, err
}

func classifyExtraction(err error) error {
	switch {
	case errors.Is(err, extraction.ErrNoText):
		return fmt.Errorf("%w: %w", ErrInput, err)
	case errors.Is(err, extraction.ErrCorruptDocument):
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	default:
		return fmt.Errorf("extracting text: %w", err)
	}
}

// Ingest chunks text, embeds the chunks and appends them to the corpus as
// one batch. Nothing is stored when any step fails.
func (s *Service) Ingest(ctx context.Context, text, source string) (IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "rag.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("text.length", len(text)),
	)

	fail := func(err error) (IngestResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return IngestResult{}, err
	}

	chunks, err := s.chunker.Split(text)
	if err != nil {
		if errors.Is(err, chunker.ErrEmptyInput) {
			return fail(fmt.Errorf("%w: %w", ErrInput, err))
		}
		return fail(fmt.Errorf("chunking: %w", err))
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fail(fmt.Errorf("embedding chunks: %w", err))
	}
	if len(vectors) != len(chunks) {
		return fail(fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(chunks)))
	}
	for _, v := range vectors {
		vectorindex.Normalize(v)
	}

	added, total, err := s.corpus.Append(ctx, chunks, vectors, source)
	if err != nil {
		return fail(fmt.Errorf("storing chunks: %w", err))
	}

	chunksIngested.Add(float64(len(added)))
	corpusChunks.Set(float64(total))
	span.SetAttributes(
		attribute.Int("chunks.added", len(added)),
		attribute.Int("vectors.total", total),
	)
	s.logger.Info("document ingested",
		zap.String("source", source),
		zap.Int("chunks_added", len(added)),
		zap.Int("total_vectors", total),
		zap.Duration("duration", time.Since(start)))

	return IngestResult{ChunksAdded: len(added), TotalVectors: total}, nil
}

// Retrieve returns the text of up to k chunks nearest to question, closest
// first. k <= 0 uses the configured default.
func (s *Service) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInput)
	}
	if k <= 0 {
		k = s.topK
	}

	query, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	vectorindex.Normalize(query)

	hits, err := s.corpus.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("searching corpus: %w", err)
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Chunk.Text)
	}
	return texts, nil
}

// BuildContext joins retrieved chunks with blank lines, or returns the
// placeholder when there are none.
func BuildContext(chunks []string) string {
	if len(chunks) == 0 {
		return NoContextPlaceholder
	}
	return strings.Join(chunks, "\n\n")
}

// Ask retrieves context for question and generates an answer. Generation
// failures are reported in Answer.Text, never as an error.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	ctx, span := s.tracer.Start(ctx, "rag.Ask")
	defer span.End()

	chunks, err := s.Retrieve(ctx, question, s.topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, err
	}
	span.SetAttributes(attribute.Int("chunks.retrieved", len(chunks)))

	label := "found"
	if len(chunks) == 0 {
		label = "none"
	}
	questionsTotal.WithLabelValues(label).Inc()

	text := s.generator.Generate(ctx, question, BuildContext(chunks))

	answer := Answer{Text: text, ContextUsed: chunks}
	if s.history != nil {
		answer.HistoryID = s.history.Record(question, text).ID
	}

	s.logger.Debug("question answered",
		zap.Int("chunks_retrieved", len(chunks)),
		zap.String("history_id", answer.HistoryID))
	return answer, nil
}

// Status reports the number of stored chunks.
func (s *Service) Status() Status {
	return Status{DocsCount: s.corpus.Len()}
}

// History returns up to n recent answers, newest first. It is empty when
// history recording is disabled.
func (s *Service) History(n int) []history.Entry {
	if s.history == nil {
		return []history.Entry{}
	}
	return s.history.Recent(n)
}
