package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/chunker"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/corpus"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/embeddings"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/extraction"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/history"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/logging"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/rag"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/vectorindex"
)

const faqDocument = "The capital of France is Paris. It is known for the Eiffel Tower and fine cuisine.\n\n" +
	"Bananas are yellow fruits that are rich in potassium and grow in tropical climates."

type stubGenerator struct{ answer string }

func (g stubGenerator) Generate(context.Context, string, string) string { return g.answer }

type brokenPipeline struct{}

func (brokenPipeline) IngestRequest(context.Context, rag.IngestRequest) (rag.IngestResult, error) {
	return rag.IngestResult{}, errors.New("index unavailable")
}

func (brokenPipeline) Ask(context.Context, string) (rag.Answer, error) {
	return rag.Answer{}, errors.New("embedder unavailable")
}

func (brokenPipeline) Status() rag.Status { return rag.Status{} }

func (brokenPipeline) History(int) []history.Entry { return nil }

func newPipeline(t *testing.T) *rag.Service {
	t.Helper()
	embedder, err := embeddings.NewHashingProvider(384)
	require.NoError(t, err)
	c, err := corpus.New(vectorindex.NewFlat(384))
	require.NoError(t, err)

	svc, err := rag.NewService(rag.Deps{
		Chunker:   chunker.Default(),
		Embedder:  embedder,
		Corpus:    c,
		Generator: stubGenerator{answer: "Paris."},
		Extractor: extraction.New(nil),
		History:   history.New(50),
	})
	require.NoError(t, err)
	return svc
}

func setupTestServer(t *testing.T, cfg *Config) (*Server, *logging.TestLogger) {
	t.Helper()
	logger := logging.NewTestLogger()
	server, err := NewServer(newPipeline(t), logger.Logger, cfg)
	require.NoError(t, err)
	return server, logger
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, s *Server, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestNewServer(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		server, err := NewServer(newPipeline(t), logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, 5000, server.config.Port)
		assert.Equal(t, int64(defaultMaxUploadBytes), server.config.MaxUploadBytes)
		assert.Equal(t, defaultHistoryLimit, server.config.HistoryLimit)
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(newPipeline(t), nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("requires pipeline", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		assert.ErrorContains(t, err, "pipeline cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleHealth_Components(t *testing.T) {
	server, err := NewServer(newPipeline(t), logging.NewNop(), nil,
		WithHealthCheck("telemetry", func() any {
			return map[string]string{"state": "degraded", "error": "exporter down"}
		}))
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"telemetry":{"state":"degraded","error":"exporter down"}}}`,
		rec.Body.String())
}

func TestHandleStatus(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doJSON(t, server, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"running","docs_count":0}`, rec.Body.String())
}

func TestHandleIngest_JSON(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doJSON(t, server, http.MethodPost, "/ingest", IngestTextRequest{Text: faqDocument})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, IngestResponse{
		Message:      IngestSuccessMessage,
		ChunksAdded:  2,
		TotalVectors: 2,
	}, decode[IngestResponse](t, rec))

	rec = doJSON(t, server, http.MethodGet, "/status", nil)
	assert.Equal(t, 2, decode[StatusResponse](t, rec).DocsCount)
}

func TestHandleIngest_Upload(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doUpload(t, server, "faq.txt", []byte(faqDocument))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[IngestResponse](t, rec).ChunksAdded)
}

func TestHandleIngest_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		send     func(*testing.T, *Server) *httptest.ResponseRecorder
		wantCode int
		wantMsg  string
	}{
		{
			name: "empty text",
			send: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return doJSON(t, s, http.MethodPost, "/ingest", IngestTextRequest{Text: "   "})
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  NoTextMessage,
		},
		{
			name: "blank file",
			send: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return doUpload(t, s, "empty.txt", []byte("\n\n"))
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  NoTextMessage,
		},
		{
			name: "corrupt pdf",
			send: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return doUpload(t, s, "broken.pdf", []byte("definitely not a pdf"))
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "document extraction failed",
		},
		{
			name: "malformed json",
			send: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("{oops"))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
				rec := httptest.NewRecorder()
				s.Handler().ServeHTTP(rec, req)
				return rec
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t, nil)
			rec := tt.send(t, server)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, decode[ErrorResponse](t, rec).Error, tt.wantMsg)

			status := doJSON(t, server, http.MethodGet, "/status", nil)
			assert.Zero(t, decode[StatusResponse](t, status).DocsCount)
		})
	}
}

func TestHandleIngest_TooLarge(t *testing.T) {
	server, _ := setupTestServer(t, &Config{MaxUploadBytes: 16})

	rec := doUpload(t, server, "big.txt", []byte(faqDocument))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleAsk(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doJSON(t, server, http.MethodPost, "/ingest", IngestTextRequest{Text: faqDocument})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/ask", AskRequest{Question: "What is the capital of France?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[AskResponse](t, rec)
	assert.Equal(t, "Paris.", resp.Answer)
	require.NotEmpty(t, resp.ContextUsed)
	assert.Contains(t, resp.ContextUsed[0], "Paris")
	assert.NotEmpty(t, resp.HistoryID)

	rec = doJSON(t, server, http.MethodGet, "/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]history.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, resp.HistoryID, entries[0].ID)
	assert.Equal(t, "What is the capital of France?", entries[0].Question)
}

func TestHandleAsk_EmptyCorpus(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doJSON(t, server, http.MethodPost, "/ask", AskRequest{Question: "Anything?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, rec.Body.Bytes(), "context_used")))
}

func mustField(t *testing.T, body []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	v, ok := m[key]
	require.True(t, ok, "missing field %q", key)
	return v
}

func TestHandleAsk_NoQuestion(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	for _, body := range []any{AskRequest{}, AskRequest{Question: "  "}, nil} {
		rec := doJSON(t, server, http.MethodPost, "/ask", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, NoQuestionMessage, decode[ErrorResponse](t, rec).Error)
	}
}

func TestHandleHistory_Limit(t *testing.T) {
	server, _ := setupTestServer(t, &Config{HistoryLimit: 2})

	for _, q := range []string{"one", "two", "three"} {
		rec := doJSON(t, server, http.MethodPost, "/ask", AskRequest{Question: q})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, server, http.MethodGet, "/history", nil)
	entries := decode[[]history.Entry](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "three", entries[0].Question)

	rec = doJSON(t, server, http.MethodGet, "/history?limit=3", nil)
	assert.Len(t, decode[[]history.Entry](t, rec), 3)

	rec = doJSON(t, server, http.MethodGet, "/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_InternalErrors(t *testing.T) {
	logger := logging.NewTestLogger()
	server, err := NewServer(brokenPipeline{}, logger.Logger, nil)
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodPost, "/ingest", IngestTextRequest{Text: "x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "index unavailable", decode[ErrorResponse](t, rec).Error)

	rec = doJSON(t, server, http.MethodPost, "/ask", AskRequest{Question: "q"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to get answer from AI", decode[ErrorResponse](t, rec).Error)

	logger.AssertLogged(t, zapcore.ErrorLevel, "request failed")

	rec = doJSON(t, server, http.MethodGet, "/history", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_NotFound(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doJSON(t, server, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
}

func TestServer_RequestLogging(t *testing.T) {
	server, logger := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))
	logger.AssertField(t, "http request", "request.id", "req-123")
	logger.AssertField(t, "http request", "status", int64(http.StatusOK))
}

func TestServer_PrometheusEndpoint(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rec := doJSON(t, server, http.MethodPost, "/ingest", IngestTextRequest{Text: faqDocument})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smartfaq_ingest_chunks_total")
	assert.Contains(t, rec.Body.String(), "smartfaq_corpus_chunks")
}
