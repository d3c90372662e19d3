package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/history"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/rag"
)

// User-facing messages.
const (
	IngestSuccessMessage = "Document processed and embedded successfully"
	NoTextMessage        = "Could not extract text. The PDF might be scanned (image-only). Please try uploading a .txt file instead."
	NoQuestionMessage    = "No question provided"
)

// multipartOverhead is allowed on top of MaxUploadBytes for form framing.
const multipartOverhead = 1 << 20

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components,omitempty"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Status    string `json:"status"`
	DocsCount int    `json:"docs_count"`
}

// IngestTextRequest is the JSON body accepted by POST /ingest.
type IngestTextRequest struct {
	Text string `json:"text"`
}

// IngestResponse is the response body for POST /ingest.
type IngestResponse struct {
	Message      string `json:"message"`
	ChunksAdded  int    `json:"chunks_added"`
	TotalVectors int    `json:"total_vectors"`
}

// AskRequest is the request body for POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the response body for POST /ask.
type AskResponse struct {
	Answer      string   `json:"answer"`
	ContextUsed []string `json:"context_used"`
	HistoryID   string   `json:"history_id,omitempty"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if len(s.checks) > 0 {
		resp.Components = make(map[string]any, len(s.checks))
		for name, fn := range s.checks {
			resp.Components[name] = fn()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:    "running",
		DocsCount: s.pipeline.Status().DocsCount,
	})
}

// handleIngest accepts a multipart upload in field "file" or a JSON body
// {"text": "..."}.
func (s *Server) handleIngest(c echo.Context) error {
	req, err := s.bindIngest(c)
	if err != nil {
		return err
	}

	res, err := s.pipeline.IngestRequest(c.Request().Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, rag.ErrInput):
		s.logger.Warn(c.Request().Context(), "ingest rejected", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, NoTextMessage).SetInternal(err)
	case errors.Is(err, rag.ErrExtraction):
		s.logger.Warn(c.Request().Context(), "ingest rejected", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Message:      IngestSuccessMessage,
		ChunksAdded:  res.ChunksAdded,
		TotalVectors: res.TotalVectors,
	})
}

func (s *Server) bindIngest(c echo.Context) (rag.IngestRequest, error) {
	r := c.Request()
	if !strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		var body IngestTextRequest
		if err := c.Bind(&body); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
		}
		return rag.TextPayload{Text: body.Text}, nil
	}

	r.Body = http.MaxBytesReader(c.Response(), r.Body, s.config.MaxUploadBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size")
		case errors.Is(err, http.ErrMissingFile):
			return nil, echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
		default:
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form").SetInternal(err)
		}
	}
	if fh.Size > s.config.MaxUploadBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file").SetInternal(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file").SetInternal(err)
	}

	s.logger.Debug(r.Context(), "received upload",
		zap.String("filename", fh.Filename),
		zap.Int64("size", fh.Size))
	return rag.FileUpload{Filename: fh.Filename, Data: data}, nil
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, NoQuestionMessage)
	}

	answer, err := s.pipeline.Ask(c.Request().Context(), req.Question)
	if err != nil {
		if errors.Is(err, rag.ErrInput) {
			return echo.NewHTTPError(http.StatusBadRequest, NoQuestionMessage).SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get answer from AI").SetInternal(err)
	}

	contextUsed := answer.ContextUsed
	if contextUsed == nil {
		contextUsed = []string{}
	}
	return c.JSON(http.StatusOK, AskResponse{
		Answer:      answer.Text,
		ContextUsed: contextUsed,
		HistoryID:   answer.HistoryID,
	})
}

// handleHistory returns recent answers, newest first. ?limit overrides the
// default count.
func (s *Server) handleHistory(c echo.Context) error {
	limit := s.config.HistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	entries := s.pipeline.History(limit)
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}
