package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/history"
	httpserver "github.com/theikram/Smart-FAQ-Bot-RAG/internal/http"
)

// fakeServer records the last request and answers like smartfaqd.
type fakeServer struct {
	*httptest.Server
	lastPath        string
	lastQuery       string
	lastContentType string
	lastBody        []byte
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastPath = r.URL.Path
		f.lastQuery = r.URL.RawQuery
		f.lastContentType = r.Header.Get("Content-Type")
		f.lastBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/status":
			_ = json.NewEncoder(w).Encode(httpserver.StatusResponse{Status: "running", DocsCount: 4})
		case "/ingest":
			_ = json.NewEncoder(w).Encode(httpserver.IngestResponse{
				Message:      httpserver.IngestSuccessMessage,
				ChunksAdded:  2,
				TotalVectors: 6,
			})
		case "/ask":
			var req httpserver.AskRequest
			_ = json.Unmarshal(f.lastBody, &req)
			if req.Question == "" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(httpserver.ErrorResponse{Error: httpserver.NoQuestionMessage})
				return
			}
			_ = json.NewEncoder(w).Encode(httpserver.AskResponse{
				Answer:      "Paris.",
				ContextUsed: []string{"The capital of France is Paris."},
			})
		case "/history":
			_ = json.NewEncoder(w).Encode([]history.Entry{{
				ID:        "1",
				Question:  "capital?",
				Answer:    "Paris.",
				Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not found"))
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func execute(t *testing.T, srv *fakeServer, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStatus(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, srv, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: running")
	assert.Contains(t, out, "Indexed Chunks: 4")
}

func TestIngest_Text(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, srv, "", "ingest", "--text", "hello world")
	require.NoError(t, err)
	assert.Contains(t, out, httpserver.IngestSuccessMessage)
	assert.Contains(t, out, "Chunks added: 2 (total 6)")
	assert.Equal(t, "application/json", srv.lastContentType)
	assert.JSONEq(t, `{"text":"hello world"}`, string(srv.lastBody))
}

func TestIngest_Stdin(t *testing.T) {
	srv := newFakeServer(t)

	_, err := execute(t, srv, "from stdin", "ingest", "-")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"from stdin"}`, string(srv.lastBody))
}

func TestIngest_File(t *testing.T) {
	srv := newFakeServer(t)
	path := filepath.Join(t.TempDir(), "faq.txt")
	require.NoError(t, os.WriteFile(path, []byte("file content"), 0o600))

	_, err := execute(t, srv, "", "ingest", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(srv.lastContentType, "multipart/form-data"))
	assert.Contains(t, string(srv.lastBody), `filename="faq.txt"`)
	assert.Contains(t, string(srv.lastBody), "file content")
}

func TestIngest_FileAndTextConflict(t *testing.T) {
	srv := newFakeServer(t)

	_, err := execute(t, srv, "", "ingest", "--text", "x", "faq.txt")
	assert.ErrorContains(t, err, "not both")
}

func TestAsk(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, srv, "", "ask", "--context", "What", "is", "the", "capital?")
	require.NoError(t, err)
	assert.Contains(t, out, "Paris.")
	assert.Contains(t, out, "--- context 1 ---")
	assert.JSONEq(t, `{"question":"What is the capital?"}`, string(srv.lastBody))
}

func TestAsk_ServerError(t *testing.T) {
	srv := newFakeServer(t)

	_, err := execute(t, srv, "", "ask", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), httpserver.NoQuestionMessage)
}

func TestHistory(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, srv, "", "history", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, "limit=5", srv.lastQuery)
	assert.Contains(t, out, "[2024-05-01 12:00:00] Q: capital?")
	assert.Contains(t, out, "A: Paris.")
}

func TestDecodeResponse_PlainBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader("bad gateway")),
	}
	err := decodeResponse(resp, &struct{}{})
	assert.EqualError(t, err, "server returned status 502: bad gateway")
}
