// Package main implements faqctl, a command-line client for the smartfaqd HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	httpserver "github.com/theikram/Smart-FAQ-Bot-RAG/internal/http"
)

var (
	// serverURL is the base URL of the smartfaqd server
	serverURL string
	// timeout bounds every request; asks may wait on upstream retries
	timeout time.Duration
	version = "dev"
)

func main() {
	_ = godotenv.Load()
	if env := os.Getenv("SMARTFAQ_SERVER"); env != "" {
		serverURL = env
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "faqctl",
		Short: "CLI for the Smart FAQ server",
		Long: `faqctl talks to a running smartfaqd server.
It uploads documents, asks questions and shows recent answers.`,
		Version:      version,
		SilenceUsage: true,
	}

	defaultServer := serverURL
	if defaultServer == "" {
		defaultServer = "http://localhost:5000"
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "smartfaqd server URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")

	root.AddCommand(newStatusCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

func newClient() *http.Client {
	return &http.Client{Timeout: timeout}
}

// getJSON issues GET path and decodes a 200 response into out.
func getJSON(path string, out any) error {
	url := serverURL + path
	resp, err := newClient().Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// postJSON sends body as JSON to path and decodes a 200 response into out.
func postJSON(path string, body, out any) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return post(path, "application/json", bytes.NewReader(reqJSON), out)
}

func post(path, contentType string, body io.Reader, out any) error {
	url := serverURL + path
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := newClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// decodeResponse turns non-200 responses into errors carrying the server's
// message.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		var apiErr httpserver.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
