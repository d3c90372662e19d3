package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/history"
	httpserver "github.com/theikram/Smart-FAQ-Bot-RAG/internal/http"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and the number of indexed chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status httpserver.StatusResponse
			if err := getJSON("/status", &status); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", status.Status)
			fmt.Fprintf(out, "Indexed Chunks: %d\n", status.DocsCount)
			fmt.Fprintf(out, "Server URL: %s\n", serverURL)
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "ingest [file|-]",
		Short: "Upload a document or raw text",
		Long: `Upload a .pdf or text file, or raw text, for answering questions.

Examples:
  # Upload a PDF
  faqctl ingest handbook.pdf

  # Upload text from stdin
  cat faq.txt | faqctl ingest -

  # Upload an inline paragraph
  faqctl ingest --text "Our office is open Monday to Friday from nine to five."`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res httpserver.IngestResponse
			var err error
			switch {
			case text != "" && len(args) > 0:
				return errors.New("pass either a file or --text, not both")
			case text != "":
				err = postJSON("/ingest", httpserver.IngestTextRequest{Text: text}, &res)
			case len(args) == 0 || args[0] == "-":
				var data []byte
				data, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				err = postJSON("/ingest", httpserver.IngestTextRequest{Text: string(data)}, &res)
			default:
				err = uploadFile(args[0], &res)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			fmt.Fprintf(out, "Chunks added: %d (total %d)\n", res.ChunksAdded, res.TotalVectors)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "raw text to ingest instead of a file")
	return cmd
}

// uploadFile posts path as multipart field "file".
func uploadFile(path string, out *httpserver.IngestResponse) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	return post("/ingest", mw.FormDataContentType(), &body, out)
}

func newAskCmd() *cobra.Command {
	var showContext bool
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a question about the uploaded documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			var res httpserver.AskResponse
			if err := postJSON("/ask", httpserver.AskRequest{Question: question}, &res); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			if showContext {
				for i, c := range res.ContextUsed {
					fmt.Fprintf(out, "\n--- context %d ---\n%s\n", i+1, c)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showContext, "context", false, "print the chunks used as context")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and answers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/history"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			var entries []history.Entry
			if err := getJSON(path, &entries); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "[%s] Q: %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Question)
				fmt.Fprintf(out, "A: %s\n\n", e.Answer)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (server default when 0)")
	return cmd
}
