package extraction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestExtract_Text(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
	}{
		{
			name:     "utf8",
			filename: "faq.txt",
			data:     []byte("Café opens at 9am.\n\nClosed on Sundays."),
			want:     "Café opens at 9am.\n\nClosed on Sundays.",
		},
		{
			name:     "latin1 fallback",
			filename: "legacy.txt",
			data:     []byte{'C', 'a', 'f', 0xe9, ' ', 'o', 'p', 'e', 'n'},
			want:     "Café open",
		},
		{
			name:     "unknown extension treated as text",
			filename: "notes.md",
			data:     []byte("# Heading"),
			want:     "# Heading",
		},
		{
			name:     "no extension",
			filename: "",
			data:     []byte("plain"),
			want:     "plain",
		},
	}

	e := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(context.Background(), tt.filename, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_NoText(t *testing.T) {
	e := New(nil)

	_, err := e.Extract(context.Background(), "empty.txt", nil)
	assert.ErrorIs(t, err, ErrNoText)

	_, err = e.Extract(context.Background(), "blank.txt", []byte(" \n\t\n "))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtract_CorruptPDF(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := New(zap.New(core))

	_, err := e.Extract(context.Background(), "broken.PDF", []byte("this is not a pdf"))
	assert.ErrorIs(t, err, ErrCorruptDocument)
	assert.Zero(t, logs.FilterMessage("extracted text").Len())
}

func TestExtract_PDFSkipsPageWithoutContent(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "blank_page.pdf"))
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	e := New(zap.New(core))

	got, err := e.Extract(context.Background(), "handbook.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.\nBananas are yellow fruit.\n", got)

	skipped := logs.FilterMessage("pdf page yielded no text").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, int64(2), skipped[0].ContextMap()["page"])
	assert.Zero(t, logs.FilterMessage("pdf page could not be read").Len())
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("report.pdf"))
	assert.True(t, IsPDF("REPORT.PDF"))
	assert.False(t, IsPDF("report.pdf.txt"))
	assert.False(t, IsPDF("pdf"))
}
