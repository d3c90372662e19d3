// Package extraction pulls plain text out of uploaded files.
//
// PDF files are parsed page by page, skipping pages that carry no text;
// everything else is treated as text, decoded as UTF-8 with a Latin-1
// fallback for legacy encodings.
package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrNoText means the file parsed but contained no usable text, e.g. a
	// scanned PDF with image-only pages.
	ErrNoText = errors.New("no text could be extracted")

	// ErrCorruptDocument means the file could not be parsed at all.
	ErrCorruptDocument = errors.New("invalid or corrupt document")
)

// Extractor converts uploaded bytes into text.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor. A nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the text content of data. The filename extension selects
// the decoder.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	if IsPDF(filename) {
		text, err = e.extractPDF(ctx, filename, data)
	} else {
		text = decodeText(data)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}

	e.logger.Debug("extracted text",
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
		zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

// IsPDF reports whether filename has a .pdf extension, ignoring case.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func (e *Extractor) extractPDF(ctx context.Context, filename string, data []byte) (text string, err error) {
	// The PDF parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrCorruptDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	numPages := reader.NumPage()
	e.logger.Debug("parsed pdf", zap.String("filename", filename), zap.Int("pages", numPages))

	fonts := make(map[string]*pdf.Font)
	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := pageText(reader.Page(i), fonts)
		if err != nil {
			e.logger.Warn("pdf page could not be read",
				zap.String("filename", filename),
				zap.Int("page", i),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(content) == "" {
			e.logger.Warn("pdf page yielded no text",
				zap.String("filename", filename),
				zap.Int("page", i))
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// pageText returns the plain text of p. A page without a content stream,
// such as an inserted blank page, has no text.
func pageText(p pdf.Page, fonts map[string]*pdf.Font) (string, error) {
	if p.V.IsNull() || p.V.Key("Contents").IsNull() {
		return "", nil
	}
	for _, name := range p.Fonts() {
		if _, ok := fonts[name]; !ok {
			f := p.Font(name)
			fonts[name] = &f
		}
	}
	return p.GetPlainText(fonts)
}

func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	// Every byte sequence is valid ISO-8859-1, so this cannot fail.
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
