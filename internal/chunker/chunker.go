// Package chunker splits document text into paragraph chunks for embedding.
package chunker

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the number of runes a paragraph must exceed to be
// kept as its own chunk.
const DefaultMinLength = 50

// separator delimits paragraphs.
const separator = "\n\n"

// ErrEmptyInput is returned when the text is empty or whitespace only.
var ErrEmptyInput = errors.New("chunker: empty input")

// Chunker splits text on blank lines and drops short fragments.
type Chunker struct {
	minLength int
}

// New returns a Chunker keeping paragraphs longer than minLength runes.
// A negative minLength is treated as zero.
func New(minLength int) *Chunker {
	if minLength < 0 {
		minLength = 0
	}
	return &Chunker{minLength: minLength}
}

// Default returns a Chunker using DefaultMinLength.
func Default() *Chunker {
	return New(DefaultMinLength)
}

// Split returns the trimmed paragraphs of text that are longer than the
// minimum length, in document order. When no paragraph qualifies the whole
// trimmed text is returned as a single chunk.
func (c *Chunker) Split(text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	var chunks []string
	for _, piece := range strings.Split(trimmed, separator) {
		piece = strings.TrimSpace(piece)
		if utf8.RuneCountInString(piece) > c.minLength {
			chunks = append(chunks, piece)
		}
	}

	if len(chunks) == 0 {
		return []string{trimmed}, nil
	}
	return chunks, nil
}
