package rag

import "errors"

var (
	// ErrInput marks requests that cannot be served as given: empty text,
	// an empty question, or a file without extractable text.
	ErrInput = errors.New("invalid input")

	// ErrExtraction marks uploaded files that could not be parsed.
	ErrExtraction = errors.New("document extraction failed")
)
