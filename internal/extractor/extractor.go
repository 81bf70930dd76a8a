// Package extractor implements the Extractor capability from spec.md §4.4:
// turning raw uploaded bytes into a UTF-8 text stream, with errors
// classified as transient (retryable) or permanent (dead-letter).
package extractor

import (
	"context"
	"strings"
)

// Extractor converts raw file bytes into extracted text. The variant is
// selected by file suffix only (see Registry); the content is not sniffed.
// Errors it returns should
// already be classified apperr.Kind (transient vs permanent) by the
// concrete implementation.
type Extractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Registry dispatches to a variant-specific Extractor by filename
// suffix, falling back to plain text.
type Registry struct {
	pdf       Extractor
	plainText Extractor
}

// NewRegistry builds a Registry. pdf and plainText must not be nil.
func NewRegistry(pdf, plainText Extractor) *Registry {
	return &Registry{pdf: pdf, plainText: plainText}
}

func (r *Registry) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return r.pdf.Extract(ctx, filename, content)
	}
	return r.plainText.Extract(ctx, filename, content)
}
