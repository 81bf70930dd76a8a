// Package summarizer implements the optional fire-and-forget enrichment
// named in spec.md §1 as deliberately outside the core pipeline: an
// LLM-generated summary and key points for a completed document. Nothing
// in the core ingestion path (extract/chunk/embed) waits on it.
package summarizer

import "context"

// Summary is the enrichment result for a document.
type Summary struct {
	Text      string
	KeyPoints []string
}

// Summarizer produces a summary and key points for a block of text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (Summary, error)
}
