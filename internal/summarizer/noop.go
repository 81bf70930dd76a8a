package summarizer

import "context"

// NoOpSummarizer skips the enrichment entirely, for deployments that don't
// configure an OpenAI key. Since nothing in the core ingestion path waits
// on a summary, this just means documents never get one.
type NoOpSummarizer struct{}

func NewNoOpSummarizer() *NoOpSummarizer {
	return &NoOpSummarizer{}
}

func (NoOpSummarizer) Summarize(ctx context.Context, text string) (Summary, error) {
	return Summary{}, nil
}
