package extractor

import (
	"context"
	"unicode/utf8"

	"github.com/tomerlieber/docflow/internal/apperr"
)

// PlainTextExtractor passes bytes through as text, rejecting content
// that isn't valid UTF-8 since downstream chunking assumes it.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", apperr.New(apperr.KindPermanent, "file is not valid utf-8 text")
	}
	return string(content), nil
}
