package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tomerlieber/docflow/internal/apperr"
)

// PDFExtractor extracts text page-by-page via ledongthuc/pdf, grounded on
// the teacher's cmd/gateway/main.go extractPDF.
type PDFExtractor struct{}

func (PDFExtractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		// A malformed PDF header/xref is unrecoverable without a
		// different file; classify as permanent so it dead-letters
		// rather than burning retries.
		return "", apperr.Wrap(apperr.KindPermanent, "corrupt pdf", err)
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()
	extractedAny := false

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
		extractedAny = true
	}

	if !extractedAny && numPages > 0 {
		return "", apperr.New(apperr.KindPermanent, "no extractable text in pdf")
	}
	return textBuilder.String(), nil
}
