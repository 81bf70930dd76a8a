package extractor

import (
	"context"
	"testing"

	"github.com/tomerlieber/docflow/internal/apperr"
)

func TestPlainTextExtractorPassesThroughValidUTF8(t *testing.T) {
	e := PlainTextExtractor{}
	text, err := e.Extract(context.Background(), "notes.txt", []byte("hello world"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected passthrough text, got %q", text)
	}
}

func TestPlainTextExtractorRejectsInvalidUTF8(t *testing.T) {
	e := PlainTextExtractor{}
	_, err := e.Extract(context.Background(), "notes.txt", []byte{0xff, 0xfe, 0x00})
	if err == nil {
		t.Fatalf("expected an error for invalid utf-8")
	}
	if apperr.KindOf(err) != apperr.KindPermanent {
		t.Fatalf("expected KindPermanent, got %v", apperr.KindOf(err))
	}
}

func TestPDFExtractorRejectsCorruptFile(t *testing.T) {
	e := PDFExtractor{}
	_, err := e.Extract(context.Background(), "doc.pdf", []byte("not a pdf"))
	if err == nil {
		t.Fatalf("expected an error for a corrupt pdf")
	}
	if apperr.KindOf(err) != apperr.KindPermanent {
		t.Fatalf("expected KindPermanent, got %v", apperr.KindOf(err))
	}
}

func TestRegistryDispatchesBySuffix(t *testing.T) {
	pdfCalled, plainCalled := false, false
	pdfExtractor := fakeExtractor{fn: func(string, []byte) (string, error) {
		pdfCalled = true
		return "pdf text", nil
	}}
	plainExtractor := fakeExtractor{fn: func(string, []byte) (string, error) {
		plainCalled = true
		return "plain text", nil
	}}
	r := NewRegistry(pdfExtractor, plainExtractor)

	if _, err := r.Extract(context.Background(), "report.PDF", nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !pdfCalled || plainCalled {
		t.Fatalf("expected .PDF suffix (case-insensitive) to dispatch to the pdf extractor")
	}

	pdfCalled, plainCalled = false, false
	if _, err := r.Extract(context.Background(), "notes.txt", nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if pdfCalled || !plainCalled {
		t.Fatalf("expected non-pdf suffix to dispatch to the plain text extractor")
	}
}

type fakeExtractor struct {
	fn func(filename string, content []byte) (string, error)
}

func (f fakeExtractor) Extract(_ context.Context, filename string, content []byte) (string, error) {
	return f.fn(filename, content)
}
