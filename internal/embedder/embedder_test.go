package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
)

func TestMockEmbedderReturnsConfiguredVectors(t *testing.T) {
	m := NewMockEmbedder(3)
	want := []Vector{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}
	m.On("EmbedBatch", mock.Anything, []string{"a", "b"}).Return(want, nil)

	got, err := m.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(got))
	}
	if m.Dimension() != 3 {
		t.Fatalf("expected dimension 3, got %d", m.Dimension())
	}
	m.AssertExpectations(t)
}

func TestMockEmbedderPropagatesError(t *testing.T) {
	m := NewMockEmbedder(3)
	m.On("EmbedBatch", mock.Anything, []string{"x"}).Return(nil, context.DeadlineExceeded)

	_, err := m.EmbedBatch(context.Background(), []string{"x"})
	if err == nil {
		t.Fatalf("expected EmbedBatch to propagate the underlying error")
	}
}
