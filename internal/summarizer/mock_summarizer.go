package summarizer

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSummarizer is a mock implementation of the Summarizer interface.
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, text string) (Summary, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(Summary), args.Error(1)
}
