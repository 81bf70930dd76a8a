package extractor

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockExtractor is a mock implementation of the Extractor interface for
// testing worker-level retry/classification behavior.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	args := m.Called(ctx, filename, content)
	return args.String(0), args.Error(1)
}
