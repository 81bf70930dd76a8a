package vectorindex

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockIndex is a mock implementation of Index using testify/mock.
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Upsert(ctx context.Context, points []Point) error {
	args := m.Called(ctx, points)
	return args.Error(0)
}

func (m *MockIndex) QueryByTenant(ctx context.Context, tenantID uuid.UUID, vector []float32, topK int) ([]Match, error) {
	args := m.Called(ctx, tenantID, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Match), args.Error(1)
}

func (m *MockIndex) QueryAll(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	args := m.Called(ctx, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Match), args.Error(1)
}

func (m *MockIndex) DeleteByDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIndex) Close() error {
	args := m.Called()
	return args.Error(0)
}
