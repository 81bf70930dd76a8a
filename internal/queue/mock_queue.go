package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSubstrate is a mock implementation of Substrate using testify/mock.
type MockSubstrate struct {
	mock.Mock
}

func (m *MockSubstrate) Enqueue(ctx context.Context, tenantID uuid.UUID, stage Stage, jobID uuid.UUID, score float64) error {
	args := m.Called(ctx, tenantID, stage, jobID, score)
	return args.Error(0)
}

func (m *MockSubstrate) PopMin(ctx context.Context, tenantID uuid.UUID, stage Stage, now time.Time) (uuid.UUID, bool, error) {
	args := m.Called(ctx, tenantID, stage, now)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *MockSubstrate) ListActiveTenants(ctx context.Context, stage Stage, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, stage, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockSubstrate) Length(ctx context.Context, tenantID uuid.UUID, stage Stage) (int64, error) {
	args := m.Called(ctx, tenantID, stage)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSubstrate) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDoorbell is a mock implementation of Doorbell using testify/mock.
type MockDoorbell struct {
	mock.Mock
}

func (m *MockDoorbell) Ring(stage Stage) {
	m.Called(stage)
}

func (m *MockDoorbell) Wait(ctx context.Context, stage Stage, timeout time.Duration) {
	m.Called(ctx, stage, timeout)
}
