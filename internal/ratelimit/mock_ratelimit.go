package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLimiter is a mock implementation of the Limiter interface for testing.
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, tenantID uuid.UUID, limit int, window time.Duration, now time.Time) (Decision, error) {
	args := m.Called(ctx, tenantID, limit, window, now)
	return args.Get(0).(Decision), args.Error(1)
}

func (m *MockLimiter) CurrentUsage(ctx context.Context, tenantID uuid.UUID, window time.Duration, now time.Time) (int, error) {
	args := m.Called(ctx, tenantID, window, now)
	return args.Int(0), args.Error(1)
}
