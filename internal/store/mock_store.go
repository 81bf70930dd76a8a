package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateTenant(ctx context.Context, name, credentialFingerprint string, rateLimitPerMinute int) (Tenant, error) {
	args := m.Called(ctx, name, credentialFingerprint, rateLimitPerMinute)
	return args.Get(0).(Tenant), args.Error(1)
}

func (m *MockStore) GetTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(Tenant), args.Error(1)
}

func (m *MockStore) GetTenantByFingerprint(ctx context.Context, fingerprint string) (Tenant, error) {
	args := m.Called(ctx, fingerprint)
	return args.Get(0).(Tenant), args.Error(1)
}

func (m *MockStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Tenant), args.Error(1)
}

func (m *MockStore) RotateCredential(ctx context.Context, tenantID uuid.UUID, newFingerprint string) error {
	args := m.Called(ctx, tenantID, newFingerprint)
	return args.Error(0)
}

func (m *MockStore) DeleteTenant(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockStore) TenantMetrics(ctx context.Context, tenantID uuid.UUID) (TenantMetrics, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(TenantMetrics), args.Error(1)
}

func (m *MockStore) CreateDocument(ctx context.Context, tenantID, documentID uuid.UUID, filename, blobPath string, sizeBytes int64, metadata map[string]any) (Document, error) {
	args := m.Called(ctx, tenantID, documentID, filename, blobPath, sizeBytes, metadata)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) GetDocument(ctx context.Context, tenantID, documentID uuid.UUID) (Document, error) {
	args := m.Called(ctx, tenantID, documentID)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) UpdateDocumentStatus(ctx context.Context, tenantID, documentID uuid.UUID, status DocumentStatus) error {
	args := m.Called(ctx, tenantID, documentID, status)
	return args.Error(0)
}

func (m *MockStore) MarkDocumentFailed(ctx context.Context, tenantID, documentID uuid.UUID, errMsg string) error {
	args := m.Called(ctx, tenantID, documentID, errMsg)
	return args.Error(0)
}

func (m *MockStore) MarkFailedDeletion(ctx context.Context, tenantID, documentID uuid.UUID, failed bool) error {
	args := m.Called(ctx, tenantID, documentID, failed)
	return args.Error(0)
}

func (m *MockStore) SetDocumentSummary(ctx context.Context, tenantID, documentID uuid.UUID, text string, keyPoints []string) error {
	args := m.Called(ctx, tenantID, documentID, text, keyPoints)
	return args.Error(0)
}

func (m *MockStore) DeleteDocumentRow(ctx context.Context, tenantID, documentID uuid.UUID) error {
	args := m.Called(ctx, tenantID, documentID)
	return args.Error(0)
}

func (m *MockStore) ListDocumentsWithFailedDeletion(ctx context.Context, tenantID uuid.UUID) ([]Document, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockStore) ListDocuments(ctx context.Context, tenantID uuid.UUID) ([]Document, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockStore) SaveChunks(ctx context.Context, tenantID, documentID uuid.UUID, chunks []Chunk) ([]Chunk, error) {
	args := m.Called(ctx, tenantID, documentID, chunks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Chunk), args.Error(1)
}

func (m *MockStore) ListChunks(ctx context.Context, tenantID, documentID uuid.UUID) ([]Chunk, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Chunk), args.Error(1)
}

func (m *MockStore) GetChunks(ctx context.Context, tenantID uuid.UUID, chunkIDs []uuid.UUID) ([]Chunk, error) {
	args := m.Called(ctx, tenantID, chunkIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Chunk), args.Error(1)
}

func (m *MockStore) SetChunkVectorSnapshotPath(ctx context.Context, tenantID, chunkID uuid.UUID, path string) error {
	args := m.Called(ctx, tenantID, chunkID, path)
	return args.Error(0)
}

func (m *MockStore) AllChunksEmbedded(ctx context.Context, tenantID, documentID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, documentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteChunksByDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) CreateJob(ctx context.Context, job Job) (Job, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(Job), args.Error(1)
}

func (m *MockStore) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (Job, error) {
	args := m.Called(ctx, tenantID, jobID)
	return args.Get(0).(Job), args.Error(1)
}

func (m *MockStore) TransitionJob(ctx context.Context, tenantID, jobID uuid.UUID, fromStatus, toStatus JobStatus, errMsg string, retryCount int) (bool, error) {
	args := m.Called(ctx, tenantID, jobID, fromStatus, toStatus, errMsg, retryCount)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListJobsByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]Job, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Job), args.Error(1)
}

func (m *MockStore) DeleteJobsByDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
