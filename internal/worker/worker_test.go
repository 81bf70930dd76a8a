package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/queue"
	"github.com/tomerlieber/docflow/internal/store"
)

// fakeLastServed is a minimal in-memory LastServedStore, enough to drive a
// single-tenant Scheduler deterministically in these tests.
type fakeLastServed struct {
	last map[queue.Stage]uuid.UUID
}

func newFakeLastServed() *fakeLastServed {
	return &fakeLastServed{last: make(map[queue.Stage]uuid.UUID)}
}

func (f *fakeLastServed) GetLastServed(ctx context.Context, stage queue.Stage) (uuid.UUID, bool) {
	id, ok := f.last[stage]
	return id, ok
}

func (f *fakeLastServed) SetLastServed(ctx context.Context, stage queue.Stage, tenantID uuid.UUID) error {
	f.last[stage] = tenantID
	return nil
}

// stubHandler returns a canned error (or nil) from Handle, recording every
// job it was invoked with.
type stubHandler struct {
	err  error
	jobs []store.Job
}

func (h *stubHandler) Handle(ctx context.Context, job store.Job) error {
	h.jobs = append(h.jobs, job)
	return h.err
}

func newTestRunner(t *testing.T, handler Handler) (*Runner, *store.MockStore, *queue.MockSubstrate) {
	t.Helper()
	mockStore := &store.MockStore{}
	mockSubstrate := &queue.MockSubstrate{}
	mockDoorbell := &queue.MockDoorbell{}
	mockDoorbell.On("Ring", mock.Anything).Return()

	scheduler := queue.NewScheduler(mockSubstrate, nil, nil)
	runner := NewRunner(Config{
		Stage:        store.StageExtract,
		Scheduler:    scheduler,
		Substrate:    mockSubstrate,
		LastServed:   newFakeLastServed(),
		Doorbell:     mockDoorbell,
		Store:        mockStore,
		Handler:      handler,
		StageTimeout: time.Second,
	})
	return runner, mockStore, mockSubstrate
}

func TestRunnerRetriesTransientFailure(t *testing.T) {
	tenantID, jobID, docID := uuid.New(), uuid.New(), uuid.New()
	job := store.Job{ID: jobID, TenantID: tenantID, DocumentID: docID, Stage: store.StageExtract, Status: store.JobProcessing, RetryCount: 0, MaxRetries: 3}

	handler := &stubHandler{err: apperr.Wrap(apperr.KindTransient, "blob fetch failed", errors.New("i/o error"))}
	runner, mockStore, mockSubstrate := newTestRunner(t, handler)

	mockStore.On("GetJob", mock.Anything, tenantID, jobID).Return(job, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobPending, store.JobProcessing, "", 0).Return(true, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobProcessing, store.JobPending, handler.err.Error(), 1).Return(true, nil)
	mockSubstrate.On("Enqueue", mock.Anything, tenantID, queue.Stage(store.StageExtract), jobID, mock.AnythingOfType("float64")).Return(nil)

	err := runner.processJob(context.Background(), tenantID, jobID)
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
	mockSubstrate.AssertExpectations(t)
}

func TestRunnerDeadLettersAfterMaxRetries(t *testing.T) {
	tenantID, jobID, docID := uuid.New(), uuid.New(), uuid.New()
	job := store.Job{ID: jobID, TenantID: tenantID, DocumentID: docID, Stage: store.StageExtract, Status: store.JobProcessing, RetryCount: 3, MaxRetries: 3}

	cause := apperr.Wrap(apperr.KindTransient, "blob fetch failed", errors.New("i/o error"))
	handler := &stubHandler{err: cause}
	runner, mockStore, _ := newTestRunner(t, handler)

	mockStore.On("GetJob", mock.Anything, tenantID, jobID).Return(job, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobPending, store.JobProcessing, "", 3).Return(true, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobProcessing, store.JobDead, cause.Error(), 3).Return(true, nil)
	mockStore.On("MarkDocumentFailed", mock.Anything, tenantID, docID, cause.Error()).Return(nil)

	err := runner.processJob(context.Background(), tenantID, jobID)
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestRunnerDeadLettersPermanentFailureImmediately(t *testing.T) {
	tenantID, jobID, docID := uuid.New(), uuid.New(), uuid.New()
	job := store.Job{ID: jobID, TenantID: tenantID, DocumentID: docID, Stage: store.StageExtract, Status: store.JobProcessing, RetryCount: 0, MaxRetries: 3}

	cause := apperr.New(apperr.KindPermanent, "corrupt pdf")
	handler := &stubHandler{err: cause}
	runner, mockStore, _ := newTestRunner(t, handler)

	mockStore.On("GetJob", mock.Anything, tenantID, jobID).Return(job, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobPending, store.JobProcessing, "", 0).Return(true, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobProcessing, store.JobDead, cause.Error(), 0).Return(true, nil)
	mockStore.On("MarkDocumentFailed", mock.Anything, tenantID, docID, cause.Error()).Return(nil)

	err := runner.processJob(context.Background(), tenantID, jobID)
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
	require.Len(t, handler.jobs, 1)
}

func TestRunnerSkipsAlreadyLeasedJob(t *testing.T) {
	tenantID, jobID, docID := uuid.New(), uuid.New(), uuid.New()
	job := store.Job{ID: jobID, TenantID: tenantID, DocumentID: docID, Stage: store.StageExtract, Status: store.JobPending, RetryCount: 0, MaxRetries: 3}

	handler := &stubHandler{}
	runner, mockStore, _ := newTestRunner(t, handler)

	mockStore.On("GetJob", mock.Anything, tenantID, jobID).Return(job, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobPending, store.JobProcessing, "", 0).Return(false, nil)

	err := runner.processJob(context.Background(), tenantID, jobID)
	require.NoError(t, err)
	require.Empty(t, handler.jobs, "handler must not run when the lease fence rejects the transition")
	mockStore.AssertExpectations(t)
}

func TestRunnerSucceedsWithoutTouchingJobState(t *testing.T) {
	// A successful Handle is responsible for completing the job itself; the
	// Runner must not transition it on success.
	tenantID, jobID, docID := uuid.New(), uuid.New(), uuid.New()
	job := store.Job{ID: jobID, TenantID: tenantID, DocumentID: docID, Stage: store.StageExtract, Status: store.JobPending, RetryCount: 0, MaxRetries: 3}

	handler := &stubHandler{err: nil}
	runner, mockStore, _ := newTestRunner(t, handler)

	mockStore.On("GetJob", mock.Anything, tenantID, jobID).Return(job, nil)
	mockStore.On("TransitionJob", mock.Anything, tenantID, jobID, store.JobPending, store.JobProcessing, "", 0).Return(true, nil)

	err := runner.processJob(context.Background(), tenantID, jobID)
	require.NoError(t, err)
	require.Len(t, handler.jobs, 1)
	mockStore.AssertExpectations(t)
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	require.Equal(t, 100*time.Millisecond, nextBackoff(50*time.Millisecond, time.Second))
	require.Equal(t, time.Second, nextBackoff(900*time.Millisecond, time.Second))
}
