package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue records enqueued tasks without executing them.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func (q *fakeQueue) Enqueue(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// fakeArtifacts reports existence from a fixed set of paths.
type fakeArtifacts struct {
	paths map[string]bool
}

func (a *fakeArtifacts) Exists(path string) bool { return a.paths[path] }

func newTestDispatcher(t *testing.T, cfg DispatcherConfig) (*Dispatcher, *MemoryStore, *fakeQueue) {
	t.Helper()
	store := NewMemoryStore()
	queue := &fakeQueue{}
	artifacts := &fakeArtifacts{paths: map[string]bool{
		"/docs/deed.pdf": true,
		"/docs/scan.png": true,
	}}
	return NewDispatcher(store, queue, artifacts, nil, cfg), store, queue
}

func TestDispatcherSubmitQueues(t *testing.T) {
	d, store, queue := newTestDispatcher(t, DispatcherConfig{})
	ctx := context.Background()

	docID := uuid.New()
	result, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, result.Outcome)
	assert.Equal(t, docID, result.JobID, "document ID doubles as job ID")
	assert.Equal(t, 1, queue.len())

	job, err := store.Get(ctx, docID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, SourceKindPDF, job.SourceKind)
}

func TestDispatcherGeneratesIDWhenMissing(t *testing.T) {
	d, _, _ := newTestDispatcher(t, DispatcherConfig{})

	result, err := d.Submit(context.Background(), SubmitRequest{SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, result.Outcome)
	assert.NotEqual(t, uuid.Nil, result.JobID)
}

func TestDispatcherSkipsUnsupportedType(t *testing.T) {
	d, _, queue := newTestDispatcher(t, DispatcherConfig{})

	result, err := d.Submit(context.Background(), SubmitRequest{SourcePath: "/docs/notes.docx"})
	require.Error(t, err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Equal(t, SkipReasonUnsupportedType, result.Reason)
	assert.Equal(t, 0, queue.len())
}

func TestDispatcherSkipsMissingSource(t *testing.T) {
	d, _, queue := newTestDispatcher(t, DispatcherConfig{})

	result, err := d.Submit(context.Background(), SubmitRequest{SourcePath: "/docs/ghost.pdf"})
	require.Error(t, err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Equal(t, SkipReasonSourceMissing, result.Reason)
	assert.Equal(t, 0, queue.len())
}

func TestDispatcherSkipsInFlightDuplicate(t *testing.T) {
	d, _, queue := newTestDispatcher(t, DispatcherConfig{})
	ctx := context.Background()
	docID := uuid.New()

	first, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	require.Equal(t, OutcomeQueued, first.Outcome)

	second, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	assert.Equal(t, SkipReasonInFlight, second.Reason)
	assert.Equal(t, 1, queue.len(), "duplicate must not enqueue a second task")
}

func TestDispatcherSkipsCompletedUnlessForced(t *testing.T) {
	d, store, queue := newTestDispatcher(t, DispatcherConfig{})
	ctx := context.Background()
	docID := uuid.New()

	_, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	d.Release(docID)
	require.NoError(t, store.SetStatus(ctx, docID, StatusUpdate{Status: StatusProcessing}))
	require.NoError(t, store.Complete(ctx, docID, "done", nil))

	skipped, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, skipped.Outcome)
	assert.Equal(t, SkipReasonCompleted, skipped.Reason)
	d.Release(docID)

	forced, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf", Force: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, forced.Outcome)
	assert.Equal(t, 2, queue.len())
}

func TestDispatcherResubmitsFailed(t *testing.T) {
	d, store, _ := newTestDispatcher(t, DispatcherConfig{})
	ctx := context.Background()
	docID := uuid.New()

	_, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	d.Release(docID)
	require.NoError(t, store.Fail(ctx, docID, "OCR failed"))

	result, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, result.Outcome)
}

func TestDispatcherResubmitsStaleJob(t *testing.T) {
	d, store, _ := newTestDispatcher(t, DispatcherConfig{StaleAfter: time.Nanosecond})
	ctx := context.Background()
	docID := uuid.New()

	_, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	// The worker executing the first submission died; its in-flight entry
	// was released but the record is stuck mid-pipeline.
	d.Release(docID)
	require.NoError(t, store.SetStatus(ctx, docID, StatusUpdate{Status: StatusProcessing}))
	time.Sleep(time.Millisecond)

	result, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, result.Outcome)
}

func TestDispatcherSubmitMany(t *testing.T) {
	d, _, queue := newTestDispatcher(t, DispatcherConfig{})

	refs := []DocumentRef{
		{DocumentID: uuid.New(), SourcePath: "/docs/deed.pdf"},
		{DocumentID: uuid.New(), SourcePath: "/docs/scan.png"},
		{DocumentID: uuid.New(), SourcePath: "/docs/ghost.pdf"},
		{DocumentID: uuid.New(), SourcePath: "/docs/notes.docx"},
	}
	result, err := d.SubmitMany(context.Background(), refs, uuid.New(), false)
	require.NoError(t, err, "per-document problems must not fail the batch")
	assert.Len(t, result.Queued, 2)
	assert.Len(t, result.Skipped, 2)
	assert.Equal(t, 2, queue.len())
}

func TestTrackReleasesInFlight(t *testing.T) {
	d, _, _ := newTestDispatcher(t, DispatcherConfig{})
	ctx := context.Background()
	docID := uuid.New()

	_, err := d.Submit(ctx, SubmitRequest{DocumentID: docID, SourcePath: "/docs/deed.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.InFlight())

	track := &Track{Inner: &recordingExecutor{}, Dispatcher: d}
	require.NoError(t, track.Run(ctx, docID))
	assert.Equal(t, 0, d.InFlight(), "terminal job must leave the in-flight map")
}
