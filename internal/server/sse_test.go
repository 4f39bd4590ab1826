package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/legalease/internal/jobs"
	"github.com/jonathan/legalease/internal/storage"
)

func TestJobEventsSnapshotForTerminalJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := &jobs.Job{ID: uuid.New(), Status: jobs.StatusQueued}
	require.NoError(t, env.store.Create(ctx, job))
	require.NoError(t, env.store.SetStatus(ctx, job.ID, jobs.StatusUpdate{Status: jobs.StatusProcessing}))
	require.NoError(t, env.store.Complete(ctx, job.ID, "final summary", nil))

	// A subscriber attaching after completion still sees the outcome.
	rec := env.do(t, http.MethodGet, "/jobs/"+job.ID.String()+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: status")
	assert.Contains(t, body, `"status":"completed"`)
	assert.Contains(t, body, "final summary")
}

func TestJobEventsStreamsTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := &jobs.Job{ID: uuid.New(), Status: jobs.StatusQueued}
	require.NoError(t, env.store.Create(ctx, job))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.server.Handler().ServeHTTP(rec, req)
	}()

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		return env.hub.SubscriberCount(job.ID) == 1
	}, time.Second, 5*time.Millisecond)

	env.hub.Publish(jobs.Event{JobID: job.ID, Status: jobs.StatusProcessing, Message: "Processing started"})
	env.hub.Publish(jobs.Event{JobID: job.ID, Status: jobs.StatusCompleted, Message: "Document processing completed", Summary: "done"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after terminal event")
	}

	body := rec.Body.String()
	assert.Contains(t, body, `"status":"queued"`, "snapshot comes first")
	assert.Contains(t, body, `"status":"processing"`)
	assert.Contains(t, body, `"status":"completed"`)
	assert.Equal(t, 3, strings.Count(body, "event: status"))
}

func TestJobEventsReconcilesOnHubClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := &jobs.Job{ID: uuid.New(), Status: jobs.StatusQueued}
	require.NoError(t, env.store.Create(ctx, job))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.server.Handler().ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool {
		return env.hub.SubscriberCount(job.ID) == 1
	}, time.Second, 5*time.Millisecond)

	// The terminal event is written durably but its publish is missed;
	// the closed channel forces a store reconciliation.
	require.NoError(t, env.store.SetStatus(ctx, job.ID, jobs.StatusUpdate{Status: jobs.StatusProcessing}))
	require.NoError(t, env.store.Fail(ctx, job.ID, "OCR failed: boom"))
	env.hub.CloseJob(job.ID)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after hub close")
	}

	body := rec.Body.String()
	assert.Contains(t, body, `"status":"failed"`)
	assert.Contains(t, body, "OCR failed: boom")
}

// finishingStore returns a stale snapshot from its first Get while the
// job finishes underneath it, imitating a run that reaches the terminal
// state during the handler's snapshot read.
type finishingStore struct {
	jobs.Store
	hub  *jobs.Hub
	id   uuid.UUID
	once sync.Once
}

func (f *finishingStore) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	job, err := f.Store.Get(ctx, id)
	if err != nil || job == nil || id != f.id {
		return job, err
	}
	f.once.Do(func() {
		f.Store.Complete(ctx, id, "late summary", nil) //nolint:errcheck
		f.hub.Publish(jobs.Event{JobID: id, Status: jobs.StatusCompleted, Summary: "late summary"})
		f.hub.CloseJob(id)
	})
	return job, err
}

func TestJobEventsTerminalDuringSnapshotRead(t *testing.T) {
	ctx := context.Background()
	inner := jobs.NewMemoryStore()
	hub := jobs.NewHub()

	job := &jobs.Job{ID: uuid.New(), Status: jobs.StatusQueued}
	require.NoError(t, inner.Create(ctx, job))
	require.NoError(t, inner.SetStatus(ctx, job.ID, jobs.StatusUpdate{Status: jobs.StatusProcessing}))

	store := &finishingStore{Store: inner, hub: hub, id: job.ID}
	dispatcher := jobs.NewDispatcher(store, dropQueue{}, storage.NewLocalFS(t.TempDir()), nil, jobs.DispatcherConfig{})
	srv := New(Config{}, store, hub, dispatcher, nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Handler().ServeHTTP(rec, req)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not deliver the terminal state")
	}

	// The stale processing snapshot alone is not enough; the client must
	// still receive the completed event even though the hub tore the job
	// down while the snapshot was being read.
	body := rec.Body.String()
	assert.Contains(t, body, `"status":"completed"`)
	assert.Contains(t, body, "late summary")
	assert.NotContains(t, body, "stream idle timeout")
}

func TestJobEventsUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/jobs/"+uuid.NewString()+"/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
