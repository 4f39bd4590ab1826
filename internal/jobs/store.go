package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StatusUpdate is one atomic status transition plus any stage-specific
// fields written alongside it.
type StatusUpdate struct {
	Status      Status
	CurrentPage *int
	TotalPages  *int
}

// Store is the durable record of a job's processing state. The worker
// executing a job is its only writer, so implementations do not need
// per-job write conflict handling, but every write must be durable before
// the caller proceeds to the next stage.
//
// Get returns (nil, nil) when no job exists for the ID; not-found is a
// valid outcome distinct from any status.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	SetStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) error
	AppendPageResult(ctx context.Context, id uuid.UUID, page PageResult) error
	Complete(ctx context.Context, id uuid.UUID, summary string, outputPath *string) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

// MemoryStore is an in-process Store used by the one-shot CLI mode and by
// tests. It keeps the same semantics as the Postgres store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*Job)}
}

func (m *MemoryStore) Create(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneJob(job)
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.jobs[cp.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id uuid.UUID, update StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound{ID: id}
	}
	job.Status = update.Status
	if update.CurrentPage != nil {
		job.CurrentPage = update.CurrentPage
	}
	if update.TotalPages != nil {
		job.TotalPages = update.TotalPages
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) AppendPageResult(_ context.Context, id uuid.UUID, page PageResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound{ID: id}
	}
	job.PageResults = append(job.PageResults, page)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Complete(_ context.Context, id uuid.UUID, summary string, outputPath *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound{ID: id}
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.Summary = &summary
	job.OutputPath = outputPath
	job.ErrorMsg = nil
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (m *MemoryStore) Fail(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound{ID: id}
	}
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.ErrorMsg = &message
	job.Summary = nil
	job.OutputPath = nil
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func cloneJob(job *Job) *Job {
	cp := *job
	if job.PageResults != nil {
		cp.PageResults = make([]PageResult, len(job.PageResults))
		copy(cp.PageResults, job.PageResults)
	}
	cp.CurrentPage = clonePtr(job.CurrentPage)
	cp.TotalPages = clonePtr(job.TotalPages)
	cp.Summary = clonePtr(job.Summary)
	cp.OutputPath = clonePtr(job.OutputPath)
	cp.ErrorMsg = clonePtr(job.ErrorMsg)
	cp.CompletedAt = clonePtr(job.CompletedAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
