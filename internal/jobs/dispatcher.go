package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Artifacts is the dispatcher's view of source artifact storage: it only
// needs to know whether a referenced artifact is readable.
type Artifacts interface {
	Exists(path string) bool
}

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

// SubmitRequest asks for one document to be processed. DocumentID is the
// identifier assigned by the upload collaborator; it becomes the job ID.
// A zero DocumentID submits a fresh document with a generated ID. Force
// re-imports a document whose content was already extracted.
type SubmitRequest struct {
	DocumentID uuid.UUID
	SourcePath string
	OwnerID    uuid.UUID
	Force      bool
}

// Outcome of a submission.
const (
	OutcomeQueued  = "queued"
	OutcomeSkipped = "skipped"
)

// SubmitResult reports what happened to one submission.
type SubmitResult struct {
	JobID   uuid.UUID  `json:"job_id"`
	Outcome string     `json:"status"`
	Reason  SkipReason `json:"reason,omitempty"`
}

// DocumentRef names one document in a bulk submission.
type DocumentRef struct {
	DocumentID uuid.UUID `json:"document_id"`
	SourcePath string    `json:"source_path"`
}

// BulkResult collects per-document outcomes of a bulk submission.
type BulkResult struct {
	Queued  []SubmitResult `json:"queued"`
	Skipped []SubmitResult `json:"skipped"`
}

// DispatcherConfig tunes submission policy.
type DispatcherConfig struct {
	// StaleAfter is the liveness threshold: a non-terminal job whose
	// record has not been touched for longer is presumed abandoned by a
	// dead worker and its document becomes eligible for re-submission.
	StaleAfter time.Duration
	// ForceReimport makes every submission behave as if Force were set,
	// re-importing documents whose content already exists.
	ForceReimport bool
	// BulkConcurrency bounds parallel submissions in SubmitMany.
	BulkConcurrency int
}

// Dispatcher accepts job requests, enforces the no-duplicate-submission
// policy, and hands accepted jobs to the work queue. It owns the bounded
// in-flight map keyed by job ID; entries are removed when the job reaches
// a terminal state.
type Dispatcher struct {
	store     Store
	queue     Queue
	artifacts Artifacts
	logger    *slog.Logger
	cfg       DispatcherConfig

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(store Store, queue Queue, artifacts Artifacts, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 4
	}
	return &Dispatcher{
		store:     store,
		queue:     queue,
		artifacts: artifacts,
		logger:    logger,
		cfg:       cfg,
		inFlight:  make(map[uuid.UUID]struct{}),
	}
}

// Submit creates a job record in queued state and enqueues it, returning
// before any pipeline stage executes. A document that is already in
// flight or completed yields a skipped result instead of a second job.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	kind, err := KindForPath(req.SourcePath)
	if err != nil {
		return SubmitResult{JobID: req.DocumentID, Outcome: OutcomeSkipped, Reason: SkipReasonUnsupportedType}, err
	}
	if !d.artifacts.Exists(req.SourcePath) {
		return SubmitResult{JobID: req.DocumentID, Outcome: OutcomeSkipped, Reason: SkipReasonSourceMissing},
			fmt.Errorf("source artifact not found: %s", req.SourcePath)
	}

	jobID := req.DocumentID
	if jobID == uuid.Nil {
		jobID = uuid.New()
	}

	// Fast-path dedupe before any store read. The map also guards the
	// window between the queued write and the first worker heartbeat.
	d.mu.Lock()
	if _, busy := d.inFlight[jobID]; busy {
		d.mu.Unlock()
		return SubmitResult{JobID: jobID, Outcome: OutcomeSkipped, Reason: SkipReasonInFlight}, nil
	}
	d.inFlight[jobID] = struct{}{}
	d.mu.Unlock()

	if skip, reason := d.shouldSkip(ctx, jobID, req.Force); skip {
		d.release(jobID)
		return SubmitResult{JobID: jobID, Outcome: OutcomeSkipped, Reason: reason}, nil
	}

	now := time.Now().UTC()
	job := &Job{
		ID:         jobID,
		OwnerID:    req.OwnerID,
		SourceKind: kind,
		SourcePath: req.SourcePath,
		Status:     StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := d.store.Create(ctx, job); err != nil {
		d.release(jobID)
		return SubmitResult{}, fmt.Errorf("create job record: %w", err)
	}

	if err := d.queue.Enqueue(ctx, Task{JobID: jobID, SubmittedAt: now}); err != nil {
		d.release(jobID)
		return SubmitResult{}, fmt.Errorf("enqueue job: %w", err)
	}

	d.logger.Info("job submitted", "job_id", jobID, "owner_id", req.OwnerID, "source_kind", kind)
	return SubmitResult{JobID: jobID, Outcome: OutcomeQueued}, nil
}

// shouldSkip consults the store for an existing record of this document.
// In-flight jobs with a live heartbeat and completed jobs are skipped;
// failed jobs and stale non-terminal jobs may be re-submitted.
func (d *Dispatcher) shouldSkip(ctx context.Context, jobID uuid.UUID, force bool) (bool, SkipReason) {
	existing, err := d.store.Get(ctx, jobID)
	if err != nil || existing == nil {
		return false, ""
	}
	switch {
	case existing.Status == StatusFailed:
		return false, ""
	case existing.Status == StatusCompleted:
		if force || d.cfg.ForceReimport {
			return false, ""
		}
		return true, SkipReasonCompleted
	case existing.Stale(d.cfg.StaleAfter, time.Now().UTC()):
		// No heartbeat past the liveness threshold: the original
		// execution is presumed dead.
		d.logger.Warn("re-submitting stale job", "job_id", jobID, "last_status", existing.Status)
		return false, ""
	default:
		return true, SkipReasonInFlight
	}
}

// SubmitMany submits each document independently, collecting per-document
// outcomes. A missing source artifact is a skip, not a batch failure.
func (d *Dispatcher) SubmitMany(ctx context.Context, refs []DocumentRef, ownerID uuid.UUID, force bool) (*BulkResult, error) {
	var (
		mu     sync.Mutex
		result BulkResult
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.BulkConcurrency)

	for _, ref := range refs {
		g.Go(func() error {
			res, err := d.Submit(gCtx, SubmitRequest{
				DocumentID: ref.DocumentID,
				SourcePath: ref.SourcePath,
				OwnerID:    ownerID,
				Force:      force,
			})
			mu.Lock()
			defer mu.Unlock()
			if res.Outcome == OutcomeQueued {
				result.Queued = append(result.Queued, res)
			} else {
				if err != nil {
					d.logger.Warn("bulk submission skipped document", "source_path", ref.SourcePath, "error", err)
				}
				result.Skipped = append(result.Skipped, res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}

// Release removes a job from the in-flight map. Called by the execution
// wrapper once the job reaches a terminal state so the map stays bounded.
func (d *Dispatcher) Release(jobID uuid.UUID) {
	d.release(jobID)
}

func (d *Dispatcher) release(jobID uuid.UUID) {
	d.mu.Lock()
	delete(d.inFlight, jobID)
	d.mu.Unlock()
}

// InFlight reports how many jobs are currently tracked.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}

// Track implements Executor around an inner executor, releasing the
// dispatcher's in-flight entry when the job finishes. The Dispatcher
// field is set after construction to break the pool/dispatcher cycle.
type Track struct {
	Inner      Executor
	Dispatcher *Dispatcher
}

// Run executes the job and releases its in-flight entry afterwards.
func (t *Track) Run(ctx context.Context, jobID uuid.UUID) error {
	defer func() {
		if t.Dispatcher != nil {
			t.Dispatcher.Release(jobID)
		}
	}()
	return t.Inner.Run(ctx, jobID)
}
