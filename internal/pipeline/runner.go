// Package pipeline drives a submitted document through OCR, translation,
// simplification, summarization, persistence, and rendering, writing a
// durable status transition and publishing a progress event after every
// stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/legalease/internal/jobs"
	"github.com/jonathan/legalease/internal/llm"
	"github.com/jonathan/legalease/internal/ocr"
	"github.com/jonathan/legalease/internal/render"
)

// placeholderSummary marks a job whose summarization stage failed. The
// job still completes; per-page content is the primary deliverable.
const placeholderSummary = "Summary generation failed."

// noTextSummary marks a document with no readable text at all.
const noTextSummary = "No readable text found in document."

// Translator is the runner's view of the language-model service.
type Translator interface {
	TranslatePage(ctx context.Context, text string, pageNum int) (string, error)
	SimplifyPage(ctx context.Context, text string, pageNum int) (string, error)
	Summarize(ctx context.Context, pages []llm.PageContent) (string, error)
}

// Outputs is the runner's view of artifact storage.
type Outputs interface {
	Exists(path string) bool
	WriteOutput(jobID uuid.UUID, data []byte) (string, error)
}

// Runner executes the job state machine. One runner serves all workers;
// it holds no per-job state and no lock is held while a collaborator
// call is in flight.
type Runner struct {
	store      jobs.Store
	hub        *jobs.Hub
	engine     ocr.Engine
	translator Translator
	outputs    Outputs
	logger     *slog.Logger
	retry      RetryPolicy
}

// NewRunner wires a pipeline runner.
func NewRunner(store jobs.Store, hub *jobs.Hub, engine ocr.Engine, translator Translator, outputs Outputs, logger *slog.Logger, retry RetryPolicy) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.Attempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &Runner{
		store:      store,
		hub:        hub,
		engine:     engine,
		translator: translator,
		outputs:    outputs,
		logger:     logger,
		retry:      retry,
	}
}

// Run executes a job end-to-end. Fatal errors transition the job to
// failed and are returned; per-page and best-effort failures are
// recorded in the job record and do not fail the job. A context
// cancellation (worker timeout, shutdown) is returned without writing
// any terminal state: the record stays at its last durable stage so the
// staleness check can re-admit the document later.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return jobs.ErrJobNotFound{ID: jobID}
	}
	if job.Status.Terminal() {
		// Duplicate queue delivery for an already-finished job.
		r.logger.Warn("skipping terminal job", "job_id", jobID, "status", job.Status)
		return nil
	}

	if err := r.transition(ctx, job, jobs.StatusProcessing, "Processing started", nil); err != nil {
		return err
	}

	if !r.outputs.Exists(job.SourcePath) {
		return r.fail(ctx, job, fmt.Sprintf("source file not found on disk: %s", job.SourcePath))
	}

	// OCR extraction: a whole-document failure is fatal.
	if err := r.transition(ctx, job, jobs.StatusOCRStarted, "Starting OCR extraction", nil); err != nil {
		return err
	}

	var pages []ocr.Page
	err = r.retry.Do(ctx, func() error {
		var ocrErr error
		pages, ocrErr = r.extract(ctx, job)
		return ocrErr
	})
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Warn("job interrupted during OCR, leaving for re-submission", "job_id", job.ID, "error", err)
			return fmt.Errorf("job %s interrupted during OCR: %w", job.ID, ctx.Err())
		}
		return r.fail(ctx, job, fmt.Sprintf("OCR failed: %v", err))
	}

	total := len(pages)
	if err := r.transition(ctx, job, jobs.StatusOCRCompleted,
		fmt.Sprintf("OCR completed. Extracted %d pages", total),
		&jobs.StatusUpdate{Status: jobs.StatusOCRCompleted, TotalPages: &total}); err != nil {
		return err
	}
	r.logger.Info("ocr completed", "job_id", job.ID, "pages", total)

	if !hasText(pages) {
		// Nothing to translate: the job completes straight from
		// ocr_completed with no page results.
		return r.complete(ctx, job, noTextSummary, nil)
	}

	results, err := r.processPages(ctx, job, pages)
	if err != nil {
		return err
	}

	// Summarization is best-effort: the job still completes with a
	// placeholder summary on failure.
	if err := r.transition(ctx, job, jobs.StatusSummarising, "Creating document summary", nil); err != nil {
		return err
	}
	summary, err := r.summarize(ctx, job, results)
	if err != nil {
		r.logger.Warn("job interrupted during summary, leaving for re-submission", "job_id", job.ID, "error", err)
		return fmt.Errorf("job %s interrupted during summary: %w", job.ID, err)
	}

	return r.complete(ctx, job, summary, results)
}

// extract dispatches on the source kind resolved at submission time.
func (r *Runner) extract(ctx context.Context, job *jobs.Job) ([]ocr.Page, error) {
	switch job.SourceKind {
	case jobs.SourceKindPDF:
		return r.engine.ExtractPDF(ctx, job.SourcePath)
	case jobs.SourceKindImage:
		return r.engine.ExtractImage(ctx, job.SourcePath)
	default:
		return nil, fmt.Errorf("unknown source kind %q", job.SourceKind)
	}
}

// processPages runs the per-page translation/simplification loop in OCR
// order on the calling worker. A failure for one page falls back to the
// raw text for that page and does not abort the job.
func (r *Runner) processPages(ctx context.Context, job *jobs.Job, pages []ocr.Page) ([]jobs.PageResult, error) {
	results := make([]jobs.PageResult, 0, len(pages))

	for _, page := range pages {
		n := page.Number
		if err := r.transition(ctx, job, jobs.StatusTranslationStarted,
			fmt.Sprintf("Translating page %d", n),
			&jobs.StatusUpdate{Status: jobs.StatusTranslationStarted, CurrentPage: &n}); err != nil {
			return nil, err
		}

		result, err := r.processPage(ctx, job.ID, page)
		if err != nil {
			r.logger.Warn("job interrupted mid-page, leaving for re-submission", "job_id", job.ID, "page", n, "error", err)
			return nil, fmt.Errorf("job %s interrupted on page %d: %w", job.ID, n, err)
		}
		if err := r.store.AppendPageResult(ctx, job.ID, result); err != nil {
			return nil, r.fail(ctx, job, fmt.Sprintf("persisting page %d failed: %v", n, err))
		}
		results = append(results, result)

		if err := r.transition(ctx, job, jobs.StatusTranslationCompleted,
			fmt.Sprintf("Translation completed for page %d", n),
			&jobs.StatusUpdate{Status: jobs.StatusTranslationCompleted, CurrentPage: &n}); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// processPage translates and simplifies a single page. Pages without
// Tamil script bypass translation and pass through unchanged; blank
// pages are retained untouched to preserve page-number continuity. The
// raw-text fallback only absorbs genuine service failures: when the
// context is done the cancellation is returned instead, since every
// remaining call would fail the same way and the fallback would record
// untranslated pages as a finished document.
func (r *Runner) processPage(ctx context.Context, jobID uuid.UUID, page ocr.Page) (jobs.PageResult, error) {
	raw := strings.TrimSpace(page.Text)
	result := jobs.PageResult{PageNumber: page.Number, OriginalText: raw}
	if raw == "" {
		return result, nil
	}

	translated := raw
	if llm.ContainsTamil(raw) {
		var err error
		err = r.retry.Do(ctx, func() error {
			var callErr error
			translated, callErr = r.translator.TranslatePage(ctx, raw, page.Number)
			return callErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// Keep the raw OCR text so the page is not lost.
			r.logger.Warn("page translation failed, using raw text", "job_id", jobID, "page", page.Number, "error", err)
			result.TranslatedText = raw
			result.SimplifiedText = raw
			result.Error = fmt.Sprintf("translation failed: %v", err)
			return result, nil
		}
	}
	result.TranslatedText = translated

	var simplified string
	err := r.retry.Do(ctx, func() error {
		var callErr error
		simplified, callErr = r.translator.SimplifyPage(ctx, translated, page.Number)
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		r.logger.Warn("page simplification failed, using translated text", "job_id", jobID, "page", page.Number, "error", err)
		result.SimplifiedText = translated
		result.Error = fmt.Sprintf("simplification failed: %v", err)
		return result, nil
	}
	result.SimplifiedText = simplified
	return result, nil
}

// summarize builds the document synopsis, degrading to a placeholder on
// failure. Cancellation is returned, not masked by the placeholder.
func (r *Runner) summarize(ctx context.Context, job *jobs.Job, results []jobs.PageResult) (string, error) {
	contents := make([]llm.PageContent, 0, len(results))
	for _, res := range results {
		if res.TranslatedText == "" {
			continue
		}
		contents = append(contents, llm.PageContent{Number: res.PageNumber, Text: res.TranslatedText})
	}

	var summary string
	err := r.retry.Do(ctx, func() error {
		var callErr error
		summary, callErr = r.translator.Summarize(ctx, contents)
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn("summary generation failed", "job_id", job.ID, "error", err)
		return placeholderSummary, nil
	}
	return summary, nil
}

// complete renders the output artifact (best-effort), writes the terminal
// record, and publishes the terminal event.
func (r *Runner) complete(ctx context.Context, job *jobs.Job, summary string, results []jobs.PageResult) error {
	var outputPath *string
	if len(results) > 0 {
		if path, err := r.renderOutput(job, summary, results); err != nil {
			// The textual result is already durably stored; rendering
			// failure only withholds the downloadable artifact.
			r.logger.Warn("output rendering failed", "job_id", job.ID, "error", err)
		} else {
			outputPath = &path
		}
	}

	if err := r.store.Complete(ctx, job.ID, summary, outputPath); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("job %s interrupted while saving results: %w", job.ID, ctx.Err())
		}
		// Persistence of the final result is fatal.
		return r.fail(ctx, job, fmt.Sprintf("saving final results failed: %v", err))
	}

	r.hub.Publish(jobs.Event{
		JobID:   job.ID,
		Status:  jobs.StatusCompleted,
		Message: "Document processing completed",
		Summary: summary,
	})
	r.hub.CloseJob(job.ID)
	r.logger.Info("job completed", "job_id", job.ID, "pages", len(results), "rendered", outputPath != nil)
	return nil
}

func (r *Runner) renderOutput(job *jobs.Job, summary string, results []jobs.PageResult) (string, error) {
	sections := make([]render.Section, 0, len(results)+1)
	for _, res := range results {
		body := res.SimplifiedText
		if body == "" {
			body = res.TranslatedText
		}
		if body == "" {
			body = res.OriginalText
		}
		sections = append(sections, render.Section{
			Title: fmt.Sprintf("Page %d", res.PageNumber),
			Body:  body,
		})
	}
	sections = append(sections, render.Section{Title: "Summary", Body: summary})

	data, err := render.PDF(fmt.Sprintf("Translated Document %s", job.ID), sections)
	if err != nil {
		return "", err
	}
	return r.outputs.WriteOutput(job.ID, data)
}

// transition performs one atomic status write followed by a progress
// event. The durable write always happens before the event so a poller
// never observes a stale status behind a delivered event.
func (r *Runner) transition(ctx context.Context, job *jobs.Job, to jobs.Status, message string, update *jobs.StatusUpdate) error {
	if !jobs.CanTransition(job.Status, to) {
		return fmt.Errorf("illegal status transition %s -> %s for job %s", job.Status, to, job.ID)
	}
	if update == nil {
		update = &jobs.StatusUpdate{Status: to}
	}
	if err := r.store.SetStatus(ctx, job.ID, *update); err != nil {
		return fmt.Errorf("write status %s: %w", to, err)
	}
	job.Status = to

	event := jobs.Event{JobID: job.ID, Status: to, Message: message, Page: update.CurrentPage}
	r.hub.Publish(event)
	return nil
}

// fail writes the terminal failure record and publishes the terminal
// event. The original cause message is what callers see.
func (r *Runner) fail(ctx context.Context, job *jobs.Job, message string) error {
	if err := r.store.Fail(ctx, job.ID, message); err != nil {
		r.logger.Error("failed to record job failure", "job_id", job.ID, "error", err)
	}
	r.hub.Publish(jobs.Event{
		JobID:   job.ID,
		Status:  jobs.StatusFailed,
		Message: "Processing failed",
		Error:   message,
	})
	r.hub.CloseJob(job.ID)
	r.logger.Error("job failed", "job_id", job.ID, "error", message)
	return fmt.Errorf("job %s failed: %s", job.ID, message)
}

func hasText(pages []ocr.Page) bool {
	for _, page := range pages {
		if strings.TrimSpace(page.Text) != "" {
			return true
		}
	}
	return false
}
