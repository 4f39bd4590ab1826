package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/legalease/internal/jobs"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// handleJobEvents streams a job's progress as Server-Sent Events. The
// current stored state is always sent first, so a subscriber attaching
// mid-run (or after the run finished) still observes the outcome.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	// Subscribe before the snapshot read so a transition landing between
	// the two is either in the snapshot or on the channel, never lost.
	// Subscribing to an unknown ID is harmless; cancel cleans it up.
	events, cancel := s.hub.Subscribe(id)
	defer cancel()

	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to get job: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := sse.WriteEvent("status", snapshotEvent(job)); err != nil {
		return
	}
	if job.Status.Terminal() {
		return
	}

	idle := time.NewTimer(s.sseIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-idle.C:
			sse.WriteError("stream idle timeout") //nolint:errcheck
			return
		case event, ok := <-events:
			if !ok {
				// Hub tore the job down; reconcile against the store so
				// the client still gets the terminal state.
				s.reconcile(r, sse, id)
				return
			}
			if err := sse.WriteEvent("status", event); err != nil {
				return
			}
			if event.Status.Terminal() {
				return
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(s.sseIdleTimeout)
		}
	}
}

// reconcile sends the stored terminal state after the event channel
// closed under the subscriber.
func (s *Server) reconcile(r *http.Request, sse *SSEWriter, id uuid.UUID) {
	job, err := s.store.Get(r.Context(), id)
	if err != nil || job == nil {
		return
	}
	sse.WriteEvent("status", snapshotEvent(job)) //nolint:errcheck
}

// snapshotEvent converts a stored job record into the event shape the
// stream uses for live transitions.
func snapshotEvent(job *jobs.Job) jobs.Event {
	event := jobs.Event{
		JobID:     job.ID,
		Status:    job.Status,
		Page:      job.CurrentPage,
		Timestamp: job.UpdatedAt,
	}
	if job.Summary != nil {
		event.Summary = *job.Summary
	}
	if job.ErrorMsg != nil {
		event.Error = *job.ErrorMsg
	}
	return event
}
