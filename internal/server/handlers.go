package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jonathan/legalease/internal/jobs"
)

// maxBulkDocuments bounds one bulk submission.
const maxBulkDocuments = 5

// ownerHeader carries the authenticated owner's ID, set by the gateway
// in front of this service.
const ownerHeader = "X-Owner-ID"

// SubmitJobRequest represents the request body for POST /jobs
type SubmitJobRequest struct {
	DocumentID string `json:"document_id,omitempty" validate:"omitempty,uuid"`
	SourcePath string `json:"source_path" validate:"required"`
	Force      bool   `json:"force,omitempty"`
}

// SubmitBulkRequest represents the request body for POST /jobs/bulk
type SubmitBulkRequest struct {
	Documents []SubmitJobRequest `json:"documents" validate:"required,min=1,max=5,dive"`
	Force     bool               `json:"force,omitempty"`
}

// handleSubmitJob queues a single document for processing
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	submit, err := s.submitRequest(req, r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.dispatcher.Submit(r.Context(), submit)
	if result.Outcome == jobs.OutcomeSkipped {
		s.jsonResponse(w, skipStatus(result.Reason), result)
		return
	}
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), "Failed to submit job: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, result)
}

// handleSubmitBulk queues up to maxBulkDocuments documents at once.
// Individual documents that cannot be queued are reported as skipped,
// never as a batch failure.
func (s *Server) handleSubmitBulk(w http.ResponseWriter, r *http.Request) {
	var req SubmitBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	refs := make([]jobs.DocumentRef, 0, len(req.Documents))
	for _, doc := range req.Documents {
		id, err := parseOptionalID(doc.DocumentID)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		refs = append(refs, jobs.DocumentRef{DocumentID: id, SourcePath: doc.SourcePath})
	}

	result, err := s.dispatcher.SubmitMany(r.Context(), refs, ownerID(r), req.Force)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), "Failed to submit documents: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, result)
}

// handleGetJob returns the full job record, page results included
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to get job: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleJobOutput serves the rendered output artifact of a completed job
func (s *Server) handleJobOutput(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to get job: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.Status != jobs.StatusCompleted {
		s.errorResponse(w, http.StatusConflict, "Job has not completed")
		return
	}
	if job.OutputPath == nil {
		s.errorResponse(w, http.StatusNotFound, "No output artifact for this job")
		return
	}
	if _, err := os.Stat(*job.OutputPath); err != nil {
		s.errorResponse(w, http.StatusNotFound, "Output artifact is no longer available")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(*job.OutputPath)+`"`)
	http.ServeFile(w, r, *job.OutputPath)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitRequest builds a dispatcher request from the HTTP request.
func (s *Server) submitRequest(req SubmitJobRequest, r *http.Request) (jobs.SubmitRequest, error) {
	id, err := parseOptionalID(req.DocumentID)
	if err != nil {
		return jobs.SubmitRequest{}, err
	}
	return jobs.SubmitRequest{
		DocumentID: id,
		SourcePath: req.SourcePath,
		OwnerID:    ownerID(r),
		Force:      req.Force,
	}, nil
}

func parseOptionalID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "document_id", Message: "must be a UUID"}
	}
	return id, nil
}

// ownerID reads the gateway-set owner header; an absent or malformed
// header yields the zero owner.
func ownerID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.Header.Get(ownerHeader))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
