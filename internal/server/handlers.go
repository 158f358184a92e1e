package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atreyu1968/manuscript-mender/internal/correction"
	"github.com/atreyu1968/manuscript-mender/internal/db"
	"github.com/atreyu1968/manuscript-mender/internal/ledger"
	"github.com/atreyu1968/manuscript-mender/internal/structural"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// CreateManuscriptRequest is the payload for registering a manuscript.
type CreateManuscriptRequest struct {
	Title   string `json:"title" validate:"max=500"`
	Content string `json:"content" validate:"required,min=1"`
}

// IssueInput is one audit finding submitted for a correction run.
type IssueInput struct {
	ID          string `json:"id"`
	Description string `json:"description" validate:"required"`
	Location    string `json:"location"`
	Severity    string `json:"severity" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Suggestion  string `json:"suggestion"`
}

// RunRequest is the payload for starting a correction run.
type RunRequest struct {
	Issues []IssueInput `json:"issues" validate:"required,min=1,dive"`
}

// ResolveRequest selects a structural resolution option.
type ResolveRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

// reviewResponse is the shared response shape for review actions.
type reviewResponse struct {
	Correction   *types.CorrectionRecord `json:"correction"`
	ManuscriptID string                  `json:"manuscript_id"`
	Status       types.ManuscriptStatus  `json:"status"`
	Pending      int                     `json:"pending"`
	Approved     int                     `json:"approved"`
	Rejected     int                     `json:"rejected"`
}

// handleCreateManuscript registers a manuscript for correction.
func (s *Server) handleCreateManuscript(w http.ResponseWriter, r *http.Request) {
	var req CreateManuscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	id := uuid.NewString()
	if err := s.store.CreateManuscript(r.Context(), id, req.Title, req.Content); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, map[string]string{"id": id})
}

// handleListManuscripts lists stored manuscripts, newest first.
func (s *Server) handleListManuscripts(w http.ResponseWriter, r *http.Request) {
	filters := db.ManuscriptFilters{Status: r.URL.Query().Get("status")}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	summaries, err := s.store.ListManuscripts(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []db.ManuscriptSummary{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"manuscripts": summaries})
}

// handleGetManuscript returns a manuscript's full correction state.
func (s *Server) handleGetManuscript(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetManuscript(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.errorResponse(w, http.StatusNotFound, "manuscript not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, m)
}

// handleDeleteManuscript removes a manuscript and its corrections.
func (s *Server) handleDeleteManuscript(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteManuscript(r.Context(), r.PathValue("id")); err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRunStream runs the correction engine over the submitted issues and
// streams progress via SSE. The engine runs in its own goroutine; events are
// pumped to the client from the handler goroutine.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	manuscriptID := r.PathValue("id")
	unlock := s.locks.Lock(manuscriptID)
	defer unlock()

	m, err := s.store.GetManuscript(r.Context(), manuscriptID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.errorResponse(w, http.StatusNotFound, "manuscript not found")
		return
	}

	issues := make([]types.AuditIssue, 0, len(req.Issues))
	for _, in := range req.Issues {
		issue := types.AuditIssue{
			ID:          in.ID,
			Description: in.Description,
			Location:    in.Location,
			Severity:    types.Severity(in.Severity),
			Suggestion:  in.Suggestion,
		}
		if issue.ID == "" {
			issue.ID = uuid.NewString()
		}
		issues = append(issues, issue)
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("Starting correction run for manuscript %s (%d issues)", manuscriptID, len(issues))

	events := make(chan correction.ProgressEvent, 16)
	engine := correction.NewEngine(s.client, correction.Options{
		OnProgress: func(event correction.ProgressEvent) {
			events <- event
		},
	})

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		defer close(events)
		return engine.Run(ctx, m, issues)
	})

	for event := range events {
		if err := sse.WriteEvent("progress", event); err != nil {
			// Client gone; keep draining so the engine can wind down
			// between iterations.
			log.Printf("SSE write failed: %v", err)
		}
	}

	runErr := g.Wait()

	// Persist whatever was proposed, even on a cancelled run. The request
	// context is dead after a disconnect, so the save must not inherit its
	// cancellation.
	if err := s.store.SaveManuscript(context.WithoutCancel(r.Context()), m); err != nil {
		log.Printf("Failed to save manuscript %s: %v", manuscriptID, err)
		sse.WriteError("failed to persist corrections: " + err.Error())
		return
	}

	if runErr != nil {
		sse.WriteError(runErr.Error())
		return
	}

	sse.WriteComplete(map[string]any{
		"manuscript_id": m.ID,
		"status":        m.Status,
		"total_issues":  m.TotalIssues,
		"corrected":     m.CorrectedIssues,
		"rejected":      m.RejectedIssues,
		"pending":       m.PendingCount(),
	})
}

// handleApprove applies a pending correction to the working content.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.reviewAction(w, r, func(m *types.CorrectedManuscript, id string) error {
		return ledger.Approve(m, id)
	})
}

// handleReject marks a pending correction rejected.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.reviewAction(w, r, func(m *types.CorrectedManuscript, id string) error {
		return ledger.Reject(m, id)
	})
}

// reviewAction runs a ledger mutation on the manuscript owning the
// correction, serialized per manuscript.
func (s *Server) reviewAction(w http.ResponseWriter, r *http.Request, action func(*types.CorrectedManuscript, string) error) {
	correctionID := r.PathValue("id")

	owner, err := s.store.FindManuscriptByCorrection(r.Context(), correctionID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if owner == nil {
		s.errorResponse(w, http.StatusNotFound, "correction not found")
		return
	}

	unlock := s.locks.Lock(owner.ID)
	defer unlock()

	// Reload under the lock so the mutation sees the latest content.
	m, err := s.store.GetManuscript(r.Context(), owner.ID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.errorResponse(w, http.StatusNotFound, "manuscript not found")
		return
	}

	if err := action(m, correctionID); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if err := s.store.SaveManuscript(r.Context(), m); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Approvals mutate the working content, which invalidates any cached
	// structural options computed from it.
	s.optionsCache.Flush()

	s.jsonResponse(w, http.StatusOK, reviewResponse{
		Correction:   m.FindCorrection(correctionID),
		ManuscriptID: m.ID,
		Status:       m.Status,
		Pending:      m.PendingCount(),
		Approved:     m.ApprovedIssues,
		Rejected:     m.RejectedIssues,
	})
}

// handleOptions returns the structural resolution options for a correction.
// Options are recomputed from the current working content and cached with a
// short TTL.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	correctionID := r.PathValue("id")

	if cached, ok := s.optionsCache.Get(correctionID); ok {
		s.jsonResponse(w, http.StatusOK, cached)
		return
	}

	m, err := s.store.FindManuscriptByCorrection(r.Context(), correctionID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.errorResponse(w, http.StatusNotFound, "correction not found")
		return
	}

	record := m.FindCorrection(correctionID)
	issue, err := structuralIssueFor(record, m.CorrectedContent)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.optionsCache.SetDefault(correctionID, issue)
	s.jsonResponse(w, http.StatusOK, issue)
}

// handleResolve executes a structural resolution option and commits the
// restructured content.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	correctionID := r.PathValue("id")
	owner, err := s.store.FindManuscriptByCorrection(r.Context(), correctionID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if owner == nil {
		s.errorResponse(w, http.StatusNotFound, "correction not found")
		return
	}

	unlock := s.locks.Lock(owner.ID)
	defer unlock()

	m, err := s.store.GetManuscript(r.Context(), owner.ID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.errorResponse(w, http.StatusNotFound, "manuscript not found")
		return
	}

	record := m.FindCorrection(correctionID)
	if record == nil {
		s.errorResponse(w, http.StatusNotFound, "correction not found")
		return
	}
	if record.Status != types.CorrectionPending && record.Status != types.CorrectionApproved {
		err := &ledger.NotPendingError{ID: correctionID, Status: record.Status}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	issue, err := structuralIssueFor(record, m.CorrectedContent)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	newContent, err := structural.Execute(r.Context(), s.client, m.CorrectedContent, issue, req.OptionID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if err := ledger.ApplyStructural(m, correctionID, newContent); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if err := s.store.SaveManuscript(r.Context(), m); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.optionsCache.Flush()

	s.jsonResponse(w, http.StatusOK, reviewResponse{
		Correction:   m.FindCorrection(correctionID),
		ManuscriptID: m.ID,
		Status:       m.Status,
		Pending:      m.PendingCount(),
		Approved:     m.ApprovedIssues,
		Rejected:     m.RejectedIssues,
	})
}

// handleFinalize closes the review when no corrections remain pending.
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	manuscriptID := r.PathValue("id")
	unlock := s.locks.Lock(manuscriptID)
	defer unlock()

	m, err := s.store.GetManuscript(r.Context(), manuscriptID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.errorResponse(w, http.StatusNotFound, "manuscript not found")
		return
	}

	if err := ledger.Finalize(m); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if err := s.store.SaveManuscript(r.Context(), m); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"manuscript_id": m.ID,
		"status":        m.Status,
		"approved":      m.ApprovedIssues,
		"rejected":      m.RejectedIssues,
	})
}

// structuralIssueFor reclassifies a structural correction record and plans
// its resolution options against the current working content.
func structuralIssueFor(record *types.CorrectionRecord, content string) (*types.StructuralIssue, error) {
	if record == nil {
		return nil, &ledger.RecordNotFoundError{ID: ""}
	}
	if !record.IsStructural() {
		return nil, &ErrNotStructural{ID: record.ID}
	}

	description := record.Instruction
	if idx := strings.Index(description, "] "); idx >= 0 {
		description = description[idx+2:]
	}

	issue, ok := structural.Classify(description, record.Location)
	if !ok {
		return nil, fmt.Errorf("correction %s: could not reclassify structural issue", record.ID)
	}
	issue.Options = structural.PlanOptions(issue, content)
	return issue, nil
}
