// Package ledger owns the mutation rules for a manuscript's working content
// and its list of proposed corrections. Working content is only ever changed
// through Approve or ApplyStructural; proposing never touches it.
package ledger

import (
	"strings"
	"time"

	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// Propose appends a correction to the manuscript and updates the rollup
// counters. Records arriving already rejected (unlocatable sentinels) count
// toward rejectedIssues immediately.
func Propose(m *types.CorrectedManuscript, record types.CorrectionRecord) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	m.Corrections = append(m.Corrections, record)
	m.CorrectedIssues++
	if record.Status == types.CorrectionRejected {
		m.RejectedIssues++
	}
	m.UpdatedAt = time.Now().UTC()
}

// Approve applies a pending correction: the first occurrence of its original
// text in the working content is replaced by the corrected text. Approving
// the same record twice fails explicitly, so text is never double-replaced
// and counters never double-increment.
//
// Before replacing, Approve re-validates that the original span is still
// present; a span consumed by an earlier overlapping approval fails this
// check instead of silently corrupting content.
func Approve(m *types.CorrectedManuscript, id string) error {
	record := m.FindCorrection(id)
	if record == nil {
		return &RecordNotFoundError{ID: id}
	}
	if record.Status != types.CorrectionPending {
		return &NotPendingError{ID: id, Status: record.Status}
	}
	if record.IsStructural() {
		return &StructuralRecordError{ID: id}
	}

	if !record.IsUnlocatable() {
		if !strings.Contains(m.CorrectedContent, record.OriginalText) {
			return &SpanMissingError{ID: id}
		}
		m.CorrectedContent = strings.Replace(m.CorrectedContent, record.OriginalText, record.CorrectedText, 1)
	}

	now := time.Now().UTC()
	record.Status = types.CorrectionApproved
	record.ReviewedAt = &now
	m.ApprovedIssues++
	m.UpdatedAt = now
	return nil
}

// Reject marks a pending correction as rejected. Working content is never
// touched.
func Reject(m *types.CorrectedManuscript, id string) error {
	record := m.FindCorrection(id)
	if record == nil {
		return &RecordNotFoundError{ID: id}
	}
	if record.Status != types.CorrectionPending {
		return &NotPendingError{ID: id, Status: record.Status}
	}

	now := time.Now().UTC()
	record.Status = types.CorrectionRejected
	record.ReviewedAt = &now
	m.RejectedIssues++
	m.UpdatedAt = now
	return nil
}

// ApplyStructural commits the outcome of a structural resolution: the new
// working content produced by the executor, with the record marked applied.
// Selecting a resolution option is terminal for the issue.
func ApplyStructural(m *types.CorrectedManuscript, id, newContent string) error {
	record := m.FindCorrection(id)
	if record == nil {
		return &RecordNotFoundError{ID: id}
	}
	if record.Status != types.CorrectionPending && record.Status != types.CorrectionApproved {
		return &NotPendingError{ID: id, Status: record.Status}
	}

	now := time.Now().UTC()
	if record.Status == types.CorrectionPending {
		m.ApprovedIssues++
	}
	record.Status = types.CorrectionApplied
	record.ReviewedAt = &now
	m.CorrectedContent = newContent
	m.UpdatedAt = now
	return nil
}

// Finalize closes the review: it requires zero pending corrections and
// moves the manuscript to its terminal approved state.
func Finalize(m *types.CorrectedManuscript) error {
	if pending := m.PendingCount(); pending > 0 {
		return &PendingRemainError{Count: pending}
	}
	m.Status = types.ManuscriptApproved
	m.UpdatedAt = time.Now().UTC()
	return nil
}
