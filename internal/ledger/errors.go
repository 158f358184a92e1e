package ledger

import (
	"fmt"

	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// RecordNotFoundError indicates no correction exists with the given id.
type RecordNotFoundError struct {
	ID string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("correction not found: %s", e.ID)
}

// NotPendingError indicates a review action targeted a record that is no
// longer pending. This is also the double-approval guard.
type NotPendingError struct {
	ID     string
	Status types.CorrectionStatus
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("correction %s is %s, not pending", e.ID, e.Status)
}

// SpanMissingError indicates the record's original text is no longer present
// in the working content, usually because an overlapping approval consumed
// it first.
type SpanMissingError struct {
	ID string
}

func (e *SpanMissingError) Error() string {
	return fmt.Sprintf("correction %s: original text no longer present in working content", e.ID)
}

// StructuralRecordError indicates a plain approval was attempted on a
// correction that needs a structural resolution choice.
type StructuralRecordError struct {
	ID string
}

func (e *StructuralRecordError) Error() string {
	return fmt.Sprintf("correction %s is structural, choose a resolution option instead", e.ID)
}

// PendingRemainError indicates finalization was attempted while corrections
// still await review.
type PendingRemainError struct {
	Count int
}

func (e *PendingRemainError) Error() string {
	return fmt.Sprintf("cannot finalize: %d corrections still pending", e.Count)
}
