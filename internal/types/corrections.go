package types

import (
	"strings"
	"time"
)

// CorrectionStatus is the lifecycle state of a single proposed correction.
type CorrectionStatus string

// Correction statuses. Pending corrections may move to approved or rejected;
// approved corrections may later be marked applied by structural execution.
const (
	CorrectionPending  CorrectionStatus = "pending"
	CorrectionApproved CorrectionStatus = "approved"
	CorrectionRejected CorrectionStatus = "rejected"
	CorrectionApplied  CorrectionStatus = "applied"
)

// UnlocatableText is the sentinel recorded as OriginalText when no search
// strategy could find the passage an issue refers to. A record carrying this
// sentinel is rejected by default and is surfaced to the reviewer so the
// issue stays visible rather than silently dropped.
const UnlocatableText = "[TEXTO ORIGINAL NO LOCALIZADO]"

// DiffStats summarizes a correction's word-level impact on the text.
type DiffStats struct {
	WordsAdded   int `json:"words_added"`
	WordsRemoved int `json:"words_removed"`
	LengthChange int `json:"length_change"` // Characters, may be negative
}

// CorrectionRecord is one proposed edit against a manuscript's working
// content. OriginalText is the exact span found in the document;
// CorrectedText is the generated replacement.
type CorrectionRecord struct {
	ID            string           `json:"id"`
	IssueID       string           `json:"issue_id"`
	Location      string           `json:"location"`
	ChapterNumber int              `json:"chapter_number,omitempty"`
	OriginalText  string           `json:"original_text"`
	CorrectedText string           `json:"corrected_text"`
	Instruction   string           `json:"instruction"` // Rationale, tagged e.g. [CHARACTER-BIBLE], [REPETICIÓN]
	Severity      Severity         `json:"severity"`
	Status        CorrectionStatus `json:"status"`
	DiffStats     DiffStats        `json:"diff_stats"`
	CreatedAt     time.Time        `json:"created_at"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
}

// StructuralTagPrefix marks the instruction of a correction that must be
// resolved through the structural path instead of a span replacement. The
// structural issue itself is recomputed on demand from the instruction and
// location, never persisted separately.
const StructuralTagPrefix = "[ESTRUCTURAL:"

// IsUnlocatable reports whether this record carries the unlocatable sentinel
// and can therefore never be approved productively.
func (r *CorrectionRecord) IsUnlocatable() bool {
	return r.OriginalText == UnlocatableText
}

// IsStructural reports whether this record represents a cross-chapter issue
// awaiting a resolution-option choice.
func (r *CorrectionRecord) IsStructural() bool {
	return strings.HasPrefix(r.Instruction, StructuralTagPrefix)
}

// ManuscriptStatus is the lifecycle state of a correction run.
type ManuscriptStatus string

// Manuscript statuses. A run starts in correcting, moves to review once all
// issues have been attempted, and ends in approved when the reviewer
// finalizes with no pending records.
const (
	ManuscriptCorrecting ManuscriptStatus = "correcting"
	ManuscriptReview     ManuscriptStatus = "review"
	ManuscriptApproved   ManuscriptStatus = "approved"
	ManuscriptError      ManuscriptStatus = "error"
)

// CorrectedManuscript is the aggregate root owning one manuscript's working
// content and its ordered list of proposed corrections. OriginalContent is
// immutable; CorrectedContent is mutated only by approval or structural
// execution, never by proposing.
type CorrectedManuscript struct {
	ID               string             `json:"id"`
	OriginalContent  string             `json:"original_content"`
	CorrectedContent string             `json:"corrected_content"`
	Corrections      []CorrectionRecord `json:"corrections"`
	TotalIssues      int                `json:"total_issues"`
	CorrectedIssues  int                `json:"corrected_issues"`
	ApprovedIssues   int                `json:"approved_issues"`
	RejectedIssues   int                `json:"rejected_issues"`
	Status           ManuscriptStatus   `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// FindCorrection returns the correction with the given id, or nil.
func (m *CorrectedManuscript) FindCorrection(id string) *CorrectionRecord {
	for i := range m.Corrections {
		if m.Corrections[i].ID == id {
			return &m.Corrections[i]
		}
	}
	return nil
}

// PendingCount returns the number of corrections still awaiting review.
func (m *CorrectedManuscript) PendingCount() int {
	count := 0
	for i := range m.Corrections {
		if m.Corrections[i].Status == CorrectionPending {
			count++
		}
	}
	return count
}
