// Package types defines the shared data structures passed between the
// correction engine's packages.
package types

// Severity indicates how urgent an audit issue is.
type Severity string

// Severity levels as produced by the upstream manuscript analysis.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// AuditIssue is a quality issue reported by upstream manuscript analysis.
// Issues are consumed read-only; the engine never mutates them.
type AuditIssue struct {
	ID          string   `json:"id"`
	Description string   `json:"description"` // Free text, usually Spanish
	Location    string   `json:"location"`    // Free-text hint, may name chapters
	Severity    Severity `json:"severity"`
	Suggestion  string   `json:"suggestion"` // Free-text fix hint
}

// AuditReport is a batch of issues for one manuscript.
type AuditReport struct {
	ManuscriptID string       `json:"manuscript_id"`
	Issues       []AuditIssue `json:"issues"`
}
