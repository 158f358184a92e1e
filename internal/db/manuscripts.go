package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// ManuscriptSummary is a lightweight view of a stored manuscript for listing.
type ManuscriptSummary struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Status          types.ManuscriptStatus `json:"status"`
	TotalIssues     int                    `json:"total_issues"`
	CorrectedIssues int                    `json:"corrected_issues"`
	PendingIssues   int                    `json:"pending_issues"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// CreateManuscript stores a new manuscript with its original content and
// returns nothing; the caller supplies the id.
func (db *DB) CreateManuscript(ctx context.Context, id, title, content string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO manuscripts (id, title, original_content, corrected_content, status, corrections)
		 VALUES ($1, $2, $3, $3, 'correcting', '[]'::jsonb)`,
		id, title, content,
	)
	if err != nil {
		return fmt.Errorf("failed to create manuscript: %w", err)
	}
	return nil
}

// SaveManuscript persists the full correction state: working content,
// counters, status and the corrections list as jsonb.
func (db *DB) SaveManuscript(ctx context.Context, m *types.CorrectedManuscript) error {
	correctionsJSON, err := json.Marshal(m.Corrections)
	if err != nil {
		return fmt.Errorf("failed to marshal corrections: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE manuscripts
		 SET corrected_content = $2, status = $3, corrections = $4,
		     total_issues = $5, corrected_issues = $6, approved_issues = $7,
		     rejected_issues = $8, updated_at = NOW()
		 WHERE id = $1`,
		m.ID, m.CorrectedContent, string(m.Status), correctionsJSON,
		m.TotalIssues, m.CorrectedIssues, m.ApprovedIssues, m.RejectedIssues,
	)
	if err != nil {
		return fmt.Errorf("failed to save manuscript %s: %w", m.ID, err)
	}
	return nil
}

// GetManuscript loads a manuscript and its correction state. Returns nil
// without error when the id does not exist.
func (db *DB) GetManuscript(ctx context.Context, id string) (*types.CorrectedManuscript, error) {
	var m types.CorrectedManuscript
	var status string
	var correctionsJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, original_content, corrected_content, status, corrections,
		        total_issues, corrected_issues, approved_issues, rejected_issues,
		        created_at, updated_at
		 FROM manuscripts WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.OriginalContent, &m.CorrectedContent, &status, &correctionsJSON,
		&m.TotalIssues, &m.CorrectedIssues, &m.ApprovedIssues, &m.RejectedIssues,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get manuscript: %w", err)
	}

	m.Status = types.ManuscriptStatus(status)
	if len(correctionsJSON) > 0 {
		if err := json.Unmarshal(correctionsJSON, &m.Corrections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal corrections for %s: %w", id, err)
		}
	}
	return &m, nil
}

// FindManuscriptByCorrection loads the manuscript owning the given
// correction record. Returns nil without error when no manuscript holds it.
func (db *DB) FindManuscriptByCorrection(ctx context.Context, correctionID string) (*types.CorrectedManuscript, error) {
	var id string
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM manuscripts
		 WHERE corrections @> jsonb_build_array(jsonb_build_object('id', $1::text))
		 LIMIT 1`,
		correctionID,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find manuscript for correction %s: %w", correctionID, err)
	}
	return db.GetManuscript(ctx, id)
}

// ManuscriptFilters holds optional filters for listing manuscripts
type ManuscriptFilters struct {
	Status string
	Limit  int
}

// ListManuscripts retrieves manuscript summaries, newest first.
func (db *DB) ListManuscripts(ctx context.Context, filters ManuscriptFilters) ([]ManuscriptSummary, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT id, COALESCE(title, ''), status, total_issues, corrected_issues,
		(SELECT COUNT(*) FROM jsonb_array_elements(corrections) c WHERE c->>'status' = 'pending'),
		created_at, updated_at
		FROM manuscripts WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list manuscripts: %w", err)
	}
	defer rows.Close()

	var summaries []ManuscriptSummary
	for rows.Next() {
		var s ManuscriptSummary
		var status string
		if err := rows.Scan(&s.ID, &s.Title, &status, &s.TotalIssues, &s.CorrectedIssues, &s.PendingIssues, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan manuscript: %w", err)
		}
		s.Status = types.ManuscriptStatus(status)
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// DeleteManuscript removes a manuscript and its correction state.
func (db *DB) DeleteManuscript(ctx context.Context, id string) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM manuscripts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete manuscript: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("manuscript not found: %s", id)
	}
	return nil
}
