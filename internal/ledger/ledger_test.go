package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atreyu1968/manuscript-mender/internal/types"
)

func newManuscript(content string) *types.CorrectedManuscript {
	return &types.CorrectedManuscript{
		ID:               "m-1",
		OriginalContent:  content,
		CorrectedContent: content,
		Status:           types.ManuscriptReview,
	}
}

func pendingRecord(id, original, corrected string) types.CorrectionRecord {
	return types.CorrectionRecord{
		ID:            id,
		OriginalText:  original,
		CorrectedText: corrected,
		Instruction:   "[CORRECCIÓN] ajustar redacción",
		Status:        types.CorrectionPending,
	}
}

func TestProposeUpdatesCounters(t *testing.T) {
	m := newManuscript("texto")

	Propose(m, pendingRecord("c1", "a", "b"))
	assert.Equal(t, 1, m.CorrectedIssues)
	assert.Equal(t, 0, m.RejectedIssues)
	assert.False(t, m.Corrections[0].CreatedAt.IsZero())

	rejected := pendingRecord("c2", types.UnlocatableText, "")
	rejected.Status = types.CorrectionRejected
	Propose(m, rejected)
	assert.Equal(t, 2, m.CorrectedIssues)
	assert.Equal(t, 1, m.RejectedIssues)
}

func TestApproveReplacesFirstOccurrenceOnly(t *testing.T) {
	m := newManuscript("ojos azules brillaban. Más tarde, ojos azules otra vez.")
	Propose(m, pendingRecord("c1", "ojos azules", "ojos verdes"))

	require.NoError(t, Approve(m, "c1"))
	assert.Equal(t, "ojos verdes brillaban. Más tarde, ojos azules otra vez.", m.CorrectedContent)
	assert.Equal(t, types.CorrectionApproved, m.Corrections[0].Status)
	assert.NotNil(t, m.Corrections[0].ReviewedAt)
	assert.Equal(t, 1, m.ApprovedIssues)
}

func TestApproveTwiceFails(t *testing.T) {
	m := newManuscript("ojos azules")
	Propose(m, pendingRecord("c1", "ojos azules", "ojos verdes"))

	require.NoError(t, Approve(m, "c1"))
	err := Approve(m, "c1")

	var notPending *NotPendingError
	require.ErrorAs(t, err, &notPending)
	assert.Equal(t, types.CorrectionApproved, notPending.Status)
	// No double replacement, no double increment.
	assert.Equal(t, "ojos verdes", m.CorrectedContent)
	assert.Equal(t, 1, m.ApprovedIssues)
}

func TestApproveStaleSpan(t *testing.T) {
	m := newManuscript("una frase que ya no existe")
	Propose(m, pendingRecord("c1", "frase que ya no existe", "otra cosa"))
	m.CorrectedContent = "contenido reescrito por completo"

	err := Approve(m, "c1")
	var missing *SpanMissingError
	require.ErrorAs(t, err, &missing)
	// The record stays pending so the reviewer can reject it instead.
	assert.Equal(t, types.CorrectionPending, m.Corrections[0].Status)
	assert.Equal(t, "contenido reescrito por completo", m.CorrectedContent)
}

func TestApproveUnknownRecord(t *testing.T) {
	m := newManuscript("texto")

	err := Approve(m, "missing")
	var notFound *RecordNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestApproveStructuralRecordFails(t *testing.T) {
	m := newManuscript("texto")
	record := pendingRecord("c1", "Capítulos 3 y 7", "")
	record.Instruction = types.StructuralTagPrefix + "duplicate_chapters] capítulos duplicados"
	Propose(m, record)

	err := Approve(m, "c1")
	var structural *StructuralRecordError
	assert.ErrorAs(t, err, &structural)
	assert.Equal(t, types.CorrectionPending, m.Corrections[0].Status)
}

func TestApproveUnlocatableIsContentNoOp(t *testing.T) {
	m := newManuscript("texto intacto")
	Propose(m, pendingRecord("c1", types.UnlocatableText, "sin efecto"))

	require.NoError(t, Approve(m, "c1"))
	assert.Equal(t, "texto intacto", m.CorrectedContent)
	assert.Equal(t, types.CorrectionApproved, m.Corrections[0].Status)
}

func TestReject(t *testing.T) {
	m := newManuscript("ojos azules")
	Propose(m, pendingRecord("c1", "ojos azules", "ojos verdes"))

	require.NoError(t, Reject(m, "c1"))
	assert.Equal(t, types.CorrectionRejected, m.Corrections[0].Status)
	assert.Equal(t, 1, m.RejectedIssues)
	assert.Equal(t, "ojos azules", m.CorrectedContent)

	var notPending *NotPendingError
	assert.ErrorAs(t, Reject(m, "c1"), &notPending)
}

func TestApplyStructural(t *testing.T) {
	m := newManuscript("Capítulo 1\n\ncuerpo\n\nCapítulo 2\n\ncuerpo duplicado\n")
	record := pendingRecord("c1", "Capítulos 1 y 2", "")
	record.Instruction = types.StructuralTagPrefix + "duplicate_chapters] capítulos duplicados"
	Propose(m, record)

	newContent := "Capítulo 1\n\ncuerpo\n"
	require.NoError(t, ApplyStructural(m, "c1", newContent))
	assert.Equal(t, newContent, m.CorrectedContent)
	assert.Equal(t, types.CorrectionApplied, m.Corrections[0].Status)
	assert.Equal(t, 1, m.ApprovedIssues)

	// Resolution is terminal.
	var notPending *NotPendingError
	assert.ErrorAs(t, ApplyStructural(m, "c1", "otro"), &notPending)
}

func TestFinalize(t *testing.T) {
	m := newManuscript("texto")
	Propose(m, pendingRecord("c1", "texto", "texto nuevo"))

	err := Finalize(m)
	var remain *PendingRemainError
	require.ErrorAs(t, err, &remain)
	assert.Equal(t, 1, remain.Count)
	assert.Equal(t, types.ManuscriptReview, m.Status)

	require.NoError(t, Approve(m, "c1"))
	require.NoError(t, Finalize(m))
	assert.Equal(t, types.ManuscriptApproved, m.Status)
}
