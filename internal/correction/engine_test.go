package correction

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atreyu1968/manuscript-mender/internal/ledger"
	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

const engineTestDoc = `Capítulo 1

Ana entró en la taberna del puerto. Sus ojos azules recorrieron la sala en penumbra. El tabernero la saludó con un gesto.

Capítulo 2

Al amanecer zarparon hacia el sur. El viento olía a sal y a despedidas.
`

func newTestManuscript(content string) *types.CorrectedManuscript {
	return &types.CorrectedManuscript{
		ID:               "m-test",
		OriginalContent:  content,
		CorrectedContent: content,
		Status:           types.ManuscriptCorrecting,
	}
}

func newTestEngine(client llm.Client, onProgress ProgressCallback) *Engine {
	return NewEngine(client, Options{
		CallInterval: time.Millisecond,
		OnProgress:   onProgress,
	})
}

func TestEngineRunAttributeIssue(t *testing.T) {
	client := &MockLLMClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return "Sus ojos verdes recorrieron la sala en penumbra.", nil
		},
	}
	engine := newTestEngine(client, nil)
	m := newTestManuscript(engineTestDoc)

	issue := types.AuditIssue{
		ID:          "issue-1",
		Description: "El color de ojos de Ana es 'verde' según la Biblia de personajes, pero se describe como 'azules'",
		Location:    "Capítulo 1",
		Severity:    types.SeverityHigh,
	}

	err := engine.Run(context.Background(), m, []types.AuditIssue{issue})
	require.NoError(t, err)

	require.Len(t, m.Corrections, 1)
	record := m.Corrections[0]
	assert.Equal(t, types.CorrectionPending, record.Status)
	assert.Contains(t, record.OriginalText, "azules")
	assert.Contains(t, record.CorrectedText, "verdes")
	assert.Contains(t, record.Instruction, "[CHARACTER-BIBLE]")
	assert.Equal(t, 1, record.ChapterNumber)

	// Proposing never mutates the working content.
	assert.Equal(t, engineTestDoc, m.CorrectedContent)
	assert.Equal(t, types.ManuscriptReview, m.Status)
	assert.Equal(t, 1, m.TotalIssues)
	assert.Equal(t, 1, m.CorrectedIssues)

	// Approval applies the replacement.
	require.NoError(t, ledger.Approve(m, record.ID))
	assert.Contains(t, m.CorrectedContent, "ojos verdes")
	assert.NotContains(t, m.CorrectedContent, "ojos azules")
}

func TestEngineRunUnlocatableIssue(t *testing.T) {
	client := &MockLLMClient{}
	engine := newTestEngine(client, nil)
	m := newTestManuscript(engineTestDoc)

	issue := types.AuditIssue{
		ID:          "issue-2",
		Description: "La frase «los relojes de arena del tiempo perdido» resulta confusa",
		Location:    "Capítulo 9",
	}

	err := engine.Run(context.Background(), m, []types.AuditIssue{issue})
	require.NoError(t, err)

	require.Len(t, m.Corrections, 1)
	record := m.Corrections[0]
	assert.Equal(t, types.CorrectionRejected, record.Status)
	assert.Equal(t, types.UnlocatableText, record.OriginalText)
	assert.Equal(t, 1, m.RejectedIssues)
	assert.Equal(t, engineTestDoc, m.CorrectedContent)
}

func TestEngineRunStructuralIssue(t *testing.T) {
	client := &MockLLMClient{}
	engine := newTestEngine(client, nil)
	m := newTestManuscript(engineTestDoc)

	issue := types.AuditIssue{
		ID:          "issue-3",
		Description: "Los capítulos 12 y 18 son prácticamente idénticos",
		Location:    "Capítulos 12 y 18",
	}

	err := engine.Run(context.Background(), m, []types.AuditIssue{issue})
	require.NoError(t, err)

	require.Len(t, m.Corrections, 1)
	record := m.Corrections[0]
	assert.Equal(t, types.CorrectionPending, record.Status)
	assert.True(t, record.IsStructural())
	assert.Contains(t, record.Instruction, string(types.StructuralDuplicateChapters))
	// No generative calls for classification alone.
	assert.Empty(t, client.Prompts)
}

func TestEngineRunGenericRepetition(t *testing.T) {
	doc := "El destino es caprichoso, pensó. Pasaron años. El destino es caprichoso, pensó. Y más tarde aún: el final. El destino es caprichoso, pensó."
	var calls int
	client := &MockLLMClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			calls++
			if calls == 1 {
				return "La suerte nunca avisa, pensó.", nil
			}
			return "Qué caprichoso era todo aquello.", nil
		},
	}
	engine := newTestEngine(client, nil)
	m := newTestManuscript(doc)

	issue := types.AuditIssue{
		ID:          "issue-4",
		Description: "La frase «El destino es caprichoso, pensó» se repite a lo largo de toda la novela",
		Location:    "Toda la novela",
	}

	err := engine.Run(context.Background(), m, []types.AuditIssue{issue})
	require.NoError(t, err)

	// The first occurrence is kept; each later one gets its own variation.
	require.Len(t, m.Corrections, 2)
	for _, record := range m.Corrections {
		assert.Equal(t, types.CorrectionPending, record.Status)
		assert.Contains(t, record.Instruction, "[REPETICIÓN]")
		assert.Equal(t, "El destino es caprichoso, pensó", record.OriginalText)
		// The test document has no chapter headings.
		assert.Zero(t, record.ChapterNumber)
	}
	assert.NotEqual(t, m.Corrections[0].CorrectedText, m.Corrections[1].CorrectedText)
}

func TestEngineRunCancelledBetweenIssues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &MockLLMClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			cancel()
			return "Sus ojos verdes recorrieron la sala en penumbra.", nil
		},
	}
	engine := newTestEngine(client, nil)
	m := newTestManuscript(engineTestDoc)

	issues := []types.AuditIssue{
		{ID: "a", Description: "Corregir la frase «Sus ojos azules recorrieron la sala»"},
		{ID: "b", Description: "Corregir la frase «El viento olía a sal y a despedidas»"},
	}

	err := engine.Run(ctx, m, issues)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.ManuscriptError, m.Status)
	// The first issue completed before the cancellation took effect.
	assert.Len(t, m.Corrections, 1)
}

func TestEngineEmitsProgress(t *testing.T) {
	client := &MockLLMClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return "Sus ojos verdes recorrieron la sala en penumbra.", nil
		},
	}
	var events []ProgressEvent
	engine := newTestEngine(client, func(event ProgressEvent) {
		events = append(events, event)
	})
	m := newTestManuscript(engineTestDoc)

	issue := types.AuditIssue{
		ID:          "issue-5",
		Description: "Corregir la frase «Sus ojos azules recorrieron la sala»",
	}
	require.NoError(t, engine.Run(context.Background(), m, []types.AuditIssue{issue}))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, PhaseDone, last.Phase)
	assert.Equal(t, 1, last.Total)

	var phases []string
	for _, e := range events {
		phases = append(phases, e.Phase)
	}
	assert.Contains(t, phases, PhaseLocating)
	assert.Contains(t, phases, PhaseGenerating)
}

func TestEngineLocalQuotedPhrase(t *testing.T) {
	client := &MockLLMClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return "El viento traía sal y despedidas.", nil
		},
	}
	engine := newTestEngine(client, nil)
	m := newTestManuscript(engineTestDoc)

	issue := types.AuditIssue{
		ID:          "issue-6",
		Description: "La frase «El viento olía a sal y a despedidas» es un cliché",
		Location:    "Capítulo 2",
	}
	require.NoError(t, engine.Run(context.Background(), m, []types.AuditIssue{issue}))

	require.Len(t, m.Corrections, 1)
	record := m.Corrections[0]
	assert.Equal(t, "El viento olía a sal y a despedidas", record.OriginalText)
	assert.True(t, strings.HasPrefix(record.Instruction, "[CORRECCIÓN]"))
	assert.Equal(t, 2, record.ChapterNumber)
}
