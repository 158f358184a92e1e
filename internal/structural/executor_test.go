package structural

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// fakeClient implements llm.Client for testing
type fakeClient struct {
	GenerateFunc func(ctx context.Context, prompt string, tier llm.ModelTier, sampling llm.Sampling) (string, error)
	Prompts      []string
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, tier llm.ModelTier, sampling llm.Sampling) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, prompt, tier, sampling)
	}
	return "", nil
}

func (f *fakeClient) GenerateJSON(_ context.Context, _ string, _ llm.ModelTier) (string, error) {
	return `{"found": false}`, nil
}

func (f *fakeClient) Close() error { return nil }

// longBody pads chapter bodies past the generation length checks.
func longBody(seed string) string {
	return seed + " " + strings.Repeat("y la noche siguió su curso lento sobre la ciudad dormida. ", 3)
}

func executorDoc() string {
	return "Capítulo 1\n\n" + longBody("Ana llegó al puerto.") + "\n\nCapítulo 2\n\n" +
		longBody("La tormenta rompió amarras.") + "\n\nCapítulo 3\n\n" +
		longBody("La tormenta rompió amarras otra vez.") + "\n\nCapítulo 4\n\n" +
		longBody("Todo quedó en silencio.") + "\n"
}

func TestExecuteUnknownOption(t *testing.T) {
	issue := &types.StructuralIssue{
		Options: []types.ResolutionOption{{ID: "keep_first"}, {ID: "keep_last"}},
	}

	_, err := Execute(context.Background(), &fakeClient{}, "contenido", issue, "merge")

	var notFound *OptionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "merge", notFound.OptionID)
	assert.Equal(t, []string{"keep_first", "keep_last"}, notFound.ValidIDs)
}

func TestExecuteDeleteRenumbers(t *testing.T) {
	issue := &types.StructuralIssue{
		Type:             types.StructuralDuplicateChapters,
		AffectedChapters: []int{2, 3},
		Options: []types.ResolutionOption{
			{ID: "keep_first", Type: types.ResolutionDelete, ChaptersToDelete: []int{3}},
		},
	}

	got, err := Execute(context.Background(), &fakeClient{}, executorDoc(), issue, "keep_first")
	require.NoError(t, err)

	chapters := ParseChapters(got)
	require.Len(t, chapters, 3)
	for i, ch := range chapters {
		assert.Equal(t, i+1, ch.Number)
	}
	assert.NotContains(t, got, "otra vez")
	assert.Contains(t, got, "Todo quedó en silencio")
}

func TestExecuteRewrite(t *testing.T) {
	rewritten := longBody("Acontecimientos completamente nuevos para el tercer capítulo.")
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return rewritten, nil
		},
	}
	issue := &types.StructuralIssue{
		Options: []types.ResolutionOption{
			{ID: "rewrite_second", Type: types.ResolutionRewrite, ChapterToRewrite: 3},
		},
	}

	got, err := Execute(context.Background(), client, executorDoc(), issue, "rewrite_second")
	require.NoError(t, err)
	assert.Contains(t, got, "Acontecimientos completamente nuevos")
	assert.NotContains(t, got, "otra vez")
	// Neighbors survive and the chapter count is unchanged.
	assert.Len(t, ParseChapters(got), 4)

	// The prompt carries the old body and its neighbors for continuity.
	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], "otra vez")
	assert.Contains(t, client.Prompts[0], "La tormenta rompió amarras.")
	assert.Contains(t, client.Prompts[0], "Todo quedó en silencio.")
}

func TestExecuteMerge(t *testing.T) {
	merged := longBody("La tormenta rompió amarras y nada volvió a repetirse.")
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return merged, nil
		},
	}
	issue := &types.StructuralIssue{
		Options: []types.ResolutionOption{
			{ID: "merge", Type: types.ResolutionMerge, ChaptersToMerge: []int{2, 3}},
		},
	}

	got, err := Execute(context.Background(), client, executorDoc(), issue, "merge")
	require.NoError(t, err)

	chapters := ParseChapters(got)
	require.Len(t, chapters, 3)
	for i, ch := range chapters {
		assert.Equal(t, i+1, ch.Number)
	}
	assert.Contains(t, got, "nada volvió a repetirse")
	assert.NotContains(t, got, "otra vez")
}

func TestExecuteModifyWithEditInstruction(t *testing.T) {
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return longBody("El capítulo editado según la instrucción."), nil
		},
	}
	issue := &types.StructuralIssue{
		Options: []types.ResolutionOption{
			{
				ID:              "differentiate",
				Type:            types.ResolutionModifyA,
				ChapterToModify: 2,
				EditInstruction: "Reescribe la segunda de las dos escenas casi idénticas.",
			},
		},
	}

	got, err := Execute(context.Background(), client, executorDoc(), issue, "differentiate")
	require.NoError(t, err)
	assert.Contains(t, got, "editado según la instrucción")
	assert.Len(t, ParseChapters(got), 4)

	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], "Reescribe la segunda")
}

func TestExecuteModifyConflictSwapsFacts(t *testing.T) {
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return longBody("El capítulo reconciliado con la cronología."), nil
		},
	}
	issue := &types.StructuralIssue{
		Type:             types.StructuralContinuityConflict,
		AffectedChapters: []int{2, 3},
		Conflict: &types.ContinuityConflict{
			ChapterA: 2,
			ChapterB: 3,
			FactA:    "sale al amanecer",
			FactB:    "partió de noche",
		},
		Options: []types.ResolutionOption{
			{ID: "modify_a", Type: types.ResolutionModifyA, ChapterToModify: 2},
			{ID: "modify_b", Type: types.ResolutionModifyB, ChapterToModify: 3},
		},
	}

	_, err := Execute(context.Background(), client, executorDoc(), issue, "modify_a")
	require.NoError(t, err)
	// Modifying A treats B's fact as the established truth.
	assert.Contains(t, client.Prompts[0], "partió de noche")

	client.Prompts = nil
	_, err = Execute(context.Background(), client, executorDoc(), issue, "modify_b")
	require.NoError(t, err)
	assert.Contains(t, client.Prompts[0], "sale al amanecer")
}

func TestExecuteTransitionEnd(t *testing.T) {
	paragraph := "Al día siguiente, la calma llegó sin anunciarse y la ciudad respiró de nuevo."
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return paragraph, nil
		},
	}
	issue := &types.StructuralIssue{
		Type:             types.StructuralNarrativeFlowBreak,
		AffectedChapters: []int{1, 2},
		Options: []types.ResolutionOption{
			{ID: "transition_end", Type: types.ResolutionAddTransition, TransitionSide: types.TransitionEnd},
		},
	}

	doc := executorDoc()
	got, err := Execute(context.Background(), client, doc, issue, "transition_end")
	require.NoError(t, err)

	// The paragraph lands inside chapter 1, before the chapter 2 heading.
	ch1, ok := ExtractChapter(got, 1)
	require.True(t, ok)
	assert.Contains(t, ch1.Body(got), paragraph)
	ch2, ok := ExtractChapter(got, 2)
	require.True(t, ok)
	assert.NotContains(t, ch2.Body(got), paragraph)
}

func TestExecuteTransitionBoth(t *testing.T) {
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return "---CLOSE---\nLa noche cerró el capítulo de la llegada sin despedidas.\n---OPEN---\nCon la primera luz, la tormenta ya era un rumor lejano.", nil
		},
	}
	issue := &types.StructuralIssue{
		Type:             types.StructuralNarrativeFlowBreak,
		AffectedChapters: []int{1, 2},
		Options: []types.ResolutionOption{
			{ID: "transition_both", Type: types.ResolutionAddTransition, TransitionSide: types.TransitionBoth},
		},
	}

	got, err := Execute(context.Background(), client, executorDoc(), issue, "transition_both")
	require.NoError(t, err)

	ch1, _ := ExtractChapter(got, 1)
	ch2, _ := ExtractChapter(got, 2)
	assert.Contains(t, ch1.Body(got), "sin despedidas")
	assert.Contains(t, ch2.Body(got), "Con la primera luz")
	// One call produced both sides.
	assert.Len(t, client.Prompts, 1)
}

func TestParseTwoSidedTransition(t *testing.T) {
	closing, opening, err := parseTwoSidedTransition("---CLOSE---\ncierre\n---OPEN---\napertura\n")
	require.NoError(t, err)
	assert.Equal(t, "cierre", closing)
	assert.Equal(t, "apertura", opening)

	_, _, err = parseTwoSidedTransition("texto sin delimitadores")
	var generation *GenerationError
	assert.ErrorAs(t, err, &generation)

	// Reversed delimiters are rejected too.
	_, _, err = parseTwoSidedTransition("---OPEN---\napertura\n---CLOSE---\ncierre\n")
	assert.ErrorAs(t, err, &generation)
}

func TestExecuteVaryAllLeavesContentOnFailure(t *testing.T) {
	calls := 0
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			calls++
			if calls == 2 {
				return "", errors.New("quota exceeded")
			}
			return longBody("Una variación nueva de la escena."), nil
		},
	}
	issue := &types.StructuralIssue{
		Type:             types.StructuralDuplicateScenes,
		AffectedChapters: []int{1, 2, 3},
		Options: []types.ResolutionOption{
			{ID: "vary_all", Type: types.ResolutionVaryAll, ChapterToKeep: 1, VariationCount: 2},
		},
	}

	_, err := Execute(context.Background(), client, executorDoc(), issue, "vary_all")
	var generation *GenerationError
	require.ErrorAs(t, err, &generation)
	// All generation happens before any write, so the caller keeps the
	// original content on failure.
	assert.Equal(t, 2, calls)
}

func TestExecuteVaryAll(t *testing.T) {
	variation := 0
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			variation++
			return longBody("Variación número " + strings.Repeat("x", variation) + " de la escena."), nil
		},
	}
	issue := &types.StructuralIssue{
		Type:             types.StructuralDuplicateScenes,
		AffectedChapters: []int{2, 3, 4},
		Options: []types.ResolutionOption{
			{ID: "vary_all", Type: types.ResolutionVaryAll, ChapterToKeep: 2, VariationCount: 2},
		},
	}

	got, err := Execute(context.Background(), client, executorDoc(), issue, "vary_all")
	require.NoError(t, err)
	// First occurrence untouched, later ones regenerated, count unchanged.
	assert.Len(t, ParseChapters(got), 4)
	ch2, _ := ExtractChapter(got, 2)
	assert.Contains(t, ch2.Body(got), "La tormenta rompió amarras.")
	ch3, _ := ExtractChapter(got, 3)
	assert.Contains(t, ch3.Body(got), "Variación número x ")
	ch4, _ := ExtractChapter(got, 4)
	assert.Contains(t, ch4.Body(got), "Variación número xx ")
}

func TestExecuteShortGenerationRejected(t *testing.T) {
	client := &fakeClient{
		GenerateFunc: func(_ context.Context, _ string, _ llm.ModelTier, _ llm.Sampling) (string, error) {
			return "corto", nil
		},
	}
	issue := &types.StructuralIssue{
		Options: []types.ResolutionOption{
			{ID: "rewrite_second", Type: types.ResolutionRewrite, ChapterToRewrite: 2},
		},
	}

	_, err := Execute(context.Background(), client, executorDoc(), issue, "rewrite_second")
	var generation *GenerationError
	assert.ErrorAs(t, err, &generation)
}
