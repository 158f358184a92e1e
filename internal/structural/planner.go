package structural

import (
	"fmt"
	"strings"

	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// transitionContextChars bounds how much chapter text a transition option
// carries as context.
const transitionContextChars = 1200

// PlanOptions enumerates 2-4 mutually exclusive resolution strategies for a
// classified structural issue, each with a human-readable label and a cost
// estimate in generative-service calls. Only one option may ever be applied.
func PlanOptions(issue *types.StructuralIssue, content string) []types.ResolutionOption {
	switch issue.Type {
	case types.StructuralContinuityConflict:
		return planContinuity(issue)
	case types.StructuralNarrativeFlowBreak:
		return planFlow(issue, content)
	default:
		return planDuplicate(issue)
	}
}

func planDuplicate(issue *types.StructuralIssue) []types.ResolutionOption {
	chapters := issue.AffectedChapters
	lower := strings.ToLower(issue.Description)

	// Two near-duplicate beats inside one chapter: no deletion offered since
	// both beats are co-located.
	if len(chapters) == 1 {
		ch := chapters[0]
		return []types.ResolutionOption{
			{
				ID:              "remove_first",
				Type:            types.ResolutionModifyA,
				Label:           "Eliminar la primera aparición",
				Description:     fmt.Sprintf("Editar el capítulo %d para eliminar la primera de las dos escenas casi idénticas", ch),
				ChapterToModify: ch,
				EditInstruction: "Elimina la primera de las dos escenas casi idénticas, dejando intacto el resto del capítulo.",
				EstimatedCalls:  1,
			},
			{
				ID:              "remove_second",
				Type:            types.ResolutionModifyA,
				Label:           "Eliminar la segunda aparición",
				Description:     fmt.Sprintf("Editar el capítulo %d para eliminar la segunda de las dos escenas casi idénticas", ch),
				ChapterToModify: ch,
				EditInstruction: "Elimina la segunda de las dos escenas casi idénticas, dejando intacto el resto del capítulo.",
				EstimatedCalls:  1,
			},
			{
				ID:              "differentiate",
				Type:            types.ResolutionModifyA,
				Label:           "Diferenciar una de las dos",
				Description:     fmt.Sprintf("Reescribir una de las dos escenas del capítulo %d para que aporten cosas distintas", ch),
				ChapterToModify: ch,
				EditInstruction: "Reescribe la segunda de las dos escenas casi idénticas para que se diferencie claramente de la primera en tono y contenido.",
				EstimatedCalls:  1,
			},
		}
	}

	// Many repeated occurrences of one scene: keep the first, regenerate the
	// rest with escalating randomness so each one reads differently.
	repeatedScene := len(chapters) > 2 &&
		(issue.Type == types.StructuralDuplicateScenes ||
			strings.Contains(lower, "escena") || strings.Contains(lower, "scene"))
	if repeatedScene {
		return []types.ResolutionOption{
			{
				ID:             "vary_all",
				Type:           types.ResolutionVaryAll,
				Label:          "Variar cada repetición",
				Description:    fmt.Sprintf("Mantener el capítulo %d y regenerar las otras %d apariciones con redacciones distintas", chapters[0], len(chapters)-1),
				Recommended:    true,
				ChapterToKeep:  chapters[0],
				VariationCount: len(chapters) - 1,
				EstimatedCalls: len(chapters) - 1,
			},
			{
				ID:               "keep_first",
				Type:             types.ResolutionDelete,
				Label:            "Conservar la primera, eliminar el resto",
				Description:      fmt.Sprintf("Conservar el capítulo %d y eliminar los capítulos %v", chapters[0], chapters[1:]),
				ChapterToKeep:    chapters[0],
				ChaptersToDelete: chapters[1:],
			},
			{
				ID:               "keep_last",
				Type:             types.ResolutionDelete,
				Label:            "Conservar la última, eliminar el resto",
				Description:      fmt.Sprintf("Conservar el capítulo %d y eliminar los capítulos %v", chapters[len(chapters)-1], chapters[:len(chapters)-1]),
				ChapterToKeep:    chapters[len(chapters)-1],
				ChaptersToDelete: chapters[:len(chapters)-1],
			},
		}
	}

	// Two duplicated chapters.
	first, last := chapters[0], chapters[len(chapters)-1]
	return []types.ResolutionOption{
		{
			ID:               "keep_first",
			Type:             types.ResolutionDelete,
			Label:            fmt.Sprintf("Conservar el capítulo %d", first),
			Description:      fmt.Sprintf("Eliminar el capítulo %d y conservar el %d", last, first),
			ChapterToKeep:    first,
			ChaptersToDelete: chapters[1:],
		},
		{
			ID:               "keep_last",
			Type:             types.ResolutionDelete,
			Label:            fmt.Sprintf("Conservar el capítulo %d", last),
			Description:      fmt.Sprintf("Eliminar el capítulo %d y conservar el %d", first, last),
			ChapterToKeep:    last,
			ChaptersToDelete: chapters[:len(chapters)-1],
		},
		{
			ID:               "rewrite_second",
			Type:             types.ResolutionRewrite,
			Label:            fmt.Sprintf("Reescribir el capítulo %d", last),
			Description:      fmt.Sprintf("Generar acontecimientos nuevos para el capítulo %d manteniendo sus personajes", last),
			ChapterToRewrite: last,
			EstimatedCalls:   1,
		},
		{
			ID:              "merge",
			Type:            types.ResolutionMerge,
			Label:           "Fusionar ambos capítulos",
			Description:     fmt.Sprintf("Combinar los capítulos %d y %d en uno solo eliminando la redundancia", first, last),
			ChaptersToMerge: []int{first, last},
			EstimatedCalls:  1,
		},
	}
}

func planContinuity(issue *types.StructuralIssue) []types.ResolutionOption {
	conflict := issue.Conflict
	if conflict == nil {
		conflict = &types.ContinuityConflict{}
		if len(issue.AffectedChapters) >= 2 {
			conflict.ChapterA = issue.AffectedChapters[0]
			conflict.ChapterB = issue.AffectedChapters[1]
		}
	}
	lower := strings.ToLower(issue.Description)

	// Dialogue/date mismatches get conversational fixes, not structural ones.
	if (strings.Contains(lower, "diálogo") || strings.Contains(lower, "dialogue")) &&
		conflict.ConflictType == types.ConflictTemporal {
		return []types.ResolutionOption{
			{
				ID:              "fix_dialogue",
				Type:            types.ResolutionModifyB,
				Label:           "Corregir el diálogo",
				Description:     fmt.Sprintf("Ajustar el diálogo del capítulo %d para que encaje con la cronología establecida", conflict.ChapterB),
				Recommended:     true,
				ChapterToModify: conflict.ChapterB,
				EditInstruction: "Corrige únicamente las referencias temporales del diálogo para que coincidan con la cronología establecida en el resto de la novela.",
				EstimatedCalls:  1,
			},
			{
				ID:              "add_explanation",
				Type:            types.ResolutionAddExplanation,
				Label:           "Añadir una aclaración narrativa",
				Description:     fmt.Sprintf("Insertar en el capítulo %d una aclaración breve que justifique la discrepancia", conflict.ChapterB),
				ChapterToModify: conflict.ChapterB,
				EstimatedCalls:  1,
			},
		}
	}

	return []types.ResolutionOption{
		{
			ID:              "modify_a",
			Type:            types.ResolutionModifyA,
			Label:           fmt.Sprintf("Modificar el capítulo %d", conflict.ChapterA),
			Description:     fmt.Sprintf("Ajustar el capítulo %d para que coincida con lo establecido en el capítulo %d", conflict.ChapterA, conflict.ChapterB),
			ChapterToModify: conflict.ChapterA,
			EstimatedCalls:  1,
		},
		{
			ID:              "modify_b",
			Type:            types.ResolutionModifyB,
			Label:           fmt.Sprintf("Modificar el capítulo %d", conflict.ChapterB),
			Description:     fmt.Sprintf("Ajustar el capítulo %d para que coincida con lo establecido en el capítulo %d", conflict.ChapterB, conflict.ChapterA),
			ChapterToModify: conflict.ChapterB,
			EstimatedCalls:  1,
		},
		{
			ID:              "add_explanation",
			Type:            types.ResolutionAddExplanation,
			Label:           "Añadir un pasaje explicativo",
			Description:     fmt.Sprintf("Insertar en el capítulo %d un pasaje que justifique la discrepancia (salto temporal, cambio de planes)", conflict.ChapterB),
			ChapterToModify: conflict.ChapterB,
			EstimatedCalls:  1,
		},
	}
}

func planFlow(issue *types.StructuralIssue, content string) []types.ResolutionOption {
	if len(issue.AffectedChapters) < 2 {
		return nil
	}
	earlier, later := issue.AffectedChapters[0], issue.AffectedChapters[1]
	endContext, startContext := transitionContexts(content, earlier, later)

	return []types.ResolutionOption{
		{
			ID:             "transition_end",
			Type:           types.ResolutionAddTransition,
			Label:          fmt.Sprintf("Cerrar el capítulo %d con una transición", earlier),
			Description:    fmt.Sprintf("Añadir un párrafo de transición al final del capítulo %d", earlier),
			Recommended:    true,
			TransitionSide: types.TransitionEnd,
			EndContext:     endContext,
			StartContext:   startContext,
			EstimatedCalls: 1,
		},
		{
			ID:             "transition_start",
			Type:           types.ResolutionAddTransition,
			Label:          fmt.Sprintf("Abrir el capítulo %d con una transición", later),
			Description:    fmt.Sprintf("Añadir un párrafo de transición al inicio del capítulo %d", later),
			TransitionSide: types.TransitionStart,
			EndContext:     endContext,
			StartContext:   startContext,
			EstimatedCalls: 1,
		},
		{
			ID:             "transition_both",
			Type:           types.ResolutionAddTransition,
			Label:          "Transición en ambos capítulos",
			Description:    fmt.Sprintf("Añadir párrafos complementarios al final del capítulo %d y al inicio del %d", earlier, later),
			TransitionSide: types.TransitionBoth,
			EndContext:     endContext,
			StartContext:   startContext,
			EstimatedCalls: 2,
		},
	}
}

// transitionContexts extracts the closing paragraphs of the earlier chapter
// and the opening paragraphs of the later one.
func transitionContexts(content string, earlier, later int) (string, string) {
	var endContext, startContext string
	if ch, ok := ExtractChapter(content, earlier); ok {
		body := strings.TrimSpace(ch.Body(content))
		if len(body) > transitionContextChars {
			body = body[len(body)-transitionContextChars:]
			if idx := strings.IndexAny(body, " \n"); idx >= 0 {
				body = body[idx+1:]
			}
		}
		endContext = body
	}
	if ch, ok := ExtractChapter(content, later); ok {
		body := strings.TrimSpace(ch.Body(content))
		if len(body) > transitionContextChars {
			body = body[:transitionContextChars]
			if idx := strings.LastIndexAny(body, " \n"); idx >= 0 {
				body = body[:idx]
			}
		}
		startContext = body
	}
	return endContext, startContext
}
