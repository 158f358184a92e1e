package structural

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/prompts"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// Minimum accepted lengths for generated text, in characters. Anything
// shorter is treated as a failed generation and aborts the whole resolution
// before any content mutation.
const (
	minChapterBodyLength = 80
	minPassageLength     = 20
)

// rewriteWindowChars bounds the neighboring-chapter context sent with a
// chapter rewrite request.
const rewriteWindowChars = 1500

// Execute applies the chosen resolution option and returns the new working
// content. It reads, generates, validates and only then writes: on any
// failure the returned error carries the cause and the manuscript content
// is left untouched by the caller. Renumbering runs exactly once after any
// delete or merge.
func Execute(ctx context.Context, client llm.Client, content string, issue *types.StructuralIssue, optionID string) (string, error) {
	opt := issue.FindOption(optionID)
	if opt == nil {
		return "", &OptionNotFoundError{OptionID: optionID, ValidIDs: issue.OptionIDs()}
	}

	switch opt.Type {
	case types.ResolutionDelete:
		return executeDelete(content, opt)
	case types.ResolutionRewrite:
		return executeRewrite(ctx, client, content, opt)
	case types.ResolutionMerge:
		return executeMerge(ctx, client, content, opt)
	case types.ResolutionModifyA, types.ResolutionModifyB:
		return executeModify(ctx, client, content, issue, opt)
	case types.ResolutionAddExplanation:
		return executeAddExplanation(ctx, client, content, issue, opt)
	case types.ResolutionAddTransition:
		return executeAddTransition(ctx, client, content, issue, opt)
	case types.ResolutionVaryAll:
		return executeVaryAll(ctx, client, content, issue, opt)
	default:
		return "", &ExtractionError{Message: fmt.Sprintf("unknown resolution type %q", opt.Type)}
	}
}

func executeDelete(content string, opt *types.ResolutionOption) (string, error) {
	result, err := DeleteChapters(content, opt.ChaptersToDelete)
	if err != nil {
		return "", err
	}
	return Renumber(result), nil
}

func executeRewrite(ctx context.Context, client llm.Client, content string, opt *types.ResolutionOption) (string, error) {
	ch, ok := ExtractChapter(content, opt.ChapterToRewrite)
	if !ok {
		return "", &ExtractionError{Message: fmt.Sprintf("chapter %d not found", opt.ChapterToRewrite)}
	}
	body := ch.Body(content)
	before, after := neighborWindows(content, opt.ChapterToRewrite)

	prompt := prompts.Format(prompts.MustGet("structural.json", "rewrite-chapter"), map[string]string{
		"Before": before,
		"Number": strconv.Itoa(opt.ChapterToRewrite),
		"Body":   body,
		"After":  after,
		"Length": strconv.Itoa(len(body)),
	})
	generated, err := generateValidated(ctx, client, prompt, llm.TierAdvanced, llm.ConsistencySampling(), minChapterBodyLength)
	if err != nil {
		return "", err
	}
	return ReplaceChapterBody(content, opt.ChapterToRewrite, generated)
}

func executeMerge(ctx context.Context, client llm.Client, content string, opt *types.ResolutionOption) (string, error) {
	if len(opt.ChaptersToMerge) != 2 {
		return "", &ExtractionError{Message: fmt.Sprintf("merge requires exactly two chapters, got %v", opt.ChaptersToMerge)}
	}
	first, second := opt.ChaptersToMerge[0], opt.ChaptersToMerge[1]

	chA, okA := ExtractChapter(content, first)
	chB, okB := ExtractChapter(content, second)
	if !okA || !okB {
		return "", &ExtractionError{Message: fmt.Sprintf("chapters %d and %d not both present", first, second)}
	}

	prompt := prompts.Format(prompts.MustGet("structural.json", "merge-chapters"), map[string]string{
		"NumberA": strconv.Itoa(first),
		"BodyA":   chA.Body(content),
		"NumberB": strconv.Itoa(second),
		"BodyB":   chB.Body(content),
	})
	merged, err := generateValidated(ctx, client, prompt, llm.TierAdvanced, llm.ConsistencySampling(), minChapterBodyLength)
	if err != nil {
		return "", err
	}

	result, err := ReplaceChapterBody(content, first, merged)
	if err != nil {
		return "", err
	}
	result, err = DeleteChapters(result, []int{second})
	if err != nil {
		return "", err
	}
	return Renumber(result), nil
}

func executeModify(ctx context.Context, client llm.Client, content string, issue *types.StructuralIssue, opt *types.ResolutionOption) (string, error) {
	number := opt.ChapterToModify
	ch, ok := ExtractChapter(content, number)
	if !ok {
		return "", &ExtractionError{Message: fmt.Sprintf("chapter %d not found", number)}
	}

	var prompt string
	if opt.EditInstruction != "" {
		prompt = prompts.Format(prompts.MustGet("structural.json", "modify-custom"), map[string]string{
			"Instruction": opt.EditInstruction,
			"Number":      strconv.Itoa(number),
			"Body":        ch.Body(content),
		})
	} else {
		conflict := issue.Conflict
		if conflict == nil {
			return "", &ExtractionError{Message: "modify option requires conflict details or an edit instruction"}
		}
		otherChapter, otherFact, thisFact := conflict.ChapterB, conflict.FactB, conflict.FactA
		if opt.Type == types.ResolutionModifyB {
			otherChapter, otherFact, thisFact = conflict.ChapterA, conflict.FactA, conflict.FactB
		}
		if otherFact == "" {
			otherFact = "lo establecido en el capítulo " + strconv.Itoa(otherChapter)
		}
		if thisFact == "" {
			thisFact = issue.Description
		}
		prompt = prompts.Format(prompts.MustGet("structural.json", "modify-conflict"), map[string]string{
			"OtherChapter": strconv.Itoa(otherChapter),
			"OtherFact":    otherFact,
			"ThisFact":     thisFact,
			"Number":       strconv.Itoa(number),
			"Body":         ch.Body(content),
		})
	}

	modified, err := generateValidated(ctx, client, prompt, llm.TierAdvanced, llm.ConsistencySampling(), minChapterBodyLength)
	if err != nil {
		return "", err
	}
	// No deletion, no renumbering for in-place modification.
	return ReplaceChapterBody(content, number, modified)
}

func executeAddExplanation(ctx context.Context, client llm.Client, content string, issue *types.StructuralIssue, opt *types.ResolutionOption) (string, error) {
	conflict := issue.Conflict
	if conflict == nil {
		return "", &ExtractionError{Message: "add_explanation requires conflict details"}
	}
	number := opt.ChapterToModify
	if number == 0 {
		number = conflict.ChapterB
	}
	ch, ok := ExtractChapter(content, number)
	if !ok {
		return "", &ExtractionError{Message: fmt.Sprintf("chapter %d not found", number)}
	}

	prompt := prompts.Format(prompts.MustGet("structural.json", "add-explanation"), map[string]string{
		"ChapterA": strconv.Itoa(conflict.ChapterA),
		"ChapterB": strconv.Itoa(conflict.ChapterB),
		"FactA":    conflict.FactA,
		"FactB":    conflict.FactB,
		"Number":   strconv.Itoa(number),
		"Body":     ch.Body(content),
	})
	withExplanation, err := generateValidated(ctx, client, prompt, llm.TierAdvanced, llm.ConsistencySampling(), minChapterBodyLength)
	if err != nil {
		return "", err
	}
	return ReplaceChapterBody(content, number, withExplanation)
}

func executeAddTransition(ctx context.Context, client llm.Client, content string, issue *types.StructuralIssue, opt *types.ResolutionOption) (string, error) {
	if len(issue.AffectedChapters) < 2 {
		return "", &ExtractionError{Message: "transition requires two affected chapters"}
	}
	earlier, later := issue.AffectedChapters[0], issue.AffectedChapters[1]

	if opt.TransitionSide == types.TransitionBoth {
		prompt := prompts.Format(prompts.MustGet("structural.json", "transition-both"), map[string]string{
			"ChapterA":     strconv.Itoa(earlier),
			"ChapterB":     strconv.Itoa(later),
			"EndContext":   opt.EndContext,
			"StartContext": opt.StartContext,
		})
		raw, err := generateValidated(ctx, client, prompt, llm.TierStandard, llm.ConsistencySampling(), minPassageLength)
		if err != nil {
			return "", err
		}
		closing, opening, err := parseTwoSidedTransition(raw)
		if err != nil {
			return "", err
		}
		result, err := spliceTransition(content, earlier, closing, types.TransitionEnd)
		if err != nil {
			return "", err
		}
		return spliceTransition(result, later, opening, types.TransitionStart)
	}

	placement := "al final del capítulo " + strconv.Itoa(earlier)
	target, side := earlier, types.TransitionEnd
	if opt.TransitionSide == types.TransitionStart {
		placement = "al inicio del capítulo " + strconv.Itoa(later)
		target, side = later, types.TransitionStart
	}

	prompt := prompts.Format(prompts.MustGet("structural.json", "transition-single"), map[string]string{
		"ChapterA":     strconv.Itoa(earlier),
		"ChapterB":     strconv.Itoa(later),
		"EndContext":   opt.EndContext,
		"StartContext": opt.StartContext,
		"Placement":    placement,
	})
	paragraph, err := generateValidated(ctx, client, prompt, llm.TierStandard, llm.ConsistencySampling(), minPassageLength)
	if err != nil {
		return "", err
	}
	return spliceTransition(content, target, paragraph, side)
}

func executeVaryAll(ctx context.Context, client llm.Client, content string, issue *types.StructuralIssue, opt *types.ResolutionOption) (string, error) {
	if len(issue.AffectedChapters) < 2 {
		return "", &ExtractionError{Message: "vary_all requires multiple affected chapters"}
	}

	// Generate every variation before touching the content so a failure
	// midway leaves the manuscript untouched.
	varied := make(map[int]string, len(issue.AffectedChapters)-1)
	varyTemplate := prompts.MustGet("correction.json", "vary-repetition")
	for i, number := range issue.AffectedChapters[1:] {
		ch, ok := ExtractChapter(content, number)
		if !ok {
			return "", &ExtractionError{Message: fmt.Sprintf("chapter %d not found", number)}
		}
		prompt := prompts.Format(varyTemplate, map[string]string{
			"Index":  strconv.Itoa(i + 1),
			"Target": ch.Body(content),
		})
		generated, err := generateValidated(ctx, client, prompt, llm.TierAdvanced, llm.VariationSampling(i+1), minChapterBodyLength)
		if err != nil {
			return "", err
		}
		varied[number] = generated
	}

	result := content
	for _, number := range issue.AffectedChapters[1:] {
		var err error
		result, err = ReplaceChapterBody(result, number, varied[number])
		if err != nil {
			return "", err
		}
	}
	// Chapter count is unchanged, so no renumbering.
	return result, nil
}

// generateValidated wraps a generative call with the non-trivial-length
// check every structural mutation requires before writing anything.
func generateValidated(ctx context.Context, client llm.Client, prompt string, tier llm.ModelTier, sampling llm.Sampling, minLength int) (string, error) {
	raw, err := client.Generate(ctx, prompt, tier, sampling)
	if err != nil {
		return "", &GenerationError{Message: "generative call failed", Cause: err}
	}
	cleaned := strings.TrimSpace(llm.CleanJSONBlock(raw))
	if len(cleaned) < minLength {
		return "", &GenerationError{Message: fmt.Sprintf("response too short (%d chars)", len(cleaned))}
	}
	return cleaned, nil
}

// parseTwoSidedTransition parses the strict ---CLOSE---/---OPEN--- response
// format of the two-sided transition prompt.
func parseTwoSidedTransition(raw string) (string, string, error) {
	closeIdx := strings.Index(raw, "---CLOSE---")
	openIdx := strings.Index(raw, "---OPEN---")
	if closeIdx < 0 || openIdx < 0 || openIdx < closeIdx {
		return "", "", &GenerationError{Message: "transition response missing ---CLOSE---/---OPEN--- delimiters"}
	}
	closing := strings.TrimSpace(raw[closeIdx+len("---CLOSE---") : openIdx])
	opening := strings.TrimSpace(raw[openIdx+len("---OPEN---"):])
	if closing == "" || opening == "" {
		return "", "", &GenerationError{Message: "transition response has an empty side"}
	}
	return closing, opening, nil
}

// spliceTransition inserts a paragraph immediately before a chapter's end
// boundary or immediately after its heading.
func spliceTransition(content string, number int, paragraph string, side types.TransitionSide) (string, error) {
	ch, ok := ExtractChapter(content, number)
	if !ok {
		return "", &ExtractionError{Message: fmt.Sprintf("chapter %d not found", number)}
	}
	if side == types.TransitionStart {
		return content[:ch.BodyStart] + "\n" + paragraph + "\n" + content[ch.BodyStart:], nil
	}
	body := content[ch.BodyStart:ch.End]
	trimmed := strings.TrimRight(body, " \t\n")
	trailing := body[len(trimmed):]
	return content[:ch.BodyStart] + trimmed + "\n\n" + paragraph + "\n" + trailing + content[ch.End:], nil
}

// neighborWindows returns bounded context from the chapters surrounding the
// given one: the tail of the previous chapter and the head of the next.
func neighborWindows(content string, number int) (string, string) {
	chapters := ParseChapters(content)
	var before, after string
	for i, ch := range chapters {
		if ch.Number != number {
			continue
		}
		if i > 0 {
			prev := strings.TrimSpace(chapters[i-1].Body(content))
			if len(prev) > rewriteWindowChars {
				prev = prev[len(prev)-rewriteWindowChars:]
			}
			before = prev
		}
		if i+1 < len(chapters) {
			next := strings.TrimSpace(chapters[i+1].Body(content))
			if len(next) > rewriteWindowChars {
				next = next[:rewriteWindowChars]
			}
			after = next
		}
		break
	}
	return before, after
}
