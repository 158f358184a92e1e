package correction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/locator"
	"github.com/atreyu1968/manuscript-mender/internal/prompts"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// MaxLengthRatio is the upper bound on corrected/original span length. A
// response beyond it is presumed a runaway or hallucinated expansion.
const MaxLengthRatio = 2.5

// contextWindowChars bounds the do-not-edit context sent on each side of
// the target span.
const contextWindowChars = 600

// Request is a single "rewrite only this span" exchange with the
// generative service.
type Request struct {
	Before      string // Preceding context, not to be edited
	Target      string // The span to rewrite
	After       string // Following context, not to be edited
	Instruction string
	Suggestion  string
}

// ContextWindows extracts bounded previous/next windows around a located
// span, cut at word boundaries.
func ContextWindows(doc string, span locator.Span) (string, string) {
	before := doc[:span.Start]
	if len(before) > contextWindowChars {
		before = before[len(before)-contextWindowChars:]
		if idx := strings.IndexAny(before, " \n"); idx >= 0 {
			before = before[idx+1:]
		}
	}
	after := doc[span.End():]
	if len(after) > contextWindowChars {
		after = after[:contextWindowChars]
		if idx := strings.LastIndexAny(after, " \n"); idx >= 0 {
			after = after[:idx]
		}
	}
	return before, after
}

// Generate runs one rewrite cycle: prompt, call, sanitize, sanity-check.
// The returned text is ready to substitute for the original span.
func Generate(ctx context.Context, client llm.Client, req Request) (string, error) {
	prompt := prompts.Format(prompts.MustGet("correction.json", "rewrite-span"), map[string]string{
		"Before":      req.Before,
		"Target":      req.Target,
		"After":       req.After,
		"Instruction": req.Instruction,
		"Suggestion":  req.Suggestion,
	})

	raw, err := client.Generate(ctx, prompt, llm.TierAdvanced, llm.ConsistencySampling())
	if err != nil {
		return "", &APICallError{Message: "span rewrite failed", Cause: err}
	}
	return validate(Sanitize(raw), req.Target)
}

// GenerateVariation produces the nth alternative phrasing of a repeated
// passage, with sampling randomness that grows per variation index so the
// alternatives diverge.
func GenerateVariation(ctx context.Context, client llm.Client, target string, index int) (string, error) {
	prompt := prompts.Format(prompts.MustGet("correction.json", "vary-repetition"), map[string]string{
		"Index":  strconv.Itoa(index),
		"Target": target,
	})

	raw, err := client.Generate(ctx, prompt, llm.TierAdvanced, llm.VariationSampling(index))
	if err != nil {
		return "", &APICallError{Message: fmt.Sprintf("variation %d failed", index), Cause: err}
	}
	return validate(Sanitize(raw), target)
}

func validate(text, original string) (string, error) {
	if text == "" {
		return "", &AnomalyError{Reason: "empty response"}
	}
	if float64(len(text)) > MaxLengthRatio*float64(len(original)) {
		return "", &AnomalyError{Reason: fmt.Sprintf("response %dx longer than original", len(text)/max(len(original), 1))}
	}
	return text, nil
}

// preamblePrefixes are phrases models prepend despite being told not to.
var preamblePrefixes = []string{
	"aquí tienes el texto corregido:",
	"aquí tienes la corrección:",
	"aquí tienes:",
	"aquí está el texto corregido:",
	"aquí está:",
	"texto corregido:",
	"corrección:",
	"here is the corrected text:",
	"here is the correction:",
	"here is:",
	"corrected text:",
	"correction:",
}

// Sanitize strips code fences, known preamble phrases and wrapping quotes
// from a raw model response.
func Sanitize(raw string) string {
	text := strings.TrimSpace(llm.CleanJSONBlock(raw))

	lower := strings.ToLower(text)
	for _, prefix := range preamblePrefixes {
		if strings.HasPrefix(lower, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}

	// Strip one layer of symmetric wrapping quotes.
	for _, pair := range [][2]string{{`"`, `"`}, {"«", "»"}, {"“", "”"}, {"'", "'"}} {
		if strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) && len(text) > len(pair[0])+len(pair[1]) {
			text = strings.TrimSpace(text[len(pair[0]) : len(text)-len(pair[1])])
			break
		}
	}
	return text
}

// ComputeDiffStats calculates the word-level diff summary for an accepted
// correction.
func ComputeDiffStats(original, corrected string) types.DiffStats {
	delta := len(strings.Fields(corrected)) - len(strings.Fields(original))
	stats := types.DiffStats{LengthChange: len(corrected) - len(original)}
	if delta > 0 {
		stats.WordsAdded = delta
	} else {
		stats.WordsRemoved = -delta
	}
	return stats
}
