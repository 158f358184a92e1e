package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/prompts"
)

// semanticResultSchema is the strict contract for the model's answer. The
// response is untrusted; anything that does not validate is treated as
// "no result", never as an error.
const semanticResultSchema = `{
	"type": "object",
	"properties": {
		"found": {"type": "boolean"},
		"sentence": {"type": "string", "minLength": 1},
		"incorrectValue": {"type": "string"}
	},
	"required": ["found"]
}`

// semanticResult mirrors the JSON contract of the semantic search prompt.
type semanticResult struct {
	Found          bool   `json:"found"`
	Sentence       string `json:"sentence"`
	IncorrectValue string `json:"incorrectValue"`
}

// maxSemanticWindow bounds how much text is sent to the model per query.
const maxSemanticWindow = 12000

// SemanticLocate is the last-resort tier for attribute issues the pattern
// families could not resolve: it asks the generative service to point at the
// contradicting sentence and re-validates everything it returns. The
// returned span is always re-anchored through the regular cascade so its
// offset is trustworthy.
func SemanticLocate(ctx context.Context, client llm.Client, doc string, q AttributeQuery) (Span, bool, error) {
	window := doc
	if len(window) > maxSemanticWindow {
		window = window[:maxSemanticWindow]
	}

	prompt := prompts.Format(prompts.MustGet("correction.json", "semantic-locate"), map[string]string{
		"Character": q.Character,
		"Attribute": q.Attribute,
		"Expected":  q.Expected,
		"Text":      window,
	})

	raw, err := client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return Span{}, false, fmt.Errorf("semantic search failed: %w", err)
	}

	result, ok := parseSemanticResult(raw)
	if !ok || !result.Found {
		return Span{}, false, nil
	}

	sentence := strings.TrimSpace(result.Sentence)
	if sentence == "" {
		return Span{}, false, nil
	}

	// The model quotes loosely; anchor through the cascade.
	span, found := Locate(doc, sentence)
	if !found {
		return Span{}, false, nil
	}
	return span, true, nil
}

// parseSemanticResult validates the raw model output against the contract
// schema and unmarshals it. Any failure means "no result".
func parseSemanticResult(raw string) (semanticResult, bool) {
	cleaned := llm.CleanJSONBlock(raw)

	schemaLoader := gojsonschema.NewStringLoader(semanticResultSchema)
	docLoader := gojsonschema.NewStringLoader(cleaned)
	validation, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil || !validation.Valid() {
		return semanticResult{}, false
	}

	var result semanticResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return semanticResult{}, false
	}
	if result.Found && strings.TrimSpace(result.Sentence) == "" {
		return semanticResult{}, false
	}
	return result, true
}
