package structural

import "fmt"

// ExtractionError indicates a referenced chapter block could not be located
// during structural execution. It is always raised before any content
// mutation, so the manuscript is left byte-identical on failure.
type ExtractionError struct {
	Message string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("structural extraction error: %s", e.Message)
}

// GenerationError indicates the generative service returned an unusable
// response (empty or implausibly short) during a resolution attempt.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("structural generation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("structural generation error: %s", e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// OptionNotFoundError indicates a requested resolution option id does not
// exist for the issue. ValidIDs lets the caller surface the alternatives.
type OptionNotFoundError struct {
	OptionID string
	ValidIDs []string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("resolution option %q not found, valid options: %v", e.OptionID, e.ValidIDs)
}
