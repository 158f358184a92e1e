// Package correction turns located spans into proposed edits by driving the
// generative service, and runs the per-issue batch loop of a correction run.
package correction

import "fmt"

// APICallError represents a generative-service call failure.
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("api call error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("api call error: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// AnomalyError marks a generation that came back unusable: empty, or so much
// longer than the original span that it is presumed a runaway expansion.
// Corrections failing this check are never applied, not even partially.
type AnomalyError struct {
	Reason string
}

func (e *AnomalyError) Error() string {
	return fmt.Sprintf("generation anomaly: %s", e.Reason)
}
