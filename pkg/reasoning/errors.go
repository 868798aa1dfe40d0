package reasoning

import "fmt"

// ReasoningServiceError means no usable plan came back: the call failed, or
// the response was not a JSON object of the expected shape.
type ReasoningServiceError struct {
	Reason string
	Err    error
}

func (e *ReasoningServiceError) Error() string {
	if e.Err == nil {
		return "reasoning service: " + e.Reason
	}
	return fmt.Sprintf("reasoning service: %s: %v", e.Reason, e.Err)
}

func (e *ReasoningServiceError) Unwrap() error { return e.Err }
