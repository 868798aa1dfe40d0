package model

import "fmt"

// MalformedTaskError reports a task record with a missing or unparsable field.
// Callers skip the task and continue with the rest of the batch, except the
// prioritizer, which fails the whole call.
type MalformedTaskError struct {
	TaskID string
	Field  string
	Reason string
}

func (e *MalformedTaskError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed task %q: %s", e.TaskID, e.Reason)
	}
	return fmt.Sprintf("malformed task %q: %s: %s", e.TaskID, e.Field, e.Reason)
}
