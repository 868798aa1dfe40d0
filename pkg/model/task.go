package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire layout of dueDate and scheduledDate.
const DateLayout = "2006-01-02"

// Priority is the importance tier of a task.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority normalizes user input ("high", " LOW ") to one of the known tiers.
// Unknown values are returned unchanged so that Rank can place them last.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	case "low":
		return PriorityLow
	}
	return Priority(strings.TrimSpace(s))
}

// Rank orders priorities, higher is more important. Unrecognized values rank 0,
// below Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Known reports whether p is one of the fixed tiers.
func (p Priority) Known() bool {
	return p.Rank() > 0
}

// Task is the persisted task record.
type Task struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name" validate:"required"`
	DueDate       string   `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Description   string   `json:"description,omitempty"`
	EstimatedTime string   `json:"estimatedTime,omitempty"`
	Priority      Priority `json:"priority" validate:"required,oneof=High Medium Low"`

	// Set by the reconciler when the task is placed on the calendar.
	ScheduledDate  string     `json:"scheduledDate,omitempty"`
	TimeSlot       string     `json:"timeSlot,omitempty"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduledEnd,omitempty"`
	GCalEventID    string     `json:"gcalEventId,omitempty"`
}

// Due parses the task's due date as a calendar date in UTC.
func (t Task) Due() (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(t.DueDate))
	if err != nil {
		return time.Time{}, &MalformedTaskError{TaskID: t.ID, Field: "dueDate", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", t.DueDate)}
	}
	return d, nil
}

var validate = validator.New()

// Validate checks the record before it is written to storage. Failures are
// reported as MalformedTaskError naming the first offending field.
func (t Task) Validate() error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return &MalformedTaskError{TaskID: t.ID, Field: jsonFieldName(fe.Field()), Reason: fmt.Sprintf("failed %q check", fe.Tag())}
	}
	return &MalformedTaskError{TaskID: t.ID, Reason: err.Error()}
}

func jsonFieldName(structField string) string {
	switch structField {
	case "DueDate":
		return "dueDate"
	case "EstimatedTime":
		return "estimatedTime"
	}
	return strings.ToLower(structField)
}
