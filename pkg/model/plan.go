package model

import "time"

// TaskSummary is the rendered form of a task inside a ScheduleRequest.
type TaskSummary struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Priority           string  `json:"priority"`
	DueDate            string  `json:"due_date"`
	ScheduledDate      string  `json:"scheduled_date,omitempty"`
	EstimatedTimeHours float64 `json:"estimated_time_hours"`
}

// Slot is a rendered interval inside a ScheduleRequest.
type Slot struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

// RequestContext carries the horizon and the user's goals.
type RequestContext struct {
	Timezone        string `json:"timezone"`
	HorizonStart    string `json:"horizon_start"`
	HorizonEnd      string `json:"horizon_end"`
	Username        string `json:"username"`
	About           string `json:"about"`
	ShortTermGoals  string `json:"short_term_goals"`
	MediumTermGoals string `json:"medium_term_goals"`
	LongTermGoals   string `json:"long_term_goals"`
}

// ScheduleRequest is the snapshot handed to the reasoning service. It is built
// fresh for every run and never persisted.
type ScheduleRequest struct {
	Tasks     []TaskSummary  `json:"tasks"`
	FreeTimes []Slot         `json:"free_times"`
	BusyTimes []Slot         `json:"busy_times"`
	Context   RequestContext `json:"context"`

	// Typed copies used by the reconciler; not rendered into the prompt.
	Location *time.Location `json:"-"`
	Horizon  Interval       `json:"-"`
	Busy     []Interval     `json:"-"`
}

// HasTask reports whether id was part of the request.
func (r *ScheduleRequest) HasTask(id string) bool {
	for _, t := range r.Tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Assignment is one entry of a plan: a task placed in [Start, End).
type Assignment struct {
	TaskID string
	Start  time.Time
	End    time.Time
}

// Plan is the reasoning service's answer after envelope validation. Entries are
// still untrusted until the reconciler checks them.
type Plan struct {
	Assignments []Assignment
	Reasoning   string
	Today       string
}
