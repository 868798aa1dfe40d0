// Package reconcile applies a plan from the reasoning service to the task
// store and the calendar.
//
// Plans are untrusted. Each entry is checked against the request it answers
// and skipped (with a warning) when it names an unknown task, lies outside the
// horizon, or collides with busy time or an earlier entry. A failed booking
// skips that entry only; application is not atomic.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/store"
	"github.com/harrisonrobin/taskplan/pkg/util"
	"github.com/rs/zerolog"
)

// TaskStore is the part of the task repository the reconciler writes to.
type TaskStore interface {
	Get(ctx context.Context, id string) (model.Task, error)
	Assign(ctx context.Context, id string, a model.Assignment, timeSlot, eventID string, loc *time.Location) error
}

// Booker creates calendar events.
type Booker interface {
	CreateEvent(ctx context.Context, calendarID string, b model.Booking) (string, error)
}

// Booked is an entry that was written to the calendar and the task store.
type Booked struct {
	Task     model.Task
	Start    time.Time
	End      time.Time
	TimeSlot string
	EventID  string
}

// Skipped is an entry that was not applied.
type Skipped struct {
	TaskID string
	Reason string
}

// Result lists the entries Apply booked and the ones it skipped.
type Result struct {
	Booked  []Booked
	Skipped []Skipped
}

// Reconciler books plan entries on the calendar and records them on tasks.
type Reconciler struct {
	tasks      TaskStore
	booker     Booker
	calendarID string
	log        zerolog.Logger
}

// New returns a Reconciler booking into calendarID.
func New(tasks TaskStore, booker Booker, calendarID string, log zerolog.Logger) *Reconciler {
	return &Reconciler{tasks: tasks, booker: booker, calendarID: calendarID, log: log}
}

// Apply books every acceptable entry of plan in order. Entries are judged
// against req; the first entry for a task wins. Apply only returns an error
// when ctx is cancelled.
func (r *Reconciler) Apply(ctx context.Context, req *model.ScheduleRequest, plan *model.Plan) (Result, error) {
	loc := req.Location
	if loc == nil {
		loc = time.Local
	}

	var res Result
	seen := make(map[string]bool)
	var accepted []model.Interval

	skip := func(a model.Assignment, err error, reason string) {
		ev := r.log.Warn().Str("task_id", a.TaskID).Time("start", a.Start).Time("end", a.End)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("skipping plan entry: " + reason)
		res.Skipped = append(res.Skipped, Skipped{TaskID: a.TaskID, Reason: reason})
	}

	for _, a := range plan.Assignments {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		slot := model.Interval{Start: a.Start, End: a.End}
		switch {
		case !req.HasTask(a.TaskID):
			skip(a, nil, "task was not part of the request")
			continue
		case seen[a.TaskID]:
			skip(a, nil, "task already scheduled earlier in this plan")
			continue
		case !slot.Valid():
			skip(a, nil, "end is not after start")
			continue
		case req.Horizon.Valid() && !req.Horizon.Contains(slot):
			skip(a, nil, "slot is outside the scheduling horizon")
			continue
		case overlapsAny(slot, req.Busy):
			skip(a, nil, "slot overlaps busy time")
			continue
		case overlapsAny(slot, accepted):
			skip(a, nil, "slot overlaps another scheduled task")
			continue
		}

		task, err := r.tasks.Get(ctx, a.TaskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				skip(a, nil, "task no longer exists")
			} else {
				skip(a, err, "task lookup failed")
			}
			continue
		}

		eventID, err := r.booker.CreateEvent(ctx, r.calendarID, NewBooking(task, a))
		if err != nil {
			skip(a, err, "calendar booking failed")
			continue
		}

		timeSlot := util.TimeSlot(a.Start, a.End, loc)
		if err := r.tasks.Assign(ctx, task.ID, a, timeSlot, eventID, loc); err != nil {
			// The event exists but the task does not point at it; the next
			// run will not clean it up.
			r.log.Error().Err(err).Str("task_id", task.ID).Str("event_id", eventID).Msg("booked but failed to record slot on task")
			res.Skipped = append(res.Skipped, Skipped{TaskID: task.ID, Reason: "failed to update task record"})
			continue
		}

		seen[a.TaskID] = true
		accepted = append(accepted, slot)
		res.Booked = append(res.Booked, Booked{Task: task, Start: a.Start, End: a.End, TimeSlot: timeSlot, EventID: eventID})
		r.log.Info().Str("task_id", task.ID).Str("event_id", eventID).Str("slot", timeSlot).Msg("task booked")
	}
	return res, nil
}

// NewBooking renders a task and its slot as a calendar booking.
func NewBooking(task model.Task, a model.Assignment) model.Booking {
	return model.Booking{
		TaskID:      task.ID,
		Summary:     task.Name,
		Description: Description(task),
		Priority:    model.ParsePriority(string(task.Priority)),
		Start:       a.Start,
		End:         a.End,
	}
}

// Description is the event body: priority, due date, estimate and notes.
func Description(task model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Priority: %s\n", model.ParsePriority(string(task.Priority)))
	fmt.Fprintf(&b, "Due: %s\n", task.DueDate)
	if est := strings.TrimSpace(task.EstimatedTime); est != "" {
		fmt.Fprintf(&b, "Estimated: %s\n", est)
	}
	fmt.Fprintf(&b, "Notes: %s\n", task.Description)
	return b.String()
}

func overlapsAny(iv model.Interval, set []model.Interval) bool {
	for _, s := range set {
		if iv.Overlaps(s) {
			return true
		}
	}
	return false
}
