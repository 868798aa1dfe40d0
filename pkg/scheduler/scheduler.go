// Package scheduler runs the end-to-end "reschedule all tasks" operation.
//
// A run is strictly sequential and is not retried. Stale bookings are removed
// before new free time is computed, so a run that fails afterwards leaves the
// affected tasks unbooked until the next successful run. Concurrent runs
// against the same store and calendar are not coordinated; callers must
// serialize them.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/taskplan/pkg/freetime"
	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/priority"
	"github.com/harrisonrobin/taskplan/pkg/reconcile"
	"github.com/rs/zerolog"
)

// SchedulingRunError is the terminal failure of a run.
type SchedulingRunError struct {
	Stage Stage
	Err   error
}

func (e *SchedulingRunError) Error() string {
	return fmt.Sprintf("scheduling run failed at %s: %v", e.Stage, e.Err)
}

func (e *SchedulingRunError) Unwrap() error { return e.Err }

// TaskStore lists tasks and clears their bookings.
type TaskStore interface {
	List(ctx context.Context) ([]model.Task, error)
	ClearBooking(ctx context.Context, id string) error
}

// EventDeleter removes calendar events by id.
type EventDeleter interface {
	DeleteEvent(ctx context.Context, calendarID, eventID string) (bool, error)
}

// FreeBusy computes the free time window of a run.
type FreeBusy interface {
	Compute(ctx context.Context, start, end time.Time) (freetime.Window, error)
}

// ProfileStore returns the user profile.
type ProfileStore interface {
	Get(ctx context.Context) (model.Profile, error)
}

// RequestBuilder assembles the reasoning request.
type RequestBuilder interface {
	Build(tasks []model.Task, window freetime.Window, profile model.Profile) (*model.ScheduleRequest, error)
}

// Planner asks the reasoning service for a plan.
type Planner interface {
	Plan(ctx context.Context, req *model.ScheduleRequest) (*model.Plan, error)
}

// Applier books a plan onto the calendar.
type Applier interface {
	Apply(ctx context.Context, req *model.ScheduleRequest, plan *model.Plan) (reconcile.Result, error)
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Tasks      TaskStore
	Calendar   EventDeleter
	CalendarID string
	FreeBusy   FreeBusy
	Profiles   ProfileStore
	Builder    RequestBuilder
	Planner    Planner
	Applier    Applier
	// Horizon is the length of the scheduling window starting now.
	Horizon time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Outcome is what a successful run reports to the caller. Per-entry skips are
// only logged.
type Outcome struct {
	RunID     string
	Summary   string
	Reasoning string
	Booked    []reconcile.Booked
	Skipped   int
}

// Scheduler reschedules all tasks in one run.
type Scheduler struct {
	deps Deps
	log  zerolog.Logger
}

// New returns a Scheduler, defaulting Now and Horizon.
func New(deps Deps, log zerolog.Logger) *Scheduler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Horizon <= 0 {
		deps.Horizon = 7 * 24 * time.Hour
	}
	return &Scheduler{deps: deps, log: log}
}

// RescheduleAll runs FetchTasks through ReconcilePlan once. It returns an
// Outcome when the run reaches Done and a *SchedulingRunError otherwise.
func (s *Scheduler) RescheduleAll(ctx context.Context) (*Outcome, error) {
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	fsm, err := newRunMachine(runID)
	if err != nil {
		return nil, &SchedulingRunError{Stage: StageFetchTasks, Err: err}
	}
	fail := func(err error) (*Outcome, error) {
		stage := fsm.Current()
		if ferr := fsm.Fail(); ferr != nil {
			log.Error().Err(ferr).Msg("run state machine rejected failure")
		}
		log.Error().Err(err).Str("stage", string(stage)).Msg("scheduling run failed")
		return nil, &SchedulingRunError{Stage: stage, Err: err}
	}
	advance := func() error {
		stage, err := fsm.Advance()
		if err != nil {
			return err
		}
		log.Debug().Str("stage", string(stage)).Msg("entering stage")
		return nil
	}
	out := &Outcome{RunID: runID}

	// FetchTasks
	tasks, err := s.deps.Tasks.List(ctx)
	if err != nil {
		return fail(err)
	}
	log.Info().Int("tasks", len(tasks)).Msg("scheduling run started")

	// Prioritize
	if err := advance(); err != nil {
		return fail(err)
	}
	ordered, err := priority.Prioritize(withValidDueDates(tasks, log))
	if err != nil {
		return fail(err)
	}

	// DeleteStaleBookings
	if err := advance(); err != nil {
		return fail(err)
	}
	cleared := s.deleteStaleBookings(ctx, tasks, log)
	for i := range ordered {
		if cleared[ordered[i].ID] {
			ordered[i] = withoutBooking(ordered[i])
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if len(ordered) == 0 {
		log.Info().Msg("no tasks to schedule")
		if err := fsm.Finish(); err != nil {
			return fail(err)
		}
		return out, nil
	}

	// ComputeFreeBusy
	if err := advance(); err != nil {
		return fail(err)
	}
	now := s.deps.Now()
	window, err := s.deps.FreeBusy.Compute(ctx, now, now.Add(s.deps.Horizon))
	if err != nil {
		return fail(err)
	}
	log.Debug().Int("free", len(window.Free)).Int("busy", len(window.Busy)).Msg("free time computed")

	// FetchProfile
	if err := advance(); err != nil {
		return fail(err)
	}
	profile, err := s.deps.Profiles.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("profile unavailable, using empty goals")
		profile = model.Profile{}
	}

	// BuildRequest
	if err := advance(); err != nil {
		return fail(err)
	}
	req, err := s.deps.Builder.Build(ordered, window, profile)
	if err != nil {
		return fail(err)
	}
	if len(req.Tasks) == 0 {
		log.Info().Msg("no schedulable tasks after validation")
		if err := fsm.Finish(); err != nil {
			return fail(err)
		}
		return out, nil
	}

	// CallReasoningService
	if err := advance(); err != nil {
		return fail(err)
	}
	plan, err := s.deps.Planner.Plan(ctx, req)
	if err != nil {
		return fail(err)
	}
	out.Summary = plan.Today
	out.Reasoning = plan.Reasoning

	// ReconcilePlan
	if err := advance(); err != nil {
		return fail(err)
	}
	res, err := s.deps.Applier.Apply(ctx, req, plan)
	out.Booked = res.Booked
	out.Skipped = len(res.Skipped)
	if err != nil {
		return fail(err)
	}

	if err := advance(); err != nil {
		return fail(err)
	}
	log.Info().Int("booked", len(out.Booked)).Int("skipped", out.Skipped).Msg("scheduling run done")
	return out, nil
}

// deleteStaleBookings removes the calendar event of every task that has one
// and clears the reference. It returns the ids whose booking is gone. Failures
// are logged and the task keeps its reference.
func (s *Scheduler) deleteStaleBookings(ctx context.Context, tasks []model.Task, log zerolog.Logger) map[string]bool {
	cleared := make(map[string]bool)
	for _, t := range tasks {
		if t.GCalEventID == "" {
			continue
		}
		if ctx.Err() != nil {
			return cleared
		}
		existed, err := s.deps.Calendar.DeleteEvent(ctx, s.deps.CalendarID, t.GCalEventID)
		if err != nil {
			log.Warn().Err(err).Str("task_id", t.ID).Str("event_id", t.GCalEventID).Msg("failed to delete stale booking")
			continue
		}
		if !existed {
			log.Debug().Str("task_id", t.ID).Str("event_id", t.GCalEventID).Msg("stale booking already gone")
		}
		cleared[t.ID] = true
		if err := s.deps.Tasks.ClearBooking(ctx, t.ID); err != nil {
			log.Warn().Err(err).Str("task_id", t.ID).Msg("failed to clear booking on task")
		}
	}
	return cleared
}

// withoutBooking drops the slot fields of a task whose booking was deleted.
func withoutBooking(t model.Task) model.Task {
	t.GCalEventID = ""
	t.ScheduledDate = ""
	t.TimeSlot = ""
	t.ScheduledStart = nil
	t.ScheduledEnd = nil
	return t
}

// withValidDueDates drops tasks whose due date does not parse so that one bad
// record cannot fail prioritization for the whole batch.
func withValidDueDates(tasks []model.Task, log zerolog.Logger) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, err := t.Due(); err != nil {
			log.Warn().Err(err).Str("task_id", t.ID).Msg("skipping malformed task")
			continue
		}
		out = append(out, t)
	}
	return out
}
