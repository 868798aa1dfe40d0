package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/harrisonrobin/taskplan/pkg/freetime"
	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/reasoning"
	"github.com/harrisonrobin/taskplan/pkg/reconcile"
	"github.com/harrisonrobin/taskplan/pkg/request"
	"github.com/harrisonrobin/taskplan/pkg/store"
	"github.com/rs/zerolog"
)

type memTasks struct {
	tasks   []model.Task
	listErr error
	cleared []string
}

func (m *memTasks) List(context.Context) ([]model.Task, error) {
	return m.tasks, m.listErr
}

func (m *memTasks) find(id string) *model.Task {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return &m.tasks[i]
		}
	}
	return nil
}

func (m *memTasks) Get(_ context.Context, id string) (model.Task, error) {
	if t := m.find(id); t != nil {
		return *t, nil
	}
	return model.Task{}, store.ErrNotFound
}

func (m *memTasks) Assign(_ context.Context, id string, a model.Assignment, timeSlot, eventID string, loc *time.Location) error {
	t := m.find(id)
	if t == nil {
		return store.ErrNotFound
	}
	t.ScheduledDate = a.Start.In(loc).Format(model.DateLayout)
	t.TimeSlot = timeSlot
	t.GCalEventID = eventID
	return nil
}

func (m *memTasks) ClearBooking(_ context.Context, id string) error {
	m.cleared = append(m.cleared, id)
	if t := m.find(id); t != nil {
		t.GCalEventID = ""
		t.TimeSlot = ""
	}
	return nil
}

type fakeCalendar struct {
	events    []model.CalendarEvent
	deleted   []string
	deleteErr map[string]error
	created   []model.Booking
}

func (f *fakeCalendar) ListCalendars(context.Context) ([]string, error) { return []string{"primary"}, nil }

func (f *fakeCalendar) ListEvents(context.Context, string, time.Time, time.Time) ([]model.CalendarEvent, error) {
	return f.events, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _ string, eventID string) (bool, error) {
	if err := f.deleteErr[eventID]; err != nil {
		return false, err
	}
	f.deleted = append(f.deleted, eventID)
	return true, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ string, b model.Booking) (string, error) {
	f.created = append(f.created, b)
	return fmt.Sprintf("new-%d", len(f.created)), nil
}

type fakeGenerator struct {
	content string
	calls   int
	prompt  string
}

func (f *fakeGenerator) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	if len(input) > 0 {
		f.prompt = input[len(input)-1].Content
	}
	return schema.AssistantMessage(f.content, nil), nil
}

type staticProfile struct {
	profile model.Profile
	err     error
}

func (p staticProfile) Get(context.Context) (model.Profile, error) { return p.profile, p.err }

type failingFreeBusy struct{}

func (failingFreeBusy) Compute(context.Context, time.Time, time.Time) (freetime.Window, error) {
	return freetime.Window{}, errors.New("empty scheduling horizon")
}

func sampleTasks() []model.Task {
	return []model.Task{
		{ID: "t1", Name: "Write report", DueDate: "2024-01-03", Priority: model.PriorityHigh, EstimatedTime: "1", GCalEventID: "old-1"},
		{ID: "t2", Name: "Call bank", DueDate: "2024-01-02", Priority: model.PriorityLow, EstimatedTime: "0.5"},
		{ID: "t3", Name: "Broken", DueDate: "someday", Priority: model.PriorityLow, EstimatedTime: "1", GCalEventID: "old-3"},
	}
}

func newScheduler(tasks *memTasks, cal *fakeCalendar, gen *fakeGenerator, profiles ProfileStore) *Scheduler {
	log := zerolog.Nop()
	loc := time.UTC
	return New(Deps{
		Tasks:      tasks,
		Calendar:   cal,
		CalendarID: "tasks-cal",
		FreeBusy: freetime.NewCalculator(cal, freetime.Options{
			PrimaryEmail: "me@example.com",
			Location:     loc,
			Blackout:     freetime.DefaultBlackout,
			Slot:         30 * time.Minute,
		}, log),
		Profiles: profiles,
		Builder:  request.NewBuilder(loc, log),
		Planner:  reasoning.NewAdapter(gen, 0, log),
		Applier:  reconcile.New(tasks, cal, "tasks-cal", log),
		Horizon:  24 * time.Hour,
		Now:      func() time.Time { return time.Date(2024, 1, 1, 8, 50, 0, 0, loc) },
	}, log)
}

func TestRescheduleAllHappyPath(t *testing.T) {
	tasks := &memTasks{tasks: sampleTasks()}
	cal := &fakeCalendar{events: []model.CalendarEvent{
		{Start: time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), CreatorEmail: "boss@example.com"},
	}}
	gen := &fakeGenerator{content: "```json\n" + `{"scheduled_tasks": [
		{"task_id": "t2", "start_time": "2024-01-01 09:00:00", "end_time": "2024-01-01 09:30:00"},
		{"task_id": "ghost", "start_time": "2024-01-01 10:00:00", "end_time": "2024-01-01 11:00:00"},
		{"task_id": "t1", "start_time": "2024-01-01 09:30:00", "end_time": "2024-01-01 10:30:00"}
	], "reasoning": "t2 is due first", "today": "Call the bank, then write."}` + "\n```"}

	out, err := newScheduler(tasks, cal, gen, staticProfile{}).RescheduleAll(context.Background())
	if err != nil {
		t.Fatalf("RescheduleAll failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("Expected 1 reasoning call, got %d", gen.calls)
	}
	if len(out.Booked) != 2 || out.Skipped != 1 {
		t.Fatalf("Expected 2 booked and 1 skipped, got %d and %d", len(out.Booked), out.Skipped)
	}
	if out.Summary != "Call the bank, then write." || out.Reasoning != "t2 is due first" {
		t.Errorf("unexpected outcome text: %+v", out)
	}
	if out.RunID == "" {
		t.Error("missing run id")
	}

	// Stale bookings are removed for every task that had one, malformed or not.
	if len(cal.deleted) != 2 {
		t.Errorf("Expected 2 stale deletions, got %v", cal.deleted)
	}
	if len(tasks.cleared) != 2 {
		t.Errorf("Expected 2 cleared tasks, got %v", tasks.cleared)
	}

	t1 := tasks.find("t1")
	if t1.GCalEventID != "new-2" || t1.TimeSlot != "09:30 - 10:30" || t1.ScheduledDate != "2024-01-01" {
		t.Errorf("t1 not updated: %+v", t1)
	}
	if tasks.find("t3").GCalEventID != "" {
		t.Error("t3 should not be booked")
	}
}

func TestRescheduleAllMalformedPlanBooksNothing(t *testing.T) {
	tasks := &memTasks{tasks: sampleTasks()}
	cal := &fakeCalendar{}
	gen := &fakeGenerator{content: `{"reasoning": "forgot the tasks", "today": ""}`}

	out, err := newScheduler(tasks, cal, gen, staticProfile{}).RescheduleAll(context.Background())
	if out != nil {
		t.Errorf("Expected no outcome, got %+v", out)
	}
	var runErr *SchedulingRunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Expected SchedulingRunError, got %v", err)
	}
	if runErr.Stage != StageCallReasoning {
		t.Errorf("Expected failure at %s, got %s", StageCallReasoning, runErr.Stage)
	}
	var rse *reasoning.ReasoningServiceError
	if !errors.As(err, &rse) {
		t.Errorf("cause should be a ReasoningServiceError: %v", err)
	}
	if len(cal.created) != 0 {
		t.Errorf("no bookings expected, got %d", len(cal.created))
	}
	// Stale bookings were already removed; that is not rolled back.
	if len(cal.deleted) != 2 {
		t.Errorf("Expected stale deletions to stand, got %v", cal.deleted)
	}
}

func TestRescheduleAllStageFailures(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		tasks := &memTasks{listErr: errors.New("database is locked")}
		_, err := newScheduler(tasks, &fakeCalendar{}, &fakeGenerator{}, staticProfile{}).RescheduleAll(context.Background())
		var runErr *SchedulingRunError
		if !errors.As(err, &runErr) || runErr.Stage != StageFetchTasks {
			t.Fatalf("Expected failure at FetchTasks, got %v", err)
		}
	})

	t.Run("free busy", func(t *testing.T) {
		tasks := &memTasks{tasks: sampleTasks()}
		gen := &fakeGenerator{}
		s := newScheduler(tasks, &fakeCalendar{}, gen, staticProfile{})
		s.deps.FreeBusy = failingFreeBusy{}
		_, err := s.RescheduleAll(context.Background())
		var runErr *SchedulingRunError
		if !errors.As(err, &runErr) || runErr.Stage != StageComputeFreeBusy {
			t.Fatalf("Expected failure at ComputeFreeBusy, got %v", err)
		}
		if gen.calls != 0 {
			t.Error("reasoning service must not be called")
		}
	})
}

func TestRescheduleAllToleratesStaleDeleteAndProfileErrors(t *testing.T) {
	tasks := &memTasks{tasks: sampleTasks()[:2]}
	cal := &fakeCalendar{deleteErr: map[string]error{"old-1": errors.New("googleapi: Error 500")}}
	gen := &fakeGenerator{content: `{"scheduled_tasks": [], "reasoning": "", "today": "Nothing fits."}`}

	out, err := newScheduler(tasks, cal, gen, staticProfile{err: errors.New("no such table")}).RescheduleAll(context.Background())
	if err != nil {
		t.Fatalf("RescheduleAll failed: %v", err)
	}
	if out.Summary != "Nothing fits." {
		t.Errorf("unexpected summary %q", out.Summary)
	}
	if len(tasks.cleared) != 0 {
		t.Errorf("a failed delete must keep the reference, cleared %v", tasks.cleared)
	}
}

func TestRescheduleAllPromptOmitsDeletedBookings(t *testing.T) {
	seed := sampleTasks()[:2]
	seed[0].ScheduledDate = "2023-12-31"
	seed[0].TimeSlot = "09:00 - 10:00"
	seed[1].GCalEventID = "old-2"
	seed[1].ScheduledDate = "2023-12-30"
	tasks := &memTasks{tasks: seed}
	cal := &fakeCalendar{deleteErr: map[string]error{"old-2": errors.New("googleapi: Error 500")}}
	gen := &fakeGenerator{content: `{"scheduled_tasks": [], "reasoning": "", "today": ""}`}

	if _, err := newScheduler(tasks, cal, gen, staticProfile{}).RescheduleAll(context.Background()); err != nil {
		t.Fatalf("RescheduleAll failed: %v", err)
	}
	if strings.Contains(gen.prompt, "2023-12-31") {
		t.Errorf("prompt still carries the deleted booking of t1:\n%s", gen.prompt)
	}
	// t2's delete failed, so its booking is still real.
	if !strings.Contains(gen.prompt, "2023-12-30") {
		t.Errorf("prompt lost the surviving booking of t2:\n%s", gen.prompt)
	}
}

func TestRescheduleAllNothingToDo(t *testing.T) {
	gen := &fakeGenerator{}
	out, err := newScheduler(&memTasks{}, &fakeCalendar{}, gen, staticProfile{}).RescheduleAll(context.Background())
	if err != nil {
		t.Fatalf("RescheduleAll failed: %v", err)
	}
	if gen.calls != 0 || len(out.Booked) != 0 {
		t.Errorf("Expected an empty run, got %+v after %d calls", out, gen.calls)
	}
}

func TestRunMachineTransitions(t *testing.T) {
	m, err := newRunMachine("r")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range pipeline[1:] {
		got, err := m.Advance()
		if err != nil || got != want {
			t.Fatalf("Expected %s, got %s (%v)", want, got, err)
		}
	}
	if got, _ := m.Advance(); got != StageDone {
		t.Fatalf("Expected Done, got %s", got)
	}
	if err := m.Fail(); err == nil {
		t.Error("Done must be terminal")
	}
}
