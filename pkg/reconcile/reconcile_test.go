package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/store"
	"github.com/rs/zerolog"
)

type assigned struct {
	a        model.Assignment
	timeSlot string
	eventID  string
}

type fakeTasks struct {
	tasks    map[string]model.Task
	assigned map[string]assigned
}

func (f *fakeTasks) Get(_ context.Context, id string) (model.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return model.Task{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTasks) Assign(_ context.Context, id string, a model.Assignment, timeSlot, eventID string, _ *time.Location) error {
	f.assigned[id] = assigned{a: a, timeSlot: timeSlot, eventID: eventID}
	return nil
}

type fakeBooker struct {
	fail     map[string]bool
	bookings []model.Booking
}

func (f *fakeBooker) CreateEvent(_ context.Context, calendarID string, b model.Booking) (string, error) {
	if calendarID != "cal-1" {
		return "", fmt.Errorf("unexpected calendar %q", calendarID)
	}
	if f.fail[b.TaskID] {
		return "", errors.New("googleapi: Error 403: rateLimitExceeded")
	}
	f.bookings = append(f.bookings, b)
	return fmt.Sprintf("evt-%d", len(f.bookings)), nil
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func fixture() (*fakeTasks, *fakeBooker, *model.ScheduleRequest) {
	tasks := &fakeTasks{
		tasks: map[string]model.Task{
			"t1": {ID: "t1", Name: "Write report", DueDate: "2024-01-03", Priority: model.PriorityHigh, EstimatedTime: "1", Description: "Q4 numbers", GCalEventID: "old"},
			"t2": {ID: "t2", Name: "Call bank", DueDate: "2024-01-04", Priority: model.PriorityLow, EstimatedTime: "0.5"},
			"t3": {ID: "t3", Name: "Groceries", DueDate: "2024-01-05", Priority: model.PriorityMedium, EstimatedTime: "1"},
		},
		assigned: map[string]assigned{},
	}
	req := &model.ScheduleRequest{
		Tasks:    []model.TaskSummary{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}, {ID: "gone"}},
		Location: time.UTC,
		Horizon:  model.Interval{Start: at(9, 0), End: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)},
		Busy:     []model.Interval{{Start: at(14, 0), End: at(15, 0)}, {Start: at(22, 0), End: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)}},
	}
	return tasks, &fakeBooker{fail: map[string]bool{}}, req
}

func TestApplyBooksValidEntries(t *testing.T) {
	tasks, booker, req := fixture()
	plan := &model.Plan{Assignments: []model.Assignment{
		{TaskID: "t1", Start: at(9, 0), End: at(10, 30)},
		{TaskID: "t2", Start: at(10, 30), End: at(11, 0)},
	}}

	res, err := New(tasks, booker, "cal-1", zerolog.Nop()).Apply(context.Background(), req, plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(res.Booked) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("Expected 2 booked, 0 skipped, got %+v", res)
	}

	got := tasks.assigned["t1"]
	if got.timeSlot != "09:00 - 10:30" || got.eventID != "evt-1" {
		t.Errorf("unexpected task update: %+v", got)
	}
	b := booker.bookings[0]
	if b.Summary != "Write report" || b.Priority != model.PriorityHigh {
		t.Errorf("unexpected booking: %+v", b)
	}
	for _, want := range []string{"Priority: High", "Due: 2024-01-03", "Notes: Q4 numbers"} {
		if !strings.Contains(b.Description, want) {
			t.Errorf("description missing %q: %q", want, b.Description)
		}
	}
}

func TestApplySkipsHallucinatedAndInvalidEntries(t *testing.T) {
	tasks, booker, req := fixture()
	plan := &model.Plan{Assignments: []model.Assignment{
		{TaskID: "t99", Start: at(9, 0), End: at(10, 0)},                                      // not in request
		{TaskID: "gone", Start: at(9, 0), End: at(10, 0)},                                     // in request, missing from store
		{TaskID: "t1", Start: at(11, 0), End: at(10, 0)},                                      // inverted
		{TaskID: "t1", Start: at(8, 0), End: at(9, 30)},                                       // before horizon
		{TaskID: "t1", Start: at(13, 30), End: at(14, 30)},                                    // overlaps busy
		{TaskID: "t1", Start: at(9, 0), End: at(10, 0)},                                       // valid
		{TaskID: "t2", Start: at(9, 30), End: at(10, 0)},                                      // overlaps t1
		{TaskID: "t1", Start: at(16, 0), End: at(17, 0)},                                      // duplicate
		{TaskID: "t3", Start: at(21, 30), End: time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)}, // into the night
		{TaskID: "t2", Start: at(15, 0), End: at(15, 30)},                                     // valid, touches busy end
	}}

	res, err := New(tasks, booker, "cal-1", zerolog.Nop()).Apply(context.Background(), req, plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(res.Booked) != 2 {
		t.Fatalf("Expected 2 bookings, got %d: %+v", len(res.Booked), res.Booked)
	}
	if res.Booked[0].Task.ID != "t1" || res.Booked[1].Task.ID != "t2" {
		t.Errorf("unexpected booked tasks: %+v", res.Booked)
	}
	if len(res.Skipped) != 8 {
		t.Errorf("Expected 8 skipped entries, got %d: %+v", len(res.Skipped), res.Skipped)
	}
	if _, ok := tasks.assigned["t3"]; ok {
		t.Error("t3 should not have been assigned")
	}
	if len(booker.bookings) != 2 {
		t.Errorf("Expected 2 calendar events, got %d", len(booker.bookings))
	}
}

func TestApplyContinuesAfterBookingFailure(t *testing.T) {
	tasks, booker, req := fixture()
	booker.fail["t1"] = true
	plan := &model.Plan{Assignments: []model.Assignment{
		{TaskID: "t1", Start: at(9, 0), End: at(10, 0)},
		{TaskID: "t2", Start: at(10, 0), End: at(10, 30)},
	}}

	res, err := New(tasks, booker, "cal-1", zerolog.Nop()).Apply(context.Background(), req, plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(res.Booked) != 1 || res.Booked[0].Task.ID != "t2" {
		t.Fatalf("Expected only t2 booked, got %+v", res.Booked)
	}
	if _, ok := tasks.assigned["t1"]; ok {
		t.Error("failed booking must not update the task")
	}
	if len(res.Skipped) != 1 || res.Skipped[0].TaskID != "t1" {
		t.Errorf("unexpected skipped list: %+v", res.Skipped)
	}
}

func TestApplyStopsOnCancel(t *testing.T) {
	tasks, booker, req := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan := &model.Plan{Assignments: []model.Assignment{{TaskID: "t1", Start: at(9, 0), End: at(10, 0)}}}
	if _, err := New(tasks, booker, "cal-1", zerolog.Nop()).Apply(ctx, req, plan); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(booker.bookings) != 0 {
		t.Error("no bookings expected after cancel")
	}
}

func TestDescriptionOmitsEmptyEstimate(t *testing.T) {
	d := Description(model.Task{Priority: "low", DueDate: "2024-02-01"})
	if d != "Priority: Low\nDue: 2024-02-01\nNotes: \n" {
		t.Errorf("unexpected description %q", d)
	}
}
