package store

import (
	"context"
	"fmt"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/rs/zerolog"
)

const (
	TasksCollection    = "todos"
	ProfilesCollection = "profiles"
)

// TaskRepository maps task records onto the document store.
type TaskRepository struct {
	docs *DocStore
	log  zerolog.Logger
}

func NewTaskRepository(docs *DocStore, log zerolog.Logger) *TaskRepository {
	return &TaskRepository{docs: docs, log: log}
}

// List returns all tasks in creation order. Documents that cannot be decoded
// into a task at all are logged and left out; field-level problems (such as a
// bad dueDate) are left for callers to detect.
func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	docs, err := r.docs.List(ctx, TasksCollection)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]model.Task, 0, len(docs))
	for _, doc := range docs {
		var t model.Task
		if err := doc.Decode(&t); err != nil {
			r.log.Warn().Err(err).Str("task_id", doc.ID).Msg("skipping undecodable task record")
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Get returns the task or ErrNotFound.
func (r *TaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	doc, err := r.docs.Get(ctx, TasksCollection, id)
	if err != nil {
		return model.Task{}, err
	}
	var t model.Task
	if err := doc.Decode(&t); err != nil {
		return model.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

// Create validates and stores a new task, returning the assigned id.
func (r *TaskRepository) Create(ctx context.Context, t model.Task) (string, error) {
	t.ID = ""
	t.Priority = model.ParsePriority(string(t.Priority))
	if err := t.Validate(); err != nil {
		return "", err
	}
	fields, err := toFields(t)
	if err != nil {
		return "", err
	}
	return r.docs.Create(ctx, TasksCollection, fields)
}

// Exists reports whether a task with id is stored.
func (r *TaskRepository) Exists(ctx context.Context, id string) (bool, error) {
	return r.docs.Exists(ctx, TasksCollection, id)
}

// Delete removes the task record.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.docs.Delete(ctx, TasksCollection, id)
}

// Assign records a placed slot on the task, overwriting any previous event
// reference.
func (r *TaskRepository) Assign(ctx context.Context, id string, a model.Assignment, timeSlot, eventID string, loc *time.Location) error {
	start := a.Start.In(loc)
	end := a.End.In(loc)
	return r.docs.Update(ctx, TasksCollection, id, map[string]any{
		"scheduledDate":  start.Format(model.DateLayout),
		"timeSlot":       timeSlot,
		"scheduledStart": start.Format(time.RFC3339),
		"scheduledEnd":   end.Format(time.RFC3339),
		"gcalEventId":    eventID,
	})
}

// ClearBooking drops the calendar reference and slot from a task.
func (r *TaskRepository) ClearBooking(ctx context.Context, id string) error {
	return r.docs.Update(ctx, TasksCollection, id, map[string]any{
		"gcalEventId":    nil,
		"timeSlot":       nil,
		"scheduledDate":  nil,
		"scheduledStart": nil,
		"scheduledEnd":   nil,
	})
}
