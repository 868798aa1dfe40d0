// Package request assembles the snapshot sent to the reasoning service from
// prioritized tasks, free/busy time and the user's profile.
package request

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/freetime"
	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/util"
	"github.com/rs/zerolog"
)

// Builder assembles a ScheduleRequest from tasks, free time and a profile.
type Builder struct {
	loc *time.Location
	log zerolog.Logger
}

// NewBuilder returns a Builder that renders local times in loc.
func NewBuilder(loc *time.Location, log zerolog.Logger) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{loc: loc, log: log}
}

// Build renders tasks (already in priority order), the free/busy window and the
// profile into a ScheduleRequest. Tasks missing a required field are logged and
// left out; the rest of the batch is kept.
func (b *Builder) Build(tasks []model.Task, window freetime.Window, profile model.Profile) (*model.ScheduleRequest, error) {
	if !window.Horizon.Valid() {
		return nil, fmt.Errorf("invalid horizon %s - %s", window.Horizon.Start, window.Horizon.End)
	}

	req := &model.ScheduleRequest{
		Tasks:     make([]model.TaskSummary, 0, len(tasks)),
		FreeTimes: b.slots(window.Free),
		BusyTimes: b.slots(window.Busy),
		Context: model.RequestContext{
			Timezone:        b.loc.String(),
			HorizonStart:    util.FormatPromptTime(window.Horizon.Start, b.loc),
			HorizonEnd:      util.FormatPromptTime(window.Horizon.End, b.loc),
			Username:        profile.Username,
			About:           profile.About,
			ShortTermGoals:  profile.ShortTermGoals,
			MediumTermGoals: profile.MediumTermGoals,
			LongTermGoals:   profile.LongTermGoals,
		},
		Location: b.loc,
		Horizon:  window.Horizon,
		Busy:     append([]model.Interval(nil), window.Busy...),
	}

	for _, t := range tasks {
		summary, err := Summarize(t)
		if err != nil {
			var mte *model.MalformedTaskError
			if !errors.As(err, &mte) {
				return nil, err
			}
			b.log.Warn().Err(err).Str("task_id", t.ID).Msg("leaving malformed task out of the request")
			continue
		}
		req.Tasks = append(req.Tasks, summary)
	}
	return req, nil
}

// Summarize renders one task. Name, due date, priority and a positive
// estimated duration are all required.
func Summarize(t model.Task) (model.TaskSummary, error) {
	malformed := func(field, reason string) error {
		return &model.MalformedTaskError{TaskID: t.ID, Field: field, Reason: reason}
	}
	if strings.TrimSpace(t.ID) == "" {
		return model.TaskSummary{}, malformed("id", "missing")
	}
	if strings.TrimSpace(t.Name) == "" {
		return model.TaskSummary{}, malformed("name", "missing")
	}
	due, err := t.Due()
	if err != nil {
		return model.TaskSummary{}, err
	}
	if strings.TrimSpace(string(t.Priority)) == "" {
		return model.TaskSummary{}, malformed("priority", "missing")
	}
	if strings.TrimSpace(t.EstimatedTime) == "" {
		return model.TaskSummary{}, malformed("estimatedTime", "missing")
	}
	estimate, err := util.ParseEstimate(t.EstimatedTime)
	if err != nil {
		return model.TaskSummary{}, malformed("estimatedTime", err.Error())
	}

	return model.TaskSummary{
		ID:                 t.ID,
		Name:               t.Name,
		Description:        t.Description,
		Priority:           string(model.ParsePriority(string(t.Priority))),
		DueDate:            due.Format(model.DateLayout),
		ScheduledDate:      t.ScheduledDate,
		EstimatedTimeHours: math.Round(estimate.Hours()*100) / 100,
	}, nil
}

func (b *Builder) slots(intervals []model.Interval) []model.Slot {
	out := make([]model.Slot, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, model.Slot{
			Start: util.FormatPromptTime(iv.Start, b.loc),
			End:   util.FormatPromptTime(iv.End, b.loc),
		})
	}
	return out
}
