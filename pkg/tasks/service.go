// Package tasks implements task management outside of a scheduling run:
// create, list, delete, bulk import and the today view.
package tasks

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/util"
	"github.com/rs/zerolog"
)

type Repository interface {
	List(ctx context.Context) ([]model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	Create(ctx context.Context, t model.Task) (string, error)
	Delete(ctx context.Context, id string) error
}

type EventDeleter interface {
	DeleteEvent(ctx context.Context, calendarID, eventID string) (bool, error)
}

type Service struct {
	repo       Repository
	calendar   EventDeleter
	calendarID string
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
}

// NewService wires the service. calendar may be nil, in which case deleting a
// booked task leaves its calendar event in place.
func NewService(repo Repository, calendar EventDeleter, calendarID string, loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, calendar: calendar, calendarID: calendarID, loc: loc, now: time.Now, log: log}
}

// Add validates and stores t, returning it with its new id.
func (s *Service) Add(ctx context.Context, t model.Task) (model.Task, error) {
	if _, err := util.ParseEstimate(t.EstimatedTime); err != nil {
		return model.Task{}, &model.MalformedTaskError{TaskID: t.ID, Field: "estimatedTime", Reason: err.Error()}
	}
	t.Priority = model.ParsePriority(string(t.Priority))
	id, err := s.repo.Create(ctx, t)
	if err != nil {
		return model.Task{}, err
	}
	t.ID = id
	s.log.Info().Str("task_id", id).Str("name", t.Name).Msg("task created")
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]model.Task, error) {
	return s.repo.List(ctx)
}

// Delete removes the task with id. Its calendar booking, if any, is deleted
// first; a failure there is logged and the task is removed anyway.
func (s *Service) Delete(ctx context.Context, id string) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.GCalEventID != "" {
		if s.calendar == nil {
			s.log.Warn().Str("task_id", id).Str("event_id", t.GCalEventID).Msg("no calendar access, leaving booking in place")
		} else if _, err := s.calendar.DeleteEvent(ctx, s.calendarID, t.GCalEventID); err != nil {
			s.log.Warn().Err(err).Str("task_id", id).Str("event_id", t.GCalEventID).Msg("failed to delete calendar booking")
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("task_id", id).Msg("task deleted")
	return nil
}

// ImportResult reports what Import did.
type ImportResult struct {
	Created []model.Task
	Skipped int
}

// Import reads either a JSON array of tasks or a stream of task objects and
// adds each one. Records that do not decode or validate are skipped.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult
	records, err := decodeRecords(r)
	if err != nil {
		return res, err
	}
	for i, raw := range records {
		var t model.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			s.log.Warn().Err(err).Int("record", i).Msg("skipping undecodable task")
			res.Skipped++
			continue
		}
		created, err := s.Add(ctx, t)
		if err != nil {
			var mte *model.MalformedTaskError
			if errors.As(err, &mte) {
				s.log.Warn().Err(err).Int("record", i).Msg("skipping invalid task")
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Created = append(res.Created, created)
	}
	return res, nil
}

func decodeRecords(r io.Reader) ([]json.RawMessage, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(br)
	if first == '[' {
		var records []json.RawMessage
		if err := decoder.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode task array: %w", err)
		}
		return records, nil
	}

	var records []json.RawMessage
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		records = append(records, raw)
	}
	return records, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\r\n", rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

// Today returns the tasks scheduled for the current local date, ordered by
// time slot.
func (s *Service) Today(ctx context.Context) (string, []model.Task, error) {
	date := s.now().In(s.loc).Format(model.DateLayout)
	all, err := s.repo.List(ctx)
	if err != nil {
		return date, nil, err
	}
	var today []model.Task
	for _, t := range all {
		if t.ScheduledDate == date {
			today = append(today, t)
		}
	}
	sort.SliceStable(today, func(i, j int) bool {
		return today[i].TimeSlot < today[j].TimeSlot
	})
	return date, today, nil
}
