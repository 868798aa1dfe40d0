package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// TaskIDProperty is the private extended property linking a booking to its task.
const TaskIDProperty = "taskplan_task_id"

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv *calendar.Service
	loc *time.Location
	log zerolog.Logger
}

// NewCalendarClient wraps an authenticated service. loc is used to interpret
// all-day events and is written as the time zone of created bookings.
func NewCalendarClient(srv *calendar.Service, loc *time.Location, log zerolog.Logger) *CalendarClient {
	return &CalendarClient{srv: srv, loc: loc, log: log}
}

// ListCalendars returns the IDs of every calendar visible to the account.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]string, error) {
	var ids []string
	call := c.srv.CalendarList.List().Context(ctx)
	err := call.Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			ids = append(ids, item.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	return ids, nil
}

// ResolveCalendarID finds a calendar by its summary or ID.
func (c *CalendarClient) ResolveCalendarID(ctx context.Context, name string) (string, error) {
	calendarList, err := c.srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range calendarList.Items {
		if item.Summary == name || item.Id == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}

// ListEvents fetches single (expanded) events overlapping [start, end).
func (c *CalendarClient) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	call := c.srv.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			evt, err := c.convertEvent(calendarID, item)
			if err != nil {
				c.log.Warn().Err(err).Str("calendar_id", calendarID).Str("event_id", item.Id).Msg("skipping event with unreadable times")
				continue
			}
			out = append(out, evt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar %s: %w", calendarID, err)
	}
	return out, nil
}

// CreateEvent inserts a booking and returns the new event ID.
func (c *CalendarClient) CreateEvent(ctx context.Context, calendarID string, b model.Booking) (string, error) {
	created, err := c.srv.Events.Insert(calendarID, ConvertBookingToEvent(b, c.loc)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent deletes an event. It reports false with no error when the event
// was already gone.
func (c *CalendarClient) DeleteEvent(ctx context.Context, calendarID, eventID string) (bool, error) {
	err := c.srv.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return false, nil
	}
	return false, fmt.Errorf("unable to delete event %s: %w", eventID, err)
}

func (c *CalendarClient) convertEvent(calendarID string, item *calendar.Event) (model.CalendarEvent, error) {
	start, err := parseEventTime(item.Start, c.loc)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	end, err := parseEventTime(item.End, c.loc)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	evt := model.CalendarEvent{
		ID:         item.Id,
		CalendarID: calendarID,
		Summary:    item.Summary,
		Start:      start,
		End:        end,
	}
	if item.Creator != nil {
		evt.CreatorEmail = item.Creator.Email
	}
	return evt, nil
}

// parseEventTime reads a timed (dateTime) or all-day (date) boundary. All-day
// dates are local midnight in loc.
func parseEventTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing event time")
	}
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	if dt.Date != "" {
		return time.ParseInLocation(model.DateLayout, dt.Date, loc)
	}
	return time.Time{}, errors.New("event time has neither dateTime nor date")
}
