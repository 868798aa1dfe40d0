// Package freetime computes busy and free intervals over a scheduling
// horizon from calendar events and a nightly blackout window.
//
// When the calendar cannot be read the calculator logs a
// CalendarUnavailableError and carries on as if there were no calendar
// events.
package freetime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/rs/zerolog"
)

// EventSource is the calendar provider as seen by the calculator.
type EventSource interface {
	ListCalendars(ctx context.Context) ([]string, error)
	ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]model.CalendarEvent, error)
}

// CalendarUnavailableError means busy time could not be read from the
// calendar provider.
type CalendarUnavailableError struct {
	Err error
}

func (e *CalendarUnavailableError) Error() string {
	return fmt.Sprintf("calendar unavailable: %v", e.Err)
}

func (e *CalendarUnavailableError) Unwrap() error { return e.Err }

// Blackout is the nightly window from StartHour until EndHour (next day when
// EndHour <= StartHour).
type Blackout struct {
	StartHour int
	EndHour   int
}

// DefaultBlackout is 22:00 to 08:00.
var DefaultBlackout = Blackout{StartHour: 22, EndHour: 8}

// Options configure a Calculator.
type Options struct {
	PrimaryEmail string
	Location     *time.Location
	Blackout     Blackout
	// Slot is the boundary the horizon start is rounded up to.
	Slot time.Duration
}

// Window is the result of one computation. Both lists are sorted, disjoint
// and lie within Horizon.
type Window struct {
	Horizon model.Interval
	Free    []model.Interval
	Busy    []model.Interval
}

// Calculator derives free slots from the busy events of an EventSource.
type Calculator struct {
	source EventSource
	opts   Options
	log    zerolog.Logger
}

// NewCalculator returns a Calculator reading busy time from source.
func NewCalculator(source EventSource, opts Options, log zerolog.Logger) *Calculator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Slot <= 0 {
		opts.Slot = 30 * time.Minute
	}
	return &Calculator{source: source, opts: opts, log: log}
}

// Compute returns free and busy time within [start, end). start is first
// rounded up to the next slot boundary.
func (c *Calculator) Compute(ctx context.Context, start, end time.Time) (Window, error) {
	horizon := model.Interval{Start: RoundUp(start, c.opts.Slot, c.opts.Location), End: end}
	if !horizon.Valid() {
		return Window{}, fmt.Errorf("empty scheduling horizon [%s, %s)", horizon.Start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	busy, err := c.externalBusy(ctx, horizon)
	if err != nil {
		var cue *CalendarUnavailableError
		if !errors.As(err, &cue) {
			return Window{}, err
		}
		c.log.Warn().Err(err).Msg("calendar unreachable, treating calendar as empty")
		busy = nil
	}
	busy = append(busy, NightlyBlackout(horizon, c.opts.Location, c.opts.Blackout)...)

	merged := Merge(busy)
	return Window{
		Horizon: horizon,
		Busy:    merged,
		Free:    Complement(horizon, merged),
	}, nil
}

// externalBusy collects events from every visible calendar that the primary
// user did not author, clipped to the horizon.
func (c *Calculator) externalBusy(ctx context.Context, horizon model.Interval) ([]model.Interval, error) {
	if c.source == nil {
		return nil, &CalendarUnavailableError{Err: errors.New("no calendar source configured")}
	}
	calendarIDs, err := c.source.ListCalendars(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CalendarUnavailableError{Err: err}
	}

	var busy []model.Interval
	for _, calendarID := range calendarIDs {
		events, err := c.source.ListEvents(ctx, calendarID, horizon.Start, horizon.End)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("calendar_id", calendarID).Msg("skipping unreadable calendar")
			continue
		}
		for _, evt := range events {
			if c.authoredByUser(evt) {
				continue
			}
			iv, ok := clip(model.Interval{Start: evt.Start, End: evt.End}, horizon)
			if !ok {
				continue
			}
			busy = append(busy, iv)
		}
	}
	return busy, nil
}

func (c *Calculator) authoredByUser(evt model.CalendarEvent) bool {
	return c.opts.PrimaryEmail != "" && strings.EqualFold(strings.TrimSpace(evt.CreatorEmail), c.opts.PrimaryEmail)
}

// RoundUp moves t forward to the next multiple of slot counted from local
// midnight. Times already on a boundary are unchanged.
func RoundUp(t time.Time, slot time.Duration, loc *time.Location) time.Time {
	if slot <= 0 {
		return t
	}
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := local.Sub(midnight)
	if rem := offset % slot; rem != 0 {
		offset += slot - rem
	}
	return midnight.Add(offset)
}

// NightlyBlackout emits one blackout interval per calendar day touching the
// horizon, clipped to it. Iteration starts the day before the horizon so a
// night already in progress at the start is included.
func NightlyBlackout(horizon model.Interval, loc *time.Location, b Blackout) []model.Interval {
	if b.StartHour == b.EndHour {
		return nil
	}
	first := horizon.Start.In(loc)
	var out []model.Interval
	for day := time.Date(first.Year(), first.Month(), first.Day()-1, 0, 0, 0, 0, loc); day.Before(horizon.End); day = day.AddDate(0, 0, 1) {
		nightStart := time.Date(day.Year(), day.Month(), day.Day(), b.StartHour, 0, 0, 0, loc)
		endDay := day.Day()
		if b.EndHour <= b.StartHour {
			endDay++
		}
		nightEnd := time.Date(day.Year(), day.Month(), endDay, b.EndHour, 0, 0, 0, loc)
		if iv, ok := clip(model.Interval{Start: nightStart, End: nightEnd}, horizon); ok {
			out = append(out, iv)
		}
	}
	return out
}

// Merge sorts intervals and joins overlapping or touching ones. Empty or
// inverted intervals are dropped.
func Merge(intervals []model.Interval) []model.Interval {
	sorted := make([]model.Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var merged []model.Interval
	for _, iv := range sorted {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Complement returns the gaps in horizon not covered by busy, which must be
// sorted and merged.
func Complement(horizon model.Interval, busy []model.Interval) []model.Interval {
	var free []model.Interval
	cursor := horizon.Start
	for _, b := range busy {
		if !b.End.After(cursor) {
			continue
		}
		if !cursor.Before(horizon.End) {
			break
		}
		if b.Start.After(cursor) {
			gapEnd := b.Start
			if gapEnd.After(horizon.End) {
				gapEnd = horizon.End
			}
			free = append(free, model.Interval{Start: cursor, End: gapEnd})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(horizon.End) {
		free = append(free, model.Interval{Start: cursor, End: horizon.End})
	}
	return free
}

func clip(iv, bounds model.Interval) (model.Interval, bool) {
	if iv.Start.Before(bounds.Start) {
		iv.Start = bounds.Start
	}
	if iv.End.After(bounds.End) {
		iv.End = bounds.End
	}
	return iv, iv.Valid()
}
