package model

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Valid reports whether Start < End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether the two half-open ranges share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// CalendarEvent is an event read from the calendar provider.
type CalendarEvent struct {
	ID           string
	CalendarID   string
	Summary      string
	Start        time.Time
	End          time.Time
	CreatorEmail string
}

// Booking is an event the scheduler asks the calendar provider to create.
type Booking struct {
	TaskID      string
	Summary     string
	Description string
	Priority    Priority
	Start       time.Time
	End         time.Time
}
