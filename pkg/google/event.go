package google

import (
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// Calendar color IDs per priority (Tomato, Banana, Sage).
var priorityColors = map[model.Priority]string{
	model.PriorityHigh:   "11",
	model.PriorityMedium: "5",
	model.PriorityLow:    "2",
}

// ConvertBookingToEvent renders a booking as a calendar event carrying the
// task id in a private extended property.
func ConvertBookingToEvent(b model.Booking, loc *time.Location) *calendar.Event {
	colorID, ok := priorityColors[b.Priority]
	if !ok {
		colorID = "8" // Graphite
	}
	tz := ""
	if loc != nil {
		if loc != time.Local {
			tz = loc.String()
		}
		b.Start = b.Start.In(loc)
		b.End = b.End.In(loc)
	}
	return &calendar.Event{
		Summary:     b.Summary,
		Description: b.Description,
		ColorId:     colorID,
		Start: &calendar.EventDateTime{
			DateTime: b.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: b.End.Format(time.RFC3339),
			TimeZone: tz,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				TaskIDProperty: b.TaskID,
			},
		},
	}
}
