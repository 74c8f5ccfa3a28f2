// Package normalize maps raw calendar source events into the internal event model.
//
// The mapping is deliberately permissive: missing or malformed fields degrade to
// empty values instead of failing, so one odd event never blocks a run.
package normalize

import (
	"strings"
	"time"

	"calnotes/internal/models"
	"calnotes/internal/timerange"
)

// UntitledEvent replaces an empty or missing event title.
const UntitledEvent = "Untitled event"

// Normalize converts one raw event into a models.Event.
func Normalize(raw models.RawEvent) models.Event {
	ev := models.Event{
		ID:          raw.ID,
		CalendarID:  raw.CalendarID,
		Title:       title(raw.Summary),
		Description: raw.Description,
		Location:    raw.Location,
		Attendees:   attendees(raw.Attendees),
	}
	if raw.Organizer != nil {
		ev.OrganizerEmail = raw.Organizer.Email
	}

	// All-day iff the start carries no instant.
	if raw.Start == nil || raw.Start.DateTime == "" {
		ev.AllDay = true
		if raw.Start != nil {
			ev.Date = raw.Start.Date
		}
		ev.StartISO = ev.Date
		return ev
	}

	ev.StartISO = raw.Start.DateTime
	if start, ok := parseInstant(raw.Start.DateTime); ok {
		ev.Date = timerange.FormatDate(start)
		ev.StartTime = timerange.FormatTime(start)
	}
	if raw.End != nil {
		if end, ok := parseInstant(raw.End.DateTime); ok {
			ev.EndTime = timerange.FormatTime(end)
		}
	}
	return ev
}

// FilterCancelled keeps every event whose status is not cancelled.
func FilterCancelled(events []models.RawEvent) []models.RawEvent {
	out := make([]models.RawEvent, 0, len(events))
	for _, e := range events {
		if e.Status == models.StatusCancelled {
			continue
		}
		out = append(out, e)
	}
	return out
}

// NormalizeAll drops cancelled events and normalizes the rest in input order.
func NormalizeAll(events []models.RawEvent) []models.Event {
	kept := FilterCancelled(events)
	out := make([]models.Event, 0, len(kept))
	for _, e := range kept {
		out = append(out, Normalize(e))
	}
	return out
}

func title(summary string) string {
	t := strings.TrimSpace(summary)
	if t == "" {
		return UntitledEvent
	}
	return t
}

func attendees(participants []models.Participant) []models.Attendee {
	if len(participants) == 0 {
		return nil
	}
	out := make([]models.Attendee, 0, len(participants))
	for _, p := range participants {
		out = append(out, models.Attendee{
			Email:     p.Email,
			Name:      p.DisplayName,
			Organizer: p.Organizer,
		})
	}
	return out
}

func parseInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
