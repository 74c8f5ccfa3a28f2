package models

// EventStatus is the lifecycle status reported by a calendar source.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

// EventTime is one boundary of a raw event. Exactly one of DateTime (an RFC 3339
// instant) or Date (a whole day, YYYY-MM-DD) is normally set.
type EventTime struct {
	DateTime string // e.g. "2024-03-15T09:00:00Z"
	Date     string // e.g. "2024-03-15"
	TimeZone string // Optional IANA zone the source expressed the instant in
}

// Participant is an attendee or organizer record as supplied by the source.
type Participant struct {
	Email       string
	DisplayName string
	Organizer   bool
}

// RawEvent is an event as it arrives from a calendar source, before normalization.
// Fields are loosely populated; the normalizer tolerates missing values.
type RawEvent struct {
	ID               string      // Event identifier; shared by the instances of a recurring series
	RecurringEventID string      // Identifier of the series, when this is an expanded instance
	CalendarID       string      // Calendar the event was listed from
	Summary          string      // Title, may be empty
	Description      string      // Free text body
	Location         string      // Free text location
	Status           EventStatus // confirmed, tentative or cancelled
	Start            *EventTime
	End              *EventTime
	Attendees        []Participant
	Organizer        *Participant
}

// Attendee is a normalized participant of an event.
// Email is the identity key and is compared case-insensitively.
type Attendee struct {
	Email     string
	Name      string
	Organizer bool
}

// Event is the normalized internal representation consumed by the note pipeline.
// It is created once by the normalizer and never mutated afterwards.
type Event struct {
	ID             string     // Event identifier
	CalendarID     string     // Calendar the event came from
	Title          string     // Never empty
	Date           string     // Local calendar date, YYYY-MM-DD
	StartTime      string     // Local HH:mm, empty for all-day events
	EndTime        string     // Local HH:mm, empty for all-day events
	AllDay         bool       // True when the source gave no start instant
	StartISO       string     // Canonical start identity: raw instant or plain date
	Attendees      []Attendee // In source order, not deduplicated
	OrganizerEmail string     // Organizer email if the source supplied one
	Description    string
	Location       string
}

// Calendar describes a calendar exposed by a source.
type Calendar struct {
	ID      string
	Name    string
	Primary bool
}
