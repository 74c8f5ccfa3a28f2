// Package notes turns normalized events into Markdown notes in a storage folder,
// deduplicating by the identity block embedded in each note.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"calnotes/internal/attendees"
	"calnotes/internal/identity"
	"calnotes/internal/models"
	"calnotes/internal/render"
)

// Policy decides what happens when a note for an event, or a file with the
// note's name, already exists.
type Policy string

const (
	PolicySkip      Policy = "skip"
	PolicyOverwrite Policy = "overwrite"
	PolicySuffix    Policy = "suffix"
)

// ErrUnknownPolicy is returned by ParsePolicy for unsupported values.
var ErrUnknownPolicy = errors.New("unknown conflict policy")

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySkip, PolicyOverwrite, PolicySuffix:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q (want skip, overwrite or suffix)", ErrUnknownPolicy, s)
	}
}

// Storage is the hierarchical text store notes are written to. Paths use
// forward slashes and are relative to the store root.
type Storage interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) (string, error)
	// Create fails if the path already exists.
	Create(ctx context.Context, path, text string) error
	// Modify fails if the path does not exist.
	Modify(ctx context.Context, path, text string) error
	// List returns the paths of the direct children of folder.
	List(ctx context.Context, folder string) ([]string, error)
}

// Status is the result kind of a single write.
type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
)

// Skip reasons.
const (
	ReasonAlreadyExists = "already exists"
	ReasonFileExists    = "file with this name already exists"
)

// Outcome describes what happened to one event.
type Outcome struct {
	Status   Status
	Filename string // Base name of the note written or skipped
	Path     string // Full storage path
	Reason   string // Set for skipped outcomes
	Err      error  // Set when the write failed; Reason holds its text
}

// Skipped is a note that was not written, with a human readable reason.
type Skipped struct {
	Filename string
	Reason   string
}

// Result partitions the outcomes of a batch, each list in input order.
type Result struct {
	Created  []string
	Skipped  []Skipped
	Outcomes []Outcome
}

// BlockFor returns the identity block of an event occurrence.
func BlockFor(ev models.Event) identity.Block {
	return identity.Block{EventID: ev.ID, Start: ev.StartISO}
}

// Variables returns the template variables derived from an event.
func Variables(ev models.Event) map[string]string {
	return map[string]string{
		"title":                ev.Title,
		"date":                 ev.Date,
		"startTime":            ev.StartTime,
		"endTime":              ev.EndTime,
		"attendees":            attendees.Format(ev.Attendees),
		"organizer":            ev.OrganizerEmail,
		"location":             ev.Location,
		"description":          ev.Description,
		"calendar":             ev.CalendarID,
		"allDay":               strconv.FormatBool(ev.AllDay),
		identity.KeyEventID:    ev.ID,
		identity.KeyEventStart: ev.StartISO,
	}
}

// Content renders the note text for an event. The identity block is prepended
// unless the template already places one of the identity variables itself.
func Content(ev models.Event, template string) string {
	body := render.Render(template, Variables(ev))
	if render.References(template, identity.KeyEventID) || render.References(template, identity.KeyEventStart) {
		return body
	}
	return identity.Encode(BlockFor(ev)) + "\n" + body
}
