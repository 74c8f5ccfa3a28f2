// Package attendees turns an event's attendee set into wiki-link labels.
package attendees

import (
	"strings"

	"calnotes/internal/models"
)

// Format renders the attendees as "[[label]], [[label]]".
//
// The organizer (the first attendee flagged as such) is left out, attendees are
// deduplicated by lowercase email keeping the first occurrence, and each label is
// the trimmed display name or, failing that, the local part of the email.
// No surviving attendee yields the empty string.
func Format(list []models.Attendee) string {
	organizer, hasOrganizer := "", false
	for _, a := range list {
		if a.Organizer {
			organizer, hasOrganizer = strings.ToLower(a.Email), true
			break
		}
	}

	seen := make(map[string]struct{}, len(list))
	links := make([]string, 0, len(list))
	for _, a := range list {
		key := strings.ToLower(a.Email)
		if hasOrganizer && key == organizer {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, "[["+Label(a)+"]]")
	}
	return strings.Join(links, ", ")
}

// Label returns the display label for one attendee.
func Label(a models.Attendee) string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	if at := strings.Index(a.Email, "@"); at >= 0 {
		return a.Email[:at]
	}
	return a.Email
}
