// Package ics maps iCalendar data into raw events. It expands recurring events
// into concrete occurrences within a time range, so downstream code sees one
// RawEvent per occurrence just like the Google source delivers them.
package ics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"calnotes/internal/models"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	dateLayout = "2006-01-02"
)

// Parse decodes a single VCALENDAR from r.
func Parse(r io.Reader) (*ical.Calendar, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty ICS body")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse ICS: %w", err)
	}
	return cal, nil
}

// Events returns the occurrences of every VEVENT in cal that overlap
// [start, end], sorted by start. Malformed events are skipped.
func Events(cal *ical.Calendar, calendarID string, start, end time.Time) []models.RawEvent {
	// Instances replaced by a RECURRENCE-ID override, per UID.
	overridden := make(map[string]map[int64]struct{})
	for _, ev := range cal.Events() {
		rid := ev.Props.Get(ical.PropRecurrenceID)
		if rid == nil {
			continue
		}
		t, err := rid.DateTime(time.Local)
		if err != nil {
			continue
		}
		uid := propText(ev.Component, ical.PropUID)
		if overridden[uid] == nil {
			overridden[uid] = make(map[int64]struct{})
		}
		overridden[uid][t.Unix()] = struct{}{}
	}

	var out []occurrence
	for _, ev := range cal.Events() {
		occ, err := expand(ev, overridden, start, end)
		if err != nil {
			continue
		}
		out = append(out, occ...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })

	raws := make([]models.RawEvent, 0, len(out))
	for _, o := range out {
		o.raw.CalendarID = calendarID
		raws = append(raws, o.raw)
	}
	return raws
}

type occurrence struct {
	start time.Time
	raw   models.RawEvent
}

func expand(ev ical.Event, overridden map[string]map[int64]struct{}, rangeStart, rangeEnd time.Time) ([]occurrence, error) {
	uid := propText(ev.Component, ical.PropUID)
	if uid == "" {
		return nil, errors.New("missing UID")
	}
	start, err := ev.DateTimeStart(time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid DTSTART for %s: %w", uid, err)
	}
	end, err := ev.DateTimeEnd(time.Local)
	if err != nil || end.Before(start) {
		end = start
	}
	allDay := isAllDay(ev.Props.Get(ical.PropDateTimeStart))
	duration := end.Sub(start)

	base := baseEvent(ev, uid)

	// Overrides are occurrences in their own right, never expanded.
	set, err := ev.RecurrenceSet(time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence for %s: %w", uid, err)
	}
	if set == nil || ev.Props.Get(ical.PropRecurrenceID) != nil {
		if !overlaps(start, end, rangeStart, rangeEnd) {
			return nil, nil
		}
		occ := instance(base, start, end, allDay, ev.Props.Get(ical.PropDateTimeStart))
		if ev.Props.Get(ical.PropRecurrenceID) != nil {
			occ.raw.RecurringEventID = uid
		}
		return []occurrence{occ}, nil
	}

	starts := between(set, rangeStart.Add(-duration), rangeEnd, defaultMaxOccurrencesPerEvent)
	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		if _, skip := overridden[uid][s.Unix()]; skip {
			continue
		}
		e := s.Add(duration)
		if !overlaps(s, e, rangeStart, rangeEnd) {
			continue
		}
		inst := instance(base, s, e, allDay, ev.Props.Get(ical.PropDateTimeStart))
		inst.raw.RecurringEventID = uid
		out = append(out, inst)
	}
	return out, nil
}

// between returns at most limit occurrences of set within [after, before].
func between(set *rrule.Set, after, before time.Time, limit int) []time.Time {
	next := set.Iterator()
	var out []time.Time
	for len(out) < limit {
		t, ok := next()
		if !ok || t.After(before) {
			break
		}
		if t.Before(after) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func baseEvent(ev ical.Event, uid string) models.RawEvent {
	raw := models.RawEvent{
		ID:          uid,
		Summary:     propText(ev.Component, ical.PropSummary),
		Description: propText(ev.Component, ical.PropDescription),
		Location:    propText(ev.Component, ical.PropLocation),
		Status:      models.EventStatus(strings.ToLower(propText(ev.Component, ical.PropStatus))),
	}
	if raw.Status == "" {
		raw.Status = models.StatusConfirmed
	}

	organizer := ""
	if p := ev.Props.Get(ical.PropOrganizer); p != nil {
		organizer = mailto(p.Value)
		raw.Organizer = &models.Participant{
			Email:       organizer,
			DisplayName: p.Params.Get(ical.ParamCommonName),
			Organizer:   true,
		}
	}
	for _, p := range ev.Props.Values(ical.PropAttendee) {
		email := mailto(p.Value)
		raw.Attendees = append(raw.Attendees, models.Participant{
			Email:       email,
			DisplayName: p.Params.Get(ical.ParamCommonName),
			Organizer:   organizer != "" && strings.EqualFold(email, organizer),
		})
	}
	return raw
}

func instance(base models.RawEvent, start, end time.Time, allDay bool, dtstart *ical.Prop) occurrence {
	raw := base
	raw.Attendees = append([]models.Participant(nil), base.Attendees...)
	if allDay {
		raw.Start = &models.EventTime{Date: start.Format(dateLayout)}
		raw.End = &models.EventTime{Date: end.Format(dateLayout)}
	} else {
		tz := ""
		if dtstart != nil {
			tz = dtstart.Params.Get(ical.ParamTimezoneID)
		}
		raw.Start = &models.EventTime{DateTime: start.UTC().Format(time.RFC3339), TimeZone: tz}
		raw.End = &models.EventTime{DateTime: end.UTC().Format(time.RFC3339), TimeZone: tz}
	}
	return occurrence{start: start, raw: raw}
}

// isAllDay treats VALUE=DATE or a DTSTART without a time part as all-day.
func isAllDay(p *ical.Prop) bool {
	if p == nil {
		return false
	}
	if strings.EqualFold(p.Params.Get(ical.ParamValue), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// overlaps treats event ends as exclusive, so an all-day event ending at
// midnight does not spill into the next day. Zero-length events count at
// their start.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.After(bEnd) {
		return false
	}
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart)
	}
	return aEnd.After(bStart)
}

func propText(c *ical.Component, name string) string {
	p := c.Props.Get(name)
	if p == nil {
		return ""
	}
	if s, err := p.Text(); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(p.Value)
}

func mailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}
